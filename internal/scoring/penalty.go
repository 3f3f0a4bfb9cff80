package scoring

import (
	"fmt"
	"strings"

	"github.com/hearthside/homematch/internal/criteria"
	"github.com/hearthside/homematch/internal/listing"
)

// ApplyPenalties computes all deductions for one listing. Deductions are
// applied after the weighted criterion sum and before tiering. The returned
// total is the sum of non-waived deductions.
func ApplyPenalties(l *listing.Listing, cfg *criteria.Config) ([]PenaltyResult, float64) {
	var results []PenaltyResult
	var total float64

	if p := cfg.Penalties.Price; p != nil {
		r := priceSoftCap(l.Price, p, cfg.HardFilters.PriceMax)
		results = append(results, r)
		total += r.Deduction
	}

	if f := cfg.Penalties.RecurringFee; f != nil {
		r := feeBandPenalty(l, f)
		results = append(results, r)
		total += r.Deduction
	}

	return results, total
}

// priceSoftCap is a linear ramp: zero at or below the ideal price, rising to
// MaxDeduction at the hard-filter ceiling. Listings beyond the ceiling never
// reach this code — the gate already excluded them — so the curve is bounded.
func priceSoftCap(price float64, cap *criteria.PriceSoftCap, ceiling float64) PenaltyResult {
	if price <= cap.IdealPrice {
		return PenaltyResult{Name: "price", Deduction: 0, Note: "at or below ideal"}
	}
	if ceiling <= cap.IdealPrice {
		// Degenerate config: no room between ideal and ceiling.
		return PenaltyResult{Name: "price", Deduction: cap.MaxDeduction, Note: "above ideal"}
	}
	frac := (price - cap.IdealPrice) / (ceiling - cap.IdealPrice)
	if frac > 1 {
		frac = 1
	}
	d := cap.MaxDeduction * frac
	return PenaltyResult{
		Name:      "price",
		Deduction: d,
		Note:      fmt.Sprintf("%.0f%% of the way from ideal to ceiling", frac*100),
	}
}

// feeBandPenalty is the stepped recurring-fee curve. An unusually low fee is
// flagged informationally; the two upper bands carry fixed deductions,
// waivable when the compensating amenity is present.
func feeBandPenalty(l *listing.Listing, bands *criteria.FeeBands) PenaltyResult {
	fee := l.MonthlyFee
	switch {
	case fee < bands.LowBand:
		return PenaltyResult{Name: "recurring_fee", Deduction: 0,
			Note: fmt.Sprintf("fee %.0f unusually low, verify what it covers", fee)}
	case fee <= bands.NormalMax:
		return PenaltyResult{Name: "recurring_fee", Deduction: 0, Note: "fee in normal band"}
	}

	deduction := bands.Band2Deduction
	note := fmt.Sprintf("fee %.0f above band2 threshold %.0f", fee, bands.Band1Max)
	if fee <= bands.Band1Max {
		deduction = bands.Band1Deduction
		note = fmt.Sprintf("fee %.0f above normal band %.0f", fee, bands.NormalMax)
	}

	if bands.WaiverAmenity != "" && hasAmenity(l, bands.WaiverAmenity) {
		return PenaltyResult{Name: "recurring_fee", Deduction: 0, Waived: true,
			Note: note + ", waived by " + bands.WaiverAmenity}
	}
	return PenaltyResult{Name: "recurring_fee", Deduction: deduction, Note: note}
}

func hasAmenity(l *listing.Listing, amenity string) bool {
	for _, a := range l.Amenities {
		if strings.EqualFold(strings.TrimSpace(a), amenity) {
			return true
		}
	}
	return false
}
