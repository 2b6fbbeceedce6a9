// README: Rate definition, option surcharges, and the fare formula.
package pricing

import "math"

// Rate prices one vehicle class. Rates are immutable during a ride's life
// and read-only to the engine.
type Rate struct {
	VehicleClass string
	BasePrice    float64
	PricePerKm   float64
	MinPrice     float64
}

// OptionSurcharges is the fixed surcharge table. Unknown option codes
// contribute zero and are ignored, not rejected.
var OptionSurcharges = map[string]float64{
	"child_seat":   15.00,
	"pet_friendly": 10.00,
}

// Quote is the full breakdown of one computed fare; everything in it goes
// into the audit trail.
type Quote struct {
	DistanceKm      float64
	DurationSeconds float64
	BasePrice       float64
	PricePerKm      float64
	MinPrice        float64
	DistanceCharge  float64
	OptionsCharge   float64
	Total           float64
	Source          string
}

// Compute applies the fare formula:
//
//	total = max(minPrice, base + distanceKm*perKm + sum(surcharges))
func Compute(rate Rate, distanceKm float64, options []string) Quote {
	q := Quote{
		DistanceKm:     distanceKm,
		BasePrice:      rate.BasePrice,
		PricePerKm:     rate.PricePerKm,
		MinPrice:       rate.MinPrice,
		DistanceCharge: round2(distanceKm * rate.PricePerKm),
	}
	for _, code := range options {
		q.OptionsCharge += OptionSurcharges[code]
	}
	total := rate.BasePrice + q.DistanceCharge + q.OptionsCharge
	if total < rate.MinPrice {
		total = rate.MinPrice
	}
	q.Total = round2(total)
	return q
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
