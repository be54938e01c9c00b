package scoring

// Every rate helper returns 0 when its denominator is 0 so aggregates stay
// displayable. A 0 here means "no data", not a measured zero rate.

// Variant is one arm of an experiment
type Variant struct {
	Name         string `json:"name"`
	Participants int    `json:"participants"`
	Conversions  int    `json:"conversions"`
}

// SafeRate divides num by den, returning 0 when den is 0
func SafeRate(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// ConversionRates returns conversions/participants per variant name
func ConversionRates(variants []Variant) map[string]float64 {
	rates := make(map[string]float64, len(variants))
	for _, v := range variants {
		rates[v.Name] = SafeRate(float64(v.Conversions), float64(v.Participants))
	}
	return rates
}

// GrowthRate is the percentage change from previous to current
func GrowthRate(previous, current float64) float64 {
	return SafeRate(current-previous, previous) * 100
}
