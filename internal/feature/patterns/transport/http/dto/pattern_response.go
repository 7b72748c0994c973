package dto

// PatternResponse is the response DTO for one admitted correlation pattern.
type PatternResponse struct {
	DriverSymbol string  `json:"driver_symbol"`
	TargetSymbol string  `json:"target_symbol"`
	Coefficient  float64 `json:"coefficient"`
	SampleSize   int     `json:"sample_size"`
	AccuracyRate float64 `json:"accuracy_rate"`
	LastUpdated  string  `json:"last_updated"`
}
