package chat

import "time"

// Confidence holds the model's certainty for the style and artist guesses.
// Values are expected in [0,1]; producers clamp them, the store does not.
type Confidence struct {
	Style  float64 `json:"style"`
	Artist float64 `json:"artist"`
}

// AnalysisResult is the structured classification of one uploaded artwork.
type AnalysisResult struct {
	ID            string     `json:"id"`
	ImageURL      string     `json:"imageUrl"`
	Style         string     `json:"style"`
	Artist        string     `json:"artist"`
	Period        string     `json:"period"`
	OCRText       string     `json:"ocrText"`
	AIDescription string     `json:"aiDescription"`
	Confidence    Confidence `json:"confidence"`
	CreatedAt     time.Time  `json:"createdAt"`
}
