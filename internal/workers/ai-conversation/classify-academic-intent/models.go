package classifyacademicintent

import "academic-advisor/internal/models"

type Input struct {
	Question    string           `json:"question"`
	ChatHistory []models.Message `json:"chat_history"`
}

type Output struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
	// RoutedIntent is the intent after the confidence threshold is applied.
	RoutedIntent string `json:"routedIntent"`
}
