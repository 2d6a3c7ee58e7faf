package routeacademicquery

import "academic-advisor/internal/models"

// Output is written back to the process instance as job variables.
type Output struct {
	Answer     string   `json:"answer"`
	Intent     string   `json:"intent"`
	Source     string   `json:"source"`
	Confidence float64  `json:"confidence"`
	Citations  []string `json:"citations"`
	RequestID  string   `json:"requestId"`
}

func outputFromResponse(resp *models.Response) *Output {
	citations := resp.Citations
	if citations == nil {
		citations = []string{}
	}
	return &Output{
		Answer:     resp.Answer,
		Intent:     resp.Intent.String(),
		Source:     resp.Source,
		Confidence: resp.Confidence,
		Citations:  citations,
		RequestID:  resp.RequestID,
	}
}
