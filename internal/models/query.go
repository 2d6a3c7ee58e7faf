package models

import "strings"

// Intent is the canonical label naming the capability that answers a question.
type Intent string

const (
	IntentQueryRAG        Intent = "query_rag"
	IntentAnalyzeProgress Intent = "analyze_progress"
	IntentGraphQuery      Intent = "graph_query"
	IntentSimulateGPA     Intent = "simulate_gpa"
	IntentGeneralChat     Intent = "general_chat"
)

// AllIntents lists the five labels in a fixed order.
var AllIntents = []Intent{
	IntentQueryRAG,
	IntentAnalyzeProgress,
	IntentGraphQuery,
	IntentSimulateGPA,
	IntentGeneralChat,
}

// ParseIntent maps a raw label to an Intent. ok is false for anything outside
// the five canonical labels.
func ParseIntent(raw string) (Intent, bool) {
	label := Intent(strings.ToLower(strings.TrimSpace(raw)))
	for _, i := range AllIntents {
		if i == label {
			return i, true
		}
	}
	return IntentGeneralChat, false
}

// Personalized intents depend on the caller's academic record.
func (i Intent) Personalized() bool {
	return i == IntentAnalyzeProgress || i == IntentSimulateGPA
}

func (i Intent) String() string { return string(i) }

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Query is a validated question. It is not mutated after validation.
type Query struct {
	Question    string    `json:"question"`
	UserID      string    `json:"user_id"`
	ChatHistory []Message `json:"chat_history"`
	IsDemo      bool      `json:"is_demo"`
}

// RecentHistory returns at most n trailing turns.
func (q Query) RecentHistory(n int) []Message {
	if len(q.ChatHistory) <= n {
		return q.ChatHistory
	}
	return q.ChatHistory[len(q.ChatHistory)-n:]
}

// Prediction is the classifier output. Failed marks a recovered
// classification failure; the router skips the threshold override for it.
type Prediction struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
	Failed     bool    `json:"-"`
}

const (
	MethodKeyword = "keyword"
	MethodLLM     = "llm"
	MethodFailed  = "failed"
)
