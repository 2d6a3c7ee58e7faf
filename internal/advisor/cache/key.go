package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"academic-advisor/internal/models"
)

// Normalize lower-cases the question and collapses runs of whitespace.
func Normalize(question string) string {
	return strings.Join(strings.Fields(strings.ToLower(question)), " ")
}

// HistoryDigest hashes the chat history; empty history yields "".
func HistoryDigest(history []models.Message) string {
	if len(history) == 0 {
		return ""
	}
	h := sha256.New()
	for _, m := range history {
		h.Write([]byte(m.Role))
		h.Write([]byte{0})
		h.Write([]byte(Normalize(m.Content)))
		h.Write([]byte{0x1e})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// UserScope is the key segment shared by every personalized entry of one user.
func UserScope(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return "u" + hex.EncodeToString(sum[:])[:16]
}

// UserPrefix is the key prefix for all entries of intent scoped to userID.
func UserPrefix(intent models.Intent, userID string) string {
	return string(intent) + ":" + UserScope(userID) + ":"
}

// BuildKey fingerprints a query for one intent:
//
//	<intent>:<scope>:<sha256(normalized question, user, history)>
//
// The user id only participates for personalized intents.
func BuildKey(intent models.Intent, q models.Query) string {
	scope := "g"
	h := sha256.New()
	h.Write([]byte(Normalize(q.Question)))
	if intent.Personalized() {
		scope = UserScope(q.UserID)
		h.Write([]byte{0})
		h.Write([]byte(q.UserID))
	}
	if d := HistoryDigest(q.ChatHistory); d != "" {
		h.Write([]byte{0})
		h.Write([]byte(d))
	}
	return string(intent) + ":" + scope + ":" + hex.EncodeToString(h.Sum(nil))
}
