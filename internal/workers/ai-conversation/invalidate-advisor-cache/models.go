package invalidateadvisorcache

// Input names either a student whose personalized answers are stale or a
// single cache key.
type Input struct {
	UserID string `json:"user_id"`
	Key    string `json:"key"`
}

type Output struct {
	Invalidated int `json:"invalidated"`
}
