package conversation

import "time"

// Role tags a conversation item with its author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleNote marks bookkeeping entries such as action results. Notes are
	// exempt from eviction.
	RoleNote Role = "note"
)

// Item is one entry of a session's conversation log. Items are append-only
// and never edited in place.
type Item struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewItem builds an item stamped with the current time.
func NewItem(role Role, content string) Item {
	return Item{Role: role, Content: content, CreatedAt: time.Now().UTC()}
}

// EstimateTokens returns a deterministic, roughly length-proportional token
// estimate for a set of items. Rough estimation: 1 token ≈ 4 characters.
func EstimateTokens(items []Item) int {
	total := 0
	for _, it := range items {
		total += EstimateText(it.Content)
	}
	return total
}

// EstimateText estimates the token count of a single string.
func EstimateText(s string) int {
	return (len(s) + 3) / 4
}
