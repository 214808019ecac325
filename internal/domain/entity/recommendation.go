package entity

import (
	"regexp"
	"strings"
	"time"
)

// RecommendationsPerRequest is the fixed batch size of a generation cycle.
const RecommendationsPerRequest = 3

type Recommendation struct {
	Title       string   `json:"title"`
	Category    Category `json:"category"`
	Explanation string   `json:"explanation"`
	ImageURL    string   `json:"imageUrl,omitempty"`
}

// Role of a chat turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Session is one questionnaire-to-chat lifecycle.
type Session struct {
	ID              string            `json:"id"`
	UserID          string            `json:"user_id"`
	Category        Category          `json:"category"`
	Answers         PreferenceAnswers `json:"answers"`
	Recommendations []Recommendation  `json:"recommendations"`

	// Generation increases every time the session is started over.
	// In-flight work compares it before applying results.
	Generation int64 `json:"generation"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type StoredMessage struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`

	// Generation is the session generation the message belongs to.
	Generation int64 `json:"-"`
}

var titleSuffixPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s*\(\s*Season\s+\d+\s*\)`),
	regexp.MustCompile(`(?i)\s*:\s*(?:Part|Season)\s+\d+`),
	regexp.MustCompile(`(?i)\s*-\s*Season\s+\d+`),
}

// CleanTitle strips season/part suffixes so the title can be used as a search key.
// Applying it twice gives the same result as applying it once.
func CleanTitle(title string) string {
	out := title
	for {
		prev := out
		for _, re := range titleSuffixPatterns {
			out = re.ReplaceAllString(out, "")
		}
		if out == prev {
			break
		}
	}
	return strings.TrimSpace(out)
}
