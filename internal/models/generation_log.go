package models

import "time"

// Generation statuses
const (
	GenerationStatusSuccess = "success"
	GenerationStatusFailed  = "failed"
)

// GenerationLog records one storyboard generation call
type GenerationLog struct {
	ID               uint      `gorm:"primarykey" json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	RequestID        string    `gorm:"index" json:"request_id"`
	OwnerID          string    `gorm:"not null;index" json:"owner_id"`
	Model            string    `gorm:"not null" json:"model"`
	Status           string    `gorm:"not null;index" json:"status"`
	FailureKind      string    `gorm:"index" json:"failure_kind,omitempty"`
	StoryIdea        string    `gorm:"type:text" json:"story_idea"`
	InputTokens      int       `gorm:"default:0" json:"input_tokens"`
	OutputTokens     int       `gorm:"default:0" json:"output_tokens"`
	EstimatedCostUSD float64   `gorm:"default:0" json:"estimated_cost_usd"`
	Events           int       `gorm:"default:0" json:"events"`
	Frames           int       `gorm:"default:0" json:"frames"`
	DurationMS       int       `gorm:"not null" json:"duration_ms"`
}

// TotalTokens returns input plus output tokens
func (l *GenerationLog) TotalTokens() int {
	return l.InputTokens + l.OutputTokens
}
