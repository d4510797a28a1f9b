package pipeline

import (
	"time"

	"github.com/MeKo-Tech/crowdgauge/internal/contribution"
	"github.com/MeKo-Tech/crowdgauge/internal/vision"
)

// Submission is one MMS photo waiting to be read.
type Submission struct {
	MessageID   string    `json:"message_id"`
	From        string    `json:"-"`
	To          string    `json:"-"`
	MediaURL    string    `json:"media_url"`
	ContentType string    `json:"content_type,omitempty"`
	ReceivedAt  time.Time `json:"received_at"`
}

// Outcome is the terminal result of processing a Submission.
type Outcome struct {
	MessageID    string                     `json:"message_id"`
	State        State                      `json:"state"`
	Err          error                      `json:"-"`
	Reply        string                     `json:"reply"`
	Contribution *contribution.Contribution `json:"contribution,omitempty"`
	Reading      *vision.Reading            `json:"reading,omitempty"`
	Waterline    int                        `json:"waterline"`
	Duration     time.Duration              `json:"duration_ns"`
}

// Accepted reports whether the submission was recorded.
func (o Outcome) Accepted() bool { return o.State == StateAccepted }
