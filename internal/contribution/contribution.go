// Package contribution defines the records produced by the gauge pipeline
// and the SMS parser, and the stores that persist them.
package contribution

import (
	"time"

	"github.com/google/uuid"
)

// Source identifies the channel a contribution arrived on.
type Source string

const (
	SourceMMS Source = "mms"
	SourceSMS Source = "sms"
)

// Contribution is an accepted water-height reading.
type Contribution struct {
	ID            string    `json:"id"`
	ContributorID string    `json:"contributor_id"`
	StationID     string    `json:"station_id"`
	WaterHeight   *float64  `json:"water_height"`
	Temperature   *float64  `json:"temperature,omitempty"`
	Source        Source    `json:"source"`
	ReceivedAt    time.Time `json:"received_at"`
}

// InvalidContribution is the audit record of a rejected submission.
// Reference holds the media URL for photos and the message body for texts.
type InvalidContribution struct {
	ID            string    `json:"id"`
	ContributorID string    `json:"contributor_id"`
	Reference     string    `json:"reference"`
	Reason        string    `json:"reason"`
	ReceivedAt    time.Time `json:"received_at"`
}

// contributorDigits is how many trailing characters of a phone number feed
// the contributor hash. Country-code prefixes are ignored this way.
const contributorDigits = 10

// HashContributor derives the stable contributor id for a phone number: a
// name-based MD5 UUID in the OID namespace over the last ten characters.
func HashContributor(phone string) string {
	r := []rune(phone)
	if len(r) > contributorDigits {
		r = r[len(r)-contributorDigits:]
	}
	return uuid.NewMD5(uuid.NameSpaceOID, []byte(string(r))).String()
}

// Float returns a pointer to v, for optional measurement fields.
func Float(v float64) *float64 { return &v }

func stamp(id *string, at *time.Time, now func() time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if at.IsZero() {
		*at = now().UTC()
	}
}
