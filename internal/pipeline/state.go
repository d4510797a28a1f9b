package pipeline

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/crowdgauge/internal/detector"
	"github.com/MeKo-Tech/crowdgauge/internal/media"
	"github.com/MeKo-Tech/crowdgauge/internal/messaging"
	"github.com/MeKo-Tech/crowdgauge/internal/vision"
)

// State is a step of the submission state machine. The rejected_* states
// and accepted are terminal.
type State string

const (
	StateReceivedMedia            State = "received_media"
	StateDetected                 State = "detected"
	StatePreprocessed             State = "preprocessed"
	StateRead                     State = "read"
	StateValidated                State = "validated"
	StateAccepted                 State = "accepted"
	StateRejectedInvalidStation   State = "rejected_invalid_station"
	StateRejectedInvalidGauge     State = "rejected_invalid_gauge"
	StateRejectedTransportError   State = "rejected_transport_error"
	StateRejectedUnsupportedMedia State = "rejected_unsupported_media"
	StateRejectedUnclearImage     State = "rejected_unclear_image"
	StateRejectedError            State = "rejected_error"
)

// TerminalStates lists every state a submission can end in.
var TerminalStates = []State{
	StateAccepted,
	StateRejectedInvalidStation,
	StateRejectedInvalidGauge,
	StateRejectedTransportError,
	StateRejectedUnsupportedMedia,
	StateRejectedUnclearImage,
	StateRejectedError,
}

// Terminal reports whether s ends processing.
func (s State) Terminal() bool {
	for _, t := range TerminalStates {
		if s == t {
			return true
		}
	}
	return false
}

// Reply returns the contributor-facing text for a rejected state. Accepted
// replies carry the reading and are built by messaging.AcceptedText.
func (s State) Reply() string {
	switch s {
	case StateRejectedUnclearImage:
		return messaging.UnclearImageText
	case StateRejectedInvalidStation:
		return messaging.InvalidStationText
	case StateRejectedInvalidGauge:
		return messaging.InvalidGaugeText
	case StateRejectedUnsupportedMedia:
		return messaging.UnsupportedMediaText
	default:
		return messaging.ErrorText
	}
}

// Validation sentinels.
var (
	ErrInvalidStationLabel = errors.New("station label invalid or not recognized")
	ErrInvalidGaugeReading = errors.New("gauge reading invalid or not recognized")
)

// UnexpectedError wraps failures outside the documented rejection paths:
// decode and store errors, malformed model responses and recovered panics.
type UnexpectedError struct {
	Stage string
	Err   error
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("unexpected error during %s: %v", e.Stage, e.Err)
}

func (e *UnexpectedError) Unwrap() error { return e.Err }

// Classify maps a pipeline error onto its terminal state.
func Classify(err error) State {
	var (
		countErr  *detector.DetectionCountError
		fetchErr  *media.FetchError
		typeErr   *media.UnsupportedTypeError
		visionErr *vision.TransportError
	)
	switch {
	case err == nil:
		return StateAccepted
	case errors.As(err, &fetchErr), errors.As(err, &visionErr):
		return StateRejectedTransportError
	case errors.As(err, &typeErr):
		return StateRejectedUnsupportedMedia
	case errors.As(err, &countErr):
		return StateRejectedUnclearImage
	case errors.Is(err, ErrInvalidStationLabel):
		return StateRejectedInvalidStation
	case errors.Is(err, ErrInvalidGaugeReading):
		return StateRejectedInvalidGauge
	default:
		return StateRejectedError
	}
}

// audited reports whether a rejection caused by err gets an audit record.
// Media that never arrived leaves nothing to audit.
func audited(err error) bool {
	var fetchErr *media.FetchError
	return !errors.As(err, &fetchErr)
}
