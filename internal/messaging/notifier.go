// Package messaging sends replies to contributors and holds the reply texts.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Notifier delivers a reply body from one number to another.
type Notifier interface {
	Send(ctx context.Context, to, from, body string) error
}

// messageCreator is the slice of the Twilio REST client the notifier uses.
type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// TwilioNotifier sends replies as SMS through the Twilio REST API.
type TwilioNotifier struct {
	api messageCreator
}

// NewTwilioNotifier builds a notifier authenticated with an account SID and
// auth token.
func NewTwilioNotifier(accountSID, authToken string) (*TwilioNotifier, error) {
	if accountSID == "" || authToken == "" {
		return nil, errors.New("twilio account SID and auth token are required")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioNotifier{api: client.Api}, nil
}

func (n *TwilioNotifier) Send(ctx context.Context, to, from, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetBody(body)

	resp, err := n.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio send to %s: %w", to, err)
	}
	sid := ""
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	slog.Debug("Reply sent", "to", to, "sid", sid)
	return nil
}

// LogNotifier writes replies to the log instead of sending them.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Send(_ context.Context, to, from, body string) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Reply", "to", to, "from", from, "body", body)
	return nil
}

// Message is one reply captured by a Recorder.
type Message struct {
	To   string
	From string
	Body string
}

// Recorder keeps replies in memory. Err, when set, is returned from Send
// after the message is recorded.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	Err      error
}

func (r *Recorder) Send(_ context.Context, to, from, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{To: to, From: from, Body: body})
	return r.Err
}

// Messages returns a copy of the recorded replies.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Last returns the most recent reply.
func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return Message{}, false
	}
	return r.messages[len(r.messages)-1], true
}
