package messaging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCreator struct {
	params *openapi.CreateMessageParams
	err    error
}

func (f *fakeCreator) CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	sid := "SM123"
	return &openapi.ApiV2010Message{Sid: &sid}, nil
}

func TestTwilioNotifier_Send(t *testing.T) {
	fake := &fakeCreator{}
	n := &TwilioNotifier{api: fake}

	require.NoError(t, n.Send(context.Background(), "+17165551234", "+17160000000", "hello"))
	require.NotNil(t, fake.params)
	assert.Equal(t, "+17165551234", *fake.params.To)
	assert.Equal(t, "+17160000000", *fake.params.From)
	assert.Equal(t, "hello", *fake.params.Body)
}

func TestTwilioNotifier_Errors(t *testing.T) {
	fake := &fakeCreator{err: errors.New("401 unauthorized")}
	n := &TwilioNotifier{api: fake}

	err := n.Send(context.Background(), "+1", "+2", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "twilio send to +1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fake.params = nil
	require.ErrorIs(t, n.Send(ctx, "+1", "+2", "x"), context.Canceled)
	assert.Nil(t, fake.params)
}

func TestNewTwilioNotifier(t *testing.T) {
	_, err := NewTwilioNotifier("", "token")
	require.Error(t, err)

	n, err := NewTwilioNotifier("AC123", "token")
	require.NoError(t, err)
	assert.NotNil(t, n.api)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := LogNotifier{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

	require.NoError(t, n.Send(context.Background(), "+1", "+2", UnclearImageText))
	assert.Contains(t, buf.String(), `"to":"+1"`)
	assert.Contains(t, buf.String(), "not clear")
}

func TestRecorder(t *testing.T) {
	var r Recorder
	_, ok := r.Last()
	assert.False(t, ok)

	require.NoError(t, r.Send(context.Background(), "+1", "+2", "one"))
	r.Err = errors.New("boom")
	require.Error(t, r.Send(context.Background(), "+1", "+2", "two"))

	msgs := r.Messages()
	require.Len(t, msgs, 2)
	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, "two", last.Body)
}

func TestTexts(t *testing.T) {
	assert.Equal(t, "http://crowdhydrology.com/charts/NY1000_dygraph.html", ChartURL("NY1000"))

	accepted := AcceptedText("NY1000", 1.234)
	assert.True(t, strings.HasPrefix(accepted, ThanksText))
	assert.Contains(t, accepted, "Station NY1000: water height 1.23 recorded.")
	assert.Contains(t, accepted, ChartURL("NY1000"))

	assert.Contains(t, SMSAcceptedText("PA1002"), "PA1002_dygraph.html")
	assert.NotEqual(t, ErrorText, UnclearImageText)
	assert.Contains(t, SMSTemperatureText, "NY1000 2.5 80.0")
}
