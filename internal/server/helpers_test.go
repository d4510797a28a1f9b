package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/crowdgauge/internal/contribution"
	"github.com/MeKo-Tech/crowdgauge/internal/pipeline"
	"github.com/MeKo-Tech/crowdgauge/internal/station"
)

const testFrom = "+17165551234"

// fakeEnqueuer records submissions instead of processing them.
type fakeEnqueuer struct {
	mu    sync.Mutex
	subs  []pipeline.Submission
	err   error
	depth int
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, sub pipeline.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.subs = append(f.subs, sub)
	return nil
}

func (f *fakeEnqueuer) QueueDepth() int { return f.depth }

func (f *fakeEnqueuer) submissions() []pipeline.Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pipeline.Submission(nil), f.subs...)
}

type testEnv struct {
	server   *Server
	enqueuer *fakeEnqueuer
	store    *contribution.MemoryStore
	outcomes *pipeline.Broadcaster
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	reg, err := station.New([]station.Station{
		{ID: "NY1000", Name: "Ellicott Creek", LowerBound: 0, UpperBound: 10},
		{ID: "PA1002"},
	})
	require.NoError(t, err)

	env := &testEnv{
		enqueuer: &fakeEnqueuer{},
		store:    contribution.NewMemoryStore(),
		outcomes: pipeline.NewBroadcaster(4),
	}
	env.server, err = NewServer(cfg, Deps{
		Enqueuer: env.enqueuer,
		Registry: reg,
		Store:    env.store,
		Outcomes: env.outcomes,
	})
	require.NoError(t, err)
	env.server.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }
	return env
}

// webhookRequest builds a Twilio-style form POST.
func webhookRequest(form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/sms/incoming", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func mediaForm(sid string) url.Values {
	return url.Values{
		"MessageSid":        {sid},
		"From":              {testFrom},
		"To":                {"+17160000000"},
		"NumMedia":          {"1"},
		"MediaUrl0":         {"https://api.twilio.com/media/" + sid},
		"MediaContentType0": {"image/jpeg"},
	}
}

func textForm(body string) url.Values {
	return url.Values{
		"MessageSid": {"SM-text"},
		"From":       {testFrom},
		"To":         {"+17160000000"},
		"NumMedia":   {"0"},
		"Body":       {body},
	}
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func httpGet(target string) *http.Request {
	return httptest.NewRequest(http.MethodGet, target, nil)
}
