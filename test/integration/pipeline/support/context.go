// Package support holds the godog step definitions for the submission
// pipeline suite.
package support

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"time"

	"github.com/MeKo-Tech/crowdgauge/internal/pipeline"
	"github.com/MeKo-Tech/crowdgauge/internal/pipeline/pipelinetest"
	"github.com/MeKo-Tech/crowdgauge/internal/server"
	"github.com/MeKo-Tech/crowdgauge/internal/testutil"
)

// outcomeWait bounds how long a step waits for the dispatcher.
const outcomeWait = 10 * time.Second

// TestContext holds the state of one scenario.
type TestContext struct {
	Harness *pipelinetest.Harness

	// Photo under test
	Scene    testutil.Scene
	Reader   *pipelinetest.TickReader
	MediaURL string

	// Running stack, started lazily by the first request
	HTTPServer *httptest.Server
	Dispatcher *pipeline.Dispatcher
	outcomes   chan pipeline.Outcome

	// HTTP response state
	LastHTTPStatusCode int
	LastHTTPResponse   string

	// photoSent is set once a photo went through the webhook; text
	// messages are answered inline and produce no outcome.
	photoSent   bool
	LastOutcome *pipeline.Outcome
}

// NewTestContext creates a context over a fresh harness.
func NewTestContext() *TestContext {
	return &TestContext{
		Harness:  pipelinetest.NewHarness(),
		outcomes: make(chan pipeline.Outcome, 16),
	}
}

// startServer wires harness, dispatcher and webhook server together. The
// detector boxes and reader must be set before the first request.
func (testCtx *TestContext) startServer() error {
	if testCtx.HTTPServer != nil {
		return nil
	}
	if testCtx.Harness.Reader == nil {
		testCtx.Harness.Reader = testCtx.Reader
	}
	if testCtx.Harness.Reader == nil {
		testCtx.Harness.Reader = pipelinetest.NewTickReader(testutil.DefaultGaugeSpec(), "NY1000")
	}

	orch, err := testCtx.Harness.Orchestrator()
	if err != nil {
		return fmt.Errorf("failed to build orchestrator: %w", err)
	}
	testCtx.Dispatcher = pipeline.NewDispatcherWithConfig(orch, pipeline.DispatcherConfig{
		Workers:    2,
		QueueSize:  8,
		JobTimeout: outcomeWait,
	})
	testCtx.Dispatcher.OnOutcome(func(o pipeline.Outcome) { testCtx.outcomes <- o })

	srv, err := server.NewServer(server.Config{}, server.Deps{
		Enqueuer: testCtx.Dispatcher,
		Registry: testCtx.Harness.Registry,
		Store:    testCtx.Harness.Store,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	testCtx.HTTPServer = httptest.NewServer(srv.Handler())
	return nil
}

// postWebhook sends a Twilio style form to /sms/incoming.
func (testCtx *TestContext) postWebhook(form url.Values) error {
	if err := testCtx.startServer(); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost,
		testCtx.HTTPServer.URL+"/sms/incoming", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return testCtx.do(req)
}

func (testCtx *TestContext) get(path string) error {
	if err := testCtx.startServer(); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, testCtx.HTTPServer.URL+path, nil)
	if err != nil {
		return err
	}
	return testCtx.do(req)
}

func (testCtx *TestContext) do(req *http.Request) error {
	resp, err := testCtx.HTTPServer.Client().Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(body)
	return nil
}

// waitForOutcome blocks until the dispatcher reports the next outcome.
func (testCtx *TestContext) waitForOutcome() (*pipeline.Outcome, error) {
	if testCtx.LastOutcome != nil {
		return testCtx.LastOutcome, nil
	}
	select {
	case o := <-testCtx.outcomes:
		testCtx.LastOutcome = &o
		return &o, nil
	case <-time.After(outcomeWait):
		return nil, errors.New("timed out waiting for the submission to finish")
	}
}

// settle waits for a pending photo submission, if any.
func (testCtx *TestContext) settle() error {
	if !testCtx.photoSent {
		return nil
	}
	_, err := testCtx.waitForOutcome()
	return err
}

// Cleanup stops the server, drains the dispatcher and closes the harness.
func (testCtx *TestContext) Cleanup() error {
	if testCtx.HTTPServer != nil {
		testCtx.HTTPServer.Close()
	}
	var err error
	if testCtx.Dispatcher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), outcomeWait)
		defer cancel()
		err = testCtx.Dispatcher.Shutdown(ctx)
	}
	testCtx.Harness.Close()
	return err
}
