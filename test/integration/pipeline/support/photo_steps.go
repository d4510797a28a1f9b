package support

import (
	"fmt"
	"math"
	"net/url"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/crowdgauge/internal/messaging"
	"github.com/MeKo-Tech/crowdgauge/internal/pipeline"
	"github.com/MeKo-Tech/crowdgauge/internal/pipeline/pipelinetest"
	"github.com/MeKo-Tech/crowdgauge/internal/testutil"
)

// aGaugePhotoForStation draws a scene whose waterline sits ticks minor
// marks below the 1.0 mark and has the detector find both boxes.
func (testCtx *TestContext) aGaugePhotoForStation(stationID string, ticks int) error {
	spec := testutil.DefaultGaugeSpec().WithTicksBelowMajor(ticks)
	testCtx.Scene = testutil.NewScene(spec, stationID)
	testCtx.Reader = pipelinetest.NewTickReader(spec, stationID)
	testCtx.Harness.Detector.Boxes = pipelinetest.SceneBoxes(testCtx.Scene)

	u, err := testCtx.Harness.Media.PutImage(stationID+".png", testCtx.Scene.Image)
	if err != nil {
		return fmt.Errorf("failed to serve scene: %w", err)
	}
	testCtx.MediaURL = u
	return nil
}

func (testCtx *TestContext) theDetectorFindsOnlyTheGauge() error {
	boxes := pipelinetest.SceneBoxes(testCtx.Scene)
	testCtx.Harness.Detector.Boxes = boxes[1:]
	return nil
}

func (testCtx *TestContext) thePhotoURLAnswersWithStatus(status int) error {
	testCtx.MediaURL = testCtx.Harness.Media.Fail("unreachable.jpg", status)
	return nil
}

func (testCtx *TestContext) theModelCannotReadTheStationLabel() error {
	if testCtx.Reader == nil {
		return fmt.Errorf("no gauge photo in this scenario")
	}
	testCtx.Reader.StationValid = false
	return nil
}

func (testCtx *TestContext) theContributorSendsThePhoto(from string) error {
	form := url.Values{}
	form.Set("MessageSid", "MMfeature0001")
	form.Set("From", from)
	form.Set("To", "+17160000000")
	form.Set("NumMedia", "1")
	form.Set("MediaUrl0", testCtx.MediaURL)
	form.Set("MediaContentType0", "image/png")
	testCtx.photoSent = true
	return testCtx.postWebhook(form)
}

func (testCtx *TestContext) theWebhookRespondsWithStatus(status int) error {
	if testCtx.LastHTTPStatusCode != status {
		return fmt.Errorf("expected status %d, got %d: %s", status, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theSubmissionEndsInState(state string) error {
	out, err := testCtx.waitForOutcome()
	if err != nil {
		return err
	}
	if string(out.State) != state {
		return fmt.Errorf("expected state %s, got %s (error: %v)", state, out.State, out.Err)
	}
	return nil
}

func (testCtx *TestContext) theRecordedWaterHeightIs(stationID string, height float64) error {
	if err := testCtx.settle(); err != nil {
		return err
	}
	valid := testCtx.Harness.Store.Valid()
	if len(valid) != 1 {
		return fmt.Errorf("expected 1 valid contribution, got %d", len(valid))
	}
	c := valid[0]
	if c.StationID != stationID {
		return fmt.Errorf("expected station %s, got %s", stationID, c.StationID)
	}
	if c.WaterHeight == nil || math.Abs(*c.WaterHeight-height) > 1e-9 {
		return fmt.Errorf("expected water height %.2f, got %v", height, c.WaterHeight)
	}
	return nil
}

func (testCtx *TestContext) theWaterlineIsMarkedNearTheDrawnOne() error {
	out, err := testCtx.waitForOutcome()
	if err != nil {
		return err
	}
	want := testCtx.Scene.GaugeSpec.WaterlineRow
	if out.Waterline < want-2 || out.Waterline > want+2 {
		return fmt.Errorf("expected waterline near row %d, got %d", want, out.Waterline)
	}
	return nil
}

// theContributorIsSentTheReplyFor checks the outbound reply against the
// text a state maps to.
func (testCtx *TestContext) theContributorIsSentTheReplyFor(state string) error {
	out, err := testCtx.waitForOutcome()
	if err != nil {
		return err
	}
	msg, ok := testCtx.Harness.Notifier.Last()
	if !ok {
		return fmt.Errorf("no reply was sent")
	}

	want := pipeline.State(state).Reply()
	if pipeline.State(state) == pipeline.StateAccepted && out.Contribution != nil {
		want = messaging.AcceptedText(out.Contribution.StationID, *out.Contribution.WaterHeight)
	}
	if msg.Body != want {
		return fmt.Errorf("expected reply %q, got %q", want, msg.Body)
	}
	return nil
}

func (testCtx *TestContext) theReplyDiffersFromTheReplyFor(state string) error {
	msg, ok := testCtx.Harness.Notifier.Last()
	if !ok {
		return fmt.Errorf("no reply was sent")
	}
	if msg.Body == pipeline.State(state).Reply() {
		return fmt.Errorf("reply is the same as for %s: %q", state, msg.Body)
	}
	return nil
}

func (testCtx *TestContext) noValidContributionIsStored() error {
	if err := testCtx.settle(); err != nil {
		return err
	}
	if n := len(testCtx.Harness.Store.Valid()); n != 0 {
		return fmt.Errorf("expected no valid contributions, got %d", n)
	}
	return nil
}

func (testCtx *TestContext) auditRecordsAreStored(n int) error {
	if err := testCtx.settle(); err != nil {
		return err
	}
	if got := len(testCtx.Harness.Store.Invalid()); got != n {
		return fmt.Errorf("expected %d audit records, got %d", n, got)
	}
	return nil
}

func (testCtx *TestContext) theAuditRecordHasReason(reason string) error {
	invalid := testCtx.Harness.Store.Invalid()
	if len(invalid) == 0 {
		return fmt.Errorf("no audit record stored")
	}
	if got := invalid[len(invalid)-1].Reason; got != reason {
		return fmt.Errorf("expected audit reason %s, got %s", reason, got)
	}
	return nil
}

func (testCtx *TestContext) theModelWasNeverAsked() error {
	if testCtx.Reader != nil && testCtx.Reader.Calls() != 0 {
		return fmt.Errorf("vision model was called %d times", testCtx.Reader.Calls())
	}
	return nil
}

// theGaugeReadingIsNeverInspected replays the final verdict's station label
// through validation with a gauge half that panics when read.
func (testCtx *TestContext) theGaugeReadingIsNeverInspected() (err error) {
	out, err := testCtx.waitForOutcome()
	if err != nil {
		return err
	}
	if out.Reading == nil {
		return fmt.Errorf("submission carries no model verdict")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("gauge reading was inspected: %v", r)
		}
	}()
	verdict := pipelinetest.PanicOnGauge{Station: out.Reading.StationLabel}
	_, _, vErr := pipeline.Validate(verdict, testCtx.Harness.Registry)
	if pipeline.Classify(vErr) != pipeline.StateRejectedInvalidStation {
		return fmt.Errorf("expected an invalid station verdict, got %v", vErr)
	}
	return nil
}

// RegisterPhotoSteps registers the MMS photo steps.
func (testCtx *TestContext) RegisterPhotoSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a gauge photo for station "([^"]*)" with the waterline (\d+) ticks below the 1\.0 mark$`,
		testCtx.aGaugePhotoForStation)
	sc.Step(`^the detector finds only the gauge$`, testCtx.theDetectorFindsOnlyTheGauge)
	sc.Step(`^the photo URL answers with status (\d+)$`, testCtx.thePhotoURLAnswersWithStatus)
	sc.Step(`^the model cannot read the station label$`, testCtx.theModelCannotReadTheStationLabel)

	sc.Step(`^the contributor "([^"]*)" sends the photo$`, testCtx.theContributorSendsThePhoto)

	sc.Step(`^the webhook responds with status (\d+)$`, testCtx.theWebhookRespondsWithStatus)
	sc.Step(`^the submission ends in state "([^"]*)"$`, testCtx.theSubmissionEndsInState)
	sc.Step(`^the recorded water height for "([^"]*)" is ([0-9.]+)$`, testCtx.theRecordedWaterHeightIs)
	sc.Step(`^the waterline is marked within 2 rows of the drawn one$`, testCtx.theWaterlineIsMarkedNearTheDrawnOne)
	sc.Step(`^the contributor is sent the reply for "([^"]*)"$`, testCtx.theContributorIsSentTheReplyFor)
	sc.Step(`^the reply differs from the reply for "([^"]*)"$`, testCtx.theReplyDiffersFromTheReplyFor)
	sc.Step(`^no valid contribution is stored$`, testCtx.noValidContributionIsStored)
	sc.Step(`^(\d+) audit records? (?:is|are) stored$`, testCtx.auditRecordsAreStored)
	sc.Step(`^the audit record has reason "([^"]*)"$`, testCtx.theAuditRecordHasReason)
	sc.Step(`^the vision model is never asked$`, testCtx.theModelWasNeverAsked)
	sc.Step(`^the gauge reading is never inspected$`, testCtx.theGaugeReadingIsNeverInspected)
}
