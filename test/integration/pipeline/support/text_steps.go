package support

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/crowdgauge/internal/server"
)

func (testCtx *TestContext) theContributorTexts(from, body string) error {
	form := url.Values{}
	form.Set("MessageSid", "SMfeature0001")
	form.Set("From", from)
	form.Set("To", "+17160000000")
	form.Set("NumMedia", "0")
	form.Set("Body", body)
	return testCtx.postWebhook(form)
}

func (testCtx *TestContext) theTwiMLReplyContains(text string) error {
	if !strings.Contains(testCtx.LastHTTPResponse, "<Response>") {
		return fmt.Errorf("response is not TwiML: %s", testCtx.LastHTTPResponse)
	}
	if !strings.Contains(testCtx.LastHTTPResponse, text) {
		return fmt.Errorf("expected TwiML reply to contain %q, got %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theTwiMLReplyIsEmpty() error {
	if strings.Contains(testCtx.LastHTTPResponse, "<Message>") {
		return fmt.Errorf("expected an empty TwiML response, got %s", testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) iRequestTheContributionsOf(stationID string) error {
	return testCtx.get("/api/stations/" + url.PathEscape(stationID) + "/contributions")
}

func (testCtx *TestContext) theAPIListsContributions(n int, source string) error {
	if testCtx.LastHTTPStatusCode != 200 {
		return fmt.Errorf("expected status 200, got %d: %s", testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	var resp server.ContributionsResponse
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &resp); err != nil {
		return fmt.Errorf("failed to decode contributions: %w", err)
	}
	if resp.Count != n {
		return fmt.Errorf("expected %d contributions, got %d", n, resp.Count)
	}
	for _, c := range resp.Contributions {
		if string(c.Source) != source {
			return fmt.Errorf("expected source %s, got %s", source, c.Source)
		}
	}
	return nil
}

func (testCtx *TestContext) theLatestContributionHasTemperature(temp float64) error {
	var resp server.ContributionsResponse
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &resp); err != nil {
		return fmt.Errorf("failed to decode contributions: %w", err)
	}
	if len(resp.Contributions) == 0 {
		return fmt.Errorf("no contributions listed")
	}
	got := resp.Contributions[0].Temperature
	if got == nil || *got != temp {
		return fmt.Errorf("expected temperature %v, got %v", temp, got)
	}
	return nil
}

// RegisterTextSteps registers the SMS text and contributions API steps.
func (testCtx *TestContext) RegisterTextSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the contributor "([^"]*)" texts "([^"]*)"$`, testCtx.theContributorTexts)
	sc.Step(`^the TwiML reply contains "([^"]*)"$`, testCtx.theTwiMLReplyContains)
	sc.Step(`^the TwiML reply is empty$`, testCtx.theTwiMLReplyIsEmpty)
	sc.Step(`^I request the contributions of "([^"]*)"$`, testCtx.iRequestTheContributionsOf)
	sc.Step(`^the API lists (\d+) "([^"]*)" contributions?$`, testCtx.theAPIListsContributions)
	sc.Step(`^the latest contribution has temperature ([0-9.]+)$`, testCtx.theLatestContributionHasTemperature)
}
