package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/twilio/twilio-go/client"
	"github.com/twilio/twilio-go/twiml"

	"github.com/MeKo-Tech/crowdgauge/internal/contribution"
	"github.com/MeKo-Tech/crowdgauge/internal/messaging"
	"github.com/MeKo-Tech/crowdgauge/internal/pipeline"
	"github.com/MeKo-Tech/crowdgauge/internal/sms"
)

// smsIncomingHandler is the Twilio messaging webhook. Photos are queued for
// the pipeline and acknowledged with an empty TwiML response; texts are
// parsed and answered inline.
func (s *Server) smsIncomingHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeErrorResponse(w, "method_not_allowed", "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.writeErrorResponse(w, "invalid_form", "Failed to parse form data", http.StatusBadRequest)
		return
	}
	from := r.PostForm.Get("From")
	if from == "" {
		s.writeErrorResponse(w, "missing_field", "From is required", http.StatusBadRequest)
		return
	}

	numMedia, _ := strconv.Atoi(r.PostForm.Get("NumMedia"))
	if numMedia > 0 {
		s.handleMediaMessage(w, r, numMedia)
		return
	}
	s.handleTextMessage(w, r)
}

func (s *Server) handleMediaMessage(w http.ResponseWriter, r *http.Request, numMedia int) {
	form := r.PostForm
	sub := pipeline.Submission{
		MessageID:   form.Get("MessageSid"),
		From:        form.Get("From"),
		To:          form.Get("To"),
		MediaURL:    form.Get("MediaUrl0"),
		ContentType: form.Get("MediaContentType0"),
		ReceivedAt:  s.now().UTC(),
	}
	if sub.MediaURL == "" {
		s.writeErrorResponse(w, "missing_field", "MediaUrl0 is required when NumMedia > 0", http.StatusBadRequest)
		return
	}
	if sub.MessageID == "" {
		sub.MessageID = uuid.NewString()
	}
	if numMedia > 1 {
		slog.Debug("Only the first media item is read", "message_id", sub.MessageID, "num_media", numMedia)
	}

	if err := s.enqueuer.Enqueue(r.Context(), sub); err != nil {
		switch {
		case errors.Is(err, pipeline.ErrQueueFull):
			slog.Warn("Submission queue full", "message_id", sub.MessageID)
			w.Header().Set("Retry-After", "30")
			s.writeErrorResponse(w, "queue_full", "Too many submissions in flight, try again shortly",
				http.StatusServiceUnavailable)
		case errors.Is(err, pipeline.ErrDispatcherClosed):
			s.writeErrorResponse(w, "shutting_down", "Server is shutting down", http.StatusServiceUnavailable)
		default:
			slog.Error("Failed to enqueue submission", "message_id", sub.MessageID, "error", err)
			s.writeErrorResponse(w, "enqueue_failed", "Failed to queue submission", http.StatusInternalServerError)
		}
		return
	}

	webhookMessages.WithLabelValues("mms").Inc()
	slog.Info("Submission queued", "message_id", sub.MessageID, "content_type", sub.ContentType)
	s.writeTwiML(w, http.StatusAccepted, "")
}

func (s *Server) handleTextMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body := r.PostForm.Get("Body")
	contributor := contribution.HashContributor(r.PostForm.Get("From"))
	receivedAt := s.now().UTC()

	res, err := sms.Parse(body, s.registry)
	if err != nil {
		webhookMessages.WithLabelValues("sms_rejected").Inc()
		slog.Info("Text contribution rejected", "contributor", contributor, "error", err)
		if saveErr := s.store.SaveInvalid(ctx, contribution.InvalidContribution{
			ContributorID: contributor,
			Reference:     body,
			Reason:        err.Error(),
			ReceivedAt:    receivedAt,
		}); saveErr != nil {
			slog.Error("Failed to save audit record", "contributor", contributor, "error", saveErr)
		}
		s.writeTwiML(w, http.StatusOK, sms.Reply(err))
		return
	}

	saved, err := s.store.SaveValid(ctx, contribution.Contribution{
		ContributorID: contributor,
		StationID:     res.StationID,
		WaterHeight:   res.WaterHeight,
		Temperature:   res.Temperature,
		Source:        contribution.SourceSMS,
		ReceivedAt:    receivedAt,
	})
	if err != nil {
		slog.Error("Failed to save text contribution", "station", res.StationID, "error", err)
		s.writeTwiML(w, http.StatusOK, messaging.ErrorText)
		return
	}

	webhookMessages.WithLabelValues("sms").Inc()
	slog.Info("Text contribution accepted", "station", saved.StationID, "contributor", contributor)
	s.writeTwiML(w, http.StatusOK, messaging.SMSAcceptedText(saved.StationID))
}

// writeTwiML answers the webhook with a single reply message, or with an
// empty response when text is empty.
func (s *Server) writeTwiML(w http.ResponseWriter, status int, text string) {
	var verbs []twiml.Element
	if text != "" {
		verbs = append(verbs, &twiml.MessagingMessage{Body: text})
	}
	doc, err := twiml.Messages(verbs)
	if err != nil {
		slog.Error("Failed to render TwiML", "error", err)
		s.writeErrorResponse(w, "internal_error", "Failed to render reply", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, doc)
}

// signatureValidator checks the X-Twilio-Signature header of webhook calls.
type signatureValidator struct {
	rv client.RequestValidator
}

func newSignatureValidator(authToken string) *signatureValidator {
	return &signatureValidator{rv: client.NewRequestValidator(authToken)}
}

func (v *signatureValidator) valid(fullURL string, form url.Values, signature string) bool {
	if signature == "" {
		return false
	}
	params := make(map[string]string, len(form))
	for k := range form {
		params[k] = form.Get(k)
	}
	return v.rv.Validate(fullURL, params, signature)
}
