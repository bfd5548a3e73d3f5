package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"chatbot-api/internal/domain"
	"chatbot-api/internal/usecase/feedback"
)

// ChatService runs one chat exchange.
type ChatService interface {
	Respond(ctx context.Context, userID, message string) (domain.Reply, error)
}

// FeedbackService records feedback for a bot reply.
type FeedbackService interface {
	Record(ctx context.Context, userID, responseID, text string) (feedback.Result, error)
}

// Handler exposes the chat API over HTTP.
type Handler struct {
	chat     ChatService
	feedback FeedbackService
	health   func(ctx context.Context) error
	log      zerolog.Logger
}

// NewHandler creates the handler. health may be nil.
func NewHandler(chat ChatService, fb FeedbackService, health func(ctx context.Context) error, logger zerolog.Logger) *Handler {
	return &Handler{chat: chat, feedback: fb, health: health, log: logger}
}

// Register mounts the routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Post("/feedback", h.handleFeedback)
	r.Get("/healthz", h.handleHealth)
}

type chatRequest struct {
	UserID  *string `json:"user_id"`
	Message *string `json:"message"`
}

type chatResponse struct {
	Response   string `json:"response"`
	ResponseID string `json:"response_id"`
}

type feedbackRequest struct {
	UserID     *string `json:"user_id"`
	ResponseID *string `json:"response_id"`
	Feedback   *string `json:"feedback"`
	// Accepted for wire compatibility, always recomputed server-side.
	UniqueID string `json:"unique_id,omitempty"`
}

// validationItem mirrors the per-field detail shape the client already parses.
type validationItem struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidation(w, []validationItem{{Loc: []string{"body"}, Msg: "invalid JSON body", Type: "value_error.jsondecode"}})
		return
	}
	if items := requireFields(map[string]*string{"user_id": req.UserID, "message": req.Message}); len(items) > 0 {
		writeValidation(w, items)
		return
	}

	reply, err := h.chat.Respond(r.Context(), *req.UserID, *req.Message)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			writeValidation(w, []validationItem{{Loc: []string{"body"}, Msg: err.Error(), Type: "value_error"}})
		case errors.Is(err, domain.ErrUpstreamUnavailable):
			h.log.Error().Err(err).Str("user_id", *req.UserID).Msg("chat: upstream failure")
			writeDetail(w, http.StatusInternalServerError, err.Error())
		default:
			h.log.Error().Err(err).Str("user_id", *req.UserID).Msg("chat: exchange failed")
			writeDetail(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Response: reply.Text, ResponseID: reply.ResponseID})
}

func (h *Handler) handleFeedback(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidation(w, []validationItem{{Loc: []string{"body"}, Msg: "invalid JSON body", Type: "value_error.jsondecode"}})
		return
	}
	if items := requireFields(map[string]*string{"user_id": req.UserID, "response_id": req.ResponseID, "feedback": req.Feedback}); len(items) > 0 {
		writeValidation(w, items)
		return
	}
	if derived := domain.FeedbackKey(*req.UserID, *req.ResponseID); req.UniqueID != "" && req.UniqueID != derived {
		h.log.Warn().Str("supplied", req.UniqueID).Str("derived", derived).Msg("feedback: ignoring mismatched unique_id")
	}

	result, err := h.feedback.Record(r.Context(), *req.UserID, *req.ResponseID, *req.Feedback)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			writeDetail(w, http.StatusBadRequest, "unique_id cannot be empty")
		case errors.Is(err, domain.ErrDuplicateFeedback):
			writeDetail(w, http.StatusConflict, "feedback for this response already exists")
		case errors.Is(err, domain.ErrFeedbackUpdateFailed):
			writeDetail(w, http.StatusBadRequest, "failed to update feedback")
		default:
			h.log.Error().Err(err).Str("user_id", *req.UserID).Msg("feedback: record failed")
			writeDetail(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	if result.Created {
		writeJSON(w, http.StatusOK, map[string]string{
			"message":     "feedback recorded",
			"feedback_id": result.FeedbackID,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "feedback updated"})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			writeDetail(w, http.StatusServiceUnavailable, "store unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireFields returns one validation item per missing or blank field.
func requireFields(fields map[string]*string) []validationItem {
	var items []validationItem
	for _, name := range []string{"user_id", "message", "response_id", "feedback"} {
		val, declared := fields[name]
		if !declared {
			continue
		}
		switch {
		case val == nil:
			items = append(items, validationItem{Loc: []string{"body", name}, Msg: "field required", Type: "value_error.missing"})
		case *val == "":
			items = append(items, validationItem{Loc: []string{"body", name}, Msg: "field cannot be blank", Type: "value_error.blank"})
		}
	}
	return items
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func writeValidation(w http.ResponseWriter, items []validationItem) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": items})
}
