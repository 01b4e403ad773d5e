package audit

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/autoparts-voice-agent/pkg/logging"
)

// Handler serves the call audit trail to admins.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// ListCallEventsResponse is the body of GET /admin/calls/{callID}/audit.
type ListCallEventsResponse struct {
	CallID string      `json:"call_id"`
	Events []CallEvent `json:"events"`
}

// ListCallEvents handles GET /admin/calls/{callID}/audit
func (h *Handler) ListCallEvents(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callID")
	if callID == "" {
		http.Error(w, "missing call id", http.StatusBadRequest)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	events, err := h.service.ListByCall(r.Context(), callID, limit)
	if err != nil {
		h.logger.Error("failed to list call audit events", "error", err, "call_id", callID)
		http.Error(w, "failed to list audit events", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []CallEvent{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ListCallEventsResponse{CallID: callID, Events: events})
}
