package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/chatbuddy/chatbot-backend/internal/api/respond"
	"github.com/chatbuddy/chatbot-backend/internal/chat"
	"github.com/chatbuddy/chatbot-backend/internal/model"
)

// ChatHandler serves POST /chat.
type ChatHandler struct {
	svc *chat.Service
}

func NewChatHandler(svc *chat.Service) *ChatHandler { return &ChatHandler{svc: svc} }

// SubmitTurn decodes one chat turn, runs it, and maps the error taxonomy onto
// status codes: 400 for validation, 500 for store or provider failures.
// Internal error detail is never exposed to the caller.
func (h *ChatHandler) SubmitTurn(w http.ResponseWriter, r *http.Request) {
	var in chat.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteReply(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	out, err := h.svc.SubmitTurn(r.Context(), in)
	if err != nil {
		var te *model.TurnError
		if errors.As(err, &te) {
			status := http.StatusInternalServerError
			if errors.Is(err, model.ErrValidation) {
				status = http.StatusBadRequest
			}
			respond.WriteReply(w, status, te.Reply)
			return
		}
		respond.WriteReply(w, http.StatusInternalServerError, "Server error. Please try again later.")
		return
	}

	respond.WriteJSON(w, http.StatusOK, out)
}
