package respond

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// ReplyResponse is the body of every /chat response, success or failure.
type ReplyResponse struct {
	Reply string `json:"reply"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// WriteReply writes a {reply} body with the given status code.
func WriteReply(w http.ResponseWriter, statusCode int, reply string) {
	WriteJSON(w, statusCode, ReplyResponse{Reply: reply})
}
