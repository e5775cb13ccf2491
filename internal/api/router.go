package api

import (
	"net/http"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"

	"github.com/chatbuddy/chatbot-backend/internal/api/recovery"
	"github.com/chatbuddy/chatbot-backend/internal/chat"
	"github.com/chatbuddy/chatbot-backend/internal/store"
)

// NewRouter creates the HTTP handler with all API routes.
// allowedOrigins is deployment configuration; ["*"] opens the API to any origin.
func NewRouter(st store.Store, chatSvc *chat.Service, allowedOrigins []string) http.Handler {
	router := mux.NewRouter()

	// Global middlewares
	router.Use(recovery.Middleware)

	chatHandler := NewChatHandler(chatSvc)
	healthHandler := NewHealthHandler(st)

	// Chat endpoint
	router.HandleFunc("/chat", chatHandler.SubmitTurn).Methods("POST")

	// Health endpoints
	router.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")
	router.HandleFunc("/api/health/db", healthHandler.CheckStoreHealth).Methods("GET")

	// CORS wraps the router itself so preflight OPTIONS requests are answered
	// without a matching mux route.
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
	})(router)
}
