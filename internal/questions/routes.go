package questions

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/upsc-prep/backend/internal/auth"
)

// Mount registers the question and answer routes on api.
func (h *Handler) Mount(api *mux.Router, mw *auth.Middleware) {
	optional := func(f http.HandlerFunc) http.Handler { return mw.Optional(f) }
	required := func(f http.HandlerFunc) http.Handler { return mw.Required(f) }

	// Public (token optional)
	api.Handle("/questions", optional(h.Search)).Methods("GET")
	api.Handle("/questions/subjects", optional(h.ListSubjects)).Methods("GET")
	api.Handle("/questions/{id}", optional(h.GetQuestion)).Methods("GET")
	api.Handle("/questions/{id}/model-answer", optional(h.ModelAnswer)).Methods("POST")

	// Protected
	api.Handle("/questions", required(h.CreateQuestion)).Methods("POST")
	api.Handle("/questions/{id}", required(h.DeleteQuestion)).Methods("DELETE")
	api.Handle("/questions/{id}/answers", required(h.SubmitAnswer)).Methods("POST")
	api.Handle("/questions/{id}/answers/me", required(h.MyAnswer)).Methods("GET")
	api.Handle("/answers", required(h.MyAnswers)).Methods("GET")
}
