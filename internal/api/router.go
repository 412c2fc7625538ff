package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/mcoot/typerace-go/internal/middleware"
)

// NewRouter builds the HTTP routing layer: the websocket race endpoint, a
// health check, and the standard middleware chain. Browser clients connect
// from a separately-hosted frontend, so CORS is open.
func NewRouter(raceHandler http.Handler, logger *slog.Logger) http.Handler {
	router := mux.NewRouter()

	router.Use(middleware.Recovery(logger, middleware.DefaultPanicHandler))
	router.Use(middleware.Logging(logger))

	router.Handle("/ws/race", raceHandler)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	return cors.AllowAll().Handler(router)
}
