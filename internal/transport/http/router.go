package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// NewRouter mounts the REST API and the websocket channel.
func NewRouter(h *Handlers, ws *WSHandler, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(log), middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	// long-lived, kept outside the request timeout
	r.Get("/ws", ws.ServeWS)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Post("/tests/{testID}/attempts", h.StartAttempt)
		r.Put("/tests/{testID}", h.PutTest)

		r.Route("/questions/{questionID}", func(r chi.Router) {
			r.Put("/", h.PutQuestion)
			r.Delete("/", h.DeleteQuestion)
		})

		r.Route("/attempts/{attemptID}", func(r chi.Router) {
			r.Get("/", h.GetAttempt)
			r.Get("/questions/{index}", h.Navigate)
			r.Put("/answers/{questionID}", h.SubmitAnswer)
			r.Post("/finish", h.FinishAttempt)
			r.Post("/rescore", h.RescoreAttempt)
			r.Get("/result", h.Result)
		})
	})
	return r
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info().
				Str("requestId", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("took", time.Since(start)).
				Msg("http request")
		})
	}
}
