package httphandlers

import (
	"crypto/subtle"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
	"time"
	"warden/internal/metrics"
)

func Routes(h *ApiHandler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(instrument)

	r.Handle("/metrics", promhttp.Handler())
	r.Route("/v1", func(rr chi.Router) {
		rr.Get("/h", func(writer http.ResponseWriter, request *http.Request) {
			ok(writer, "Hoi, we're HTTPs live!", struct{}{})
		})

		rr.Group(func(pr chi.Router) {
			pr.Use(requireAccessKey(h.accessKey))

			pr.Get("/jobs", h.ListJobs)
			pr.Post("/jobs", h.ExecuteJob)
			pr.Get("/jobs/events", h.StreamEvents)
			pr.Get("/jobs/{id}", h.GetJob)
			pr.Post("/jobs/{id}/cancel", h.CancelJob)

			pr.Get("/schedules", h.ListSchedules)
			pr.Post("/schedules", h.CreateSchedule)
			pr.Patch("/schedules/{id}", h.PatchSchedule)
			pr.Delete("/schedules/{id}", h.DeleteSchedule)

			pr.Get("/alerts", h.ListAlerts)
			pr.Post("/alerts/{id}/read", h.AcknowledgeAlert)
			pr.Post("/alerts/{id}/resolve", h.ResolveAlert)

			pr.Get("/summary", h.Summary)
			pr.Get("/databases", h.Databases)
			pr.Post("/retention/run", h.RunRetention)
		})
	})
	return r
}

// requireAccessKey rejects requests without the configured key. An empty key
// disables the check.
func requireAccessKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(authorizationHeader)), []byte(key)) != 1 {
				unauthorized(w, errors.New("invalid access token"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// instrument records request counts and latency labelled by route pattern.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequest(r.Method, path, status, time.Since(start).Seconds())
	})
}
