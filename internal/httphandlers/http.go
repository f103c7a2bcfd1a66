package httphandlers

import (
	"encoding/json"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"net/http"
	"strconv"
	"warden/internal/eventbus"
	"warden/internal/service"
	"warden/internal/types"
	"warden/logger"
)

type (
	ApiHandler struct {
		svc       service.BackupService
		eb        eventbus.Bus
		accessKey string
	}
)

func NewApiHandler(svc service.BackupService, eb eventbus.Bus, accessKey string) *ApiHandler {
	return &ApiHandler{svc: svc, eb: eb, accessKey: accessKey}
}

func (handler *ApiHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	queries := r.URL.Query()
	limit, err := intQuery(queries.Get("limit"))
	if err != nil {
		badRequest(w, errors.Wrap(err, "invalid limit"))
		return
	}
	offset, err := intQuery(queries.Get("offset"))
	if err != nil {
		badRequest(w, errors.Wrap(err, "invalid offset"))
		return
	}

	jobs, err := handler.svc.ListJobs(r.Context(), types.JobFilter{
		Limit:  limit,
		Offset: offset,
		Status: types.JobStatus(queries.Get("status")),
	})
	if err != nil {
		fail(w, err)
		return
	}

	ok(w, "success", jobs)
}

func (handler *ApiHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := handler.svc.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, err)
		return
	}

	ok(w, "success", job)
}

func (handler *ApiHandler) ExecuteJob(w http.ResponseWriter, r *http.Request) {
	var params types.ExecuteJobParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		badRequest(w, errors.Wrap(err, "invalid request body"))
		return
	}

	job, err := handler.svc.ExecuteNow(r.Context(), params)
	if err != nil {
		fail(w, err)
		return
	}

	logger.Info("backup job submitted",
		zap.String("job_uuid", job.JobUUID.String()),
		zap.Strings("databases", job.Databases),
		zap.String("user", job.TriggeredByUser))
	created(w, "job created", job)
}

func (handler *ApiHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	job, err := handler.svc.CancelJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, err)
		return
	}

	ok(w, "job cancelled", job)
}

// StreamEvents writes job and alert events as newline-delimited JSON. With a
// job query parameter only that job's events are sent, and the stream ends
// once the job is terminal.
func (handler *ApiHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	identifier := eventbus.All
	if v := r.URL.Query().Get("job"); v != "" {
		jobUUID, err := uuid.Parse(v)
		if err != nil {
			badRequest(w, errors.Wrap(err, "invalid job uuid"))
			return
		}
		identifier = jobUUID.String()
	}

	recent, ch := handler.eb.Subscribe(identifier)
	defer handler.eb.Unregister(identifier, ch)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for _, ev := range recent {
		if err := writeLine(w, ev); err != nil {
			return
		}
		if identifier != eventbus.All && finished(ev) {
			return
		}
	}

	for {
		select {
		case ev, open := <-ch:
			if !open {
				return
			}
			if err := writeLine(w, ev); err != nil {
				logger.Info("event stream client gone", zap.Error(err))
				return
			}
			if identifier != eventbus.All && finished(ev) {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

func (handler *ApiHandler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	activeOnly, err := boolQuery(r.URL.Query().Get("active_only"))
	if err != nil {
		badRequest(w, errors.Wrap(err, "invalid active_only"))
		return
	}

	schedules, err := handler.svc.ListSchedules(r.Context(), activeOnly)
	if err != nil {
		fail(w, err)
		return
	}

	ok(w, "success", schedules)
}

func (handler *ApiHandler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var params types.CreateScheduleParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		badRequest(w, errors.Wrap(err, "invalid request body"))
		return
	}

	schedule, err := handler.svc.CreateSchedule(r.Context(), params)
	if err != nil {
		fail(w, err)
		return
	}

	created(w, "schedule created", schedule)
}

func (handler *ApiHandler) PatchSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		badRequest(w, err)
		return
	}

	var params types.PatchScheduleParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		badRequest(w, errors.Wrap(err, "invalid request body"))
		return
	}

	schedule, err := handler.svc.PatchSchedule(r.Context(), id, params)
	if err != nil {
		fail(w, err)
		return
	}

	ok(w, "schedule updated", schedule)
}

func (handler *ApiHandler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		badRequest(w, err)
		return
	}

	if err := handler.svc.DeleteSchedule(r.Context(), id); err != nil {
		fail(w, err)
		return
	}

	ok(w, "schedule deleted", nil)
}

func (handler *ApiHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	queries := r.URL.Query()
	unresolved, err := boolQuery(queries.Get("unresolved_only"))
	if err != nil {
		badRequest(w, errors.Wrap(err, "invalid unresolved_only"))
		return
	}
	limit, err := intQuery(queries.Get("limit"))
	if err != nil {
		badRequest(w, errors.Wrap(err, "invalid limit"))
		return
	}

	alerts, err := handler.svc.ListAlerts(r.Context(), types.AlertFilter{UnresolvedOnly: unresolved, Limit: limit})
	if err != nil {
		fail(w, err)
		return
	}

	ok(w, "success", alerts)
}

func (handler *ApiHandler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		badRequest(w, err)
		return
	}

	alert, err := handler.svc.AcknowledgeAlert(r.Context(), id)
	if err != nil {
		fail(w, err)
		return
	}

	ok(w, "alert read", alert)
}

func (handler *ApiHandler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		badRequest(w, err)
		return
	}

	alert, err := handler.svc.ResolveAlert(r.Context(), id)
	if err != nil {
		fail(w, err)
		return
	}

	ok(w, "alert resolved", alert)
}

func (handler *ApiHandler) Summary(w http.ResponseWriter, r *http.Request) {
	window, err := intQuery(r.URL.Query().Get("window_hours"))
	if err != nil {
		badRequest(w, errors.Wrap(err, "invalid window_hours"))
		return
	}

	result, err := handler.svc.Summary(r.Context(), window)
	if err != nil {
		fail(w, err)
		return
	}

	ok(w, "success", result)
}

func (handler *ApiHandler) Databases(w http.ResponseWriter, r *http.Request) {
	resources := handler.svc.Databases()
	out := make([]map[string]string, 0, len(resources))
	for _, res := range resources {
		out = append(out, map[string]string{
			"name":   res.Name,
			"engine": res.Engine.String(),
		})
	}

	ok(w, "success", out)
}

func (handler *ApiHandler) RunRetention(w http.ResponseWriter, r *http.Request) {
	report, err := handler.svc.RunRetention(r.Context())
	if err != nil {
		fail(w, err)
		return
	}

	ok(w, "retention completed", report)
}

func finished(ev eventbus.Event) bool {
	switch ev.Type {
	case eventbus.Success, eventbus.Error, eventbus.Complete:
		return true
	}
	return false
}

func idParam(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, errors.Errorf("invalid id: %q", chi.URLParam(r, "id"))
	}
	return uint(id), nil
}

func intQuery(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func boolQuery(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}
