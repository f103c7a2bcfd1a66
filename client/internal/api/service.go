package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

type (
	Service interface {
		JobService
		ScheduleService
		AlertService
		Summary(ctx context.Context, windowHours int) (Summary, error)
		Ping(ctx context.Context) error
	}

	JobService interface {
		ListJobs(ctx context.Context, limit, offset int, status string) ([]Job, error)
		GetJob(ctx context.Context, ref string) (Job, error)
		RunJob(ctx context.Context, params RunJobParams) (Job, error)
		CancelJob(ctx context.Context, ref string) (Job, error)
		// WatchJob streams the job's events until it is terminal or ctx ends.
		WatchJob(ctx context.Context, job Job) (<-chan Event, error)
	}

	ScheduleService interface {
		ListSchedules(ctx context.Context, activeOnly bool) ([]Schedule, error)
		CreateSchedule(ctx context.Context, params CreateScheduleParams) (Schedule, error)
		PatchSchedule(ctx context.Context, id uint, params PatchScheduleParams) (Schedule, error)
		DeleteSchedule(ctx context.Context, id uint) error
	}

	AlertService interface {
		ListAlerts(ctx context.Context, unresolvedOnly bool, limit int) ([]Alert, error)
		ResolveAlert(ctx context.Context, id uint) (Alert, error)
	}
)

type service struct {
	apiClient Client
}

func NewService(apiClient Client) Service {
	return service{apiClient: apiClient}
}

func (s service) ListJobs(ctx context.Context, limit, offset int, status string) ([]Job, error) {
	var response struct {
		Jobs []Job `json:"data"`
	}
	query := map[string]string{
		"limit":  strconv.Itoa(limit),
		"offset": strconv.Itoa(offset),
	}
	if status != "" {
		query["status"] = status
	}
	err := s.apiClient.Do(ctx, Params{
		Method:      http.MethodGet,
		Path:        "jobs",
		QueryParams: query,
		Response:    &response,
	})
	return response.Jobs, err
}

func (s service) GetJob(ctx context.Context, ref string) (Job, error) {
	var response struct {
		Job Job `json:"data"`
	}
	err := s.apiClient.Do(ctx, Params{
		Method:   http.MethodGet,
		Path:     "jobs/" + ref,
		Response: &response,
	})
	return response.Job, err
}

func (s service) RunJob(ctx context.Context, params RunJobParams) (Job, error) {
	var response struct {
		Job Job `json:"data"`
	}
	err := s.apiClient.Do(ctx, Params{
		Method:   http.MethodPost,
		Path:     "jobs",
		Body:     params,
		Response: &response,
	})
	return response.Job, err
}

func (s service) CancelJob(ctx context.Context, ref string) (Job, error) {
	var response struct {
		Job Job `json:"data"`
	}
	err := s.apiClient.Do(ctx, Params{
		Method:   http.MethodPost,
		Path:     fmt.Sprintf("jobs/%s/cancel", ref),
		Response: &response,
	})
	return response.Job, err
}

func (s service) WatchJob(ctx context.Context, job Job) (<-chan Event, error) {
	body, err := s.apiClient.Stream(ctx, Params{
		Method:      http.MethodGet,
		Path:        "jobs/events",
		QueryParams: map[string]string{"job": job.JobUUID.String()},
	})
	if err != nil {
		return nil, err
	}

	events := make(chan Event)
	go func() {
		defer close(events)
		defer func() {
			_ = body.Close()
		}()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			var ev Event
			if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

func (s service) ListSchedules(ctx context.Context, activeOnly bool) ([]Schedule, error) {
	var response struct {
		Schedules []Schedule `json:"data"`
	}
	err := s.apiClient.Do(ctx, Params{
		Method:      http.MethodGet,
		Path:        "schedules",
		QueryParams: map[string]string{"active_only": strconv.FormatBool(activeOnly)},
		Response:    &response,
	})
	return response.Schedules, err
}

func (s service) CreateSchedule(ctx context.Context, params CreateScheduleParams) (Schedule, error) {
	var response struct {
		Schedule Schedule `json:"data"`
	}
	err := s.apiClient.Do(ctx, Params{
		Method:   http.MethodPost,
		Path:     "schedules",
		Body:     params,
		Response: &response,
	})
	return response.Schedule, err
}

func (s service) PatchSchedule(ctx context.Context, id uint, params PatchScheduleParams) (Schedule, error) {
	var response struct {
		Schedule Schedule `json:"data"`
	}
	err := s.apiClient.Do(ctx, Params{
		Method:   http.MethodPatch,
		Path:     fmt.Sprintf("schedules/%d", id),
		Body:     params,
		Response: &response,
	})
	return response.Schedule, err
}

func (s service) DeleteSchedule(ctx context.Context, id uint) error {
	return s.apiClient.Do(ctx, Params{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("schedules/%d", id),
	})
}

func (s service) ListAlerts(ctx context.Context, unresolvedOnly bool, limit int) ([]Alert, error) {
	var response struct {
		Alerts []Alert `json:"data"`
	}
	err := s.apiClient.Do(ctx, Params{
		Method: http.MethodGet,
		Path:   "alerts",
		QueryParams: map[string]string{
			"unresolved_only": strconv.FormatBool(unresolvedOnly),
			"limit":           strconv.Itoa(limit),
		},
		Response: &response,
	})
	return response.Alerts, err
}

func (s service) ResolveAlert(ctx context.Context, id uint) (Alert, error) {
	var response struct {
		Alert Alert `json:"data"`
	}
	err := s.apiClient.Do(ctx, Params{
		Method:   http.MethodPost,
		Path:     fmt.Sprintf("alerts/%d/resolve", id),
		Response: &response,
	})
	return response.Alert, err
}

func (s service) Summary(ctx context.Context, windowHours int) (Summary, error) {
	var response struct {
		Summary Summary `json:"data"`
	}
	err := s.apiClient.Do(ctx, Params{
		Method:      http.MethodGet,
		Path:        "summary",
		QueryParams: map[string]string{"window_hours": strconv.Itoa(windowHours)},
		Response:    &response,
	})
	return response.Summary, err
}

// Ping checks both reachability and the access key.
func (s service) Ping(ctx context.Context) error {
	_, err := s.ListJobs(ctx, 1, 0, "")
	return err
}
