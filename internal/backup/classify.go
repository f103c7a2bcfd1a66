package backup

import (
	"context"
	"errors"
	"fmt"
	"warden/internal/integrations/docker"
)

type FailureClass string

const (
	ClassTransient     FailureClass = "transient"
	ClassConfiguration FailureClass = "configuration"
	ClassPartial       FailureClass = "partial"
	ClassCancelled     FailureClass = "cancelled"
	ClassTimeout       FailureClass = "timeout"
)

var (
	ErrEngineUnavailable  = errors.New("backup engine unavailable")
	ErrStorageUnwritable  = errors.New("backup storage unwritable")
	ErrUnknownResource    = errors.New("resource no longer exists")
	ErrMissingCredentials = errors.New("resource credentials missing")
	ErrUnsupportedEngine  = errors.New("no dumper for storage engine")
)

// Classify maps an engine error onto the failure taxonomy.
func Classify(err error) FailureClass {
	var partial *PartialError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ClassTimeout
	case errors.Is(err, context.Canceled):
		return ClassCancelled
	case errors.As(err, &partial) && len(partial.Succeeded) > 0:
		return ClassPartial
	case errors.Is(err, ErrUnknownResource),
		errors.Is(err, ErrMissingCredentials),
		errors.Is(err, ErrUnsupportedEngine):
		return ClassConfiguration
	}
	return ClassTransient
}

// Describe renders the message stored on a failed job.
func Describe(err error) string {
	return fmt.Sprintf("%s failure: %s", Classify(err), err.Error())
}

func isUnavailable(err error) bool {
	return errors.Is(err, ErrEngineUnavailable) || errors.Is(err, docker.ErrUnavailable)
}
