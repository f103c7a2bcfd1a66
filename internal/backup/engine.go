package backup

import (
	"context"
	"fmt"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"strings"
	"warden/internal/types"
)

type (
	// Engine is the physical backup collaborator. It dumps a resource set to
	// storage and deletes artifacts it previously produced.
	Engine interface {
		Backup(ctx context.Context, req Request) (Result, error)
		Delete(ctx context.Context, path string) error
	}

	Request struct {
		JobUUID    uuid.UUID
		BackupType types.BackupType
		Databases  []string
	}

	Result struct {
		Path                string
		TotalSizeBytes      int64
		CompressedSizeBytes int64
		Databases           []DatabaseResult
	}

	DatabaseResult struct {
		Database       string
		Location       string
		Size           int64
		CompressedSize int64
	}

	// DatabaseError is the failure of one database inside a job.
	DatabaseError struct {
		Database string
		Err      error
	}

	// PartialError aggregates per-database failures of one job. It is
	// returned even when every database failed.
	PartialError struct {
		Failed    []string
		Succeeded []string
		errs      *multierror.Error
	}
)

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Database, e.Err.Error())
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

func (e *PartialError) add(database string, err error) {
	e.Failed = append(e.Failed, database)
	e.errs = multierror.Append(e.errs, &DatabaseError{Database: database, Err: err})
	e.errs.ErrorFormat = func(errs []error) string {
		msgs := make([]string, 0, len(errs))
		for _, err := range errs {
			msgs = append(msgs, err.Error())
		}
		return strings.Join(msgs, "; ")
	}
}

func (e *PartialError) Error() string {
	total := len(e.Failed) + len(e.Succeeded)
	return fmt.Sprintf("backup failed for %d of %d database(s) [%s]: %s",
		len(e.Failed), total, strings.Join(e.Failed, ", "), e.errs.Error())
}

func (e *PartialError) Unwrap() error {
	return e.errs.ErrorOrNil()
}

// Errors returns the per-database failures.
func (e *PartialError) Errors() []error {
	if e.errs == nil {
		return nil
	}
	return e.errs.WrappedErrors()
}

func (e *PartialError) ErrorOrNil() error {
	if e == nil || len(e.Failed) == 0 {
		return nil
	}
	return e
}
