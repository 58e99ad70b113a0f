package board

import (
	"errors"
	"fmt"
)

// ConfigError reports a task whose type cannot be resolved against the
// board configuration. The task is skipped for the run; nothing is fatal.
type ConfigError struct {
	Task   string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for task %q: %s", e.Task, e.Reason)
}

// RemoteRejectedError reports a write the backend refused with a failure
// status. Writes are never retried automatically; the affected task is
// skipped until the next run.
type RemoteRejectedError struct {
	Backend string
	Status  int
	Detail  string
}

func (e *RemoteRejectedError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s rejected request (status %d): %s", e.Backend, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s rejected request (status %d)", e.Backend, e.Status)
}

// RemoteUnavailableError reports a transport-level failure (connection
// refused, timeout). Idempotent reads are retried with backoff; writes
// are not, to avoid creating duplicate remote items.
type RemoteUnavailableError struct {
	Backend string
	Err     error
}

func (e *RemoteUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Backend, e.Err)
}

func (e *RemoteUnavailableError) Unwrap() error { return e.Err }

// IsUnavailable reports whether err is (or wraps) a transport-level
// failure eligible for read retry.
func IsUnavailable(err error) bool {
	var ue *RemoteUnavailableError
	return errors.As(err, &ue)
}

// IsRejected reports whether err is (or wraps) a backend rejection.
func IsRejected(err error) bool {
	var re *RemoteRejectedError
	return errors.As(err, &re)
}
