package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/xkilldash9x/sightclick/internal/orchestrator"
)

// Process exit codes.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitNotFound = 2
)

// outcomeError carries a failed run to the process exit code. The run was
// already logged by the orchestrator.
type outcomeError struct {
	outcome orchestrator.Outcome
}

func (e *outcomeError) Error() string {
	return fmt.Sprintf("run %s: %s", e.outcome.RunID, e.outcome)
}

func (e *outcomeError) Unwrap() error { return e.outcome.Err }

// ExitCode maps an error returned by Execute to a process exit code: 0 for
// an interrupted command, 2 when the target was not found or nothing changed,
// 1 otherwise. A run that hit its own timeout is a failure.
func ExitCode(err error) int {
	if err == nil || errors.Is(err, context.Canceled) {
		return ExitOK
	}
	var oe *outcomeError
	if errors.As(err, &oe) {
		switch oe.outcome.Reason {
		case orchestrator.ReasonTargetNotFound, orchestrator.ReasonNoObservedChange:
			return ExitNotFound
		}
	}
	return ExitFailure
}
