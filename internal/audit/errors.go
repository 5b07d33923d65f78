package audit

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest marks a submission rejected before any background work starts.
	ErrInvalidRequest = errors.New("invalid audit request")
	// ErrNotFound signals that the requested audit record does not exist.
	ErrNotFound = errors.New("audit record not found")
)

// Stage names the pipeline step that produced a fatal failure.
type Stage string

// Pipeline stages.
const (
	StageCollect     Stage = "collect"
	StagePerformance Stage = "performance"
	StagePresence    Stage = "presence"
	StageSynthesize  Stage = "synthesize"
	StageRender      Stage = "render"
	StageNotify      Stage = "notify"
)

// StageError wraps a fatal failure with the stage it came from.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf returns the stage recorded in err, or "" when err carries none.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
