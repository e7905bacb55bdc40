package engine

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNoPendingExport is returned by RecordExportAttempt when the object has
// no Pending Export.
var ErrNoPendingExport = errors.New("no pending export for connected system object")

// ObjectError reports a failure while processing one imported object.
//
// ObjectError includes the object id and the stage that failed so an
// operator can re-read the object's state before retrying it.
type ObjectError struct {
	// Stage is the step that failed.
	Stage Stage

	// CSOID identifies the affected connected system object.
	CSOID uuid.UUID

	// Err is the underlying (usually persistence) error.
	Err error
}

// Stage names a step of per-object processing.
type Stage string

const (
	// StageReconcile is confirmation of a previously exported change.
	StageReconcile Stage = "RECONCILE"

	// StageDrift is drift detection and corrective staging.
	StageDrift Stage = "DRIFT"

	// StageExport is recording an export attempt.
	StageExport Stage = "EXPORT"
)

// Error implements the error interface.
func (e *ObjectError) Error() string {
	return fmt.Sprintf("%s: cso %s: %v", e.Stage, e.CSOID, e.Err)
}

// Unwrap returns the underlying error.
func (e *ObjectError) Unwrap() error {
	return e.Err
}

// IsObjectError returns true if err wraps an ObjectError for stage.
// Uses errors.As to handle wrapped errors.
func IsObjectError(err error, stage Stage) bool {
	var oe *ObjectError
	if errors.As(err, &oe) {
		return oe.Stage == stage
	}
	return false
}

func newObjectError(stage Stage, csoID uuid.UUID, err error) *ObjectError {
	return &ObjectError{Stage: stage, CSOID: csoID, Err: err}
}
