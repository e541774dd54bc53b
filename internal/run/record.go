// Package run defines the durable record tracking one workflow execution:
// its status, timing, input/output payloads and an append-only step log.
package run

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a run record
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Field limits enforced at the storage boundary
const (
	MaxWorkflowNameLength = 255
	MaxErrorMessageLength = 2000
)

// StepCancelled is the step entry appended when a record is cancelled
// administratively; it carries the cancel reason when one was given.
const StepCancelled = "run_cancelled"

// Validation errors
var (
	ErrEmptyID             = errors.New("ID cannot be empty")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrMissingErrorMessage = errors.New("error message is required when status is failed")
)

// IsValidStatus returns true if the status string is a valid run Status
func IsValidStatus(s string) bool {
	switch Status(s) {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status permits no further transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Step is one entry in a record's append-only step log. A step is either
// completed (CompletedAt and optional Data set) or failed (FailedAt and
// Error set); entries are never mutated after they are appended.
type Step struct {
	Name        string                 `json:"name"`
	Data        map[string]interface{} `json:"data,omitempty"`
	Error       string                 `json:"error,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	FailedAt    *time.Time             `json:"failed_at,omitempty"`
}

// Record tracks one workflow execution. The workflow engine exclusively owns
// status transitions while a run is executing; the caller only creates the
// record and reads the outcome.
type Record struct {
	ID            string          `json:"id"`
	WorkflowName  string          `json:"workflow_name"`
	Status        Status          `json:"status"`
	InputPayload  json.RawMessage `json:"input_payload,omitempty"`
	OutputPayload json.RawMessage `json:"output_payload,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	StartedAt     *time.Time      `json:"started_at,omitempty"`
	FinishedAt    *time.Time      `json:"finished_at,omitempty"`
	Steps         []Step          `json:"steps"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NewRecord creates a pending record for the named workflow with the given
// input payload.
func NewRecord(workflowName string, input json.RawMessage) (*Record, error) {
	if workflowName == "" || len(workflowName) > MaxWorkflowNameLength {
		return nil, fmt.Errorf("workflow name must be 1-%d characters", MaxWorkflowNameLength)
	}

	now := time.Now().UTC()
	return &Record{
		ID:           "run-" + uuid.NewString(),
		WorkflowName: workflowName,
		Status:       StatusPending,
		InputPayload: input,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// CanTransitionTo checks if the record can move from its current status to
// the target status. Progression is monotonic: pending → running →
// {completed, failed, cancelled}; terminal states are frozen. Cancellation is
// also allowed from pending for administrative marking of records that never
// started.
func (r *Record) CanTransitionTo(target Status) bool {
	switch r.Status {
	case StatusPending:
		return target == StatusRunning || target == StatusCancelled
	case StatusRunning:
		return target == StatusCompleted || target == StatusFailed || target == StatusCancelled
	default:
		return false
	}
}

// MarkStarted transitions the record to running and stamps StartedAt.
func (r *Record) MarkStarted() error {
	if !r.CanTransitionTo(StatusRunning) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, StatusRunning)
	}
	now := time.Now().UTC()
	r.Status = StatusRunning
	r.StartedAt = &now
	r.UpdatedAt = now
	return nil
}

// MarkCompleted transitions the record to completed with its output payload
// and stamps FinishedAt.
func (r *Record) MarkCompleted(output json.RawMessage) error {
	if !r.CanTransitionTo(StatusCompleted) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, StatusCompleted)
	}
	now := time.Now().UTC()
	r.Status = StatusCompleted
	r.OutputPayload = output
	r.FinishedAt = &now
	r.UpdatedAt = now
	return nil
}

// MarkFailed transitions the record to failed with the given error message
// and stamps FinishedAt. Messages beyond the field limit are truncated rather
// than rejected so a long cause chain never masks the failure itself.
func (r *Record) MarkFailed(message string) error {
	if !r.CanTransitionTo(StatusFailed) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, StatusFailed)
	}
	if message == "" {
		return ErrMissingErrorMessage
	}
	message = truncateMessage(message, MaxErrorMessageLength)
	now := time.Now().UTC()
	r.Status = StatusFailed
	r.ErrorMessage = message
	r.FinishedAt = &now
	r.UpdatedAt = now
	return nil
}

// MarkCancelled transitions the record to cancelled and stamps FinishedAt.
// Reserved for external administrative marking; the engine never cancels
// mid-flight. The reason, when given, lands in the step log; ErrorMessage
// stays empty so its presence remains an exact failure marker.
func (r *Record) MarkCancelled(reason string) error {
	if !r.CanTransitionTo(StatusCancelled) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, StatusCancelled)
	}
	var data map[string]interface{}
	if reason != "" {
		data = map[string]interface{}{"reason": reason}
	}
	r.AddStep(StepCancelled, data)
	now := time.Now().UTC()
	r.Status = StatusCancelled
	r.FinishedAt = &now
	r.UpdatedAt = now
	return nil
}

// truncateMessage cuts the message at limit bytes without splitting a
// multi-byte rune.
func truncateMessage(message string, limit int) string {
	if len(message) <= limit {
		return message
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(message[cut]) {
		cut--
	}
	return message[:cut]
}

// AddStep appends a completed step entry to the log.
func (r *Record) AddStep(name string, data map[string]interface{}) {
	now := time.Now().UTC()
	r.Steps = append(r.Steps, Step{
		Name:        name,
		Data:        data,
		CompletedAt: &now,
	})
	r.UpdatedAt = now
}

// FailStep appends a failed step entry to the log.
func (r *Record) FailStep(name string, err error) {
	now := time.Now().UTC()
	r.Steps = append(r.Steps, Step{
		Name:     name,
		Error:    err.Error(),
		FailedAt: &now,
	})
	r.UpdatedAt = now
}

// Validate checks the record's invariants. The store calls this before every
// write so a record violating them never reaches disk.
func (r *Record) Validate() error {
	if r.ID == "" {
		return ErrEmptyID
	}
	if r.WorkflowName == "" || len(r.WorkflowName) > MaxWorkflowNameLength {
		return fmt.Errorf("workflow name must be 1-%d characters", MaxWorkflowNameLength)
	}
	if !IsValidStatus(string(r.Status)) {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, r.Status)
	}
	if r.Status == StatusFailed && r.ErrorMessage == "" {
		return ErrMissingErrorMessage
	}
	if r.Status != StatusFailed && r.ErrorMessage != "" {
		return fmt.Errorf("error message must be empty when status is %s", r.Status)
	}
	if len(r.ErrorMessage) > MaxErrorMessageLength {
		return fmt.Errorf("error message must be at most %d characters", MaxErrorMessageLength)
	}
	if r.StartedAt != nil && r.FinishedAt != nil && !r.FinishedAt.After(*r.StartedAt) {
		return fmt.Errorf("finished_at must be after started_at")
	}
	return nil
}

// Duration returns how long the run executed, or zero if it has not finished.
func (r *Record) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}
