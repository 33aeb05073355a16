package util

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes returned by the engine. Callers branch on these rather than on
// message text.
const (
	CodeValidationFailed      = "VALIDATION_FAILED"
	CodeNotFound              = "NOT_FOUND"
	CodeConflict              = "CONFLICT"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeForbidden             = "FORBIDDEN"
	CodeInternal              = "INTERNAL_ERROR"
	CodeInvalidTransition     = "INVALID_TRANSITION"
	CodeInvalidState          = "INVALID_STATE"
	CodeMissingRequiredField  = "MISSING_REQUIRED_FIELD"
	CodeStaleAssignment       = "STALE_ASSIGNMENT"
	CodeAssignmentConflict    = "ASSIGNMENT_CONFLICT"
	CodeWorkflowLoopDetected  = "WORKFLOW_LOOP_DETECTED"
	CodeInvalidRuleDefinition = "INVALID_RULE_DEFINITION"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

// NewInvalidTransition reports a stage change the workflow definition does not allow.
func NewInvalidTransition(message string, details map[string]any) error {
	return NewDomainError(CodeInvalidTransition, message, http.StatusUnprocessableEntity, details)
}

// NewInvalidState reports an operation attempted outside its valid lifecycle state.
func NewInvalidState(message string, details map[string]any) error {
	return NewDomainError(CodeInvalidState, message, http.StatusConflict, details)
}

// NewMissingRequiredField reports a ticket-type constraint that must hold
// before the ticket leaves its initial stage.
func NewMissingRequiredField(field string) error {
	return NewDomainError(CodeMissingRequiredField,
		fmt.Sprintf("ticket type requires %s before leaving the initial stage", field),
		http.StatusUnprocessableEntity, map[string]any{"field": field})
}

// NewStaleAssignment signals the loser of a concurrent assignment update.
// The caller must refetch and retry.
func NewStaleAssignment(assignmentID string) error {
	return NewDomainError(CodeStaleAssignment,
		"assignment was modified concurrently; refetch and retry",
		http.StatusConflict, map[string]any{"assignment_id": assignmentID})
}

// NewAssignmentConflict signals that an active assignment already exists for the ticket.
func NewAssignmentConflict(ticketID string) error {
	return NewDomainError(CodeAssignmentConflict,
		"an active assignment already exists for this ticket",
		http.StatusConflict, map[string]any{"ticket_id": ticketID})
}

// NewWorkflowLoopDetected reports the chained-transition cap being hit. The
// ticket stays in its last valid state; the rule configuration needs attention.
func NewWorkflowLoopDetected(ticketID string, limit int) error {
	return NewDomainError(CodeWorkflowLoopDetected,
		"automatic stage transitions exceeded the per-event cap",
		http.StatusUnprocessableEntity,
		map[string]any{"ticket_id": ticketID, "transition_cap": limit})
}

// NewInvalidRuleDefinition reports a misconfigured workflow rule.
func NewInvalidRuleDefinition(ruleID, reason string) error {
	return NewDomainError(CodeInvalidRuleDefinition,
		fmt.Sprintf("invalid workflow rule: %s", reason),
		http.StatusUnprocessableEntity, map[string]any{"rule_id": ruleID})
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// CodeOf extracts the DomainError code, or INTERNAL_ERROR for foreign errors.
func CodeOf(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given engine error code.
func HasCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// IsStaleAssignment reports a lost optimistic-concurrency race.
func IsStaleAssignment(err error) bool {
	return HasCode(err, CodeStaleAssignment)
}

// IsInvalidTransition reports a rejected stage change.
func IsInvalidTransition(err error) bool {
	return HasCode(err, CodeInvalidTransition)
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return &DomainError{
			Code:       CodeNotFound,
			Message:    "resource not found",
			HTTPStatus: http.StatusNotFound,
			Err:        err,
		}
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}
