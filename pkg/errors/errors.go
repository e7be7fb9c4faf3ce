package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

// ErrorCategory represents the failure classes the cache engine distinguishes.
type ErrorCategory string

const (
	// CategoryStore covers key-value store I/O and unreadable snapshots.
	CategoryStore ErrorCategory = "store"
	// CategorySession covers the live session not being usable (not ready, closed).
	CategorySession ErrorCategory = "session"
	// CategoryFetch covers network or remote failures of a live request.
	CategoryFetch ErrorCategory = "fetch"
	// CategoryValidation covers bad caller input (empty ids, malformed links).
	CategoryValidation ErrorCategory = "validation"
	CategoryConfig     ErrorCategory = "config"
)

// ErrorSeverity represents the severity level of errors
type ErrorSeverity string

const (
	SeverityLow    ErrorSeverity = "low"
	SeverityMedium ErrorSeverity = "medium"
	SeverityHigh   ErrorSeverity = "high"
)

var (
	// ErrNotConnected is returned when the live session has not become ready.
	// Callers show a retry affordance instead of a generic failure.
	ErrNotConnected = stderrors.New("discord session is not connected")
	// ErrUnknownBackend is returned for an unsupported key-value store backend name.
	ErrUnknownBackend = stderrors.New("unknown store backend")
	// ErrNotFound is returned when a user record addressed by id does not exist.
	ErrNotFound = stderrors.New("record not found")
	// ErrInvalidLink is returned when a bookmark or pinned link is not a discord:// link.
	ErrInvalidLink = stderrors.New("provide a discord:// link or the ids to build one")
)

// ServiceError is the typed failure indicator returned by public cache operations.
type ServiceError struct {
	Category  ErrorCategory
	Severity  ErrorSeverity
	Operation string
	Component string
	// Key is the store key or conversation id involved, when there is one.
	Key         string
	Cause       error
	Recoverable bool
}

func (e *ServiceError) Error() string {
	where := e.Component
	if e.Operation != "" {
		where += "." + e.Operation
	}
	if e.Key != "" {
		where += "(" + e.Key + ")"
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Severity, where, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Severity, where)
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// NewStoreError wraps a key-value store failure.
func NewStoreError(component, operation, key string, cause error) *ServiceError {
	return &ServiceError{
		Category:    CategoryStore,
		Severity:    SeverityMedium,
		Operation:   operation,
		Component:   component,
		Key:         key,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewFetchError wraps a live-session request failure. Session readiness failures keep
// ErrNotConnected reachable through errors.Is.
func NewFetchError(component, operation, key string, cause error) *ServiceError {
	category := CategoryFetch
	if stderrors.Is(cause, ErrNotConnected) {
		category = CategorySession
	}
	return &ServiceError{
		Category:    category,
		Severity:    fetchSeverity(cause),
		Operation:   operation,
		Component:   component,
		Key:         key,
		Cause:       cause,
		Recoverable: isRecoverable(cause),
	}
}

// CategoryOf returns the category of the first ServiceError in err's chain.
func CategoryOf(err error) (ErrorCategory, bool) {
	var se *ServiceError
	if stderrors.As(err, &se) {
		return se.Category, true
	}
	return "", false
}

// IsNotConnected reports whether err means the live session was not ready.
func IsNotConnected(err error) bool {
	return stderrors.Is(err, ErrNotConnected)
}

func fetchSeverity(err error) ErrorSeverity {
	var restErr *discordgo.RESTError
	if stderrors.As(err, &restErr) && restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return SeverityHigh
		case http.StatusNotFound:
			return SeverityLow
		}
	}
	return SeverityMedium
}

func isRecoverable(err error) bool {
	var restErr *discordgo.RESTError
	if stderrors.As(err, &restErr) && restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return false
		}
	}
	return true
}
