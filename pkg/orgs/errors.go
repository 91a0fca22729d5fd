package orgs

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a failure. The HTTP boundary maps kinds to status codes;
// nothing anywhere matches on message text.
type Kind string

const (
	// KindNotMember means the actor holds no membership in the target
	// organization. Distinct from KindNotFound: the organization may exist.
	KindNotMember Kind = "not_member"

	// KindInsufficientPermission covers capability and invariant denials.
	// Always paired with an audit record.
	KindInsufficientPermission Kind = "insufficient_permission"

	// KindValidation means malformed input: name, email, role, capacity
	KindValidation Kind = "validation"

	// KindConflict covers duplicate invitations, capacity limits,
	// already-a-member, and delete-with-members.
	KindConflict Kind = "conflict"

	// KindExpiredOrConsumed means an invitation is past expiry or already
	// accepted.
	KindExpiredOrConsumed Kind = "expired_or_consumed"

	// KindNotFound means an unknown organization, invitation, membership, or
	// token.
	KindNotFound Kind = "not_found"

	// KindRateLimited means the invitation throttle rejected the attempt
	KindRateLimited Kind = "rate_limited"
)

// Error is a classified domain failure
type Error struct {
	Kind    Kind
	Message string

	// RetryAfter hints when a rate-limited caller may try again. Zero when
	// unknown or not applicable.
	RetryAfter time.Duration

	// Err is the underlying cause, if any
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ErrNotMember builds the membership denial
func ErrNotMember() *Error {
	return newError(KindNotMember, "not a member of this organization")
}

// ErrPermission builds a capability or invariant denial
func ErrPermission(format string, args ...interface{}) *Error {
	return newError(KindInsufficientPermission, format, args...)
}

// ErrValidation builds an input validation failure
func ErrValidation(format string, args ...interface{}) *Error {
	return newError(KindValidation, format, args...)
}

// ErrConflict builds a state conflict failure
func ErrConflict(format string, args ...interface{}) *Error {
	return newError(KindConflict, format, args...)
}

// ErrExpiredOrConsumed builds an unusable-invitation failure
func ErrExpiredOrConsumed(format string, args ...interface{}) *Error {
	return newError(KindExpiredOrConsumed, format, args...)
}

// ErrNotFound builds a missing-entity failure
func ErrNotFound(format string, args ...interface{}) *Error {
	return newError(KindNotFound, format, args...)
}

// ErrRateLimited builds a throttled failure carrying the limiter's reason
func ErrRateLimited(reason string) *Error {
	return newError(KindRateLimited, "%s", reason)
}

// KindOf extracts the Kind from err, or "" for unclassified errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsNotMember reports whether err is a membership denial
func IsNotMember(err error) bool { return KindOf(err) == KindNotMember }

// IsPermissionDenied reports whether err is a capability or invariant denial
func IsPermissionDenied(err error) bool { return KindOf(err) == KindInsufficientPermission }

// IsValidation reports whether err is an input validation failure
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsConflict reports whether err is a state conflict
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// IsExpiredOrConsumed reports whether err is an unusable-invitation failure
func IsExpiredOrConsumed(err error) bool { return KindOf(err) == KindExpiredOrConsumed }

// IsNotFound reports whether err is a missing-entity failure
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsRateLimited reports whether err is a throttled failure
func IsRateLimited(err error) bool { return KindOf(err) == KindRateLimited }
