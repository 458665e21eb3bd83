package domain

import (
	"errors"
	"fmt"
)

// FetchError indicates upstream data was unavailable or malformed. The case
// is routed to the error bucket and the batch continues.
type FetchError struct {
	Op        string
	RequestID string
	Err       error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s for request %s: %v", e.Op, e.RequestID, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error { return e.Err }

// DuplicateVersionError indicates a data-integrity violation: the same
// (provider, version) pair appeared twice in one case's interpreted genomes.
// Classification of the affected case must abort rather than silently pick
// either entry.
type DuplicateVersionError struct {
	Provider string
	Version  int
}

// Error implements the error interface.
func (e *DuplicateVersionError) Error() string {
	return fmt.Sprintf("multiple interpreted genomes with version %d for interpretation service %q", e.Version, e.Provider)
}

// MissingPrimaryProviderError indicates the primary tiering provider
// submitted no interpreted genome at all. This is a data error, never a
// valid "zero findings", so classification fails loudly instead of
// defaulting to negative-negative.
type MissingPrimaryProviderError struct {
	Provider string
}

// Error implements the error interface.
func (e *MissingPrimaryProviderError) Error() string {
	return fmt.Sprintf("no interpreted genome found for primary tiering provider %q", e.Provider)
}

// TieringVersionError indicates the primary tiering genome carries no usable
// software-version stamp. Its rare-event data can be neither trusted nor
// ruled out, so the case routes to the error bucket instead of classifying.
type TieringVersionError struct {
	Stamp string
	Err   error
}

// Error implements the error interface.
func (e *TieringVersionError) Error() string {
	if e.Stamp == "" {
		return "interpreted genome carries no tiering software version"
	}
	return fmt.Sprintf("unusable tiering software version %q: %v", e.Stamp, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TieringVersionError) Unwrap() error { return e.Err }

// ValidationError is a named safety-gate precondition failure. The first
// failing check aborts booking of that case; Check/Expected/Actual carry the
// structured context and Message the diagnostic text written to the audit log.
type ValidationError struct {
	Check    string
	Expected string
	Actual   string
	Message  string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("check %s failed: expected %s, got %s", e.Check, e.Expected, e.Actual)
}

// AmbiguousRecordError indicates the external record lookup returned zero or
// more than one matching test record, so no safe mutation target exists.
type AmbiguousRecordError struct {
	ParticipantID string
	Count         int
}

// Error implements the error interface.
func (e *AmbiguousRecordError) Error() string {
	if e.Count == 0 {
		return fmt.Sprintf("no matching test record for participant %s: record must pre-exist (upstream booking step missing)", e.ParticipantID)
	}
	return fmt.Sprintf("%d matching test records for participant %s: ambiguous mutation target", e.Count, e.ParticipantID)
}

// MutationError indicates the external update failed after validation had
// already passed. It must surface as ERROR in the audit log and is never
// retried automatically, since a retry could mask partial state left on the
// external record.
type MutationError struct {
	TestID int64
	Err    error
}

// Error implements the error interface.
func (e *MutationError) Error() string {
	return fmt.Sprintf("updating test record %d: %v", e.TestID, e.Err)
}

// Unwrap returns the underlying cause.
func (e *MutationError) Unwrap() error { return e.Err }

// IsCaseError reports whether err is one of the per-case failures that route
// a case to the error bucket without aborting the batch.
func IsCaseError(err error) bool {
	var fetchErr *FetchError
	var dupErr *DuplicateVersionError
	var missingErr *MissingPrimaryProviderError
	var versionErr *TieringVersionError
	return errors.As(err, &fetchErr) || errors.As(err, &dupErr) ||
		errors.As(err, &missingErr) || errors.As(err, &versionErr)
}
