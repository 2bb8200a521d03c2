// Package errors provides custom error types for the catalogsync system.
// These errors enable programmatic error checking across the store, the
// version resolver and the reconciliation driver, and let callers report
// the specific kind of failure for every entity in a batch.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Common sentinel errors for the catalogsync system
var (
	// ErrNotFound indicates that a requested entity or version was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that an archived version already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrConflict indicates the store refused a write the caller did not request
	ErrConflict = errors.New("conflict")

	// ErrAmbiguousVersionOrder indicates two versions cannot be ordered
	ErrAmbiguousVersionOrder = errors.New("ambiguous version order")

	// ErrPartialWrite indicates an archive+put sequence stopped partway
	ErrPartialWrite = errors.New("partial write")

	// ErrEnrichmentUnavailable indicates optional enrichment data could not be loaded
	ErrEnrichmentUnavailable = errors.New("enrichment unavailable")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")

	// ErrReadOnly indicates an attempt to modify a read-only resource
	ErrReadOnly = errors.New("read only")
)

// NotFoundError represents an error when an entity is not found
type NotFoundError struct {
	Resource string
	ID       string
	Version  string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("%s with ID %s at version %s not found", e.Resource, e.ID, e.Version)
	}
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// NewVersionNotFoundError creates a NotFoundError for a specific version.
func NewVersionNotFoundError(resource, id, version string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id, Version: version}
}

// ConflictError is returned when a put would replace a current entity
// at a different version without overwrite being requested, or when an
// archive slot is already occupied.
type ConflictError struct {
	Resource        string
	ID              string
	CurrentVersion  string
	IncomingVersion string
	Message         string
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "refusing to overwrite"
	}
	return fmt.Sprintf("conflict on %s %s (current %q, incoming %q): %s",
		e.Resource, e.ID, e.CurrentVersion, e.IncomingVersion, msg)
}

// Is implements errors.Is support
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// NewConflictError creates a new ConflictError
func NewConflictError(resource, id, current, incoming string) *ConflictError {
	return &ConflictError{
		Resource:        resource,
		ID:              id,
		CurrentVersion:  current,
		IncomingVersion: incoming,
	}
}

// AmbiguousVersionOrderError is returned when no ordering scheme applies
// to the versions of an entity.
type AmbiguousVersionOrderError struct {
	ID       string
	Versions []string
	Message  string
}

// Error implements the error interface
func (e *AmbiguousVersionOrderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("cannot order versions %v of %s: %s", e.Versions, e.ID, e.Message)
	}
	return fmt.Sprintf("cannot order versions %v of %s", e.Versions, e.ID)
}

// Is implements errors.Is support
func (e *AmbiguousVersionOrderError) Is(target error) bool {
	return target == ErrAmbiguousVersionOrder
}

// NewAmbiguousVersionOrderError creates a new AmbiguousVersionOrderError
func NewAmbiguousVersionOrderError(id string, versions []string, message string) *AmbiguousVersionOrderError {
	return &AmbiguousVersionOrderError{ID: id, Versions: versions, Message: message}
}

// PartialWriteError represents an archive-then-put sequence where the
// archive step completed but the put did not. The next run detects the
// resulting state (archive present, no current) and restores from the
// newest snapshot.
type PartialWriteError struct {
	Resource        string
	ID              string
	ArchivedVersion string
	Err             error
}

// Error implements the error interface
func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("partial write for %s %s: archived %s but current write failed: %v",
		e.Resource, e.ID, e.ArchivedVersion, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *PartialWriteError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *PartialWriteError) Is(target error) bool {
	return target == ErrPartialWrite
}

// NewPartialWriteError creates a new PartialWriteError
func NewPartialWriteError(resource, id, archived string, err error) *PartialWriteError {
	return &PartialWriteError{Resource: resource, ID: id, ArchivedVersion: archived, Err: err}
}

// EnrichmentError reports optional data that could not be loaded.
// It is a warning, never a per-entity failure.
type EnrichmentError struct {
	Source string
	ID     string
	What   string
	Err    error
}

// Error implements the error interface
func (e *EnrichmentError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("enrichment %s unavailable for %s from %s: %v", e.What, e.ID, e.Source, e.Err)
	}
	return fmt.Sprintf("enrichment %s unavailable from %s: %v", e.What, e.Source, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *EnrichmentError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *EnrichmentError) Is(target error) bool {
	return target == ErrEnrichmentUnavailable
}

// NewEnrichmentError creates a new EnrichmentError
func NewEnrichmentError(source, id, what string, err error) *EnrichmentError {
	return &EnrichmentError{Source: source, ID: id, What: what, Err: err}
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// ParseError represents an error when parsing data formats
type ParseError struct {
	Format  string // "yaml", "json", "frontmatter"
	File    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("parse error in %s file %s: %s", e.Format, e.File, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError
func NewParseError(format, file string, message string, err error) *ParseError {
	return &ParseError{
		Format:  format,
		File:    file,
		Message: message,
		Err:     err,
	}
}

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "write", "rename", "mkdir", "remove"
	Path      string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("IO error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError creates a new IOError
func NewIOError(operation, path string, err error) *IOError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   message,
		Err:       err,
	}
}

// SyncError reports a source that could not be fetched.
type SyncError struct {
	Source string
	Err    error
}

// Error implements the error interface
func (e *SyncError) Error() string {
	return fmt.Sprintf("sync error for source %s: %v", e.Source, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *SyncError) Unwrap() error {
	return e.Err
}

// NewSyncError creates a new SyncError
func NewSyncError(source string, err error) *SyncError {
	return &SyncError{Source: source, Err: err}
}

// EntityError attaches entity identity to a reconciliation failure.
type EntityError struct {
	Kind    string
	ID      string
	Version string
	Err     error
}

// Error implements the error interface
func (e *EntityError) Error() string {
	return fmt.Sprintf("%s %s@%s: %v", e.Kind, e.ID, e.Version, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *EntityError) Unwrap() error {
	return e.Err
}

// Reason classifies the wrapped error for reporting.
func (e *EntityError) Reason() string {
	return Reason(e.Err)
}

// NewEntityError creates a new EntityError
func NewEntityError(kind, id, version string, err error) *EntityError {
	return &EntityError{Kind: kind, ID: id, Version: version, Err: err}
}

// Reason returns a short machine-readable classification of err.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPartialWrite):
		return "partial_write"
	case errors.Is(err, ErrAmbiguousVersionOrder):
		return "ambiguous_version_order"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidInput):
		return "invalid"
	case errors.Is(err, ErrCanceled):
		return "canceled"
	}
	var ioErr *IOError
	if errors.As(err, &ioErr) {
		return "io"
	}
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return "parse"
	}
	return "unknown"
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsConflict checks if an error is a conflict error
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsAmbiguousVersionOrder checks if versions could not be ordered
func IsAmbiguousVersionOrder(err error) bool {
	return errors.Is(err, ErrAmbiguousVersionOrder)
}

// IsPartialWrite checks if an error is a partial write
func IsPartialWrite(err error) bool {
	return errors.Is(err, ErrPartialWrite)
}

// IsEnrichmentUnavailable checks if an error only reports missing enrichment
func IsEnrichmentUnavailable(err error) bool {
	return errors.Is(err, ErrEnrichmentUnavailable)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsCanceled checks if an error is a cancellation error
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// Helper wrapping functions for common patterns

// WrapValidation wraps an error as a ValidationError
func WrapValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error()}
}

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return NewParseError(format, file, err.Error(), err)
}

// WrapEntity wraps an error as an EntityError
func WrapEntity(kind, id, version string, err error) error {
	if err == nil {
		return nil
	}
	return NewEntityError(kind, id, version, err)
}
