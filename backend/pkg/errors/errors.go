package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeGraph represents graph database errors
	ErrorTypeGraph ErrorType = "graph"
	// ErrorTypeCatalog represents catalog lookups that found nothing or conflicted
	ErrorTypeCatalog ErrorType = "catalog"
	// ErrorTypeStore represents relational store errors
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeValidation represents invalid caller input
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeContext represents context cancellation/timeout errors
	ErrorTypeContext ErrorType = "context"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// Kind returns the error category. Embedding types inherit it.
func (e *BaseError) Kind() ErrorType {
	return e.Type
}

func (e *BaseError) base() *BaseError {
	return e
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Graph Errors

// ErrGraphConnectionFailed is returned when Neo4j connection fails
type ErrGraphConnectionFailed struct {
	*BaseError
	URI string
}

func NewGraphConnectionFailed(uri string, err error) *ErrGraphConnectionFailed {
	return &ErrGraphConnectionFailed{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("failed to connect to Neo4j: %s", uri), err),
		URI:       uri,
	}
}

// ErrGraphQueryFailed is returned when a graph query fails
type ErrGraphQueryFailed struct {
	*BaseError
	Operation string
}

func NewGraphQueryFailed(operation string, err error) *ErrGraphQueryFailed {
	return &ErrGraphQueryFailed{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("query failed: %s", operation), err),
		Operation: operation,
	}
}

// ErrImportBatchFailed is returned when one batch of a bulk import fails.
// Batches before it have already been committed.
type ErrImportBatchFailed struct {
	*BaseError
	Entity    string
	Batch     int
	Committed int
}

func NewImportBatchFailed(kind string, batch, committed int, err error) *ErrImportBatchFailed {
	return &ErrImportBatchFailed{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("%s batch %d failed (%d batches committed)", kind, batch, committed), err),
		Entity:    kind,
		Batch:     batch,
		Committed: committed,
	}
}

// Catalog Errors

// ErrCatalogBaseNotFound is returned when a user has no catalog base of that name
type ErrCatalogBaseNotFound struct {
	*BaseError
	Username string
	Base     string
}

func NewCatalogBaseNotFound(username, base string) *ErrCatalogBaseNotFound {
	return &ErrCatalogBaseNotFound{
		BaseError: NewBaseError(ErrorTypeCatalog, fmt.Sprintf("catalog base not found: %s/%s", username, base), nil),
		Username:  username,
		Base:      base,
	}
}

// ErrCatalogExtensionNotFound is returned when a base has no extension of that name
type ErrCatalogExtensionNotFound struct {
	*BaseError
	Base      string
	Extension string
}

func NewCatalogExtensionNotFound(base, extension string) *ErrCatalogExtensionNotFound {
	return &ErrCatalogExtensionNotFound{
		BaseError: NewBaseError(ErrorTypeCatalog, fmt.Sprintf("catalog extension not found: %s/%s", base, extension), nil),
		Base:      base,
		Extension: extension,
	}
}

// ErrCatalogBaseExists is returned when creating a base the user already owns
type ErrCatalogBaseExists struct {
	*BaseError
	Username string
	Base     string
}

func NewCatalogBaseExists(username, base string) *ErrCatalogBaseExists {
	return &ErrCatalogBaseExists{
		BaseError: NewBaseError(ErrorTypeCatalog, fmt.Sprintf("catalog base already exists: %s/%s", username, base), nil),
		Username:  username,
		Base:      base,
	}
}

// ErrArticleNotFound is returned when no article node has the DOI
type ErrArticleNotFound struct {
	*BaseError
	DOI string
}

func NewArticleNotFound(doi string) *ErrArticleNotFound {
	return &ErrArticleNotFound{
		BaseError: NewBaseError(ErrorTypeCatalog, fmt.Sprintf("article not found: %s", doi), nil),
		DOI:       doi,
	}
}

// Store Errors

// ErrStoreOperationFailed is returned when a relational store operation fails
type ErrStoreOperationFailed struct {
	*BaseError
	Operation string
}

func NewStoreOperationFailed(operation string, err error) *ErrStoreOperationFailed {
	return &ErrStoreOperationFailed{
		BaseError: NewBaseError(ErrorTypeStore, fmt.Sprintf("store operation failed: %s", operation), err),
		Operation: operation,
	}
}

// Validation Errors

// ErrInvalidArgument is returned when a required argument is empty or malformed
type ErrInvalidArgument struct {
	*BaseError
	Field  string
	Reason string
}

func NewInvalidArgument(field, reason string) *ErrInvalidArgument {
	return &ErrInvalidArgument{
		BaseError: NewBaseError(ErrorTypeValidation, fmt.Sprintf("invalid %s: %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// Context Errors

// ErrContextCancelled is returned when context is cancelled
type ErrContextCancelled struct {
	*BaseError
	Operation string
}

func NewContextCancelled(operation string, err error) *ErrContextCancelled {
	return &ErrContextCancelled{
		BaseError: NewBaseError(ErrorTypeContext, fmt.Sprintf("context cancelled: %s", operation), err),
		Operation: operation,
	}
}

// Config Errors

// ErrConfigValidationFailed is returned when configuration validation fails
type ErrConfigValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewConfigValidationFailed(field, reason string) *ErrConfigValidationFailed {
	return &ErrConfigValidationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("config validation failed: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Helper functions

type kinded interface {
	Kind() ErrorType
}

// IsErrorType checks if an error, or any error it wraps, is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	for err != nil {
		if k, ok := err.(kinded); ok && k.Kind() == errType {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// PublicMessage returns the message of the first typed error in err's chain,
// without the type prefix or wrapped cause.
func PublicMessage(err error) string {
	for e := err; e != nil; e = stderrors.Unwrap(e) {
		if b, ok := e.(interface{ base() *BaseError }); ok {
			return b.base().Message
		}
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// WrapContext converts context cancellation into a typed context error and
// returns any other error unchanged.
func WrapContext(operation string, err error) error {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return NewContextCancelled(operation, err)
	}
	return err
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	// Context errors are not retryable
	if IsErrorType(err, ErrorTypeContext) {
		return false
	}
	var connErr *ErrGraphConnectionFailed
	return stderrors.As(err, &connErr)
}
