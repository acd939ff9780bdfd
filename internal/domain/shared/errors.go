package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// ValidationError reports input rejected by a business rule: overpayment,
// future-dated payment, invalid date ordering, mutation of a cancelled
// invoice. Always returned to the caller synchronously, never retried.
type ValidationError struct {
	DomainError
}

// NewValidationError creates a new validation error
func NewValidationError(code, message string) *ValidationError {
	return &ValidationError{DomainError{Code: code, Message: message}}
}

// ConsistencyError reports stored derived state that disagrees with the
// rows it is derived from. It is fatal for the affected invoice's
// operation and must never be silently repaired.
type ConsistencyError struct {
	DomainError
}

// NewConsistencyError creates a new consistency error
func NewConsistencyError(code, message string) *ConsistencyError {
	return &ConsistencyError{DomainError{Code: code, Message: message}}
}

// ConfigurationError reports malformed configuration. It fails the whole
// operation at startup rather than per item.
type ConfigurationError struct {
	DomainError
}

// NewConfigurationError creates a new configuration error
func NewConfigurationError(code, message string) *ConfigurationError {
	return &ConfigurationError{DomainError{Code: code, Message: message}}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
)
