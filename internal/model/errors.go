package model

import "fmt"

// InvalidInputError reports a value the math layer cannot work with.
type InvalidInputError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Reason)
}

// NewInvalidInput builds an InvalidInputError.
func NewInvalidInput(field string, value interface{}, reason string) error {
	return &InvalidInputError{Field: field, Value: value, Reason: reason}
}

// ChainUnavailableError wraps an RPC or read failure.
type ChainUnavailableError struct {
	Op  string
	Err error
}

func (e *ChainUnavailableError) Error() string {
	return fmt.Sprintf("chain unavailable: %s: %v", e.Op, e.Err)
}

func (e *ChainUnavailableError) Unwrap() error { return e.Err }

// TransactionFailedError reports a reverted, dropped or timed out transaction.
type TransactionFailedError struct {
	Op     string
	TxHash string
	Err    error
}

func (e *TransactionFailedError) Error() string {
	if e.TxHash == "" {
		return fmt.Sprintf("transaction %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transaction %s failed (tx %s): %v", e.Op, e.TxHash, e.Err)
}

func (e *TransactionFailedError) Unwrap() error { return e.Err }

// ConfigurationError reports missing or inconsistent configuration.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s: %s", e.Key, e.Reason)
}

// NewConfigurationError builds a ConfigurationError.
func NewConfigurationError(key, reason string) error {
	return &ConfigurationError{Key: key, Reason: reason}
}
