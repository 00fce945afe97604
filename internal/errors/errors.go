// Package errors provides custom error types for domain-specific errors.
//
// The engine favors deterministic degradation over errors: input
// insufficiency and configuration inconsistency are absorbed locally with a
// reasoning trail. Only unrecoverable data defects surface as errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrLayerInactive     = errors.New("layer is inactive")
	ErrRunNotInitialized = errors.New("backtest not initialized")
	ErrDataNotFound      = errors.New("data not found")
)

// DataError represents an unrecoverable data defect, such as a bar sequence
// with non-monotonic timestamps. This is the only error class that aborts a
// backtest run.
type DataError struct {
	Symbol  string
	Index   int
	Message string
	Err     error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] record %d: %s: %v", e.Symbol, e.Index, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] record %d: %s", e.Symbol, e.Index, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(symbol string, index int, message string, err error) *DataError {
	return &DataError{
		Symbol:  symbol,
		Index:   index,
		Message: message,
		Err:     err,
	}
}

// ConfigError represents an invalid engine or layer configuration.
type ConfigError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field string, value interface{}, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// RiskError records a risk-limit breach. The backtest engine clips rather
// than aborts on these: the error's fields feed the run's clip records and
// risk log, and it never travels up the call stack.
type RiskError struct {
	Rule    string
	Current float64
	Limit   float64
	Message string
}

func (e *RiskError) Error() string {
	return fmt.Sprintf("risk violation [%s]: %s (current: %.2f, limit: %.2f)", e.Rule, e.Message, e.Current, e.Limit)
}

// NewRiskError creates a new RiskError.
func NewRiskError(rule string, current, limit float64, message string) *RiskError {
	return &RiskError{
		Rule:    rule,
		Current: current,
		Limit:   limit,
		Message: message,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
