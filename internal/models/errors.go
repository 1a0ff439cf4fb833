package models

import (
	"errors"
	"fmt"
)

var (
	ErrDataUnavailable  = errors.New("data unavailable")
	ErrExternalCall     = errors.New("external call failed")
	ErrConfigValidation = errors.New("invalid configuration")
	ErrSessionNotFound  = errors.New("no active session")
)

// TradingError wraps a failed exchange call.
type TradingError struct {
	Op     string
	Symbol string
	Err    error
}

func (e *TradingError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("exchange %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("exchange %s %s: %v", e.Op, e.Symbol, e.Err)
}

func (e *TradingError) Unwrap() error { return e.Err }

func (e *TradingError) Is(target error) bool { return target == ErrExternalCall }

// NewTradingError wraps err. An error that already carries a TradingError
// is returned as is, keeping the innermost operation.
func NewTradingError(op, symbol string, err error) error {
	if err == nil {
		return nil
	}
	var te *TradingError
	if errors.As(err, &te) {
		return err
	}
	return &TradingError{Op: op, Symbol: symbol, Err: err}
}
