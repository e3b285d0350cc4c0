package core

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyInput      = errors.New("no stock series to compute")
	ErrDuplicateSymbol = errors.New("symbol appears more than once")
	ErrNoOverlap       = errors.New("price series share no trading days")
	ErrDegenerateFit   = errors.New("benchmark returns have no variance, beta is undefined")
	ErrUnknownColumn   = errors.New("column not present in return table")
	ErrInvalidPrice    = errors.New("price series cannot be normalized")
	ErrUpstreamData    = errors.New("upstream market data unavailable")

	ErrInvalidParameter = errors.New("invalid request parameter")
)

// UpstreamDataError is a failure of a market data source for one symbol.
// errors.Is matches both ErrUpstreamData and the wrapped source error.
type UpstreamDataError struct {
	Symbol string
	Err    error
}

func (e *UpstreamDataError) Error() string {
	return fmt.Sprintf("market data for %s unavailable: %v", e.Symbol, e.Err)
}

func (e *UpstreamDataError) Unwrap() []error {
	return []error{ErrUpstreamData, e.Err}
}
