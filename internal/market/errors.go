package market

import (
	"errors"
	"fmt"
)

// ErrNoData signals an empty or too-short price history. Callers must
// surface it immediately instead of producing an empty result.
var ErrNoData = errors.New("no price data")

// NoDataErrorf wraps ErrNoData with context so errors.Is keeps working.
func NoDataErrorf(format string, v ...any) error {
	return fmt.Errorf(format+": %w", append(v, ErrNoData)...)
}
