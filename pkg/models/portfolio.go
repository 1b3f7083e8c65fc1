package models

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidPosition is returned when a position fails validation.
var ErrInvalidPosition = errors.New("invalid position")

// Position is a user's holding of an instrument.
// CostBasis is the optional average cost per share.
type Position struct {
	Symbol    string              `json:"symbol"`
	Shares    int                 `json:"shares"`
	CostBasis decimal.NullDecimal `json:"cost_basis"`
}

// HasCost reports whether the position carries a cost basis.
func (p Position) HasCost() bool { return p.CostBasis.Valid }

// Validate checks the position's invariants.
func (p Position) Validate() error {
	if p.Symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidPosition)
	}
	if p.Shares <= 0 {
		return fmt.Errorf("%w: %s shares must be positive, got %d", ErrInvalidPosition, p.Symbol, p.Shares)
	}
	if p.CostBasis.Valid && p.CostBasis.Decimal.IsNegative() {
		return fmt.Errorf("%w: %s negative cost basis", ErrInvalidPosition, p.Symbol)
	}
	return nil
}

// Portfolio is the full set of a user's positions, replaced wholesale on update.
type Portfolio []Position

// Validate checks every position and rejects duplicate symbols.
func (pf Portfolio) Validate() error {
	seen := make(map[string]bool, len(pf))
	for _, p := range pf {
		if err := p.Validate(); err != nil {
			return err
		}
		if seen[p.Symbol] {
			return fmt.Errorf("%w: duplicate symbol %s", ErrInvalidPosition, p.Symbol)
		}
		seen[p.Symbol] = true
	}
	return nil
}
