package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// SplitType selects the rule used to divide an expense among participants.
type SplitType string

const (
	SplitEqual      SplitType = "EQUAL"
	SplitExact      SplitType = "EXACT"
	SplitPercentage SplitType = "PERCENTAGE"
	SplitShares     SplitType = "SHARES"
)

var (
	ErrUnknownSplitType  = errors.New("split type must be one of EQUAL, EXACT, PERCENTAGE, SHARES")
	ErrNegativeExact     = errors.New("exact amount cannot be negative")
	ErrPercentageRange   = errors.New("percentage must be greater than 0 and at most 100")
	ErrNonPositiveShares = errors.New("share count must be at least 1")
)

// ParseSplitType parses a split type name case-insensitively.
func ParseSplitType(s string) (SplitType, error) {
	switch t := SplitType(strings.ToUpper(strings.TrimSpace(s))); t {
	case SplitEqual, SplitExact, SplitPercentage, SplitShares:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSplitType, s)
	}
}

// Share is the strategy-specific payload of one participant. Exactly one variant is
// active per participant and it can only be built through the constructors below.
type Share interface {
	Strategy() SplitType
	isShare()
}

// EqualShare carries no parameters; the amount is derived from the participant count.
type EqualShare struct{}

// ExactShare is a participant-supplied amount in minor units.
type ExactShare struct{ amount int64 }

// PercentageShare is a participant-supplied percentage of the expense amount.
type PercentageShare struct{ pct decimal.Decimal }

// SharesShare is a participant-supplied positive weight.
type SharesShare struct{ count int64 }

func (EqualShare) Strategy() SplitType      { return SplitEqual }
func (ExactShare) Strategy() SplitType      { return SplitExact }
func (PercentageShare) Strategy() SplitType { return SplitPercentage }
func (SharesShare) Strategy() SplitType     { return SplitShares }

func (EqualShare) isShare()      {}
func (ExactShare) isShare()      {}
func (PercentageShare) isShare() {}
func (SharesShare) isShare()     {}

// NewExactShare returns an EXACT payload. Zero is allowed (participant owes nothing).
func NewExactShare(minor int64) (ExactShare, error) {
	if minor < 0 {
		return ExactShare{}, ErrNegativeExact
	}
	return ExactShare{amount: minor}, nil
}

// NewPercentageShare returns a PERCENTAGE payload in the range (0, 100].
func NewPercentageShare(pct decimal.Decimal) (PercentageShare, error) {
	if !pct.IsPositive() || pct.GreaterThan(decimal.NewFromInt(100)) {
		return PercentageShare{}, ErrPercentageRange
	}
	return PercentageShare{pct: pct}, nil
}

// NewSharesShare returns a SHARES payload.
func NewSharesShare(count int64) (SharesShare, error) {
	if count < 1 {
		return SharesShare{}, ErrNonPositiveShares
	}
	return SharesShare{count: count}, nil
}

func (s ExactShare) Amount() int64                 { return s.amount }
func (s PercentageShare) Percent() decimal.Decimal { return s.pct }
func (s SharesShare) Count() int64                 { return s.count }

// Participant is one user taking part in an expense together with their split payload.
type Participant struct {
	UserID string
	Share  Share
}
