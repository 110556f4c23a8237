package srs

import (
	"fmt"
	"time"
)

// Default policy constants.
const (
	day = 24 * time.Hour

	defaultAgainInterval  = day
	defaultBaseInterval   = day
	defaultMinInterval    = day
	defaultHardMultiplier = 1.2
	defaultGoodMultiplier = 2.0
	defaultEasyMultiplier = 3.0
)

// Policy holds the review interval constants. The multipliers are a simple
// heuristic backoff, not SM-2.
type Policy struct {
	AgainInterval  time.Duration
	BaseInterval   time.Duration
	MinInterval    time.Duration
	MaxInterval    time.Duration // 0 disables the cap
	HardMultiplier float64
	GoodMultiplier float64
	EasyMultiplier float64
}

// DefaultPolicy returns the default review policy.
func DefaultPolicy() Policy {
	return Policy{
		AgainInterval:  defaultAgainInterval,
		BaseInterval:   defaultBaseInterval,
		MinInterval:    defaultMinInterval,
		HardMultiplier: defaultHardMultiplier,
		GoodMultiplier: defaultGoodMultiplier,
		EasyMultiplier: defaultEasyMultiplier,
	}
}

// Validate checks the policy keeps easy strictly above good.
func (p Policy) Validate() error {
	switch {
	case p.AgainInterval <= 0, p.BaseInterval <= 0, p.MinInterval <= 0:
		return fmt.Errorf("%w: intervals must be positive", ErrInvalidPolicy)
	case p.MaxInterval < 0:
		return fmt.Errorf("%w: max interval must not be negative", ErrInvalidPolicy)
	case p.MaxInterval > 0 && p.MaxInterval < p.MinInterval:
		return fmt.Errorf("%w: max interval below min interval", ErrInvalidPolicy)
	case p.HardMultiplier < 1:
		return fmt.Errorf("%w: hard multiplier must be >= 1", ErrInvalidPolicy)
	case p.GoodMultiplier < 1:
		return fmt.Errorf("%w: good multiplier must be >= 1", ErrInvalidPolicy)
	case p.EasyMultiplier <= p.GoodMultiplier:
		return fmt.Errorf("%w: easy multiplier must exceed good multiplier", ErrInvalidPolicy)
	}
	return nil
}
