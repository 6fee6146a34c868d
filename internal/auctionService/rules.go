package auction

import (
	"fmt"
	"time"
)

// Rules are the fixed auction parameters. They are configuration, never
// negotiated per bid.
type Rules struct {
	MinIncrement       int64         // a bid must beat the highest bid by at least this much
	ExtensionThreshold int           // late-bid floor, in ticks
	MirrorEvery        int           // mirror remaining time to the registry every N ticks
	TickPeriod         time.Duration // length of one countdown unit
	DefaultDuration    int           // ticks, used when start omits a duration
	SettlementRetries  int           // extra attempts for settlement writes
	RetryBackoff       time.Duration // wait between settlement attempts
}

// DefaultRules returns the rules the service ships with
func DefaultRules() Rules {
	return Rules{
		MinIncrement:       1000,
		ExtensionThreshold: 5,
		MirrorEvery:        5,
		TickPeriod:         time.Second,
		DefaultDuration:    30,
		SettlementRetries:  3,
		RetryBackoff:       200 * time.Millisecond,
	}
}

// Validate checks the rules are usable
func (r Rules) Validate() error {
	switch {
	case r.MinIncrement <= 0:
		return fmt.Errorf("min increment must be positive, got %d", r.MinIncrement)
	case r.ExtensionThreshold < 1:
		return fmt.Errorf("extension threshold must be at least 1, got %d", r.ExtensionThreshold)
	case r.MirrorEvery < 1:
		return fmt.Errorf("mirror cadence must be at least 1, got %d", r.MirrorEvery)
	case r.TickPeriod <= 0:
		return fmt.Errorf("tick period must be positive, got %s", r.TickPeriod)
	case r.DefaultDuration < 1:
		return fmt.Errorf("default duration must be at least 1, got %d", r.DefaultDuration)
	case r.SettlementRetries < 0:
		return fmt.Errorf("settlement retries cannot be negative, got %d", r.SettlementRetries)
	case r.RetryBackoff < 0:
		return fmt.Errorf("retry backoff cannot be negative, got %s", r.RetryBackoff)
	}
	return nil
}
