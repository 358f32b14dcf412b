package marketdata

import (
	"fmt"
	"time"
)

// RetryPolicy bounds the network-call wrapper inside the client. It is an
// explicit parameter, not an ambient default: callers decide how persistent
// a fetch should be.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	Multiplier     float64
}

// DefaultRetryPolicy returns the standard fetch retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 250 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func (p RetryPolicy) validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be >= 1")
	}
	if p.MaxAttempts > 1 && p.InitialBackoff <= 0 {
		return fmt.Errorf("initial backoff must be positive when retrying")
	}
	if p.MaxAttempts > 1 && p.Multiplier < 1.0 {
		return fmt.Errorf("multiplier must be >= 1.0")
	}
	return nil
}
