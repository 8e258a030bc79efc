package calc

import (
	"math"
	"time"
)

// BackoffConfig shapes the accept-retry schedule: the first delay is Unit
// and doubles each retry; a computed delay above Ceiling is fatal rather
// than slept.
type BackoffConfig struct {
	Unit    time.Duration
	Ceiling time.Duration
}

func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Unit:    time.Second,
		Ceiling: 64 * time.Second,
	}
}

func (c BackoffConfig) WithDefaults() BackoffConfig {
	def := DefaultBackoffConfig()
	if c.Unit <= 0 {
		c.Unit = def.Unit
	}
	if c.Ceiling <= 0 {
		c.Ceiling = def.Ceiling
	}
	return c
}

// NextAcceptDelay returns the delay before retry attempt (1-based). The
// schedule doubles without capping; the caller compares the result against
// Ceiling to decide fatality.
func NextAcceptDelay(cfg BackoffConfig, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	shift := uint(attempt - 1)
	// Past 62 doublings an int64 duration overflows; any usable ceiling is
	// crossed long before that.
	if shift >= 63 || cfg.Unit > math.MaxInt64>>shift {
		return time.Duration(math.MaxInt64)
	}
	return cfg.Unit << shift
}
