package channel

import "time"

// Backoff computes reconnect delays that double per failed attempt.
type Backoff struct {
	// Initial is the delay unit. The first retry waits twice this.
	Initial time.Duration

	// Max caps every delay.
	Max time.Duration
}

// DefaultBackoff retries after 2s, 4s, 8s, 16s and then every 30s.
var DefaultBackoff = Backoff{Initial: time.Second, Max: 30 * time.Second}

// Delay returns the wait before reconnecting when attempt retries have
// already been scheduled since the last successful open:
//
//	min(Initial * 2^(attempt+1), Max)
//
// Large attempt counts saturate at Max instead of overflowing.
func (b Backoff) Delay(attempt int) time.Duration {
	b = b.normalised()
	if attempt < 0 {
		attempt = 0
	}

	d := b.Initial
	for range attempt + 1 {
		if d > b.Max/2 {
			return b.Max
		}
		d *= 2
	}
	return min(d, b.Max)
}

func (b Backoff) normalised() Backoff {
	if b.Initial <= 0 {
		b.Initial = DefaultBackoff.Initial
	}
	if b.Max <= 0 {
		b.Max = DefaultBackoff.Max
	}
	if b.Max < b.Initial {
		b.Max = b.Initial
	}
	return b
}
