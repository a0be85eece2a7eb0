package client

import "time"

// Backoff doubles from Initial on every consecutive failure, capped at Max.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	n       int
}

func NewBackoff(initial, ceiling time.Duration) Backoff {
	return Backoff{Initial: initial, Max: ceiling}
}

// Next returns min(Initial*2^n, Max) for the n failures seen so far.
func (b *Backoff) Next() time.Duration {
	d := b.Initial
	for i := 0; i < b.n && d < b.Max; i++ {
		if d > b.Max/2 {
			d = b.Max
			break
		}
		d *= 2
	}
	if d > b.Max {
		d = b.Max
	}
	b.n++
	return d
}

func (b *Backoff) Reset() { b.n = 0 }

func (b *Backoff) Failures() int { return b.n }
