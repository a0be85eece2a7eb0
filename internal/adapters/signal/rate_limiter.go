package signal

import "golang.org/x/time/rate"

// FrameLimiter caps inbound frames for one connection. A zero rate disables it.
type FrameLimiter struct {
	lim *rate.Limiter
}

func NewFrameLimiter(perSecond float64, burst int) *FrameLimiter {
	if perSecond <= 0 {
		return &FrameLimiter{}
	}
	if burst < 1 {
		burst = 1
	}
	return &FrameLimiter{lim: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (l *FrameLimiter) Allow() bool {
	if l == nil || l.lim == nil {
		return true
	}
	return l.lim.Allow()
}
