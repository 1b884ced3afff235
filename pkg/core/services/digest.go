package services

import (
	"context"
	"time"

	"github.com/teambition/rrule-go"
)

// Digest summarises what is waiting for the user
type Digest struct {
	At                  time.Time
	UnreadNotifications int
	UnreadMessages      int
}

// NextDigest returns the first occurrence of rule strictly after now.
// ok is false once the rule has no further occurrences.
func NextDigest(rule *rrule.RRule, now time.Time) (next time.Time, ok bool) {
	next = rule.After(now, false)
	return next, !next.IsZero()
}

// RunDigest calls build at every occurrence of rule and passes the result to emit.
// It returns when ctx is done or the rule is exhausted.
func RunDigest(ctx context.Context, rule *rrule.RRule, build func(at time.Time) Digest, emit func(Digest)) {
	for {
		next, ok := NextDigest(rule, time.Now())
		if !ok {
			return
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			emit(build(next))
		}
	}
}
