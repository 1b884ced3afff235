package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teambition/rrule-go"
)

func TestNextDigest(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	rule, err := rrule.NewRRule(rrule.ROption{Freq: rrule.DAILY, Dtstart: start, Count: 3})
	require.NoError(t, err)

	next, ok := NextDigest(rule, start.Add(time.Hour))
	require.True(t, ok)
	assert.Equal(t, start.AddDate(0, 0, 1), next)

	_, ok = NextDigest(rule, start.AddDate(0, 0, 2))
	assert.False(t, ok, "rule is exhausted after its last occurrence")
}

func TestRunDigest_EmitsThenStopsWhenExhausted(t *testing.T) {
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.SECONDLY,
		Dtstart: time.Now().Add(1100 * time.Millisecond),
		Count:   1,
	})
	require.NoError(t, err)

	var got []Digest
	done := make(chan struct{})
	go func() {
		defer close(done)
		RunDigest(context.Background(), rule,
			func(at time.Time) Digest { return Digest{At: at, UnreadNotifications: 2, UnreadMessages: 5} },
			func(d Digest) { got = append(got, d) })
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("RunDigest did not return after the last occurrence")
	}

	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].UnreadNotifications)
	assert.Equal(t, 5, got[0].UnreadMessages)
}

func TestRunDigest_StopsOnCancel(t *testing.T) {
	rule, err := rrule.NewRRule(rrule.ROption{Freq: rrule.YEARLY, Dtstart: time.Now().AddDate(1, 0, 0)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		RunDigest(ctx, rule, func(time.Time) Digest { return Digest{} }, func(Digest) {
			t.Error("no digest expected before cancel")
		})
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunDigest ignored cancellation")
	}
}
