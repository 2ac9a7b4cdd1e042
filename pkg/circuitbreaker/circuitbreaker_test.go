package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestCircuitBreaker(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker(Settings{
		Name:        "redis-broker",
		MaxFailures: 2,
		Timeout:     time.Second,
		Now:         clock.now,
	})
	boom := errors.New("boom")

	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)

	clock.t = clock.t.Add(2 * time.Second)
	assert.Equal(t, StateHalfOpen, cb.State())

	assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
	assert.Equal(t, StateOpen, cb.State())

	clock.t = clock.t.Add(2 * time.Second)
	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "test", MaxFailures: 2})
	boom := errors.New("boom")

	_ = cb.Execute(func() error { return boom })
	_ = cb.Execute(func() error { return nil })
	_ = cb.Execute(func() error { return boom })

	assert.Equal(t, StateClosed, cb.State())
}
