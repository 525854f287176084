package sidetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeakSlotLive(t *testing.T) {
	p := &payload{label: "live", value: 42}
	s := Weak(p)

	got, ok := s.Value()
	require.True(t, ok)
	assert.Same(t, p, got)
	assert.True(t, s.Alive())

	v, ok := s.load()
	require.True(t, ok)
	assert.Same(t, p, v)
}

func TestWeakSlotNil(t *testing.T) {
	s := Weak[payload](nil)

	got, ok := s.Value()
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.False(t, s.Alive())
}

var globalPayload = payload{label: "global"}

func TestWeakSlotGlobalTarget(t *testing.T) {
	s := Weak(&globalPayload)

	got, ok := s.Value()
	require.True(t, ok)
	assert.Same(t, &globalPayload, got)
}

func TestWeakSlotZeroSizePanics(t *testing.T) {
	assert.PanicsWithValue(t, "sidetable: zero-size weak target", func() {
		Weak(&struct{}{})
	})
	assert.PanicsWithValue(t, "sidetable: zero-size weak target", func() {
		Weak[struct{}](nil)
	})
}

func TestWeakSlotDeadStaysDead(t *testing.T) {
	s := func() WeakSlot[payload] {
		return Weak(&payload{label: "short lived"})
	}()

	eventuallyCollected(t, func() bool { return !s.Alive() })

	got, ok := s.Value()
	assert.False(t, ok)
	assert.Nil(t, got)

	_, ok = s.load()
	assert.False(t, ok)
}

func TestWeakSlotDoesNotKeepTargetAlive(t *testing.T) {
	var slots []WeakSlot[payload]
	for i := 0; i < 8; i++ {
		slots = append(slots, Weak(&payload{label: "p", value: i}))
	}

	eventuallyCollected(t, func() bool {
		for _, s := range slots {
			if s.Alive() {
				return false
			}
		}
		return true
	})
}
