package sidetable

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// widget is an owner type. The string field keeps it out of the tiny
// allocator so the collector frees it promptly.
type widget struct {
	name string
	n    int
}

type payload struct {
	label string
	value int
}

func newWidget(name string) *widget {
	return &widget{name: name}
}

// eventuallyCollected runs the collector until cond holds.
func eventuallyCollected(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		runtime.GC()
		return cond()
	}, 5*time.Second, 10*time.Millisecond)
}
