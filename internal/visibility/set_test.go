package visibility

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddPendingIdempotent(t *testing.T) {
	s := New(nil)

	assert.True(t, s.AddPending("main.users", "main.orders"))
	assert.False(t, s.AddPending("main.users"))
	assert.False(t, s.AddPending("main.users", "main.orders"))

	assert.Equal(t, []string{"main.orders", "main.users"}, s.Snapshot())
	assert.Equal(t, 2, s.Len())
}

func TestRemovePendingIdempotent(t *testing.T) {
	s := New(nil)
	s.AddPending("main.users", "main.orders")

	assert.True(t, s.RemovePending("main.users"))
	assert.False(t, s.RemovePending("main.users"))
	assert.False(t, s.RemovePending("ghost"))

	assert.False(t, s.IsPending("main.users"))
	assert.True(t, s.IsPending("main.orders"))
}

func TestSyncWithVisible(t *testing.T) {
	s := New(nil)
	s.AddPending("a", "b", "c")

	assert.True(t, s.SyncWithVisible([]string{"b", "d"}))
	assert.Equal(t, []string{"b", "d"}, s.Snapshot())

	// Same membership, different order: no change.
	assert.False(t, s.SyncWithVisible([]string{"d", "b"}))
}

func TestSyncWithVisibleEmptyEmpties(t *testing.T) {
	s := New(nil)
	s.AddPending("a", "b")

	assert.True(t, s.SyncWithVisible(nil))
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Snapshot())

	assert.False(t, s.SyncWithVisible([]string{}))
}

func TestObserverFiresOncePerChangingCall(t *testing.T) {
	var fired int
	s := New(func() { fired++ })

	s.AddPending("a", "b", "c") // one call, one notification
	assert.Equal(t, 1, fired)

	s.AddPending("a") // no change, no notification
	assert.Equal(t, 1, fired)

	s.RemovePending("ghost")
	assert.Equal(t, 1, fired)

	s.SyncWithVisible([]string{"a", "b", "c"}) // same membership
	assert.Equal(t, 1, fired)

	s.SyncWithVisible([]string{"a"})
	assert.Equal(t, 2, fired)
}

func TestObserverMayReadSet(t *testing.T) {
	var seen []string
	s := New(nil)
	s.onChange = func() { seen = s.Snapshot() }

	s.AddPending("x")
	assert.Equal(t, []string{"x"}, seen)
}
