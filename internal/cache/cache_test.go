package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_GetAfterSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	require.NoError(t, c.Set(ctx, "k", []byte("v1")))
	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v1"), got)

	// overwrite is unconditional
	require.NoError(t, c.Set(ctx, "k", []byte("v2")))
	got, _, _ = c.Get(ctx, "k")
	assert.Equal(t, []byte("v2"), got)
	assert.Equal(t, 1, c.Len())
}

func TestMemory_MissOnUnsetKey(t *testing.T) {
	got, ok, err := NewMemory().Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestMemory_RecordsInsertionTime(t *testing.T) {
	c := NewMemory()
	fixed := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	require.NoError(t, c.Set(context.Background(), "k", []byte("v")))
	e, ok := c.Entry("k")
	require.True(t, ok)
	assert.Equal(t, fixed, e.InsertedAt)
	assert.Equal(t, "k", e.Key)
}

func TestMemory_ValueIsCopied(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	buf := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", buf))
	buf[0] = 'z'

	got, _, _ := c.Get(ctx, "k")
	assert.Equal(t, "abc", string(got))
}

type briefResult struct {
	Brief string   `json:"brief"`
	Slots []string `json:"slots"`
}

func TestTyped_RoundTrip(t *testing.T) {
	ctx := context.Background()
	typed := NewTyped[briefResult](NewMemory())

	_, ok, err := typed.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	want := briefResult{Brief: "# CORE BRIEF 2026-10-19", Slots: []string{"CORE-AAPL"}}
	require.NoError(t, typed.Set(ctx, "k", want))

	got, ok, err := typed.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)
}

func TestTyped_CorruptValue(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	require.NoError(t, mem.Set(ctx, "k", []byte("{not json")))

	_, ok, err := NewTyped[briefResult](mem).Get(ctx, "k")
	assert.Error(t, err)
	assert.False(t, ok)
}
