package sync

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadStateMissingFileIsEmpty(t *testing.T) {
	state := LoadState(filepath.Join(t.TempDir(), "nope.json"))

	assert.Empty(t, state)
}

func TestLoadStateCorruptFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prune_state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	state := LoadState(path)

	assert.Empty(t, state)
}

func TestLoadStateDropsUnparseableTimestamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prune_state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"good":"2026-08-01T10:00:00Z","bad":"yesterday"}`), 0o644))

	state := LoadState(path)

	assert.Len(t, state, 1)
	assert.Equal(t, time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC), state["good"])
}

func TestStateSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prune_state.json")
	lastSeen := time.Date(2026, 8, 29, 12, 30, 0, 0, time.UTC)

	require.NoError(t, GraceState{"foo": lastSeen}.Save(path))
	state := LoadState(path)

	assert.Equal(t, GraceState{"foo": lastSeen}, state)
}

func TestStateSaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prune_state.json")
	stamp := time.Date(2026, 8, 29, 12, 30, 0, 0, time.UTC)

	require.NoError(t, GraceState{"old": stamp}.Save(path))
	require.NoError(t, GraceState{"new": stamp}.Save(path))

	state := LoadState(path)
	assert.Len(t, state, 1)
	_, found := state["old"]
	assert.False(t, found, "save replaces the whole document")
}
