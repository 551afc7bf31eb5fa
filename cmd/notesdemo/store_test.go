package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *NoteStore {
	t.Helper()
	store, err := OpenNoteStore(filepath.Join(t.TempDir(), "notes.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestNoteStore(t *testing.T) {
	store := openTestStore(t)

	notes, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, notes)

	first, err := store.Create("first", "hello")
	require.NoError(t, err)
	second, err := store.Create("second", "")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.ID)
	assert.Equal(t, uint64(2), second.ID)

	got, err := store.Get(first.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Title)
	assert.Equal(t, "hello", got.Body)
	assert.True(t, first.Created.Equal(got.Created))
	assert.Equal(t, first.Created.Nanosecond(), got.Created.Nanosecond())

	notes, err = store.List()
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "first", notes[0].Title)
	assert.Equal(t, "second", notes[1].Title)

	require.NoError(t, store.Delete(first.ID))
	_, err = store.Get(first.ID)
	assert.ErrorIs(t, err, ErrNoteNotFound)
	assert.ErrorIs(t, store.Delete(first.ID), ErrNoteNotFound)
}
