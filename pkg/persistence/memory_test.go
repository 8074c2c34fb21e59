package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arkhold/ftpvault/pkg/model"
)

func TestMemoryInsertAppearsInCurrentTree(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	id, err := m.InsertFile(ctx, 1, model.File{FullName: "/a.txt", CRC32: 42}, 100)
	require.NoError(t, err)
	require.NotZero(t, id)

	tree, err := m.LoadCurrentTree(ctx, 1)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.Equal(t, "/a.txt", tree[0].FullName)
	require.Equal(t, uint32(42), tree[0].CRC32)
}

func TestMemoryDeleteDropsFromCurrentTree(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	id, err := m.InsertFile(ctx, 1, model.File{FullName: "/a.txt"}, 100)
	require.NoError(t, err)

	require.NoError(t, m.DeleteFile(ctx, 1, model.File{ID: id, FullName: "/a.txt"}, 200))

	tree, err := m.LoadCurrentTree(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, tree)
}

func TestMemoryLoadTreeAtRetainsDeletedWithStatus(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	id, err := m.InsertFile(ctx, 1, model.File{FullName: "/a.txt"}, 100)
	require.NoError(t, err)
	require.NoError(t, m.DeleteFile(ctx, 1, model.File{ID: id, FullName: "/a.txt"}, 200))

	entries, err := m.LoadTreeAt(ctx, 1, 300)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, model.Deleted, entries[0].Status)

	// Before the file ever existed, the target timePoint sees nothing.
	entries, err = m.LoadTreeAt(ctx, 1, 50)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestMemoryUpdateAppendsModifiedHistory(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	id, err := m.InsertFile(ctx, 1, model.File{FullName: "/a.txt", CRC32: 1}, 100)
	require.NoError(t, err)

	require.NoError(t, m.UpdateFile(ctx, 1, model.File{ID: id, FullName: "/a.txt", CRC32: 2}, 200))

	tree, err := m.LoadCurrentTree(ctx, 1)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.Equal(t, uint32(2), tree[0].CRC32)

	atOriginal, err := m.LoadTreeAt(ctx, 1, 150)
	require.NoError(t, err)
	require.Len(t, atOriginal, 1)
	require.Equal(t, model.Added, atOriginal[0].Status)
}
