package namespace

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/masstor/namespacedb/proto"
)

func TestDirectoryStream(t *testing.T) {
	d, ctx := newTestDriver(t)

	dir, err := d.Mkdir(ctx, proto.RootID, "d", 0, 0, 0o755)
	require.NoError(t, err)
	f1, err := d.CreateFile(ctx, dir, "f1", 1, 2, 0o644, proto.SIFREG)
	require.NoError(t, err)
	_, err = d.Mkdir(ctx, dir, "sub", 0, 0, 0o755)
	require.NoError(t, err)

	stream, err := d.NewDirectoryStream(ctx, dir)
	require.NoError(t, err)
	defer stream.Close()

	entries := make(map[string]*proto.Stat)
	for {
		entry, err := stream.Next()
		require.NoError(t, err)
		if entry == nil {
			break
		}
		entries[entry.Name] = entry.Stat
	}

	// the '.' and '..' self references never show up
	require.Len(t, entries, 2)
	require.Equal(t, f1, entries["f1"].ID)
	require.Equal(t, 1, entries["f1"].UID)
	require.Equal(t, 2, entries["f1"].GID)
	require.True(t, entries["f1"].IsRegular())
	require.True(t, entries["sub"].IsDirectory())
}

func TestDirectoryStreamEmpty(t *testing.T) {
	d, ctx := newTestDriver(t)

	dir, err := d.Mkdir(ctx, proto.RootID, "d", 0, 0, 0o755)
	require.NoError(t, err)

	stream, err := d.NewDirectoryStream(ctx, dir)
	require.NoError(t, err)

	entry, err := stream.Next()
	require.NoError(t, err)
	require.Nil(t, entry)
	require.NoError(t, stream.Close())
}
