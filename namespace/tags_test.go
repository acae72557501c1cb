package namespace

import (
	"testing"

	"github.com/stretchr/testify/require"

	apierrors "github.com/masstor/namespacedb/errors"
	"github.com/masstor/namespacedb/proto"
)

func TestTagInheritanceAndCopyOnWrite(t *testing.T) {
	d, ctx := newTestDriver(t)

	d1, err := d.MkdirWith(ctx, proto.RootID, "d1", 0, 0, 0o755, nil,
		map[string][]byte{"X": []byte("v1")})
	require.NoError(t, err)

	owner, err := d.IsTagOwner(ctx, d1, "X")
	require.NoError(t, err)
	require.True(t, owner)

	// the tag-copying mkdir shares the tag value structurally
	d2, err := d.Mkdir(ctx, d1, "d2", 0, 0, 0o755)
	require.NoError(t, err)
	require.NoError(t, d.CopyTags(ctx, d1, d2))

	buf := make([]byte, 16)
	n, err := d.GetTag(ctx, d2, "X", buf)
	require.NoError(t, err)
	require.Equal(t, "v1", string(buf[:n]))

	owner, err = d.IsTagOwner(ctx, d2, "X")
	require.NoError(t, err)
	require.False(t, owner)

	id1, err := d.GetTagID(ctx, d1, "X")
	require.NoError(t, err)
	id2, err := d.GetTagID(ctx, d2, "X")
	require.NoError(t, err)
	require.Equal(t, id1, id2)

	// a write to the inherited tag detaches it from the origin
	_, err = d.SetTag(ctx, d2, "X", []byte("v2"))
	require.NoError(t, err)

	n, err = d.GetTag(ctx, d1, "X", buf)
	require.NoError(t, err)
	require.Equal(t, "v1", string(buf[:n]))

	n, err = d.GetTag(ctx, d2, "X", buf)
	require.NoError(t, err)
	require.Equal(t, "v2", string(buf[:n]))

	owner, err = d.IsTagOwner(ctx, d2, "X")
	require.NoError(t, err)
	require.True(t, owner)

	id2, err = d.GetTagID(ctx, d2, "X")
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)
}

func TestSetTagOnOriginKeepsTagID(t *testing.T) {
	d, ctx := newTestDriver(t)

	dir, err := d.MkdirWith(ctx, proto.RootID, "d", 0, 0, 0o755, nil,
		map[string][]byte{"X": []byte("v1")})
	require.NoError(t, err)

	before, err := d.GetTagID(ctx, dir, "X")
	require.NoError(t, err)

	_, err = d.SetTag(ctx, dir, "X", []byte("v2"))
	require.NoError(t, err)

	after, err := d.GetTagID(ctx, dir, "X")
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestTagsAndGetAllTags(t *testing.T) {
	d, ctx := newTestDriver(t)

	dir, err := d.MkdirWith(ctx, proto.RootID, "d", 0, 0, 0o755, nil,
		map[string][]byte{"X": []byte("v1"), "Y": []byte("v2")})
	require.NoError(t, err)

	names, err := d.Tags(ctx, dir)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"X", "Y"}, names)

	all, err := d.GetAllTags(ctx, dir)
	require.NoError(t, err)
	require.Equal(t, map[string][]byte{"X": []byte("v1"), "Y": []byte("v2")}, all)
}

func TestCreateTagStartsEmpty(t *testing.T) {
	d, ctx := newTestDriver(t)

	dir, err := d.Mkdir(ctx, proto.RootID, "d", 0, 0, 0o755)
	require.NoError(t, err)
	require.NoError(t, d.CreateTag(ctx, dir, "X", 7, 8, 0o640))

	stat, err := d.StatTag(ctx, dir, "X")
	require.NoError(t, err)
	require.Equal(t, int64(0), stat.Size)
	require.Equal(t, 7, stat.UID)
	require.Equal(t, 8, stat.GID)
	require.Equal(t, uint32(0o640|proto.SIFREG), stat.Mode)

	// an unwritten tag value is absent from GetAllTags
	all, err := d.GetAllTags(ctx, dir)
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestTagOwnershipUpdates(t *testing.T) {
	d, ctx := newTestDriver(t)

	dir, err := d.MkdirWith(ctx, proto.RootID, "d", 0, 0, 0o755, nil,
		map[string][]byte{"X": []byte("v")})
	require.NoError(t, err)

	require.NoError(t, d.SetTagOwner(ctx, dir, "X", 123))
	require.NoError(t, d.SetTagOwnerGroup(ctx, dir, "X", 456))
	require.NoError(t, d.SetTagMode(ctx, dir, "X", 0o600))

	stat, err := d.StatTag(ctx, dir, "X")
	require.NoError(t, err)
	require.Equal(t, 123, stat.UID)
	require.Equal(t, 456, stat.GID)
	require.Equal(t, uint32(0o600), stat.Mode&proto.SPerms)
}

func TestRemoveTagsSweepsUnreferencedValues(t *testing.T) {
	d, ctx := newTestDriver(t)

	d1, err := d.MkdirWith(ctx, proto.RootID, "d1", 0, 0, 0o755, nil,
		map[string][]byte{"X": []byte("v")})
	require.NoError(t, err)
	d2, err := d.Mkdir(ctx, d1, "d2", 0, 0, 0o755)
	require.NoError(t, err)
	require.NoError(t, d.CopyTags(ctx, d1, d2))

	// d2 still references the shared value, so it must survive
	require.NoError(t, d.RemoveTags(ctx, d1))
	var n int
	require.NoError(t, d.db.NewRaw("SELECT count(*) FROM t_tags_inodes").Scan(ctx, &n))
	require.Equal(t, 1, n)

	buf := make([]byte, 8)
	got, err := d.GetTag(ctx, d2, "X", buf)
	require.NoError(t, err)
	require.Equal(t, "v", string(buf[:got]))

	// the last reference takes the value with it
	require.NoError(t, d.RemoveTags(ctx, d2))
	require.NoError(t, d.db.NewRaw("SELECT count(*) FROM t_tags_inodes").Scan(ctx, &n))
	require.Equal(t, 0, n)
}

func TestStatTagMissing(t *testing.T) {
	d, ctx := newTestDriver(t)

	dir, err := d.Mkdir(ctx, proto.RootID, "d", 0, 0, 0o755)
	require.NoError(t, err)

	_, err = d.StatTag(ctx, dir, "nope")
	require.ErrorIs(t, err, apierrors.ErrNotFound)
}
