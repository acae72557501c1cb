package namespace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	apierrors "github.com/masstor/namespacedb/errors"
	"github.com/masstor/namespacedb/proto"
)

func buildTree(t *testing.T, d *Driver, ctx context.Context) (a, b, c proto.InodeID) {
	t.Helper()
	var err error
	a, err = d.Mkdir(ctx, proto.RootID, "a", 0, 0, 0o755)
	require.NoError(t, err)
	b, err = d.Mkdir(ctx, a, "b", 0, 0, 0o755)
	require.NoError(t, err)
	c, err = d.CreateFile(ctx, b, "c", 0, 0, 0o644, proto.SIFREG)
	require.NoError(t, err)
	return a, b, c
}

func symlink(t *testing.T, d *Driver, ctx context.Context, parent proto.InodeID, name, target string) proto.InodeID {
	t.Helper()
	link, err := d.CreateFile(ctx, parent, name, 0, 0, 0o777, proto.SIFLNK)
	require.NoError(t, err)
	_, err = d.Write(ctx, link, 0, []byte(target))
	require.NoError(t, err)
	return link
}

func TestPath2Inode(t *testing.T) {
	d, ctx := newTestDriver(t)
	_, b, c := buildTree(t, d, ctx)

	got, err := d.Path2Inode(ctx, proto.RootID, "/a/b/c")
	require.NoError(t, err)
	require.Equal(t, c, got)

	// repeated separators collapse
	got, err = d.Path2Inode(ctx, proto.RootID, "//a///b/c")
	require.NoError(t, err)
	require.Equal(t, c, got)

	got, err = d.Path2Inode(ctx, b, "c")
	require.NoError(t, err)
	require.Equal(t, c, got)

	_, err = d.Path2Inode(ctx, proto.RootID, "/a/missing")
	require.ErrorIs(t, err, apierrors.ErrNotFound)
}

func TestPath2InodeAbsoluteSymlink(t *testing.T) {
	d, ctx := newTestDriver(t)
	_, _, c := buildTree(t, d, ctx)
	symlink(t, d, ctx, proto.RootID, "l", "/a/b")

	got, err := d.Path2Inode(ctx, proto.RootID, "/l/c")
	require.NoError(t, err)
	require.Equal(t, c, got)
}

func TestPath2InodeRelativeSymlink(t *testing.T) {
	d, ctx := newTestDriver(t)
	a, _, c := buildTree(t, d, ctx)
	// relative target resolves from the link's parent directory
	symlink(t, d, ctx, a, "l", "b")

	got, err := d.Path2Inode(ctx, proto.RootID, "/a/l/c")
	require.NoError(t, err)
	require.Equal(t, c, got)
}

func TestPath2InodeSymlinkLoop(t *testing.T) {
	d, ctx := newTestDriver(t)
	symlink(t, d, ctx, proto.RootID, "l1", "/l2")
	symlink(t, d, ctx, proto.RootID, "l2", "/l1")

	_, err := d.Path2Inode(ctx, proto.RootID, "/l1")
	require.ErrorIs(t, err, apierrors.ErrTooManyLinks)
}

func TestPath2Inodes(t *testing.T) {
	d, ctx := newTestDriver(t)
	a, b, c := buildTree(t, d, ctx)

	inodes, err := d.Path2Inodes(ctx, proto.RootID, "/a/b/c")
	require.NoError(t, err)
	require.Equal(t, []proto.InodeID{proto.RootID, a, b, c}, inodes)
}

func TestPath2InodesIncludesSymlinkAnchor(t *testing.T) {
	d, ctx := newTestDriver(t)
	a, b, c := buildTree(t, d, ctx)
	l := symlink(t, d, ctx, proto.RootID, "l", "/a/b")

	inodes, err := d.Path2Inodes(ctx, proto.RootID, "/l/c")
	require.NoError(t, err)
	// root, the link, the root anchor of the absolute target, the target
	// walk, and the final component
	require.Equal(t, []proto.InodeID{proto.RootID, l, proto.RootID, a, b, c}, inodes)
}

func TestInode2Path(t *testing.T) {
	d, ctx := newTestDriver(t)
	_, _, c := buildTree(t, d, ctx)

	path, err := d.Inode2Path(ctx, c, proto.RootID)
	require.NoError(t, err)
	require.Equal(t, "/a/b/c", path)

	path, err = d.Inode2Path(ctx, proto.RootID, proto.RootID)
	require.NoError(t, err)
	require.Equal(t, "/", path)
}

func TestGetParentAndName(t *testing.T) {
	d, ctx := newTestDriver(t)
	a, b, c := buildTree(t, d, ctx)

	parent, err := d.GetParentOf(ctx, c)
	require.NoError(t, err)
	require.Equal(t, b, parent)

	parent, err = d.GetParentOfDirectory(ctx, b)
	require.NoError(t, err)
	require.Equal(t, a, parent)

	name, err := d.GetNameOf(ctx, b, c)
	require.NoError(t, err)
	require.Equal(t, "c", name)
}
