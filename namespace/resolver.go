// Copyright 2023 The NamespaceDB Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package namespace

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	apierrors "github.com/masstor/namespacedb/errors"
	"github.com/masstor/namespacedb/proto"
)

// maxSymlinkHops bounds symlink expansion during a path walk.
const maxSymlinkHops = 40

// Path2Inode resolves a string path starting at root, following symbolic
// links. An absolute link target restarts the walk at the well-known
// root; a relative one continues from the link's parent directory. The
// walk fails with ErrTooManyLinks after 40 link expansions.
func (d *Driver) Path2Inode(ctx context.Context, root proto.InodeID, path string) (proto.InodeID, error) {
	hops := 0
	return d.path2inode(ctx, root, path, &hops)
}

func (d *Driver) path2inode(ctx context.Context, root proto.InodeID, path string, hops *int) (proto.InodeID, error) {
	parent := root
	inode := root

	for _, name := range splitPath(path) {
		var err error
		inode, err = d.InodeOf(ctx, parent, name)
		if err != nil {
			return "", err
		}

		stat, err := d.Stat(ctx, inode, 0)
		if err != nil {
			return "", err
		}
		if stat.IsSymlink() {
			target, err := d.readLink(ctx, inode, stat.Size)
			if err != nil {
				return "", err
			}
			*hops++
			if *hops > maxSymlinkHops {
				return "", apierrors.ErrTooManyLinks
			}
			if strings.HasPrefix(target, "/") {
				parent = proto.RootID
			}
			inode, err = d.path2inode(ctx, parent, target, hops)
			if err != nil {
				return "", err
			}
		}
		parent = inode
	}

	return inode, nil
}

// Path2Inodes resolves path and returns the whole inode sequence walked,
// including intermediate directories and, for every absolute symlink, the
// root anchor the walk restarted from.
func (d *Driver) Path2Inodes(ctx context.Context, root proto.InodeID, path string) ([]proto.InodeID, error) {
	hops := 0
	return d.path2inodes(ctx, root, path, &hops)
}

func (d *Driver) path2inodes(ctx context.Context, root proto.InodeID, path string, hops *int) ([]proto.InodeID, error) {
	parent := root
	inodes := []proto.InodeID{root}

	for _, name := range splitPath(path) {
		inode, err := d.InodeOf(ctx, parent, name)
		if err != nil {
			return nil, err
		}
		inodes = append(inodes, inode)

		stat, err := d.Stat(ctx, inode, 0)
		if err != nil {
			return nil, err
		}
		if stat.IsSymlink() {
			target, err := d.readLink(ctx, inode, stat.Size)
			if err != nil {
				return nil, err
			}
			*hops++
			if *hops > maxSymlinkHops {
				return nil, apierrors.ErrTooManyLinks
			}
			if strings.HasPrefix(target, "/") {
				parent = proto.RootID
				inodes = append(inodes, parent)
			}
			linkInodes, err := d.path2inodes(ctx, parent, target, hops)
			if err != nil {
				return nil, err
			}
			inodes = append(inodes, linkInodes[1:]...)
			inode = linkInodes[len(linkInodes)-1]
		}
		parent = inode
	}

	return inodes, nil
}

func (d *Driver) readLink(ctx context.Context, inode proto.InodeID, size int64) (string, error) {
	buf := make([]byte, size)
	n, err := d.Read(ctx, inode, 0, 0, buf)
	if err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}

// Inode2Path returns the path of the inode below startFrom. For a hard
// linked inode one of its paths is returned.
func (d *Driver) Inode2Path(ctx context.Context, inode, startFrom proto.InodeID) (string, error) {
	if inode == startFrom {
		return "/", nil
	}

	var elements []string
	current := inode
	for current != startFrom {
		var (
			parent, name string
		)
		err := d.db.QueryRowContext(ctx,
			"SELECT iparent, iname FROM t_dirs WHERE ipnfsid=? AND iname NOT IN ('.', '..')",
			current).Scan(&parent, &name)
		if errors.Is(err, sql.ErrNoRows) {
			return "", apierrors.ErrNotFound
		}
		if err != nil {
			return "", d.translate(err)
		}
		elements = append(elements, name)
		current = proto.InodeID(parent)
	}

	var sb strings.Builder
	for i := len(elements) - 1; i >= 0; i-- {
		sb.WriteString("/")
		sb.WriteString(elements[i])
	}
	return sb.String(), nil
}

// GetParentOf returns a parent of the inode. For hard links one of the
// parents is returned.
func (d *Driver) GetParentOf(ctx context.Context, inode proto.InodeID) (proto.InodeID, error) {
	var parent string
	err := d.db.QueryRowContext(ctx,
		"SELECT iparent FROM t_dirs WHERE ipnfsid=? AND iname != '.' AND iname != '..'", inode).
		Scan(&parent)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apierrors.ErrNotFound
	}
	if err != nil {
		return "", d.translate(err)
	}
	return proto.InodeID(parent), nil
}

// GetParentOfDirectory returns the directory the '..' entry points at.
func (d *Driver) GetParentOfDirectory(ctx context.Context, inode proto.InodeID) (proto.InodeID, error) {
	var parent string
	err := d.db.QueryRowContext(ctx,
		"SELECT ipnfsid FROM t_dirs WHERE iparent=? AND iname = '..'", inode).Scan(&parent)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apierrors.ErrNotFound
	}
	if err != nil {
		return "", d.translate(err)
	}
	return proto.InodeID(parent), nil
}

// GetNameOf returns the name of the inode within parent.
func (d *Driver) GetNameOf(ctx context.Context, parent, inode proto.InodeID) (string, error) {
	var name string
	err := d.db.QueryRowContext(ctx,
		"SELECT iname FROM t_dirs WHERE ipnfsid=? AND iparent=?", inode, parent).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apierrors.ErrNotFound
	}
	if err != nil {
		return "", d.translate(err)
	}
	return name, nil
}

// splitPath breaks a path into its elements, collapsing repeated
// separators.
func splitPath(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
}
