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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"

	"github.com/masstor/namespacedb/metrics"
	"github.com/masstor/namespacedb/proto"
)

// FS is the transactional facade over the driver. Every public operation
// runs as one atomic database unit; concurrent operations proceed in
// parallel on distinct connections of the pool.
type FS struct {
	db  *bun.DB
	drv *Driver
}

// NewFS builds the facade over an open database handle.
func NewFS(db *bun.DB, cfg *Config) *FS {
	return &FS{db: db, drv: NewDriver(db, cfg)}
}

// Driver exposes the underlying driver for callers that manage their own
// transaction boundary.
func (fs *FS) Driver() *Driver {
	return fs.drv
}

func (fs *FS) inTx(ctx context.Context, op string, f func(ctx context.Context, d *Driver) error) error {
	timer := prometheus.NewTimer(metrics.OpDuration.WithLabelValues(op))
	defer timer.ObserveDuration()
	metrics.OpTotal.WithLabelValues(op).Inc()

	err := fs.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return f(ctx, fs.drv.WithTx(tx))
	})
	if err != nil {
		metrics.OpErrors.WithLabelValues(op).Inc()
	}
	return err
}

func (fs *FS) CreateFile(ctx context.Context, parent proto.InodeID, name string, uid, gid int, mode, typ uint32) (inode proto.InodeID, err error) {
	err = fs.inTx(ctx, "create", func(ctx context.Context, d *Driver) error {
		inode, err = d.CreateFile(ctx, parent, name, uid, gid, mode, typ)
		return err
	})
	return inode, err
}

func (fs *FS) CreateFileWithID(ctx context.Context, parent, id proto.InodeID, name string, uid, gid int, mode, typ uint32) (inode proto.InodeID, err error) {
	err = fs.inTx(ctx, "create", func(ctx context.Context, d *Driver) error {
		inode, err = d.CreateFileWithID(ctx, parent, id, name, uid, gid, mode, typ)
		return err
	})
	return inode, err
}

func (fs *FS) Mkdir(ctx context.Context, parent proto.InodeID, name string, uid, gid int, mode uint32) (inode proto.InodeID, err error) {
	err = fs.inTx(ctx, "mkdir", func(ctx context.Context, d *Driver) error {
		inode, err = d.Mkdir(ctx, parent, name, uid, gid, mode)
		return err
	})
	return inode, err
}

// MkdirWith creates a directory seeded with tags and an initial ACL. Tags
// of the parent are not copied implicitly; callers pass the tag set they
// want inherited.
func (fs *FS) MkdirWith(ctx context.Context, parent proto.InodeID, name string, uid, gid int, mode uint32, acl []proto.ACE, tags map[string][]byte) (inode proto.InodeID, err error) {
	err = fs.inTx(ctx, "mkdir", func(ctx context.Context, d *Driver) error {
		inode, err = d.MkdirWith(ctx, parent, name, uid, gid, mode, acl, tags)
		return err
	})
	return inode, err
}

// MkdirInheriting creates a directory that inherits the parent's tags by
// structural sharing.
func (fs *FS) MkdirInheriting(ctx context.Context, parent proto.InodeID, name string, uid, gid int, mode uint32) (inode proto.InodeID, err error) {
	err = fs.inTx(ctx, "mkdir", func(ctx context.Context, d *Driver) error {
		inode, err = d.Mkdir(ctx, parent, name, uid, gid, mode)
		if err != nil {
			return err
		}
		return d.CopyTags(ctx, parent, inode)
	})
	return inode, err
}

func (fs *FS) Remove(ctx context.Context, parent proto.InodeID, name string) error {
	return fs.inTx(ctx, "remove", func(ctx context.Context, d *Driver) error {
		return d.Remove(ctx, parent, name)
	})
}

func (fs *FS) RemoveInode(ctx context.Context, inode proto.InodeID) error {
	return fs.inTx(ctx, "remove", func(ctx context.Context, d *Driver) error {
		return d.RemoveInode(ctx, inode)
	})
}

func (fs *FS) Move(ctx context.Context, srcDir proto.InodeID, source string, destDir proto.InodeID, dest string) error {
	return fs.inTx(ctx, "move", func(ctx context.Context, d *Driver) error {
		return d.Move(ctx, srcDir, source, destDir, dest)
	})
}

func (fs *FS) Stat(ctx context.Context, inode proto.InodeID, level int) (stat *proto.Stat, err error) {
	err = fs.inTx(ctx, "stat", func(ctx context.Context, d *Driver) error {
		stat, err = d.Stat(ctx, inode, level)
		return err
	})
	return stat, err
}

func (fs *FS) SetInodeAttributes(ctx context.Context, inode proto.InodeID, level int, stat *proto.Stat) (changed bool, err error) {
	err = fs.inTx(ctx, "setattr", func(ctx context.Context, d *Driver) error {
		changed, err = d.SetInodeAttributes(ctx, inode, level, stat)
		return err
	})
	return changed, err
}

func (fs *FS) Write(ctx context.Context, inode proto.InodeID, level int, data []byte) (n int, err error) {
	err = fs.inTx(ctx, "write", func(ctx context.Context, d *Driver) error {
		n, err = d.Write(ctx, inode, level, data)
		return err
	})
	return n, err
}

func (fs *FS) Read(ctx context.Context, inode proto.InodeID, level int, pos int64, buf []byte) (n int, err error) {
	err = fs.inTx(ctx, "read", func(ctx context.Context, d *Driver) error {
		n, err = d.Read(ctx, inode, level, pos, buf)
		return err
	})
	return n, err
}

func (fs *FS) ListDir(ctx context.Context, dir proto.InodeID) (names []string, err error) {
	err = fs.inTx(ctx, "list", func(ctx context.Context, d *Driver) error {
		names, err = d.ListDir(ctx, dir)
		return err
	})
	return names, err
}

// NewDirectoryStream opens a directory cursor outside any transaction;
// the stream holds a connection until closed or exhausted.
func (fs *FS) NewDirectoryStream(ctx context.Context, dir proto.InodeID) (*DirectoryStream, error) {
	metrics.OpTotal.WithLabelValues("list").Inc()
	return fs.drv.NewDirectoryStream(ctx, dir)
}

func (fs *FS) Path2Inode(ctx context.Context, root proto.InodeID, path string) (inode proto.InodeID, err error) {
	err = fs.inTx(ctx, "lookup", func(ctx context.Context, d *Driver) error {
		inode, err = d.Path2Inode(ctx, root, path)
		return err
	})
	return inode, err
}

func (fs *FS) Path2Inodes(ctx context.Context, root proto.InodeID, path string) (inodes []proto.InodeID, err error) {
	err = fs.inTx(ctx, "lookup", func(ctx context.Context, d *Driver) error {
		inodes, err = d.Path2Inodes(ctx, root, path)
		return err
	})
	return inodes, err
}

func (fs *FS) Inode2Path(ctx context.Context, inode, startFrom proto.InodeID) (path string, err error) {
	err = fs.inTx(ctx, "lookup", func(ctx context.Context, d *Driver) error {
		path, err = d.Inode2Path(ctx, inode, startFrom)
		return err
	})
	return path, err
}

func (fs *FS) GetFsStat(ctx context.Context) (st *proto.FsStat, err error) {
	err = fs.inTx(ctx, "fsstat", func(ctx context.Context, d *Driver) error {
		st, err = d.GetFsStat(ctx)
		return err
	})
	return st, err
}

func (fs *FS) GetACL(ctx context.Context, inode proto.InodeID) (acl []proto.ACE, err error) {
	err = fs.inTx(ctx, "acl", func(ctx context.Context, d *Driver) error {
		acl, err = d.GetACL(ctx, inode)
		return err
	})
	return acl, err
}

func (fs *FS) SetACL(ctx context.Context, inode proto.InodeID, acl []proto.ACE) (changed bool, err error) {
	err = fs.inTx(ctx, "acl", func(ctx context.Context, d *Driver) error {
		changed, err = d.SetACL(ctx, inode, acl)
		return err
	})
	return changed, err
}

func (fs *FS) GetTag(ctx context.Context, dir proto.InodeID, tag string, buf []byte) (n int, err error) {
	err = fs.inTx(ctx, "tag", func(ctx context.Context, d *Driver) error {
		n, err = d.GetTag(ctx, dir, tag, buf)
		return err
	})
	return n, err
}

func (fs *FS) SetTag(ctx context.Context, dir proto.InodeID, tag string, data []byte) (n int, err error) {
	err = fs.inTx(ctx, "tag", func(ctx context.Context, d *Driver) error {
		n, err = d.SetTag(ctx, dir, tag, data)
		return err
	})
	return n, err
}

func (fs *FS) Tags(ctx context.Context, dir proto.InodeID) (tags []string, err error) {
	err = fs.inTx(ctx, "tag", func(ctx context.Context, d *Driver) error {
		tags, err = d.Tags(ctx, dir)
		return err
	})
	return tags, err
}

func (fs *FS) GetAllTags(ctx context.Context, dir proto.InodeID) (tags map[string][]byte, err error) {
	err = fs.inTx(ctx, "tag", func(ctx context.Context, d *Driver) error {
		tags, err = d.GetAllTags(ctx, dir)
		return err
	})
	return tags, err
}

func (fs *FS) AddInodeLocation(ctx context.Context, inode proto.InodeID, typ int, location string) error {
	return fs.inTx(ctx, "location", func(ctx context.Context, d *Driver) error {
		return d.AddInodeLocation(ctx, inode, typ, location)
	})
}

func (fs *FS) GetInodeLocations(ctx context.Context, inode proto.InodeID) (locations []proto.StorageLocation, err error) {
	err = fs.inTx(ctx, "location", func(ctx context.Context, d *Driver) error {
		locations, err = d.GetInodeLocations(ctx, inode)
		return err
	})
	return locations, err
}

func (fs *FS) SetInodeChecksum(ctx context.Context, inode proto.InodeID, typ int, value string) error {
	return fs.inTx(ctx, "checksum", func(ctx context.Context, d *Driver) error {
		return d.SetInodeChecksum(ctx, inode, typ, value)
	})
}

func (fs *FS) GetInodeChecksums(ctx context.Context, inode proto.InodeID) (sums []proto.Checksum, err error) {
	err = fs.inTx(ctx, "checksum", func(ctx context.Context, d *Driver) error {
		sums, err = d.GetInodeChecksums(ctx, inode)
		return err
	})
	return sums, err
}
