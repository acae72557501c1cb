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
	"fmt"
	"math"
	"time"

	"github.com/cubefs/cubefs/blobstore/util/log"
	"github.com/uptrace/bun"

	apierrors "github.com/masstor/namespacedb/errors"
	"github.com/masstor/namespacedb/proto"
)

const (
	ioModeEnable  = 1
	ioModeDisable = 0

	maxLevel = 7

	// Reported capacity; the engine tracks metadata only, payload space
	// lives on the pool nodes.
	availableSpace = math.MaxInt64
	totalFiles     = math.MaxInt64
)

// Config carries the process wide engine options.
type Config struct {
	// Dialect selects a registered statement dialect; an empty or unknown
	// name falls back to the default driver.
	Dialect string `json:"dialect"`
	// InodeIOEnabled sets the iio column on newly created inodes.
	InodeIOEnabled bool `json:"inode_io_enabled"`
}

// Driver turns namespace operations into ordered SQL statements. It is
// stateless; every public method runs on the connection (or transaction)
// it was constructed over. Callers provide the transactional boundary.
type Driver struct {
	db     bun.IDB
	ops    dialectOps
	ioMode int
}

// NewDriver builds a driver over db using the dialect named in cfg. An
// unregistered dialect name falls back to the default statement set.
func NewDriver(db bun.IDB, cfg *Config) *Driver {
	ops := defaultOps()
	if cfg.Dialect != "" {
		registered, ok := dialects[cfg.Dialect]
		if ok {
			ops = registered
		} else {
			log.Infof("dialect %q not registered, using default SQL driver", cfg.Dialect)
		}
	}

	ioMode := ioModeDisable
	if cfg.InodeIOEnabled {
		ioMode = ioModeEnable
	}
	return &Driver{db: db, ops: ops, ioMode: ioMode}
}

// WithTx returns a copy of the driver bound to tx.
func (d *Driver) WithTx(tx bun.IDB) *Driver {
	cp := *d
	cp.db = tx
	return &cp
}

// translate maps raw database errors onto the typed taxonomy.
func (d *Driver) translate(err error) error {
	if err == nil {
		return nil
	}
	if d.ops.isForeignKeyViolation(err) {
		return &apierrors.ForeignKeyViolationError{Err: err}
	}
	if d.ops.isDuplicateKey(err) {
		return fmt.Errorf("%w: %s", apierrors.ErrDuplicateEntry, err.Error())
	}
	return err
}

// exec runs a statement and returns the affected row count.
func (d *Driver) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, d.translate(err)
	}
	return res.RowsAffected()
}

// execExpect runs a statement and fails with an invariant violation when
// the affected row count differs from want.
func (d *Driver) execExpect(ctx context.Context, want int64, query string, args ...interface{}) error {
	n, err := d.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if n != want {
		return &apierrors.InvariantViolationError{Stmt: query, Expected: want, Actual: n}
	}
	return nil
}

// GetFsStat returns filesystem wide usage totals.
func (d *Driver) GetFsStat(ctx context.Context) (*proto.FsStat, error) {
	var usedFiles, usedSpace sql.NullInt64
	err := d.db.QueryRowContext(ctx,
		"SELECT count(ipnfsid), SUM(isize) FROM t_inodes WHERE itype=?", proto.SIFREG).
		Scan(&usedFiles, &usedSpace)
	if err != nil {
		return nil, d.translate(err)
	}
	return &proto.FsStat{
		TotalSpace: availableSpace,
		TotalFiles: totalFiles,
		UsedSpace:  usedSpace.Int64,
		UsedFiles:  usedFiles.Int64,
	}, nil
}

// CreateFile creates a new inode and an entry name in the parent
// directory. The parent's reference count and modification time are
// updated.
func (d *Driver) CreateFile(ctx context.Context, parent proto.InodeID, name string, uid, gid int, mode, typ uint32) (proto.InodeID, error) {
	return d.CreateFileWithID(ctx, parent, proto.NewInodeID(), name, uid, gid, mode, typ)
}

// CreateFileWithID creates an entry with a caller supplied inode ID in the
// parent directory.
func (d *Driver) CreateFileWithID(ctx context.Context, parent, inode proto.InodeID, name string, uid, gid int, mode, typ uint32) (proto.InodeID, error) {
	if err := d.CreateInode(ctx, inode, typ, uid, gid, mode, 1); err != nil {
		return "", err
	}
	if err := d.CreateEntry(ctx, parent, name, inode); err != nil {
		return "", err
	}
	if err := d.IncNlink(ctx, parent, 1); err != nil {
		return "", err
	}
	return inode, nil
}

// CreateInode inserts a t_inodes row with initial values. Newly created
// files have size zero, directories 512.
func (d *Driver) CreateInode(ctx context.Context, inode proto.InodeID, typ uint32, uid, gid int, mode uint32, nlink int) error {
	now := time.Now().UnixMilli()
	var size int64
	if typ == proto.SIFDIR {
		size = 512
	}
	_, err := d.exec(ctx,
		"INSERT INTO t_inodes (ipnfsid,itype,imode,inlink,iuid,igid,isize,iio,ictime,iatime,imtime,icrtime,igeneration) "+
			"VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)",
		inode, typ, mode&proto.SPerms, nlink, uid, gid, size, d.ioMode, now, now, now, now, 0)
	return err
}

// Mkdir creates a new directory under parent. The reference counts of the
// parent and of the new directory are both updated.
func (d *Driver) Mkdir(ctx context.Context, parent proto.InodeID, name string, uid, gid int, mode uint32) (proto.InodeID, error) {
	parentStat, err := d.Stat(ctx, parent, 0)
	if err != nil {
		return "", err
	}
	if !parentStat.IsDirectory() {
		return "", apierrors.ErrNotDir
	}

	inode := proto.NewInodeID()

	// a directory starts with nlink == 2
	if err := d.CreateInode(ctx, inode, proto.SIFDIR, uid, gid, mode, 2); err != nil {
		return "", err
	}
	if err := d.CreateEntry(ctx, parent, name, inode); err != nil {
		return "", err
	}
	if err := d.IncNlink(ctx, parent, 1); err != nil {
		return "", err
	}
	if err := d.CreateEntry(ctx, inode, ".", inode); err != nil {
		return "", err
	}
	if err := d.CreateEntry(ctx, inode, "..", parent); err != nil {
		return "", err
	}
	return inode, nil
}

// MkdirWith composes Mkdir with tag seeding and an initial ACL.
func (d *Driver) MkdirWith(ctx context.Context, parent proto.InodeID, name string, uid, gid int, mode uint32, acl []proto.ACE, tags map[string][]byte) (proto.InodeID, error) {
	inode, err := d.Mkdir(ctx, parent, name, uid, gid, mode)
	if err != nil {
		return "", err
	}
	if err := d.CreateTags(ctx, inode, uid, gid, mode&0o666, tags); err != nil {
		return "", err
	}
	if _, err := d.SetACL(ctx, inode, acl); err != nil {
		return "", err
	}
	return inode, nil
}

// Remove deletes the entry name in parent and garbage collects the child
// inode when its link count drops to zero.
func (d *Driver) Remove(ctx context.Context, parent proto.InodeID, name string) error {
	if name == "." || name == ".." {
		return fmt.Errorf("%w: bad name %q", apierrors.ErrInvalidName, name)
	}

	inode, err := d.InodeOf(ctx, parent, name)
	if err != nil {
		return err
	}
	stat, err := d.Stat(ctx, inode, 0)
	if err != nil {
		return err
	}
	if stat.IsDirectory() {
		return d.removeDir(ctx, parent, inode, name, stat)
	}
	return d.removeFile(ctx, parent, inode, name)
}

func (d *Driver) removeDir(ctx context.Context, parent, inode proto.InodeID, name string, stat *proto.Stat) error {
	if stat.Nlink > 2 {
		return apierrors.ErrDirNotEmpty
	}

	removed, err := d.RemoveEntry(ctx, parent, name, inode)
	if err != nil || !removed {
		return err
	}

	removed, err = d.RemoveEntry(ctx, inode, ".", inode)
	if err != nil {
		return err
	}
	if !removed {
		return &apierrors.InvariantViolationError{
			Stmt: fmt.Sprintf("remove '.' in %s", inode), Expected: 1, Actual: 0,
		}
	}
	removed, err = d.RemoveEntry(ctx, inode, "..", parent)
	if err != nil {
		return err
	}
	if !removed {
		return &apierrors.InvariantViolationError{
			Stmt: fmt.Sprintf("remove '..' in %s", inode), Expected: 1, Actual: 0,
		}
	}

	// drop the '.' and '..' counts, then the tag links
	if err := d.DecNlink(ctx, inode, 2); err != nil {
		return err
	}
	if err := d.RemoveTags(ctx, inode); err != nil {
		return err
	}

	gone, err := d.RemoveInodeIfUnlinked(ctx, inode)
	if err != nil {
		return err
	}
	if !gone {
		return &apierrors.InvariantViolationError{
			Stmt: fmt.Sprintf("%s has non-zero link count", inode), Expected: 1, Actual: 0,
		}
	}

	// During bulk deletion of files in the same directory, updating the
	// parent inode is often a contention point. The link count on the
	// parent is updated last to reduce the time in which the directory
	// inode is locked by the database.
	return d.DecNlink(ctx, parent, 1)
}

func (d *Driver) removeFile(ctx context.Context, parent, inode proto.InodeID, name string) error {
	removed, err := d.RemoveEntry(ctx, parent, name, inode)
	if err != nil || !removed {
		return err
	}
	if err := d.DecNlink(ctx, inode, 1); err != nil {
		return err
	}
	if _, err := d.RemoveInodeIfUnlinked(ctx, inode); err != nil {
		return err
	}

	// The parent's link count is updated last, see removeDir.
	return d.DecNlink(ctx, parent, 1)
}

// RemoveInode unlinks the inode from every parent directory and deletes
// it. Zeroing the link count first blocks concurrent transactions from
// adding more links.
func (d *Driver) RemoveInode(ctx context.Context, inode proto.InodeID) error {
	stat, err := d.Stat(ctx, inode, 0)
	if err != nil {
		return err
	}
	if stat.IsDirectory() {
		err := d.execExpect(ctx, 2,
			"DELETE FROM t_dirs WHERE iname IN ('.', '..') AND iparent=?", inode)
		if err != nil {
			return err
		}
		if err := d.RemoveTags(ctx, inode); err != nil {
			return err
		}
	}

	if _, err := d.exec(ctx, "UPDATE t_inodes SET inlink=0 WHERE ipnfsid=?", inode); err != nil {
		return err
	}

	var parents []string
	err = d.db.NewRaw(
		"SELECT iparent FROM t_dirs WHERE ipnfsid=? AND iname NOT IN ('.', '..')", inode).
		Scan(ctx, &parents)
	if err != nil {
		return d.translate(err)
	}
	for _, parent := range parents {
		if err := d.DecNlink(ctx, proto.InodeID(parent), 1); err != nil {
			return err
		}
	}
	err = d.execExpect(ctx, int64(len(parents)),
		"DELETE FROM t_dirs WHERE ipnfsid=? AND iname NOT IN ('.', '..')", inode)
	if err != nil {
		return err
	}

	_, err = d.RemoveInodeIfUnlinked(ctx, inode)
	return err
}

// RemoveInodeIfUnlinked deletes the inode row when its link count has
// reached zero, reporting whether a row was deleted.
func (d *Driver) RemoveInodeIfUnlinked(ctx context.Context, inode proto.InodeID) (bool, error) {
	n, err := d.exec(ctx, "DELETE FROM t_inodes WHERE ipnfsid=? AND inlink = 0", inode)
	return n > 0, err
}

// IncNlink increases the reference count of the inode by delta and bumps
// mtime, ctime and the generation counter.
func (d *Driver) IncNlink(ctx context.Context, inode proto.InodeID, delta int) error {
	now := time.Now().UnixMilli()
	_, err := d.exec(ctx,
		"UPDATE t_inodes SET inlink=inlink +?,imtime=?,ictime=?,igeneration=igeneration+1 WHERE ipnfsid=?",
		delta, now, now, inode)
	return err
}

// DecNlink decreases the reference count of the inode by delta.
func (d *Driver) DecNlink(ctx context.Context, inode proto.InodeID, delta int) error {
	now := time.Now().UnixMilli()
	_, err := d.exec(ctx,
		"UPDATE t_inodes SET inlink=inlink -?,imtime=?,ictime=?,igeneration=igeneration+1 WHERE ipnfsid=?",
		delta, now, now, inode)
	return err
}

// CreateEntry adds a (parent, name, inode) row without touching the
// parent's reference count.
func (d *Driver) CreateEntry(ctx context.Context, parent proto.InodeID, name string, inode proto.InodeID) error {
	_, err := d.exec(ctx, "INSERT INTO t_dirs VALUES(?,?,?)", parent, name, inode)
	return err
}

// RemoveEntry deletes the (parent, name, inode) row, reporting whether a
// row was deleted.
func (d *Driver) RemoveEntry(ctx context.Context, parent proto.InodeID, name string, inode proto.InodeID) (bool, error) {
	n, err := d.exec(ctx,
		"DELETE FROM t_dirs WHERE iname=? AND iparent=? AND ipnfsid=?", name, parent, inode)
	return n > 0, err
}

// InodeOf resolves name in the parent directory.
func (d *Driver) InodeOf(ctx context.Context, parent proto.InodeID, name string) (proto.InodeID, error) {
	var id string
	err := d.db.QueryRowContext(ctx,
		"SELECT ipnfsid FROM t_dirs WHERE iname=? AND iparent=?", name, parent).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apierrors.ErrNotFound
	}
	if err != nil {
		return "", d.translate(err)
	}
	return proto.InodeID(id), nil
}

// Move renames source in srcDir to dest in destDir by updating the single
// directory entry in place. A moved directory also gets its '..' entry
// repointed at destDir.
func (d *Driver) Move(ctx context.Context, srcDir proto.InodeID, source string, destDir proto.InodeID, dest string) error {
	srcInode, err := d.InodeOf(ctx, srcDir, source)
	if err != nil {
		return err
	}

	_, err = d.exec(ctx,
		"UPDATE t_dirs SET iparent=?, iname=? WHERE iparent=? AND iname=?",
		destDir, dest, srcDir, source)
	if err != nil {
		return err
	}

	stat, err := d.Stat(ctx, srcInode, 0)
	if err != nil {
		return err
	}
	if stat.IsDirectory() {
		_, err = d.exec(ctx,
			"UPDATE t_dirs SET ipnfsid=? WHERE iparent=? AND iname='..'", destDir, srcInode)
	}
	return err
}

// SetFileName renames an entry within a directory.
func (d *Driver) SetFileName(ctx context.Context, dir proto.InodeID, oldName, newName string) error {
	_, err := d.exec(ctx,
		"UPDATE t_dirs SET iname=? WHERE iname=? AND iparent=?", newName, oldName, dir)
	return err
}

// Stat reads the inode (level 0) or level row into a stat record.
func (d *Driver) Stat(ctx context.Context, inode proto.InodeID, level int) (*proto.Stat, error) {
	if err := checkLevel(level); err != nil {
		return nil, err
	}
	if level == 0 {
		return d.statInode(ctx, inode)
	}
	return d.statLevel(ctx, inode, level)
}

func (d *Driver) statInode(ctx context.Context, inode proto.InodeID) (*proto.Stat, error) {
	row := d.db.QueryRowContext(ctx,
		"SELECT isize,inlink,itype,imode,iuid,igid,iatime,ictime,imtime,icrtime,igeneration,"+
			"iaccess_latency,iretention_policy FROM t_inodes WHERE ipnfsid=?", inode)

	var (
		size, atime, ctime, mtime, crtime, generation int64
		nlink, uid, gid                               int
		itype, imode                                  uint32
		al, rp                                        sql.NullInt64
	)
	err := row.Scan(&size, &nlink, &itype, &imode, &uid, &gid, &atime, &ctime, &mtime,
		&crtime, &generation, &al, &rp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierrors.ErrNotFound
	}
	if err != nil {
		return nil, d.translate(err)
	}

	stat := &proto.Stat{ID: inode, Nlink: nlink, Generation: generation}
	stat.SetSize(size)
	stat.SetMode(imode | itype)
	stat.SetUID(uid)
	stat.SetGID(gid)
	stat.SetATime(atime)
	stat.SetCTime(ctime)
	stat.SetMTime(mtime)
	stat.SetCrTime(crtime)
	if al.Valid {
		stat.SetAccessLatency(proto.AccessLatency(al.Int64))
	}
	if rp.Valid {
		stat.SetRetentionPolicy(proto.RetentionPolicy(rp.Int64))
	}
	return stat, nil
}

func (d *Driver) statLevel(ctx context.Context, inode proto.InodeID, level int) (*proto.Stat, error) {
	row := d.db.QueryRowContext(ctx,
		"SELECT isize,inlink,imode,iuid,igid,iatime,ictime,imtime FROM "+levelTable(level)+
			" WHERE ipnfsid=?", inode)

	var (
		size, atime, ctime, mtime int64
		nlink, uid, gid           int
		imode                     uint32
	)
	err := row.Scan(&size, &nlink, &imode, &uid, &gid, &atime, &ctime, &mtime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierrors.ErrNotFound
	}
	if err != nil {
		return nil, d.translate(err)
	}

	stat := &proto.Stat{ID: inode, Nlink: nlink}
	stat.SetSize(size)
	stat.SetMode(imode | proto.SIFREG)
	stat.SetUID(uid)
	stat.SetGID(gid)
	stat.SetATime(atime)
	stat.SetCTime(ctime)
	stat.SetMTime(mtime)
	stat.SetCrTime(mtime)
	return stat, nil
}

// IsIOEnabled reports whether regular read and write operations are
// allowed on the inode.
func (d *Driver) IsIOEnabled(ctx context.Context, inode proto.InodeID) (bool, error) {
	var iio int
	err := d.db.QueryRowContext(ctx,
		"SELECT iio FROM t_inodes WHERE ipnfsid=?", inode).Scan(&iio)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, d.translate(err)
	}
	return iio == ioModeEnable, nil
}

// SetInodeIO flips the per inode I/O flag.
func (d *Driver) SetInodeIO(ctx context.Context, inode proto.InodeID, enable bool) error {
	mode := ioModeDisable
	if enable {
		mode = ioModeEnable
	}
	_, err := d.exec(ctx, "UPDATE t_inodes SET iio=? WHERE ipnfsid=?", mode, inode)
	return err
}

// ListDir returns the entry names of the directory, without the '.' and
// '..' self references. The inode is not checked to be a directory.
func (d *Driver) ListDir(ctx context.Context, dir proto.InodeID) ([]string, error) {
	var names []string
	err := d.db.NewRaw(
		"SELECT iname FROM t_dirs WHERE iparent=? AND iname NOT IN ('.', '..')", dir).
		Scan(ctx, &names)
	if err != nil {
		return nil, d.translate(err)
	}
	return names, nil
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func checkLevel(level int) error {
	if level < 0 || level > maxLevel {
		return fmt.Errorf("invalid level %d", level)
	}
	return nil
}

func levelTable(level int) string {
	return fmt.Sprintf("t_level_%d", level)
}
