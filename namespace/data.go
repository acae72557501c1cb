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
	"time"

	apierrors "github.com/masstor/namespacedb/errors"
	"github.com/masstor/namespacedb/proto"
)

// Write replaces the inline blob of the inode at the given level and
// returns the number of bytes stored. At level 0 the inode's isize is
// kept in sync with the blob length.
func (d *Driver) Write(ctx context.Context, inode proto.InodeID, level int, data []byte) (int, error) {
	if err := checkLevel(level); err != nil {
		return 0, err
	}

	if level == 0 {
		if err := d.ops.upsertData(ctx, d, inode, data); err != nil {
			return 0, err
		}
		_, err := d.exec(ctx, "UPDATE t_inodes SET isize=? WHERE ipnfsid=?", len(data), inode)
		if err != nil {
			return 0, err
		}
		return len(data), nil
	}

	// the level row is created on first write
	_, err := d.Stat(ctx, inode, level)
	if errors.Is(err, apierrors.ErrNotFound) {
		if _, err := d.CreateLevel(ctx, inode, 0, 0, 0o644, level); err != nil {
			return 0, err
		}
	} else if err != nil {
		return 0, err
	}

	_, err = d.exec(ctx,
		"UPDATE "+levelTable(level)+" SET ifiledata=?,isize=? WHERE ipnfsid=?",
		data, len(data), inode)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

// Read copies the inline blob into buf after skipping pos bytes and
// returns the number of bytes copied. A missing row reads as empty.
func (d *Driver) Read(ctx context.Context, inode proto.InodeID, level int, pos int64, buf []byte) (int, error) {
	if err := checkLevel(level); err != nil {
		return 0, err
	}

	query := "SELECT ifiledata FROM t_inodes_data WHERE ipnfsid=?"
	if level != 0 {
		query = "SELECT ifiledata FROM " + levelTable(level) + " WHERE ipnfsid=?"
	}

	var blob []byte
	err := d.db.QueryRowContext(ctx, query, inode).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, d.translate(err)
	}
	if pos >= int64(len(blob)) {
		return 0, nil
	}
	return copy(buf, blob[pos:]), nil
}

// CreateLevel inserts an empty level row for the inode.
func (d *Driver) CreateLevel(ctx context.Context, inode proto.InodeID, uid, gid int, mode uint32, level int) (proto.InodeID, error) {
	if err := checkLevel(level); err != nil {
		return "", err
	}
	now := time.Now().UnixMilli()
	_, err := d.exec(ctx,
		"INSERT INTO "+levelTable(level)+
			" (ipnfsid,imode,inlink,iuid,igid,isize,iatime,ictime,imtime,ifiledata) VALUES(?,?,1,?,?,0,?,?,?,NULL)",
		inode, mode, uid, gid, now, now, now)
	if err != nil {
		return "", err
	}
	return inode, nil
}

// RemoveInodeLevel deletes the level row, reporting whether one existed.
func (d *Driver) RemoveInodeLevel(ctx context.Context, inode proto.InodeID, level int) (bool, error) {
	if err := checkLevel(level); err != nil {
		return false, err
	}
	n, err := d.exec(ctx, "DELETE FROM "+levelTable(level)+" WHERE ipnfsid=?", inode)
	return n > 0, err
}
