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

	"github.com/masstor/namespacedb/proto"
)

// SetInodeChecksum adds a checksum of the given algorithm to the inode.
func (d *Driver) SetInodeChecksum(ctx context.Context, inode proto.InodeID, typ int, value string) error {
	_, err := d.exec(ctx, "INSERT INTO t_inodes_checksum VALUES(?,?,?)", inode, typ, value)
	return err
}

// GetInodeChecksums returns all checksums stored for the inode.
func (d *Driver) GetInodeChecksums(ctx context.Context, inode proto.InodeID) ([]proto.Checksum, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT isum, itype FROM t_inodes_checksum WHERE ipnfsid=?", inode)
	if err != nil {
		return nil, d.translate(err)
	}
	defer rows.Close()

	var sums []proto.Checksum
	for rows.Next() {
		var c proto.Checksum
		if err := rows.Scan(&c.Value, &c.Type); err != nil {
			return nil, d.translate(err)
		}
		sums = append(sums, c)
	}
	return sums, rows.Err()
}

// RemoveInodeChecksum removes the checksum of one algorithm; a negative
// type removes them all.
func (d *Driver) RemoveInodeChecksum(ctx context.Context, inode proto.InodeID, typ int) error {
	var err error
	if typ >= 0 {
		_, err = d.exec(ctx,
			"DELETE FROM t_inodes_checksum WHERE ipnfsid=? AND itype=?", inode, typ)
	} else {
		_, err = d.exec(ctx, "DELETE FROM t_inodes_checksum WHERE ipnfsid=?", inode)
	}
	return err
}
