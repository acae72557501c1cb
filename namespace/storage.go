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

	apierrors "github.com/masstor/namespacedb/errors"
	"github.com/masstor/namespacedb/proto"
)

// SetStorageInfo stores the HSM binding of the inode. Storage info is
// write once; a second set fails with a duplicate entry.
func (d *Driver) SetStorageInfo(ctx context.Context, inode proto.InodeID, info proto.StorageInformation) error {
	_, err := d.exec(ctx,
		"INSERT INTO t_storageinfo VALUES(?,?,?,?)",
		inode, info.HsmName, info.StorageGroup, info.StorageSubGroup)
	return err
}

// GetStorageInfo returns the HSM binding of the inode.
func (d *Driver) GetStorageInfo(ctx context.Context, inode proto.InodeID) (proto.StorageInformation, error) {
	info := proto.StorageInformation{ID: inode}
	err := d.db.QueryRowContext(ctx,
		"SELECT ihsmName, istorageGroup, istorageSubGroup FROM t_storageinfo WHERE ipnfsid=?", inode).
		Scan(&info.HsmName, &info.StorageGroup, &info.StorageSubGroup)
	if errors.Is(err, sql.ErrNoRows) {
		return info, apierrors.ErrNotFound
	}
	if err != nil {
		return info, d.translate(err)
	}
	return info, nil
}

// RemoveStorageInfo drops the HSM binding of the inode.
func (d *Driver) RemoveStorageInfo(ctx context.Context, inode proto.InodeID) error {
	_, err := d.exec(ctx, "DELETE FROM t_storageinfo WHERE ipnfsid=?", inode)
	return err
}

// GetAccessLatency returns the inode's access latency, or ErrNotFound
// when none was ever set.
func (d *Driver) GetAccessLatency(ctx context.Context, inode proto.InodeID) (proto.AccessLatency, error) {
	var al int
	err := d.db.QueryRowContext(ctx,
		"SELECT iaccessLatency FROM t_access_latency WHERE ipnfsid=?", inode).Scan(&al)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apierrors.ErrNotFound
	}
	if err != nil {
		return 0, d.translate(err)
	}
	return proto.AccessLatency(al), nil
}

// SetAccessLatency upserts the inode's access latency.
func (d *Driver) SetAccessLatency(ctx context.Context, inode proto.InodeID, al proto.AccessLatency) error {
	n, err := d.exec(ctx,
		"UPDATE t_access_latency SET iaccessLatency=? WHERE ipnfsid=?", int(al), inode)
	if err != nil {
		return err
	}
	if n == 0 {
		_, err = d.exec(ctx, "INSERT INTO t_access_latency VALUES(?,?)", inode, int(al))
	}
	return err
}

// GetRetentionPolicy returns the inode's retention policy, or ErrNotFound
// when none was ever set.
func (d *Driver) GetRetentionPolicy(ctx context.Context, inode proto.InodeID) (proto.RetentionPolicy, error) {
	var rp int
	err := d.db.QueryRowContext(ctx,
		"SELECT iretentionPolicy FROM t_retention_policy WHERE ipnfsid=?", inode).Scan(&rp)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apierrors.ErrNotFound
	}
	if err != nil {
		return 0, d.translate(err)
	}
	return proto.RetentionPolicy(rp), nil
}

// SetRetentionPolicy upserts the inode's retention policy.
func (d *Driver) SetRetentionPolicy(ctx context.Context, inode proto.InodeID, rp proto.RetentionPolicy) error {
	n, err := d.exec(ctx,
		"UPDATE t_retention_policy SET iretentionPolicy=? WHERE ipnfsid=?", int(rp), inode)
	if err != nil {
		return err
	}
	if n == 0 {
		_, err = d.exec(ctx, "INSERT INTO t_retention_policy VALUES(?,?)", inode, int(rp))
	}
	return err
}
