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

// GetACL returns the inode's access control list in stored order. An
// empty list means no ACL is assigned.
func (d *Driver) GetACL(ctx context.Context, inode proto.InodeID) ([]proto.ACE, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT type, flags, access_msk, who, who_id FROM t_acl WHERE rs_id = ? ORDER BY ace_order",
		inode)
	if err != nil {
		return nil, d.translate(err)
	}
	defer rows.Close()

	var acl []proto.ACE
	for rows.Next() {
		var (
			aceType, flags, msk, who, whoID int
		)
		if err := rows.Scan(&aceType, &flags, &msk, &who, &whoID); err != nil {
			return nil, d.translate(err)
		}
		t := proto.AceAccessAllowed
		if aceType != 0 {
			t = proto.AceAccessDenied
		}
		acl = append(acl, proto.ACE{
			Type:      t,
			Flags:     flags,
			AccessMsk: msk,
			Who:       proto.Who(who),
			WhoID:     whoID,
		})
	}
	return acl, rows.Err()
}

// SetACL replaces the inode's access control list, preserving the input
// order in ace_order. It reports whether the stored ACL may have changed.
func (d *Driver) SetACL(ctx context.Context, inode proto.InodeID, acl []proto.ACE) (bool, error) {
	n, err := d.exec(ctx, "DELETE FROM t_acl WHERE rs_id = ?", inode)
	if err != nil {
		return false, err
	}
	modified := n > 0

	if len(acl) == 0 {
		return modified, nil
	}

	stat, err := d.Stat(ctx, inode, 0)
	if err != nil {
		return modified, err
	}
	rsType := proto.RsTypeFile
	if stat.IsDirectory() {
		rsType = proto.RsTypeDir
	}

	for order, ace := range acl {
		_, err := d.exec(ctx,
			"INSERT INTO t_acl VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			inode, int(rsType), int(ace.Type), ace.Flags, ace.AccessMsk, int(ace.Who), ace.WhoID, order)
		if err != nil {
			return modified, err
		}
	}
	return true, nil
}
