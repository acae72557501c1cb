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

	"github.com/masstor/namespacedb/proto"
)

// AddInodeLocation registers a new replica location for the inode with
// the default priority, in ONLINE state.
func (d *Driver) AddInodeLocation(ctx context.Context, inode proto.InodeID, typ int, location string) error {
	now := nowMillis()
	_, err := d.exec(ctx,
		"INSERT INTO t_locationinfo VALUES(?,?,?,?,?,?,?)",
		inode, typ, location, proto.DefaultLocationPriority, now, now, proto.LocationStateOnline)
	return err
}

// GetInodeLocations returns the ONLINE locations of the inode, highest
// priority first.
func (d *Driver) GetInodeLocations(ctx context.Context, inode proto.InodeID) ([]proto.StorageLocation, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT itype,ilocation,ipriority,ictime,iatime FROM t_locationinfo "+
			"WHERE ipnfsid=? AND istate=1 ORDER BY ipriority DESC", inode)
	if err != nil {
		return nil, d.translate(err)
	}
	return d.scanLocations(rows, -1)
}

// GetInodeLocationsByType is GetInodeLocations restricted to one location
// type.
func (d *Driver) GetInodeLocationsByType(ctx context.Context, inode proto.InodeID, typ int) ([]proto.StorageLocation, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT ilocation,ipriority,ictime,iatime FROM t_locationinfo "+
			"WHERE itype=? AND ipnfsid=? AND istate=1 ORDER BY ipriority DESC", typ, inode)
	if err != nil {
		return nil, d.translate(err)
	}
	return d.scanLocations(rows, typ)
}

func (d *Driver) scanLocations(rows *sql.Rows, typ int) ([]proto.StorageLocation, error) {
	defer rows.Close()

	var locations []proto.StorageLocation
	for rows.Next() {
		loc := proto.StorageLocation{Online: true}
		var err error
		if typ < 0 {
			err = rows.Scan(&loc.Type, &loc.Location, &loc.Priority, &loc.CTime, &loc.ATime)
		} else {
			loc.Type = typ
			err = rows.Scan(&loc.Location, &loc.Priority, &loc.CTime, &loc.ATime)
		}
		if err != nil {
			return nil, d.translate(err)
		}
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}

// ClearInodeLocation removes one replica location of the inode.
func (d *Driver) ClearInodeLocation(ctx context.Context, inode proto.InodeID, typ int, location string) error {
	_, err := d.exec(ctx,
		"DELETE FROM t_locationinfo WHERE ipnfsid=? AND itype=? AND ilocation=?",
		inode, typ, location)
	return err
}

// ClearInodeLocations removes all replica locations of the inode.
func (d *Driver) ClearInodeLocations(ctx context.Context, inode proto.InodeID) error {
	_, err := d.exec(ctx, "DELETE FROM t_locationinfo WHERE ipnfsid=?", inode)
	return err
}
