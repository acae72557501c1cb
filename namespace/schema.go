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
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/masstor/namespacedb/proto"
)

// Timestamps are stored as BIGINT milliseconds since the epoch so that the
// same statements work unchanged across dialects. The driver supplies all
// times; the database clock is never used.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS t_inodes (
		ipnfsid VARCHAR(36) PRIMARY KEY,
		itype INTEGER NOT NULL,
		imode INTEGER NOT NULL,
		inlink INTEGER NOT NULL,
		iuid INTEGER NOT NULL,
		igid INTEGER NOT NULL,
		isize BIGINT NOT NULL,
		iio INTEGER NOT NULL,
		ictime BIGINT NOT NULL,
		iatime BIGINT NOT NULL,
		imtime BIGINT NOT NULL,
		icrtime BIGINT NOT NULL,
		igeneration BIGINT NOT NULL,
		iaccess_latency INTEGER,
		iretention_policy INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS t_dirs (
		iparent VARCHAR(36) NOT NULL,
		iname VARCHAR(255) NOT NULL,
		ipnfsid VARCHAR(36) NOT NULL,
		PRIMARY KEY (iparent, iname)
	)`,
	`CREATE TABLE IF NOT EXISTS t_inodes_data (
		ipnfsid VARCHAR(36) PRIMARY KEY,
		ifiledata BLOB,
		FOREIGN KEY (ipnfsid) REFERENCES t_inodes(ipnfsid) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS t_tags_inodes (
		itagid VARCHAR(36) PRIMARY KEY,
		imode INTEGER NOT NULL,
		inlink INTEGER NOT NULL,
		iuid INTEGER NOT NULL,
		igid INTEGER NOT NULL,
		isize BIGINT NOT NULL,
		iatime BIGINT NOT NULL,
		ictime BIGINT NOT NULL,
		imtime BIGINT NOT NULL,
		ivalue BLOB
	)`,
	`CREATE TABLE IF NOT EXISTS t_tags (
		ipnfsid VARCHAR(36) NOT NULL,
		itagname VARCHAR(255) NOT NULL,
		itagid VARCHAR(36) NOT NULL,
		isorign INTEGER NOT NULL,
		PRIMARY KEY (ipnfsid, itagname),
		FOREIGN KEY (itagid) REFERENCES t_tags_inodes(itagid)
	)`,
	`CREATE TABLE IF NOT EXISTS t_locationinfo (
		ipnfsid VARCHAR(36) NOT NULL,
		itype INTEGER NOT NULL,
		ilocation VARCHAR(1024) NOT NULL,
		ipriority INTEGER NOT NULL,
		ictime BIGINT NOT NULL,
		iatime BIGINT NOT NULL,
		istate INTEGER NOT NULL,
		PRIMARY KEY (ipnfsid, itype, ilocation),
		FOREIGN KEY (ipnfsid) REFERENCES t_inodes(ipnfsid) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS t_storageinfo (
		ipnfsid VARCHAR(36) PRIMARY KEY,
		ihsmName VARCHAR(64) NOT NULL,
		istorageGroup VARCHAR(255) NOT NULL,
		istorageSubGroup VARCHAR(255) NOT NULL,
		FOREIGN KEY (ipnfsid) REFERENCES t_inodes(ipnfsid) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS t_access_latency (
		ipnfsid VARCHAR(36) PRIMARY KEY,
		iaccessLatency INTEGER NOT NULL,
		FOREIGN KEY (ipnfsid) REFERENCES t_inodes(ipnfsid) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS t_retention_policy (
		ipnfsid VARCHAR(36) PRIMARY KEY,
		iretentionPolicy INTEGER NOT NULL,
		FOREIGN KEY (ipnfsid) REFERENCES t_inodes(ipnfsid) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS t_inodes_checksum (
		ipnfsid VARCHAR(36) NOT NULL,
		itype INTEGER NOT NULL,
		isum VARCHAR(255) NOT NULL,
		PRIMARY KEY (ipnfsid, itype),
		FOREIGN KEY (ipnfsid) REFERENCES t_inodes(ipnfsid) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS t_acl (
		rs_id VARCHAR(36) NOT NULL,
		rs_type INTEGER NOT NULL,
		type INTEGER NOT NULL,
		flags INTEGER NOT NULL,
		access_msk INTEGER NOT NULL,
		who INTEGER NOT NULL,
		who_id INTEGER NOT NULL,
		ace_order INTEGER NOT NULL,
		PRIMARY KEY (rs_id, ace_order)
	)`,
	`CREATE INDEX IF NOT EXISTS i_dirs_ipnfsid ON t_dirs(ipnfsid)`,
	`CREATE INDEX IF NOT EXISTS i_tags_itagid ON t_tags(itagid)`,
}

func levelTableDDL(level int) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS t_level_%d (
		ipnfsid VARCHAR(36) PRIMARY KEY,
		imode INTEGER NOT NULL,
		inlink INTEGER NOT NULL,
		iuid INTEGER NOT NULL,
		igid INTEGER NOT NULL,
		isize BIGINT NOT NULL,
		iatime BIGINT NOT NULL,
		ictime BIGINT NOT NULL,
		imtime BIGINT NOT NULL,
		ifiledata BLOB,
		FOREIGN KEY (ipnfsid) REFERENCES t_inodes(ipnfsid) ON DELETE CASCADE
	)`, level)
}

// CreateSchema creates all namespace tables. Production deployments manage
// the schema out of band; this exists for tests and single node bootstrap.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	for level := 1; level <= maxLevel; level++ {
		if _, err := db.ExecContext(ctx, levelTableDDL(level)); err != nil {
			return err
		}
	}
	return nil
}

// CreateRoot inserts the well-known root inode with its two self
// references. It is a no-op when the root already exists.
func CreateRoot(ctx context.Context, db bun.IDB) error {
	var n int
	err := db.NewRaw("SELECT count(ipnfsid) FROM t_inodes WHERE ipnfsid=?", proto.RootID).Scan(ctx, &n)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	now := time.Now().UnixMilli()
	_, err = db.ExecContext(ctx,
		"INSERT INTO t_inodes (ipnfsid,itype,imode,inlink,iuid,igid,isize,iio,ictime,iatime,imtime,icrtime,igeneration) "+
			"VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)",
		proto.RootID, proto.SIFDIR, 0o755, 2, 0, 0, 512, ioModeDisable, now, now, now, now, 0)
	if err != nil {
		return err
	}
	for _, name := range []string{".", ".."} {
		_, err = db.ExecContext(ctx, "INSERT INTO t_dirs VALUES(?,?,?)", proto.RootID, name, proto.RootID)
		if err != nil {
			return err
		}
	}
	return nil
}
