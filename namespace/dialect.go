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
	"errors"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/masstor/namespacedb/proto"
)

// sqlStater is implemented by drivers that expose the five character
// SQLSTATE of an error.
type sqlStater interface {
	SQLState() string
}

const (
	sqlStateForeignKeyViolation = "23503"
	sqlStateUniqueViolation     = "23505"
)

// dialectOps is the per-dialect statement record. A dialect overrides
// individual entries; everything it leaves alone falls back to the
// defaults.
type dialectOps struct {
	name string

	// upsertData replaces the level 0 blob of inode.
	upsertData func(ctx context.Context, d *Driver, inode proto.InodeID, data []byte) error

	isForeignKeyViolation func(err error) bool
	isDuplicateKey        func(err error) bool
}

var dialects = map[string]dialectOps{}

func registerDialect(ops dialectOps) {
	dialects[ops.name] = ops
}

func init() {
	registerDialect(pgOps())
	registerDialect(mysqlOps())
}

func defaultOps() dialectOps {
	return dialectOps{
		name:                  "default",
		upsertData:            defaultUpsertData,
		isForeignKeyViolation: defaultIsForeignKey,
		isDuplicateKey:        defaultIsDuplicateKey,
	}
}

// defaultUpsertData probes for an existing row and updates or inserts.
// Portable but two round-trips; dialects with a native upsert override it.
func defaultUpsertData(ctx context.Context, d *Driver, inode proto.InodeID, data []byte) error {
	var n int
	err := d.db.NewRaw("SELECT count(ipnfsid) FROM t_inodes_data WHERE ipnfsid=?", inode).Scan(ctx, &n)
	if err != nil {
		return d.translate(err)
	}
	if n > 0 {
		_, err = d.exec(ctx, "UPDATE t_inodes_data SET ifiledata=? WHERE ipnfsid=?", data, inode)
	} else {
		_, err = d.exec(ctx, "INSERT INTO t_inodes_data VALUES (?,?)", inode, data)
	}
	return err
}

func defaultIsForeignKey(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	var st sqlStater
	if errors.As(err, &st) {
		return st.SQLState() == sqlStateForeignKeyViolation
	}
	return false
}

func defaultIsDuplicateKey(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var st sqlStater
	if errors.As(err, &st) {
		return st.SQLState() == sqlStateUniqueViolation
	}
	return false
}

func pgOps() dialectOps {
	ops := defaultOps()
	ops.name = "PgSQL"
	ops.upsertData = func(ctx context.Context, d *Driver, inode proto.InodeID, data []byte) error {
		_, err := d.exec(ctx,
			"INSERT INTO t_inodes_data VALUES (?,?) ON CONFLICT (ipnfsid) DO UPDATE SET ifiledata=EXCLUDED.ifiledata",
			inode, data)
		return err
	}
	ops.isForeignKeyViolation = func(err error) bool {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			return string(pqErr.Code) == sqlStateForeignKeyViolation
		}
		return defaultIsForeignKey(err)
	}
	ops.isDuplicateKey = func(err error) bool {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			return string(pqErr.Code) == sqlStateUniqueViolation
		}
		return defaultIsDuplicateKey(err)
	}
	return ops
}

func mysqlOps() dialectOps {
	ops := defaultOps()
	ops.name = "MySQL"
	ops.isForeignKeyViolation = func(err error) bool {
		var myErr *mysqldrv.MySQLError
		if errors.As(err, &myErr) {
			// 1216/1452: cannot add or update a child row
			return myErr.Number == 1216 || myErr.Number == 1452
		}
		return defaultIsForeignKey(err)
	}
	ops.isDuplicateKey = func(err error) bool {
		var myErr *mysqldrv.MySQLError
		if errors.As(err, &myErr) {
			return myErr.Number == 1062
		}
		return defaultIsDuplicateKey(err)
	}
	return ops
}
