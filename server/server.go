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

package server

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cubefs/cubefs/blobstore/common/rpc"
	"github.com/cubefs/cubefs/blobstore/common/rpc/auditlog"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/masstor/namespacedb/namespace"
	"github.com/masstor/namespacedb/routing"
)

// DBConfig selects the database the namespace lives in. Dialect is both
// the driver selector and the statement-dialect name handed to the
// engine.
type DBConfig struct {
	Dialect string `json:"dialect"`
	DSN     string `json:"dsn"`

	// CreateSchema bootstraps tables and the root inode at startup; for
	// single node and test deployments.
	CreateSchema bool `json:"create_schema"`

	SweepIntervalS int `json:"sweep_interval_s"`
}

type Config struct {
	DBConfig        DBConfig         `json:"db_config"`
	NamespaceConfig namespace.Config `json:"namespace_config"`
	AuditLog        auditlog.Config  `json:"audit_log"`
}

// Server ties the namespace engine to its process surfaces: the admin
// HTTP endpoints and the cell routing table.
type Server struct {
	fs      *namespace.FS
	routes  *routing.Table
	sweeper *namespace.TagSweeper
	db      *bun.DB

	audit     rpc.ProgressHandler
	auditFile auditlog.LogCloser
}

func NewServer(cfg *Config) (*Server, error) {
	cfg.NamespaceConfig.Dialect = cfg.DBConfig.Dialect

	var (
		audit     rpc.ProgressHandler
		auditFile auditlog.LogCloser
	)
	if cfg.AuditLog.LogDir != "" {
		var err error
		audit, auditFile, err = auditlog.Open("NAMESPACEDB", &cfg.AuditLog)
		if err != nil {
			return nil, err
		}
	}

	db, err := openDB(&cfg.DBConfig)
	if err != nil {
		if auditFile != nil {
			auditFile.Close()
		}
		return nil, err
	}

	if cfg.DBConfig.CreateSchema {
		ctx := context.Background()
		if err := namespace.CreateSchema(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		if err := namespace.CreateRoot(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
	}

	sweeper := namespace.NewTagSweeper(db, time.Duration(cfg.DBConfig.SweepIntervalS)*time.Second)
	sweeper.Start()

	return &Server{
		fs:        namespace.NewFS(db, &cfg.NamespaceConfig),
		routes:    routing.NewTable(),
		sweeper:   sweeper,
		db:        db,
		audit:     audit,
		auditFile: auditFile,
	}, nil
}

// FS returns the namespace facade.
func (s *Server) FS() *namespace.FS {
	return s.fs
}

// Routes returns the cell routing table.
func (s *Server) Routes() *routing.Table {
	return s.routes
}

func (s *Server) Close() {
	s.sweeper.Close()
	s.db.Close()
	if s.auditFile != nil {
		s.auditFile.Close()
	}
}

func openDB(cfg *DBConfig) (*bun.DB, error) {
	switch cfg.Dialect {
	case "", "PgSQL":
		sqldb, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, err
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	case "MySQL":
		sqldb, err := sql.Open("mysql", cfg.DSN)
		if err != nil {
			return nil, err
		}
		return bun.NewDB(sqldb, mysqldialect.New()), nil
	case "SQLite":
		sqldb, err := sql.Open("sqlite3", cfg.DSN)
		if err != nil {
			return nil, err
		}
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	default:
		return nil, fmt.Errorf("unknown database dialect %q", cfg.Dialect)
	}
}
