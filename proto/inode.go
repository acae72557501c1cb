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

package proto

import (
	"strings"

	"github.com/google/uuid"
)

// InodeID is the stable identifier of a namespace node, a 36 character
// uppercase token.
type InodeID string

// RootID is the well-known identifier of the filesystem root.
const RootID InodeID = "000000000000000000000000000000000000"

// NewInodeID allocates a fresh inode identifier.
func NewInodeID() InodeID {
	return InodeID(strings.ToUpper(uuid.NewString()))
}

func (id InodeID) String() string {
	return string(id)
}

// File type bits encoded in the high bits of the mode, POSIX style.
const (
	SIFMT   = 0o170000
	SIFREG  = 0o100000
	SIFDIR  = 0o040000
	SIFLNK  = 0o120000
	SIFSOCK = 0o140000
	SIFCHR  = 0o020000
	SIFBLK  = 0o060000
	SIFIFO  = 0o010000

	// SPerms masks the permission bits of a mode.
	SPerms = 0o7777
)

// TypeOf extracts the file type bits of mode.
func TypeOf(mode uint32) uint32 {
	return mode & SIFMT
}

// DirectoryEntry is a single (name, stat) pair yielded by a directory
// stream.
type DirectoryEntry struct {
	Name string
	Stat *Stat
}

// FsStat holds filesystem wide totals.
type FsStat struct {
	TotalSpace int64 `json:"total_space"`
	TotalFiles int64 `json:"total_files"`
	UsedSpace  int64 `json:"used_space"`
	UsedFiles  int64 `json:"used_files"`
}
