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

// StatAttr identifies a single attribute of a Stat record. A Stat used as
// an update request carries a bitset of the attributes the caller actually
// set; the SQL builder emits clauses only for those.
type StatAttr uint16

const (
	AttrSize StatAttr = 1 << iota
	AttrMode
	AttrUID
	AttrGID
	AttrATime
	AttrMTime
	AttrCTime
	AttrCrTime
	AttrAccessLatency
	AttrRetentionPolicy
)

// Stat is the in-memory image of an inode row, or a sparse attribute
// update. Times are in milliseconds since the epoch.
type Stat struct {
	ID         InodeID
	Size       int64
	Mode       uint32
	Nlink      int
	UID        int
	GID        int
	ATime      int64
	MTime      int64
	CTime      int64
	CrTime     int64
	Generation int64

	AccessLatency   AccessLatency
	RetentionPolicy RetentionPolicy

	defined StatAttr
}

// IsDefined reports whether attr was explicitly set on this record.
func (s *Stat) IsDefined(attr StatAttr) bool {
	return s.defined&attr != 0
}

// IsDefinedAny reports whether at least one attribute was set.
func (s *Stat) IsDefinedAny() bool {
	return s.defined != 0
}

func (s *Stat) SetSize(size int64) {
	s.Size = size
	s.defined |= AttrSize
}

func (s *Stat) SetMode(mode uint32) {
	s.Mode = mode
	s.defined |= AttrMode
}

func (s *Stat) SetUID(uid int) {
	s.UID = uid
	s.defined |= AttrUID
}

func (s *Stat) SetGID(gid int) {
	s.GID = gid
	s.defined |= AttrGID
}

func (s *Stat) SetATime(millis int64) {
	s.ATime = millis
	s.defined |= AttrATime
}

func (s *Stat) SetMTime(millis int64) {
	s.MTime = millis
	s.defined |= AttrMTime
}

func (s *Stat) SetCTime(millis int64) {
	s.CTime = millis
	s.defined |= AttrCTime
}

func (s *Stat) SetCrTime(millis int64) {
	s.CrTime = millis
	s.defined |= AttrCrTime
}

func (s *Stat) SetAccessLatency(al AccessLatency) {
	s.AccessLatency = al
	s.defined |= AttrAccessLatency
}

func (s *Stat) SetRetentionPolicy(rp RetentionPolicy) {
	s.RetentionPolicy = rp
	s.defined |= AttrRetentionPolicy
}

// IsDirectory reports whether the record describes a directory.
func (s *Stat) IsDirectory() bool {
	return TypeOf(s.Mode) == SIFDIR
}

// IsRegular reports whether the record describes a regular file.
func (s *Stat) IsRegular() bool {
	return TypeOf(s.Mode) == SIFREG
}

// IsSymlink reports whether the record describes a symbolic link.
func (s *Stat) IsSymlink() bool {
	return TypeOf(s.Mode) == SIFLNK
}
