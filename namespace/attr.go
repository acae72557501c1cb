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
	"strings"
	"time"

	"github.com/masstor/namespacedb/proto"
)

// SetInodeAttributes applies the attributes marked defined on stat with a
// single dynamic UPDATE. ctime is bumped to now unless the caller provided
// one; a size update implies an mtime update; sizes can only be set on
// regular files. Level 0 updates also advance the generation counter.
func (d *Driver) SetInodeAttributes(ctx context.Context, inode proto.InodeID, level int, stat *proto.Stat) (bool, error) {
	if err := checkLevel(level); err != nil {
		return false, err
	}

	query, args := buildAttrUpdate(inode, level, stat)
	n, err := d.exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func buildAttrUpdate(inode proto.InodeID, level int, stat *proto.Stat) (string, []interface{}) {
	var sb strings.Builder
	args := make([]interface{}, 0, 12)

	if level == 0 {
		sb.WriteString("UPDATE t_inodes SET ictime=?,igeneration=igeneration+1")
	} else {
		sb.WriteString("UPDATE " + levelTable(level) + " SET ictime=?")
	}

	ctime := time.Now().UnixMilli()
	if stat.IsDefined(proto.AttrCTime) {
		ctime = stat.CTime
	}
	args = append(args, ctime)

	// setting the size always must trigger an mtime update
	if stat.IsDefined(proto.AttrSize) && !stat.IsDefined(proto.AttrMTime) {
		stat.SetMTime(ctime)
	}

	// NOTICE: the clause order must match the argument order below.
	if stat.IsDefined(proto.AttrUID) {
		sb.WriteString(",iuid=?")
		args = append(args, stat.UID)
	}
	if stat.IsDefined(proto.AttrGID) {
		sb.WriteString(",igid=?")
		args = append(args, stat.GID)
	}
	if stat.IsDefined(proto.AttrSize) {
		sb.WriteString(",isize=?")
		args = append(args, stat.Size)
	}
	if stat.IsDefined(proto.AttrMode) {
		sb.WriteString(",imode=?")
		args = append(args, stat.Mode&proto.SPerms)
	}
	if stat.IsDefined(proto.AttrMTime) {
		sb.WriteString(",imtime=?")
		args = append(args, stat.MTime)
	}
	if stat.IsDefined(proto.AttrATime) {
		sb.WriteString(",iatime=?")
		args = append(args, stat.ATime)
	}
	if stat.IsDefined(proto.AttrCrTime) {
		sb.WriteString(",icrtime=?")
		args = append(args, stat.CrTime)
	}
	if level == 0 {
		if stat.IsDefined(proto.AttrAccessLatency) {
			sb.WriteString(",iaccess_latency=?")
			args = append(args, int(stat.AccessLatency))
		}
		if stat.IsDefined(proto.AttrRetentionPolicy) {
			sb.WriteString(",iretention_policy=?")
			args = append(args, int(stat.RetentionPolicy))
		}
	}

	if level == 0 && stat.IsDefined(proto.AttrSize) {
		// directory sizes are synthetic and immutable
		sb.WriteString(" WHERE ipnfsid=? AND itype = 32768")
	} else {
		sb.WriteString(" WHERE ipnfsid=?")
	}
	args = append(args, inode)

	return sb.String(), args
}
