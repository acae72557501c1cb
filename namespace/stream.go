package namespace

import (
	"context"
	"database/sql"

	"github.com/masstor/namespacedb/proto"
)

// DirectoryStream is a forward-only, non-restartable cursor over the
// entries of a directory with their stat records. Callers must Close the
// stream unless they drain it; an abandoned stream leaks a cursor.
type DirectoryStream struct {
	d    *Driver
	rows *sql.Rows
}

// NewDirectoryStream opens a lazy (name, stat) cursor over the directory,
// excluding the '.' and '..' self references.
func (d *Driver) NewDirectoryStream(ctx context.Context, dir proto.InodeID) (*DirectoryStream, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT d.iname, d.ipnfsid, i.isize, i.inlink, i.itype, i.imode, i.iuid, i.igid, "+
			"i.iatime, i.ictime, i.imtime, i.icrtime, i.igeneration, i.iaccess_latency, i.iretention_policy "+
			"FROM t_dirs d JOIN t_inodes i ON d.ipnfsid = i.ipnfsid "+
			"WHERE d.iparent=? AND d.iname NOT IN ('.', '..')", dir)
	if err != nil {
		return nil, d.translate(err)
	}
	return &DirectoryStream{d: d, rows: rows}, nil
}

// Next returns the following entry, or nil when the stream is exhausted.
// Exhaustion closes the cursor.
func (s *DirectoryStream) Next() (*proto.DirectoryEntry, error) {
	if !s.rows.Next() {
		err := s.rows.Err()
		s.rows.Close()
		return nil, err
	}

	var (
		name, id                                      string
		size, atime, ctime, mtime, crtime, generation int64
		nlink, uid, gid                               int
		itype, imode                                  uint32
		al, rp                                        sql.NullInt64
	)
	err := s.rows.Scan(&name, &id, &size, &nlink, &itype, &imode, &uid, &gid,
		&atime, &ctime, &mtime, &crtime, &generation, &al, &rp)
	if err != nil {
		return nil, s.d.translate(err)
	}

	stat := &proto.Stat{ID: proto.InodeID(id), Nlink: nlink, Generation: generation}
	stat.SetSize(size)
	stat.SetMode(imode | itype)
	stat.SetUID(uid)
	stat.SetGID(gid)
	stat.SetATime(atime)
	stat.SetCTime(ctime)
	stat.SetMTime(mtime)
	stat.SetCrTime(crtime)
	if al.Valid {
		stat.SetAccessLatency(proto.AccessLatency(al.Int64))
	}
	if rp.Valid {
		stat.SetRetentionPolicy(proto.RetentionPolicy(rp.Int64))
	}
	return &proto.DirectoryEntry{Name: name, Stat: stat}, nil
}

// Close releases the underlying cursor. It is safe to call after
// exhaustion.
func (s *DirectoryStream) Close() error {
	return s.rows.Close()
}
