package namespace

import (
	"context"
	"time"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/uptrace/bun"
	"golang.org/x/sync/singleflight"
)

const defaultSweepInterval = time.Hour

// TagSweeper periodically deletes tag inodes that lost their last link to
// a racing removal. The race window is documented on RemoveTags; the
// sweeper is the agreed way of closing it without row locks.
type TagSweeper struct {
	db       *bun.DB
	interval time.Duration

	singleRun singleflight.Group
	stopc     chan struct{}
	done      chan struct{}
}

func NewTagSweeper(db *bun.DB, interval time.Duration) *TagSweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &TagSweeper{
		db:       db,
		interval: interval,
		stopc:    make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the background sweep loop.
func (s *TagSweeper) Start() {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				span, ctx := trace.StartSpanFromContext(context.Background(), "tag-sweep")
				if n, err := s.Sweep(ctx); err != nil {
					span.Errorf("tag sweep failed: %s", err)
				} else if n > 0 {
					span.Infof("removed %d orphaned tag inodes", n)
				}
			case <-s.stopc:
				return
			}
		}
	}()
}

// Sweep removes all unreferenced tag inodes, returning how many were
// deleted. Concurrent calls collapse into one sweep.
func (s *TagSweeper) Sweep(ctx context.Context) (int64, error) {
	n, err, _ := s.singleRun.Do("sweep", func() (interface{}, error) {
		res, err := s.db.ExecContext(ctx,
			"DELETE FROM t_tags_inodes WHERE NOT EXISTS "+
				"(SELECT 1 FROM t_tags WHERE t_tags.itagid = t_tags_inodes.itagid)")
		if err != nil {
			return int64(0), err
		}
		return res.RowsAffected()
	})
	if err != nil {
		return 0, err
	}
	return n.(int64), nil
}

// Close stops the sweep loop and waits for it to exit.
func (s *TagSweeper) Close() {
	close(s.stopc)
	<-s.done
}
