package builder

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/pders01/simforge/internal/fsutil"
)

// heartbeat publishes elapsed time and samples the workspace size until ctx
// is cancelled. done is closed on return.
func (s *Supervisor) heartbeat(ctx context.Context, op string, start time.Time, log *zap.Logger, done chan<- struct{}) {
	defer close(done)

	statusTick := time.NewTicker(s.opts.StatusInterval)
	defer statusTick.Stop()
	sizeTick := time.NewTicker(s.opts.SizeInterval)
	defer sizeTick.Stop()

	last := int64(-1)
	sample := func(final bool) {
		size, err := fsutil.DirSize(s.fs, s.opts.Workspace)
		if err != nil {
			log.Debug("size sample failed", zap.Error(err))
			return
		}
		if final {
			log.Info("final workspace size", zap.String("size", humanize.Bytes(uint64(size))))
			return
		}
		if last < 0 || abs(size-last) > s.opts.SizeDelta {
			log.Info("workspace size", zap.String("size", humanize.Bytes(uint64(size))))
			last = size
		}
	}

	s.publish(fmt.Sprintf("[%s] Starting...", op))
	sample(false)

	for {
		select {
		case <-ctx.Done():
			sample(true)
			return
		case <-statusTick.C:
			s.publish(fmt.Sprintf("[%s] Running... Elapsed: %s", op, FormatElapsed(time.Since(start))))
		case <-sizeTick.C:
			sample(false)
		}
	}
}

func (s *Supervisor) publish(msg string) {
	if s.status != nil {
		s.status(msg)
	}
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
