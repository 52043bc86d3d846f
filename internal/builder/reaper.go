package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// handle is the subset of *process.Process the reaper needs.
type handle interface {
	ExeWithContext(ctx context.Context) (string, error)
	TerminateWithContext(ctx context.Context) error
	KillWithContext(ctx context.Context) error
	IsRunningWithContext(ctx context.Context) (bool, error)
}

type procEntry struct {
	pid int32
	h   handle
}

// Reaper stops leftover instances of the build tool before a new run.
type Reaper struct {
	executable string
	logger     *zap.Logger
	grace      time.Duration
	killWait   time.Duration
	poll       time.Duration
	list       func(ctx context.Context) ([]procEntry, error)
}

// NewReaper creates a reaper for processes running executable.
func NewReaper(executable string, logger *zap.Logger) *Reaper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reaper{
		executable: executable,
		logger:     logger.Named("reaper"),
		grace:      5 * time.Second,
		killWait:   3 * time.Second,
		poll:       100 * time.Millisecond,
		list:       listProcesses,
	}
}

func listProcesses(ctx context.Context) ([]procEntry, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]procEntry, len(procs))
	for i, p := range procs {
		entries[i] = procEntry{pid: p.Pid, h: p}
	}
	return entries, nil
}

// Reap terminates every process whose executable resolves to the configured
// tool, killing the ones that ignore the request. It returns how many
// processes were found.
func (r *Reaper) Reap(ctx context.Context) (int, error) {
	if r.executable == "" {
		return 0, nil
	}
	target := resolve(r.executable)

	entries, err := r.list(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list processes: %w", err)
	}

	self := int32(os.Getpid())
	var matches []procEntry
	for _, e := range entries {
		if e.pid == self {
			continue
		}
		exe, err := e.h.ExeWithContext(ctx)
		if err != nil || exe == "" {
			continue
		}
		if samePath(resolve(exe), target) {
			matches = append(matches, e)
		}
	}
	if len(matches) == 0 {
		return 0, nil
	}

	r.logger.Info("stopping stray build tool processes", zap.Int("count", len(matches)))
	for _, m := range matches {
		if err := m.h.TerminateWithContext(ctx); err != nil {
			r.logger.Warn("terminate failed", zap.Int32("pid", m.pid), zap.Error(err))
		}
	}

	survivors := r.waitAll(ctx, matches, r.grace)
	if len(survivors) == 0 {
		return len(matches), nil
	}

	for _, m := range survivors {
		r.logger.Warn("killing unresponsive process", zap.Int32("pid", m.pid))
		if err := m.h.KillWithContext(ctx); err != nil {
			r.logger.Warn("kill failed", zap.Int32("pid", m.pid), zap.Error(err))
		}
	}

	if left := r.waitAll(ctx, survivors, r.killWait); len(left) > 0 {
		return len(matches), fmt.Errorf("%d build tool process(es) still running", len(left))
	}
	return len(matches), nil
}

// waitAll waits up to d for each process to exit and returns the ones still
// running.
func (r *Reaper) waitAll(ctx context.Context, entries []procEntry, d time.Duration) []procEntry {
	alive := make([]bool, len(entries))

	eg, egCtx := errgroup.WithContext(ctx)
	for i, e := range entries {
		eg.Go(func() error {
			alive[i] = !r.waitGone(egCtx, e.h, d)
			return nil
		})
	}
	_ = eg.Wait()

	var left []procEntry
	for i, e := range entries {
		if alive[i] {
			left = append(left, e)
		}
	}
	return left
}

func (r *Reaper) waitGone(ctx context.Context, h handle, d time.Duration) bool {
	deadline := time.NewTimer(d)
	defer deadline.Stop()
	tick := time.NewTicker(r.poll)
	defer tick.Stop()

	for {
		running, err := h.IsRunningWithContext(ctx)
		if err != nil || !running {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-tick.C:
		}
	}
}

func resolve(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return filepath.Clean(path)
}

func samePath(a, b string) bool {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		return strings.EqualFold(a, b)
	}
	return a == b
}
