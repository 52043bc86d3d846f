// Package builder runs the external build tool headlessly and decides
// whether a run really succeeded.
//
// A run is only successful when the process exits with status zero and,
// for build entry points, the expected artifact appears on disk within the
// verification window.
package builder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/pders01/simforge/internal/fsutil"
	"github.com/pders01/simforge/internal/models"
)

const (
	defaultMaxOutput = 1 << 20
	tailBytes        = 2000
)

// Options configure a Supervisor.
type Options struct {
	Executable string
	Version    string
	Workspace  string
	Product    string

	StatusInterval time.Duration
	SizeInterval   time.Duration
	SizeDelta      int64
	JoinTimeout    time.Duration

	VerifyAttempts int
	VerifyStep     time.Duration

	MaxOutput int64
}

func (o *Options) setDefaults() {
	if o.Product == "" {
		o.Product = "Simulation"
	}
	if o.StatusInterval <= 0 {
		o.StatusInterval = time.Second
	}
	if o.SizeInterval <= 0 {
		o.SizeInterval = 5 * time.Second
	}
	if o.SizeDelta <= 0 {
		o.SizeDelta = 1 << 20
	}
	if o.JoinTimeout <= 0 {
		o.JoinTimeout = time.Second
	}
	if o.VerifyAttempts <= 0 {
		o.VerifyAttempts = 6
	}
	if o.VerifyStep < 0 {
		o.VerifyStep = 0
	}
	if o.MaxOutput <= 0 {
		o.MaxOutput = defaultMaxOutput
	}
}

// Batch is one headless invocation.
type Batch struct {
	Operation  string
	EntryPoint string
	LogFile    string
	Timeout    time.Duration
	ExtraArgs  []string
	// Verify polls for the build artifact after a zero exit.
	Verify bool
}

// Result records what happened during a run. It is returned alongside
// process and verification errors.
type Result struct {
	RunID      string
	Operation  string
	Args       []string
	LogFile    string
	ExitCode   int
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	Stdout     string
	Stderr     string
	Truncated  bool
	Artifact   string
}

// StatusFunc receives progress lines. It may be called from another
// goroutine.
type StatusFunc func(string)

// Supervisor runs batches one at a time. It does not serialise calls itself.
type Supervisor struct {
	opts   Options
	fs     afero.Fs
	logger *zap.Logger
	status StatusFunc
	goos   string
	sleep  func(time.Duration)
}

// New creates a supervisor. fsys is used for preflight checks, size
// sampling and artifact verification.
func New(opts Options, fsys afero.Fs, logger *zap.Logger, status StatusFunc) *Supervisor {
	opts.setDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{
		opts:   opts,
		fs:     fsys,
		logger: logger.Named("builder"),
		status: status,
		goos:   runtime.GOOS,
		sleep:  time.Sleep,
	}
}

// Artifact returns the path the build is expected to produce.
func (s *Supervisor) Artifact() string {
	return ArtifactPath(s.opts.Workspace, s.goos, s.opts.Product)
}

// Target returns the build target for the host platform.
func (s *Supervisor) Target() string {
	return BuildTarget(s.goos)
}

// Preflight checks the tool and workspace without starting anything.
func (s *Supervisor) Preflight() error {
	const op = "preflight"

	if s.opts.Executable == "" {
		return models.Errorf(models.KindConfiguration, op, "build tool executable is not configured")
	}
	if !fsutil.IsFile(s.fs, s.opts.Executable) {
		return models.Errorf(models.KindConfiguration, op, "build tool not found at %s", s.opts.Executable)
	}
	if s.opts.Version == "" {
		return models.Errorf(models.KindConfiguration, op, "build tool version is not configured")
	}
	if !strings.Contains(s.opts.Executable, s.opts.Version) {
		return models.Errorf(models.KindConfiguration, op, "build tool at %s is not version %s", s.opts.Executable, s.opts.Version)
	}
	if !fsutil.IsDir(s.fs, s.opts.Workspace) {
		return models.Errorf(models.KindConfiguration, op, "workspace %s does not exist", s.opts.Workspace)
	}
	return nil
}

// Run executes b and blocks until the process exits or its timeout fires.
// Cancelling ctx does not stop the child; only b.Timeout does.
func (s *Supervisor) Run(ctx context.Context, b Batch) (*Result, error) {
	if err := s.Preflight(); err != nil {
		return nil, err
	}
	op := b.Operation
	if op == "" {
		op = b.EntryPoint
	}

	workspace, err := filepath.Abs(s.opts.Workspace)
	if err != nil {
		return nil, models.Wrap(models.KindConfiguration, op, err, "failed to resolve workspace")
	}
	logFile := b.LogFile
	if logFile != "" && !filepath.IsAbs(logFile) {
		logFile = filepath.Join(workspace, logFile)
	}

	args := []string{"-batchmode", "-quit", "-projectPath", workspace, "-executeMethod", b.EntryPoint}
	if logFile != "" {
		args = append(args, "-logFile", logFile)
	}
	args = append(args, b.ExtraArgs...)

	result := &Result{
		RunID:     uuid.NewString(),
		Operation: op,
		Args:      args,
		LogFile:   logFile,
		ExitCode:  -1,
	}
	log := s.logger.With(zap.String("run_id", result.RunID), zap.String("op", op))

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if b.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), b.Timeout)
	} else {
		runCtx, cancel = context.WithCancel(context.WithoutCancel(ctx))
	}
	defer cancel()

	var stdoutBuf, stderrBuf bytes.Buffer
	stdout := &limitedWriter{w: &stdoutBuf, max: s.opts.MaxOutput}
	stderr := &limitedWriter{w: &stderrBuf, max: s.opts.MaxOutput}

	cmd := exec.CommandContext(runCtx, s.opts.Executable, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = 5 * time.Second
	hideWindow(cmd)

	log.Info("starting build tool",
		zap.String("entry_point", b.EntryPoint),
		zap.Strings("args", args),
		zap.Duration("timeout", b.Timeout))

	result.StartedAt = time.Now()
	hbCtx, stopHeartbeat := context.WithCancel(context.Background())
	done := make(chan struct{})
	go s.heartbeat(hbCtx, op, result.StartedAt, log, done)

	runErr := cmd.Run()

	stopHeartbeat()
	select {
	case <-done:
	case <-time.After(s.opts.JoinTimeout):
		log.Warn("heartbeat did not stop in time", zap.Duration("join_timeout", s.opts.JoinTimeout))
	}

	result.FinishedAt = time.Now()
	result.Duration = result.FinishedAt.Sub(result.StartedAt)
	result.Stdout = stdoutBuf.String()
	result.Stderr = stderrBuf.String()
	result.Truncated = stdout.truncated || stderr.truncated
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	if runErr != nil {
		perr := s.classify(runCtx, runErr, b, result)
		log.Error("build tool failed",
			zap.String("failure", string(perr.Failure)),
			zap.Int("exit_code", result.ExitCode),
			zap.Duration("took", result.Duration),
			zap.String("stderr_tail", tail(result.Stderr, tailBytes)),
			zap.Error(runErr))
		s.publish(fmt.Sprintf("[%s] Failed after %s", op, FormatElapsed(result.Duration)))
		return result, perr
	}

	log.Info("build tool exited", zap.Int("exit_code", result.ExitCode), zap.Duration("took", result.Duration))

	if b.Verify {
		artifact := ArtifactPath(workspace, s.goos, s.opts.Product)
		if !s.waitForArtifact(artifact) {
			log.Error("artifact missing after successful exit",
				zap.String("artifact", artifact),
				zap.Int("attempts", s.opts.VerifyAttempts),
				zap.String("stdout_tail", tail(result.Stdout, tailBytes)))
			s.publish(fmt.Sprintf("[%s] Finished but no build was produced", op))
			return result, models.Errorf(models.KindVerification, op,
				"build tool exited successfully but %s was not created (see %s)", artifact, logFile)
		}
		result.Artifact = artifact
		log.Info("artifact verified", zap.String("artifact", artifact))
	}

	s.publish(fmt.Sprintf("[%s] Completed in %s", op, FormatElapsed(result.Duration)))
	return result, nil
}

func (s *Supervisor) classify(runCtx context.Context, err error, b Batch, result *Result) *models.Error {
	perr := &models.Error{Kind: models.KindProcess, Op: result.Operation, Err: err}

	var exitErr *exec.ExitError
	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		perr.Failure = models.FailureTimeout
		perr.Msg = fmt.Sprintf("timed out after %s", b.Timeout)
	case errors.As(err, &exitErr):
		perr.Failure = models.FailureExitCode
		perr.Msg = fmt.Sprintf("exited with code %d (see %s)", exitErr.ExitCode(), result.LogFile)
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission), errors.Is(err, exec.ErrNotFound):
		perr.Failure = models.FailurePathPermission
		perr.Msg = "could not start build tool"
	default:
		perr.Failure = models.FailureUnexpected
		perr.Msg = "unexpected failure"
	}
	return perr
}

// waitForArtifact checks for path up to VerifyAttempts times, sleeping
// attempt*VerifyStep before each check. Files and directories both count.
func (s *Supervisor) waitForArtifact(path string) bool {
	for attempt := 0; attempt < s.opts.VerifyAttempts; attempt++ {
		s.sleep(time.Duration(attempt) * s.opts.VerifyStep)
		if _, err := s.fs.Stat(path); err == nil {
			return true
		}
	}
	return false
}
