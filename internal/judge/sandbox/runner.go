// Package sandbox executes untrusted programs one process at a time, each
// inside a fresh working directory, with captured stdio and a hard
// wall-clock deadline enforced by killing the whole process group.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

const (
	defaultWallTimeoutMs   = 5000
	defaultOutputMaxBytes  = 64 * 1024
	defaultTimeCommand     = "/usr/bin/time"
	memoryMeasurementsFile = "peak_rss.txt"
)

// Config controls the runner. TimeCommand points at a GNU-time style
// binary used to sample peak RSS; when it is absent memory measurement is
// skipped and MemoryKb stays nil.
type Config struct {
	WorkRoot       string `yaml:"workRoot"`
	WallTimeoutMs  int64  `yaml:"wallTimeoutMs"`
	OutputMaxBytes int64  `yaml:"outputMaxBytes"`
	TimeCommand    string `yaml:"timeCommand"`
}

// SetDefaults fills zero-valued fields.
func (c *Config) SetDefaults() {
	if c.WorkRoot == "" {
		c.WorkRoot = filepath.Join(os.TempDir(), "clashoj")
	}
	if c.WallTimeoutMs <= 0 {
		c.WallTimeoutMs = defaultWallTimeoutMs
	}
	if c.OutputMaxBytes <= 0 {
		c.OutputMaxBytes = defaultOutputMaxBytes
	}
	if c.TimeCommand == "" {
		c.TimeCommand = defaultTimeCommand
	}
}

// ExecSpec describes one run of an already-prepared program.
type ExecSpec struct {
	Cmd     []string
	Stdin   string
	WorkDir string
	// TimeoutMs overrides the configured wall deadline when positive.
	TimeoutMs int64
}

// CompileSpec describes one compiler invocation.
type CompileSpec struct {
	Cmd     []string
	WorkDir string
}

// Runner executes processes under the sandbox contract.
type Runner struct {
	cfg         Config
	timeWrapper string
}

// NewRunner creates a runner. It probes TimeCommand once; a missing
// wrapper degrades to no memory measurement rather than failing.
func NewRunner(cfg Config) *Runner {
	cfg.SetDefaults()
	r := &Runner{cfg: cfg}
	if info, err := os.Stat(cfg.TimeCommand); err == nil && !info.IsDir() {
		r.timeWrapper = cfg.TimeCommand
	}
	return r
}

// WorkRoot returns the directory workspaces are created under.
func (r *Runner) WorkRoot() string {
	return r.cfg.WorkRoot
}

// NewWorkspace creates a fresh per-job directory under the work root.
func (r *Runner) NewWorkspace() (*Workspace, error) {
	return NewWorkspace(r.cfg.WorkRoot)
}

// Compile runs one compiler invocation. Every way this can go wrong
// (compiler missing, nonzero exit, deadline hit) is a compile failure;
// the caller never attempts execution afterwards.
func (r *Runner) Compile(ctx context.Context, spec CompileSpec) Outcome {
	out := r.run(ctx, ExecSpec{Cmd: spec.Cmd, WorkDir: spec.WorkDir}, false)
	if out.Failure != nil {
		out.Failure = &Failure{Kind: FailCompile, Message: out.Failure.Message}
	}
	return out
}

// Execute runs one prepared program with optional stdin.
func (r *Runner) Execute(ctx context.Context, spec ExecSpec) Outcome {
	return r.run(ctx, spec, true)
}

func (r *Runner) run(ctx context.Context, spec ExecSpec, measureMemory bool) Outcome {
	if len(spec.Cmd) == 0 {
		return Outcome{Failure: &Failure{Kind: FailSpawn, Message: "empty command"}}
	}

	argv := spec.Cmd
	memPath := ""
	if measureMemory && r.timeWrapper != "" && spec.WorkDir != "" {
		memPath = filepath.Join(spec.WorkDir, memoryMeasurementsFile)
		argv = append([]string{r.timeWrapper, "-f", "%M", "-o", memPath}, spec.Cmd...)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = spec.WorkDir
	setProcAttrs(cmd)

	stdout := newCappedBuffer(r.cfg.OutputMaxBytes)
	stderr := newCappedBuffer(r.cfg.OutputMaxBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	var stdinPipe *os.File
	if spec.Stdin != "" {
		pr, pw, err := os.Pipe()
		if err != nil {
			return Outcome{Failure: &Failure{Kind: FailSpawn, Message: fmt.Sprintf("stdin pipe: %v", err)}}
		}
		cmd.Stdin = pr
		stdinPipe = pw
		defer pr.Close()
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		if stdinPipe != nil {
			stdinPipe.Close()
		}
		return Outcome{Failure: &Failure{Kind: FailSpawn, Message: err.Error()}}
	}

	// Write stdin fully then close so a program blocked on a read sees
	// EOF and can terminate normally.
	if stdinPipe != nil {
		go func() {
			_, _ = stdinPipe.WriteString(spec.Stdin)
			stdinPipe.Close()
		}()
	}

	timeout := time.Duration(r.cfg.WallTimeoutMs) * time.Millisecond
	if spec.TimeoutMs > 0 {
		timeout = time.Duration(spec.TimeoutMs) * time.Millisecond
	}

	var timedOut atomic.Bool
	done := make(chan struct{})
	go func() {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			killProcessGroup(cmd.Process.Pid)
		case <-timer.C:
			timedOut.Store(true)
			killProcessGroup(cmd.Process.Pid)
		case <-done:
		}
	}()

	waitErr := cmd.Wait()
	close(done)

	out := Outcome{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		WallTimeMs: time.Since(start).Milliseconds(),
		ExitCode:   exitCodeFrom(waitErr, cmd),
	}
	if memPath != "" {
		out.MemoryKb = readPeakRss(memPath)
	}

	switch {
	case timedOut.Load():
		out.Failure = &Failure{
			Kind:    FailTimeout,
			Message: fmt.Sprintf("killed after %s wall time", timeout),
		}
	case waitErr != nil || out.ExitCode != 0:
		out.Failure = &Failure{Kind: FailRuntime, Message: runtimeMessage(out)}
	}
	return out
}

func runtimeMessage(out Outcome) string {
	msg := strings.TrimSpace(out.Stderr)
	if msg == "" {
		msg = fmt.Sprintf("process exited with code %d", out.ExitCode)
	}
	return msg
}

func exitCodeFrom(err error, cmd *exec.Cmd) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// readPeakRss parses the GNU time "%M" output (peak RSS in KB). Any
// problem reading or parsing it means the measurement is simply absent.
func readPeakRss(path string) *int64 {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	// On a signalled child GNU time prepends a diagnostic line; the
	// number is always the last non-empty line.
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	kb, err := strconv.ParseInt(last, 10, 64)
	if err != nil || kb < 0 {
		return nil
	}
	return &kb
}

// cappedBuffer keeps the first max bytes written and silently discards
// the rest, so a program spewing output cannot exhaust worker memory.
type cappedBuffer struct {
	buf bytes.Buffer
	max int64
}

func newCappedBuffer(max int64) *cappedBuffer {
	return &cappedBuffer{max: max}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	remain := b.max - int64(b.buf.Len())
	if remain <= 0 {
		return len(p), nil
	}
	if int64(len(p)) > remain {
		b.buf.Write(p[:remain])
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	return b.buf.String()
}
