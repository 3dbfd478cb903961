// Package packager runs PyInstaller through the target interpreter.
package packager

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultGrace is how long a cancelled build may take to exit after the
// interrupt before it is killed.
const DefaultGrace = 10 * time.Second

// Runner implements domain.Packager.
type Runner struct {
	grace  time.Duration
	logger *log.Logger
}

func New(grace time.Duration, logger *log.Logger) *Runner {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Runner{grace: grace, logger: logger}
}

// Run executes `<interpreter> -m PyInstaller <args>` and passes every output
// line, stdout and stderr interleaved, to onLine. Cancelling ctx sends an
// interrupt; the process is killed if it is still running after the grace
// period. The exit code is returned even when ctx was cancelled.
func (r *Runner) Run(ctx context.Context, interpreter string, args []string, onLine func(string)) (int, error) {
	cmd := exec.CommandContext(ctx, interpreter, append([]string{"-m", "PyInstaller"}, args...)...)
	cmd.Cancel = func() error {
		r.logger.Info("interrupting packager", "pid", cmd.Process.Pid)
		if runtime.GOOS == "windows" {
			return cmd.Process.Kill()
		}
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = r.grace

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			if onLine != nil {
				onLine(scanner.Text())
			}
		}
		// Keep draining so the writers never block.
		_, _ = io.Copy(io.Discard, pr)
	}()

	if err := cmd.Start(); err != nil {
		pw.Close()
		<-done
		return -1, fmt.Errorf("starting %s: %w", interpreter, err)
	}
	r.logger.Debug("packager started", "pid", cmd.Process.Pid, "args", len(args))

	waitErr := cmd.Wait()
	pw.Close()
	<-done

	code := -1
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
	}
	if ctx.Err() != nil {
		return code, ctx.Err()
	}
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return code, waitErr
	}
	return code, nil
}

// Version returns the PyInstaller version installed for interpreter.
func (r *Runner) Version(ctx context.Context, interpreter string) (string, error) {
	out, err := exec.CommandContext(ctx, interpreter, "-m", "PyInstaller", "--version").Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("PyInstaller not available for %s: %s", interpreter, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("running %s: %w", interpreter, err)
	}
	return strings.TrimSpace(string(out)), nil
}
