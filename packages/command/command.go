package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// StatusTimeout is the sentinel exit status recorded when a command was
// terminated because its timeout expired.
const StatusTimeout = 99

var errEmptyCommand = errors.New("empty command")

// RuntimeError wraps unexpected failures while starting or running the
// external command, as opposed to the command exiting non-zero.
type RuntimeError struct {
	Original error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Original)
}

func (e *RuntimeError) Unwrap() error {
	return e.Original
}

// Result holds everything a command execution produced. It is stored under
// the reserved $prev key after a test ran, so validators of later tests can
// reuse it.
type Result struct {
	Command []string
	Status  int
	Stdout  string
	Stderr  string
	Runtime time.Duration
}

// Output returns stdout and stderr merged, separated by a single newline.
func (r *Result) Output() string {
	var sb strings.Builder
	sb.WriteString(r.Stdout)
	if r.Stderr != "" {
		sb.WriteString("\n")
		sb.WriteString(r.Stderr)
	}
	return sb.String()
}

// TimedOut reports whether the command was killed by its timeout.
func (r *Result) TimedOut() bool {
	return r.Status == StatusTimeout
}

// Options configure a single command execution.
type Options struct {
	// Dir is the working directory, usually the directory containing the
	// test's configuration document.
	Dir string
	// Timeout terminates the command's process group on expiry. Zero means
	// no timeout.
	Timeout time.Duration
	// Env entries are layered over the process environment.
	Env map[string]string
	// Shell joins the argv and runs it through `sh -c`.
	Shell bool
}

// Run executes argv and captures the result. Timeout expiry yields a Result
// with StatusTimeout rather than an error; context cancellation (e.g. a user
// interrupt) terminates the command and returns the context's error.
func Run(ctx context.Context, argv []string, opts Options) (*Result, error) {
	if len(argv) == 0 {
		return nil, &RuntimeError{Original: errEmptyCommand}
	}

	name, args := argv[0], argv[1:]
	if opts.Shell {
		name = "sh"
		args = []string{"-c", strings.Join(argv, " ")}
	}

	cmd := exec.Command(name, args...)
	cmd.Dir = opts.Dir
	cmd.Env = mergedEnv(opts.Env)
	// Own process group so a timeout can take children down as well.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	result := &Result{Command: argv}
	start := time.Now()

	if err := cmd.Start(); err != nil {
		return nil, &RuntimeError{Original: err}
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var timeout <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case err := <-done:
		result.Runtime = time.Since(start)
		result.Status = exitStatus(err)
		if err != nil && result.Status < 0 {
			return nil, &RuntimeError{Original: err}
		}

	case <-timeout:
		killGroup(cmd)
		<-done
		result.Runtime = time.Since(start)
		result.Status = StatusTimeout

	case <-ctx.Done():
		killGroup(cmd)
		<-done
		return nil, ctx.Err()
	}

	result.Stdout = stdout.String()
	result.Stderr = stderr.String()
	return result, nil
}

// killGroup terminates the command's whole process group, catching children
// spawned by shell commands.
func killGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		_ = cmd.Process.Kill()
		return
	}
	_ = syscall.Kill(-pgid, syscall.SIGTERM)
}

func exitStatus(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func mergedEnv(env map[string]string) []string {
	merged := os.Environ()
	for k, v := range env {
		merged = append(merged, k+"="+v)
	}
	return merged
}
