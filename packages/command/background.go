package command

import (
	"bytes"
	"os/exec"
	"strings"
	"syscall"
)

// Process is a handle to a command left running in the background, typically
// a listener a plugin started for the duration of a tester subtree.
type Process struct {
	cmd    *exec.Cmd
	output bytes.Buffer
}

// Start launches argv in its own process group and returns without waiting.
func Start(argv []string, opts Options) (*Process, error) {
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
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	p := &Process{cmd: cmd}
	cmd.Stdout = &p.output
	cmd.Stderr = &p.output

	if err := cmd.Start(); err != nil {
		return nil, &RuntimeError{Original: err}
	}
	go func() {
		_ = cmd.Wait()
	}()
	return p, nil
}

// Output returns everything the process wrote so far, both streams merged.
func (p *Process) Output() string {
	return p.output.String()
}

// Stop terminates the process group. Stopping an already finished process is
// a no-op.
func (p *Process) Stop() {
	killGroup(p.cmd)
}
