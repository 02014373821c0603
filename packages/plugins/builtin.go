package plugins

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cmdspec/cmdspec/packages/command"
	"github.com/cmdspec/cmdspec/packages/core/scope"
)

// Paths a cleanup action refuses to remove, no matter what the document says.
var protectedPaths = map[string]bool{
	"/":     true,
	"/home": true,
	"/opt":  true,
	"/var":  true,
}

func resolvePath(docPath, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(docPath), p)
}

func stringifyArgv(path, name string, raw []any) ([]string, error) {
	if len(raw) == 0 {
		return nil, &Error{Path: path, Message: fmt.Sprintf("plugin %q requires a non-empty 'cmd' key", name)}
	}
	argv := make([]string, len(raw))
	for i, item := range raw {
		argv[i] = fmt.Sprintf("%v", item)
	}
	return argv, nil
}

type osCommandParams struct {
	Cmd         []any `yaml:"cmd"`
	Shell       bool  `yaml:"shell"`
	IgnoreError bool  `yaml:"ignore_error"`
	Init        int   `yaml:"init"`
	Background  bool  `yaml:"background"`
	Timeout     int   `yaml:"timeout"`
}

// osCommandPlugin runs a command before the tester's tests start, either to
// completion or as a background process stopped on teardown.
type osCommandPlugin struct {
	path    string
	params  osCommandParams
	argv    []string
	process *command.Process
}

func newOsCommandPlugin(path, name string, param any, _ *scope.Scope) (Plugin, error) {
	var params osCommandParams
	if err := decodeParam(path, name, param, &params); err != nil {
		return nil, err
	}
	argv, err := stringifyArgv(path, name, params.Cmd)
	if err != nil {
		return nil, err
	}
	return &osCommandPlugin{path: path, params: params, argv: argv}, nil
}

func (p *osCommandPlugin) Name() string { return "os_command" }

func (p *osCommandPlugin) Run(_ *scope.Hotplug) error {
	opts := command.Options{
		Dir:     filepath.Dir(p.path),
		Shell:   p.params.Shell,
		Timeout: time.Duration(p.params.Timeout) * time.Second,
	}

	if p.params.Background {
		process, err := command.Start(p.argv, opts)
		if err != nil {
			return err
		}
		p.process = process
	} else {
		result, err := command.Run(context.Background(), p.argv, opts)
		if err != nil {
			return err
		}
		if result.Status != 0 && !p.params.IgnoreError {
			return fmt.Errorf("command %q exited with status %d: %s", result.Command, result.Status, result.Output())
		}
	}

	if p.params.Init > 0 {
		time.Sleep(time.Duration(p.params.Init) * time.Second)
	}
	return nil
}

func (p *osCommandPlugin) Stop() error {
	if p.process != nil {
		p.process.Stop()
		p.process = nil
	}
	return nil
}

type cleanupCommandParams struct {
	Cmd         []any `yaml:"cmd"`
	Shell       bool  `yaml:"shell"`
	IgnoreError bool  `yaml:"ignore_error"`
	Timeout     int   `yaml:"timeout"`
}

// cleanupCommandPlugin is the teardown counterpart of os_command: the
// command runs when the tester finishes.
type cleanupCommandPlugin struct {
	path   string
	params cleanupCommandParams
	argv   []string
}

func newCleanupCommandPlugin(path, name string, param any, _ *scope.Scope) (Plugin, error) {
	var params cleanupCommandParams
	if err := decodeParam(path, name, param, &params); err != nil {
		return nil, err
	}
	argv, err := stringifyArgv(path, name, params.Cmd)
	if err != nil {
		return nil, err
	}
	return &cleanupCommandPlugin{path: path, params: params, argv: argv}, nil
}

func (p *cleanupCommandPlugin) Name() string { return "cleanup_command" }

func (p *cleanupCommandPlugin) Run(_ *scope.Hotplug) error { return nil }

func (p *cleanupCommandPlugin) Stop() error {
	result, err := command.Run(context.Background(), p.argv, command.Options{
		Dir:     filepath.Dir(p.path),
		Shell:   p.params.Shell,
		Timeout: time.Duration(p.params.Timeout) * time.Second,
	})
	if err != nil {
		return err
	}
	if result.Status != 0 && !p.params.IgnoreError {
		return fmt.Errorf("command %q exited with status %d: %s", result.Command, result.Status, result.Output())
	}
	return nil
}

type mkdirParams struct {
	Dirs    []string `yaml:"dirs"`
	Cleanup bool     `yaml:"cleanup"`
	Force   bool     `yaml:"force"`
}

// mkdirPlugin creates directories tests expect to exist, optionally
// removing the ones it created on teardown.
type mkdirPlugin struct {
	path    string
	params  mkdirParams
	created []string
}

func newMkdirPlugin(path, name string, param any, _ *scope.Scope) (Plugin, error) {
	var params mkdirParams
	if err := decodeParam(path, name, param, &params); err != nil {
		return nil, err
	}
	if len(params.Dirs) == 0 {
		return nil, &Error{Path: path, Message: "plugin 'mkdir' requires a non-empty 'dirs' key"}
	}
	return &mkdirPlugin{path: path, params: params}, nil
}

func (p *mkdirPlugin) Name() string { return "mkdir" }

func (p *mkdirPlugin) Run(_ *scope.Hotplug) error {
	for _, dir := range p.params.Dirs {
		dir = resolvePath(p.path, dir)
		if _, err := os.Stat(dir); err == nil {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		p.created = append(p.created, dir)
	}
	return nil
}

func (p *mkdirPlugin) Stop() error {
	if !p.params.Cleanup {
		return nil
	}
	for _, dir := range p.created {
		if protectedPaths[dir] {
			continue
		}
		if err := os.Remove(dir); err != nil && p.params.Force {
			if err := os.RemoveAll(dir); err != nil {
				return err
			}
		}
	}
	p.created = nil
	return nil
}

type copyParams struct {
	From    []string `yaml:"from"`
	To      []string `yaml:"to"`
	Cleanup bool     `yaml:"cleanup"`
}

// copyPlugin copies files or directories into place before the tests and
// can remove the copies afterwards.
type copyPlugin struct {
	path    string
	params  copyParams
	created []string
}

func newCopyPlugin(path, name string, param any, _ *scope.Scope) (Plugin, error) {
	var params copyParams
	if err := decodeParam(path, name, param, &params); err != nil {
		return nil, err
	}
	if len(params.From) != len(params.To) || len(params.From) == 0 {
		return nil, &Error{Path: path, Message: "plugin 'copy' requires equally sized, non-empty 'from' and 'to' lists"}
	}
	return &copyPlugin{path: path, params: params}, nil
}

func (p *copyPlugin) Name() string { return "copy" }

func (p *copyPlugin) Run(_ *scope.Hotplug) error {
	for i := range p.params.From {
		src := resolvePath(p.path, p.params.From[i])
		dest := resolvePath(p.path, p.params.To[i])

		info, err := os.Stat(src)
		if err != nil {
			return err
		}

		if info.IsDir() {
			if destInfo, err := os.Stat(dest); err == nil && destInfo.IsDir() {
				dest = filepath.Join(dest, filepath.Base(src))
			}
			if err := os.CopyFS(dest, os.DirFS(src)); err != nil {
				return err
			}
		} else {
			if destInfo, err := os.Stat(dest); err == nil && destInfo.IsDir() {
				dest = filepath.Join(dest, filepath.Base(src))
			}
			if err := copyFile(src, dest, info.Mode()); err != nil {
				return err
			}
		}
		p.created = append(p.created, dest)
	}
	return nil
}

func (p *copyPlugin) Stop() error {
	if !p.params.Cleanup {
		return nil
	}
	for _, item := range p.created {
		if protectedPaths[item] {
			return fmt.Errorf("refusing to remove protected path %s", item)
		}
		if err := os.RemoveAll(item); err != nil {
			return err
		}
	}
	p.created = nil
	return nil
}

func copyFile(src, dest string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

type cleanupParams struct {
	Items []string `yaml:"items"`
	Force bool     `yaml:"force"`
}

// cleanupPlugin removes files and directories tests left behind. All work
// happens on teardown.
type cleanupPlugin struct {
	path   string
	params cleanupParams
}

func newCleanupPlugin(path, name string, param any, _ *scope.Scope) (Plugin, error) {
	var params cleanupParams
	if err := decodeParam(path, name, param, &params); err != nil {
		return nil, err
	}
	if len(params.Items) == 0 {
		return nil, &Error{Path: path, Message: "plugin 'cleanup' requires a non-empty 'items' key"}
	}
	return &cleanupPlugin{path: path, params: params}, nil
}

func (p *cleanupPlugin) Name() string { return "cleanup" }

func (p *cleanupPlugin) Run(_ *scope.Hotplug) error { return nil }

func (p *cleanupPlugin) Stop() error {
	for _, item := range p.params.Items {
		item = resolvePath(p.path, item)
		if protectedPaths[item] {
			continue
		}

		info, err := os.Stat(item)
		if err != nil {
			continue
		}
		if info.IsDir() {
			if err := os.Remove(item); err != nil && p.params.Force {
				if err := os.RemoveAll(item); err != nil {
					return err
				}
			}
		} else if err := os.Remove(item); err != nil {
			return err
		}
	}
	return nil
}

type httpListenerParams struct {
	Port int    `yaml:"port"`
	Dir  string `yaml:"dir"`
}

// httpListenerPlugin serves a directory over HTTP in the background for the
// lifetime of the tester, e.g. as a payload host for download tests.
type httpListenerPlugin struct {
	path   string
	params httpListenerParams
	server *http.Server
}

func newHTTPListenerPlugin(path, name string, param any, _ *scope.Scope) (Plugin, error) {
	var params httpListenerParams
	if err := decodeParam(path, name, param, &params); err != nil {
		return nil, err
	}
	if params.Port <= 0 || params.Port > 65535 {
		return nil, &Error{Path: path, Message: fmt.Sprintf("specified port '%d' is invalid, needs to be between 1-65535", params.Port)}
	}
	if params.Dir == "" {
		return nil, &Error{Path: path, Message: "plugin 'http_listener' requires a 'dir' key"}
	}
	return &httpListenerPlugin{path: path, params: params}, nil
}

func (p *httpListenerPlugin) Name() string { return "http_listener" }

func (p *httpListenerPlugin) Run(hot *scope.Hotplug) error {
	dir := resolvePath(p.path, p.params.Dir)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("specified directory %q does not exist", dir)
	}

	addr := net.JoinHostPort("", strconv.Itoa(p.params.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	p.server = &http.Server{Handler: http.FileServer(http.Dir(dir))}
	go func() {
		_ = p.server.Serve(listener)
	}()

	hot.Set("listener-url", fmt.Sprintf("http://127.0.0.1:%d", p.params.Port))
	return nil
}

func (p *httpListenerPlugin) Stop() error {
	if p.server == nil {
		return nil
	}
	err := p.server.Close()
	p.server = nil
	return err
}

type tempfileParams struct {
	Path    string `yaml:"path"`
	Content string `yaml:"content"`
	Mode    string `yaml:"mode"`
}

// tempfilePlugin writes a file for the tests to consume and removes it on
// teardown.
type tempfilePlugin struct {
	path   string
	params tempfileParams
	target string
}

func newTempfilePlugin(path, name string, param any, _ *scope.Scope) (Plugin, error) {
	var params tempfileParams
	if err := decodeParam(path, name, param, &params); err != nil {
		return nil, err
	}
	if params.Path == "" {
		return nil, &Error{Path: path, Message: "plugin 'tempfile' requires a 'path' key"}
	}
	switch params.Mode {
	case "", "w", "a":
	default:
		return nil, &Error{Path: path, Message: fmt.Sprintf("the selected mode %q is invalid, choices: 'w', 'a'", params.Mode)}
	}
	return &tempfilePlugin{path: path, params: params, target: resolvePath(path, params.Path)}, nil
}

func (p *tempfilePlugin) Name() string { return "tempfile" }

func (p *tempfilePlugin) Run(_ *scope.Hotplug) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if p.params.Mode == "a" {
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	f, err := os.OpenFile(p.target, flags, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(p.params.Content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (p *tempfilePlugin) Stop() error {
	if info, err := os.Stat(p.target); err == nil && !info.IsDir() {
		return os.Remove(p.target)
	}
	return nil
}
