package containers

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/tidwall/gjson"

	"github.com/cmdspec/cmdspec/packages/command"
	"github.com/cmdspec/cmdspec/packages/core/config"
	"github.com/cmdspec/cmdspec/packages/core/scope"
)

// Error reports an invalid container configuration or a failing docker
// operation.
type Error struct {
	Path    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Path)
}

// Container is one managed docker container. It is driven through the docker
// CLI, so the engine needs no daemon socket access of its own.
type Container struct {
	path    string
	spec    config.ContainerSpec
	started bool
}

// FromSpecs builds the containers a document declares. Relative volume host
// paths resolve against the document's directory.
func FromSpecs(path string, specs []config.ContainerSpec, sc *scope.Scope) ([]*Container, error) {
	containers := make([]*Container, 0, len(specs))
	for _, spec := range specs {
		resolved, err := resolveSpec(path, spec, sc)
		if err != nil {
			return nil, err
		}
		containers = append(containers, &Container{path: path, spec: resolved})
	}
	return containers, nil
}

func resolveSpec(path string, spec config.ContainerSpec, sc *scope.Scope) (config.ContainerSpec, error) {
	if spec.Name == "" || spec.Image == "" {
		return spec, &Error{Path: path, Message: "containers require a 'name' and an 'image' key"}
	}

	resolveString := func(s string) (string, error) {
		v, err := sc.Resolve(s)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%v", v), nil
	}

	var err error
	if spec.Name, err = resolveString(spec.Name); err != nil {
		return spec, err
	}
	if spec.Image, err = resolveString(spec.Image); err != nil {
		return spec, err
	}

	env := make(map[string]string, len(spec.Env))
	for k, v := range spec.Env {
		if env[k], err = resolveString(v); err != nil {
			return spec, err
		}
	}
	spec.Env = env

	volumes := make(map[string]string, len(spec.Volumes))
	for host, bind := range spec.Volumes {
		if host, err = resolveString(host); err != nil {
			return spec, err
		}
		if !filepath.IsAbs(host) {
			host = filepath.Join(filepath.Dir(path), host)
		}
		if volumes[host], err = resolveString(bind); err != nil {
			return spec, err
		}
	}
	spec.Volumes = volumes

	return spec, nil
}

// Name returns the container's configured name.
func (c *Container) Name() string {
	return c.spec.Name
}

// Start runs the container detached and exports its variables into the
// hotplug overlay: DOCKER-<name>-IP, DOCKER-<name>-GATEWAY, one pair per
// volume, plus any configured aliases.
func (c *Container) Start(ctx context.Context, hot *scope.Hotplug) error {
	argv := c.runArgv()
	result, err := command.Run(ctx, argv, command.Options{})
	if err != nil {
		return err
	}
	if result.Status != 0 {
		return &Error{Path: c.path, Message: fmt.Sprintf("unable to start container %q: %s", c.spec.Name, result.Output())}
	}
	c.started = true

	init := c.spec.Init
	if init == 0 {
		init = 2
	}
	select {
	case <-time.After(time.Duration(init * float64(time.Second))):
	case <-ctx.Done():
		return ctx.Err()
	}

	inspect, err := command.Run(ctx, []string{"docker", "inspect", c.spec.Name}, command.Options{})
	if err != nil {
		return err
	}
	if inspect.Status != 0 {
		return &Error{Path: c.path, Message: fmt.Sprintf("unable to inspect container %q: %s", c.spec.Name, inspect.Output())}
	}

	hot.SetAll(c.variables(inspect.Stdout))
	return nil
}

// Stop removes the container. Stopping a container that never started or
// already stopped is a no-op.
func (c *Container) Stop(ctx context.Context) error {
	if !c.started {
		return nil
	}
	c.started = false

	result, err := command.Run(ctx, []string{"docker", "stop", c.spec.Name}, command.Options{})
	if err != nil {
		return err
	}
	if result.Status != 0 {
		return &Error{Path: c.path, Message: fmt.Sprintf("unable to stop container %q: %s", c.spec.Name, result.Output())}
	}
	return nil
}

// runArgv builds the docker run command line. The container is removed on
// stop via --rm, so teardown needs a single docker stop.
func (c *Container) runArgv() []string {
	argv := []string{"docker", "run", "--rm", "--detach", "--name", c.spec.Name}

	for _, k := range sortedKeys(c.spec.Env) {
		argv = append(argv, "--env", k+"="+c.spec.Env[k])
	}
	for _, host := range sortedKeys(c.spec.Volumes) {
		argv = append(argv, "--volume", host+":"+c.spec.Volumes[host])
	}
	if c.spec.NetworkMode != "" {
		argv = append(argv, "--network", c.spec.NetworkMode)
	}

	return append(argv, c.spec.Image)
}

// variables derives the exported variable set from docker inspect output.
func (c *Container) variables(inspectJSON string) map[string]any {
	vars := map[string]any{
		"DOCKER-" + c.spec.Name + "-IP":      gjson.Get(inspectJSON, "0.NetworkSettings.IPAddress").String(),
		"DOCKER-" + c.spec.Name + "-GATEWAY": gjson.Get(inspectJSON, "0.NetworkSettings.Gateway").String(),
	}

	for i, host := range sortedKeys(c.spec.Volumes) {
		vars[fmt.Sprintf("DOCKER-%s-VOLUME%d", c.spec.Name, i)] = c.spec.Volumes[host]
		vars[fmt.Sprintf("DOCKER-%s-VOLUME%d-HOST", c.spec.Name, i)] = host
	}

	for key, alias := range c.spec.Aliases {
		if value, ok := vars[key]; ok {
			vars[alias] = value
		}
	}
	return vars
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
