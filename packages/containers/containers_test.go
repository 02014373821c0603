package containers

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmdspec/cmdspec/packages/core/config"
	"github.com/cmdspec/cmdspec/packages/core/scope"
)

func TestFromSpecsRequiresNameAndImage(t *testing.T) {
	sc := scope.New(nil)
	_, err := FromSpecs("test.yml", []config.ContainerSpec{{Name: "db"}}, sc)
	require.Error(t, err)
	assert.IsType(t, &Error{}, err)
}

func TestFromSpecsResolvesVariables(t *testing.T) {
	sc := scope.New(map[string]any{"tag": "7.2", "data": "/srv/data"})
	cs, err := FromSpecs("/etc/suite/test.yml", []config.ContainerSpec{{
		Name:    "cache",
		Image:   "redis:${tag}",
		Env:     map[string]string{"DATA": "${data}"},
		Volumes: map[string]string{"fixtures": "/fixtures"},
	}}, sc)
	require.NoError(t, err)
	require.Len(t, cs, 1)

	c := cs[0]
	assert.Equal(t, "redis:7.2", c.spec.Image)
	assert.Equal(t, "/srv/data", c.spec.Env["DATA"])

	host := filepath.Join("/etc/suite", "fixtures")
	assert.Equal(t, "/fixtures", c.spec.Volumes[host], "relative volume hosts resolve against the document directory")
}

func TestRunArgv(t *testing.T) {
	sc := scope.New(nil)
	cs, err := FromSpecs("/tmp/test.yml", []config.ContainerSpec{{
		Name:        "web",
		Image:       "nginx:alpine",
		Env:         map[string]string{"A": "1", "B": "2"},
		Volumes:     map[string]string{"/host": "/bind"},
		NetworkMode: "host",
	}}, sc)
	require.NoError(t, err)

	argv := cs[0].runArgv()
	assert.Equal(t, []string{
		"docker", "run", "--rm", "--detach", "--name", "web",
		"--env", "A=1", "--env", "B=2",
		"--volume", "/host:/bind",
		"--network", "host",
		"nginx:alpine",
	}, argv)
}

func TestVariablesFromInspectOutput(t *testing.T) {
	sc := scope.New(nil)
	cs, err := FromSpecs("/tmp/test.yml", []config.ContainerSpec{{
		Name:    "web",
		Image:   "nginx:alpine",
		Volumes: map[string]string{"/host": "/bind"},
		Aliases: map[string]string{"DOCKER-web-IP": "web-addr"},
	}}, sc)
	require.NoError(t, err)

	inspect := `[{"NetworkSettings":{"IPAddress":"172.17.0.2","Gateway":"172.17.0.1"}}]`
	vars := cs[0].variables(inspect)

	assert.Equal(t, "172.17.0.2", vars["DOCKER-web-IP"])
	assert.Equal(t, "172.17.0.1", vars["DOCKER-web-GATEWAY"])
	assert.Equal(t, "/bind", vars["DOCKER-web-VOLUME0"])
	assert.Equal(t, "/host", vars["DOCKER-web-VOLUME0-HOST"])
	assert.Equal(t, "172.17.0.2", vars["web-addr"], "aliases copy the aliased variable")
}

func TestStopWithoutStartIsNoop(t *testing.T) {
	sc := scope.New(nil)
	cs, err := FromSpecs("/tmp/test.yml", []config.ContainerSpec{{Name: "x", Image: "y"}}, sc)
	require.NoError(t, err)
	assert.NoError(t, cs[0].Stop(t.Context()))
}
