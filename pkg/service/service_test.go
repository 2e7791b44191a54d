// pkg/service/service_test.go

package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/anvil-sh/anvil/pkg/anvil_io"
	"github.com/anvil-sh/anvil/pkg/execute"
	"github.com/anvil-sh/anvil/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRC(t *testing.T) *anvil_io.RuntimeContext {
	t.Helper()
	return anvil_io.NewContext(context.Background(), t.Name())
}

// scriptedRunner answers per-subcommand, recording the invocation order.
type scriptedRunner struct {
	results map[string]error
	calls   []string
}

func (s *scriptedRunner) run(ctx context.Context, opts execute.Options) (string, error) {
	key := strings.Join(opts.Args, " ")
	s.calls = append(s.calls, key)
	return "", s.results[key]
}

var forgeArtifact = state.InstalledArtifact{
	BinaryName:  "forge",
	InstallPath: "/home/dev/.local/bin/forge",
}

func TestInstallAgentAlreadyRunning(t *testing.T) {
	runner := &scriptedRunner{results: map[string]error{
		"agent status": nil,
	}}
	c := &Configurator{Run: runner.run}
	st := state.New()

	res := c.InstallAgent(testRC(t), forgeArtifact, st)
	assert.True(t, res.Succeeded)
	assert.True(t, res.Skipped)
	assert.Equal(t, []string{"agent status"}, runner.calls, "no mutation when already running")
	assert.False(t, st.ServiceInstalled, "a pre-existing service is not this run's to roll back")
}

func TestInstallAgent(t *testing.T) {
	runner := &scriptedRunner{results: map[string]error{
		"agent status":  errors.New("not running"),
		"agent install": nil,
	}}
	c := &Configurator{Run: runner.run}
	st := state.New()

	res := c.InstallAgent(testRC(t), forgeArtifact, st)
	assert.True(t, res.Succeeded)
	assert.False(t, res.Skipped)
	assert.Equal(t, []string{"agent status", "agent install"}, runner.calls)
	assert.True(t, st.ServiceInstalled)
}

func TestInstallAgentFailureIsAWarningNotAnError(t *testing.T) {
	runner := &scriptedRunner{results: map[string]error{
		"agent status":  errors.New("not running"),
		"agent install": errors.New("systemd unavailable"),
	}}
	c := &Configurator{Run: runner.run}
	st := state.New()

	res := c.InstallAgent(testRC(t), forgeArtifact, st)
	assert.True(t, res.Attempted)
	assert.False(t, res.Succeeded)
	assert.NotEmpty(t, res.Warning)
	assert.False(t, st.ServiceInstalled)
}

func TestConfigureClients(t *testing.T) {
	runner := &scriptedRunner{results: map[string]error{
		"client sync": nil,
	}}
	c := &Configurator{Run: runner.run}

	res := c.ConfigureClients(testRC(t), forgeArtifact)
	assert.True(t, res.Succeeded)
	assert.Equal(t, []string{"client sync"}, runner.calls)
}

func TestConfigureClientsFailureIsAWarning(t *testing.T) {
	runner := &scriptedRunner{results: map[string]error{
		"client sync": errors.New("no editors found"),
	}}
	c := &Configurator{Run: runner.run}

	res := c.ConfigureClients(testRC(t), forgeArtifact)
	require.True(t, res.Attempted)
	assert.False(t, res.Succeeded)
	assert.NotEmpty(t, res.Warning)
}
