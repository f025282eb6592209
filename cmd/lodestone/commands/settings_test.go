package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigSetLaunchCommand(t *testing.T) {
	baseURL, docs := newTestHost(t)

	out, err := run(t, baseURL, "config", "set-launch-command", "runelite", "flatpak run net.runelite.RuneLite")
	require.NoError(t, err)
	assert.Contains(t, out, "launch command of runelite updated")

	cfg, err := docs.Config.Read(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(cfg), `"runelite_launch_command":"flatpak run net.runelite.RuneLite"`)

	_, err = run(t, baseURL, "config", "set-launch-command", "pong", "pong.exe")
	require.ErrorContains(t, err, "unknown game")

	_, err = run(t, baseURL, "config", "set-launch-command", "rs3")
	require.ErrorContains(t, err, "expected <game> <command>")
}

func TestConfigPluginValues(t *testing.T) {
	baseURL, docs := newTestHost(t)
	ctx := context.Background()

	_, err := run(t, baseURL, "config", "set-plugin", "gpu", `{"enabled":true}`)
	require.NoError(t, err)

	plugin, err := docs.PluginConfig.Read(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"gpu":{"enabled":true}}`, string(plugin))

	out, err := run(t, baseURL, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, `"plugin_config"`)
	assert.Contains(t, out, `"enabled": true`)

	_, err = run(t, baseURL, "config", "unset-plugin", "gpu")
	require.NoError(t, err)

	plugin, err = docs.PluginConfig.Read(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(plugin))

	_, err = run(t, baseURL, "config", "set-plugin", "gpu", `{not json`)
	require.ErrorContains(t, err, "not valid JSON")
}

func TestConfigSelectAccount(t *testing.T) {
	baseURL, docs := newTestHost(t)

	_, err := run(t, baseURL, "select", "u1")
	require.NoError(t, err)

	out, err := run(t, baseURL, "config", "select-account", "u1", "a1")
	require.NoError(t, err)
	assert.Contains(t, out, "account a1 selected for u1")

	cfg, err := docs.Config.Read(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(cfg), `"userDetails":{"u1":{"account_id":"a1"}}`)
	assert.Contains(t, string(cfg), `"selected":{"user_id":"u1","account_id":"a1"}`)

	_, err = run(t, baseURL, "config", "select-account", "u2", "a1")
	require.ErrorContains(t, err, "no such game account")
}

func TestRefreshSkipsValidToken(t *testing.T) {
	baseURL, _ := newTestHost(t)

	out, err := run(t, baseURL, "refresh", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "token of u1 still valid, expires never")
}
