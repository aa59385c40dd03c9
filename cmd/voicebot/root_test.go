package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fgrosse/voicebot/help"
	"github.com/fgrosse/voicebot/voicebottest"
)

func TestVersionCmd(t *testing.T) {
	out := new(bytes.Buffer)
	cmd := newRootCmd()
	cmd.SetOut(out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "dev\n", out.String())
}

func TestRunCmd_InvalidConfig(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"run", "--config", "does-not-exist.yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestBot_Commands(t *testing.T) {
	test := voicebottest.NewBot(t)
	b := &bot{Bot: test.Bot}
	b.Respond("ping", b.Pong)
	b.Respond(`links\??`, b.Links)

	test.Start()
	assert.Equal(t, "test > ", test.ReadOutput())

	test.Say("alice", "ping")
	test.Say("alice", "links?")
	require.NoError(t, b.Store.Set("steam.ref.bob", "76561197960287931"))
	require.NoError(t, b.Store.Set("steam.ref.alice", "76561197960287930"))
	require.NoError(t, b.Store.Set("greeting.count", 1))
	test.Say("alice", "links")
	test.Stop()

	expected := "PONG\nNobody linked a Steam account yet.\nLinked Steam accounts: alice, bob\n\n"
	assert.Equal(t, expected, test.ReadOutput())
}

func TestBot_Help(t *testing.T) {
	test := voicebottest.NewBot(t, help.Module(commands...))

	test.Start()
	test.Say("alice", "help ping")
	test.Stop()

	assert.Equal(t, "test > ping: Check if I am still alive\n\n", test.ReadOutput())
}
