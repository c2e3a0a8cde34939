package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morpheus1988wer/HertzBridge/internal/conf"
)

func TestRootCommandFlagsAndSubcommands(t *testing.T) {
	settings := &conf.Settings{}
	root := RootCommand(settings)
	require.NotNil(t, root)

	for _, name := range []string{"debug", "device", "rate"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), "persistent flag %q must be registered", name)
	}

	subcommands := map[string]bool{}
	for _, sub := range root.Commands() {
		subcommands[sub.Name()] = true
	}
	for _, name := range []string{"realtime", "devices", "inspect"} {
		assert.True(t, subcommands[name], "subcommand %q must be registered", name)
	}
}
