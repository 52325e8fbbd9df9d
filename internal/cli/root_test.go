package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "rsvpd", cmd.Use)
	assert.Contains(t, cmd.Long, "outbox")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"claim", "submit", "drain", "reset", "token", "status"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestDrainCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	drainCmd, _, err := cmd.Find([]string{"drain"})
	require.NoError(t, err)

	onceFlag := drainCmd.Flags().Lookup("once")
	require.NotNil(t, onceFlag)
	assert.Equal(t, "false", onceFlag.DefValue)
}

func TestTokenSubcommands(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"issue", "verify"} {
		subCmd, _, err := cmd.Find([]string{"token", name})
		require.NoError(t, err)
		assert.Equal(t, name, subCmd.Name())
	}
}
