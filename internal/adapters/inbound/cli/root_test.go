package cli_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyfreeze/pyfreeze/internal/adapters/inbound/cli"
)

func TestSubcommandHelp(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"detect", "--help"}, "--watch"},
		{[]string{"build", "--help"}, "--grace"},
		{[]string{"cache", "prune", "--help"}, "--max-age"},
		{[]string{"templates", "show", "--help"}, "--json"},
		{[]string{"history", "--help"}, "--limit"},
		{[]string{"mcp", "serve", "--help"}, "--path"},
	}

	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			cmd := cli.NewRootCmdForTest()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetArgs(tt.args)

			require.NoError(t, cmd.Execute())
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestUnknownCommand(t *testing.T) {
	cmd := cli.NewRootCmdForTest()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"score"})

	assert.Error(t, cmd.Execute())
}
