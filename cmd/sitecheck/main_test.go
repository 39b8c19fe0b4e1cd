package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		env     string
		tui     bool
		wantErr bool
	}{
		{name: "no arguments", tui: true},
		{name: "env only", args: []string{"--env", "ci.env"}, env: "ci.env", tui: true},
		{name: "env equals only", args: []string{"--env=ci.env"}, env: "ci.env", tui: true},
		{name: "subcommand", args: []string{"run"}},
		{name: "subcommand with env", args: []string{"--env", "ci.env", "run"}, env: "ci.env"},
		{name: "env without value", args: []string{"--env"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, tui, err := parseArgs(tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.env, env)
			assert.Equal(t, tt.tui, tui)
		})
	}
}
