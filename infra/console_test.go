package infra

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line    string
		want    Command
		wantErr bool
	}{
		{line: "c gen lamp", want: Command{Op: OpConnect, A: Endpoint{Component: "gen"}, B: Endpoint{Component: "lamp"}}},
		{line: "  d  sw:a   lamp:power ", want: Command{Op: OpDisconnect, A: Endpoint{Component: "sw", Port: "a"}, B: Endpoint{Component: "lamp", Port: "power"}}},
		{line: "c cam: mon", want: Command{Op: OpConnect, A: Endpoint{Component: "cam"}, B: Endpoint{Component: "mon"}}},
		{line: "x a b", wantErr: true},
		{line: "c a", wantErr: true},
		{line: "c a b c", wantErr: true},
		{line: "c a:b:c d", wantErr: true},
		{line: "c a-b d", wantErr: true},
		{line: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseCommand(tt.line)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrBadCommand))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConsole_Execute(t *testing.T) {
	u, m := manualUniverse(t)
	c := NewConsole(m)

	out, err := c.Execute("c gen lamp")
	require.NoError(t, err)
	assert.Contains(t, out, "connected gen - lamp")
	assert.Equal(t, 1, u.Registry().Len())

	out, err = c.Execute("d lamp gen")
	require.NoError(t, err)
	assert.Contains(t, out, "disconnected")
	assert.Zero(t, u.Registry().Len())

	out, err = c.Execute("d lamp gen")
	require.NoError(t, err)
	assert.Contains(t, out, "no manual connection")

	_, err = c.Execute("c gen ghost")
	assert.Error(t, err)
	assert.Zero(t, u.Registry().Len())

	_, err = c.Execute("c gen gen:power")
	assert.ErrorIs(t, err, ErrSelfLink)
	assert.Zero(t, u.Registry().Len())
}
