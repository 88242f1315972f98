package cli

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSimpleText(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "line", input: "  hello \n", want: "hello"},
		{name: "partial line at EOF", input: "tail", want: "tail"},
		{name: "empty input", input: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w bytes.Buffer
			got, err := GetSimpleText(bufio.NewReader(strings.NewReader(tt.input)), "Prompt", &w)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "Prompt\n> ", w.String())
		})
	}
}

func stubTerminal(t *testing.T, terminal bool, pw []byte, err error) {
	t.Helper()
	origTerm, origRead := isTerminal, readPassword
	isTerminal = func(int) bool { return terminal }
	readPassword = func(int) ([]byte, error) { return pw, err }
	t.Cleanup(func() { isTerminal, readPassword = origTerm, origRead })
}

func TestGetToken(t *testing.T) {
	t.Run("piped input", func(t *testing.T) {
		stubTerminal(t, false, nil, nil)
		var w bytes.Buffer
		got, err := GetToken(bufio.NewReader(strings.NewReader("tok\n")), &w)
		require.NoError(t, err)
		assert.Equal(t, "tok", got)
	})

	t.Run("terminal without echo", func(t *testing.T) {
		stubTerminal(t, true, []byte(" secret \n"), nil)
		var w bytes.Buffer
		got, err := GetToken(bufio.NewReader(strings.NewReader("")), &w)
		require.NoError(t, err)
		assert.Equal(t, "secret", got)
		assert.Equal(t, "Paste access token: \n", w.String())
	})

	t.Run("terminal error", func(t *testing.T) {
		stubTerminal(t, true, nil, errors.New("no tty"))
		_, err := GetToken(bufio.NewReader(strings.NewReader("")), &bytes.Buffer{})
		assert.Error(t, err)
	})
}
