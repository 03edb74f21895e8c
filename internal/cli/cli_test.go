package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand("1.2.3")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "Myrai Care version 1.2.3\n", out)
}

func TestCapabilities(t *testing.T) {
	out, err := run(t, "", "capabilities")
	require.NoError(t, err)
	assert.Contains(t, out, "log_medication")
	assert.Contains(t, out, "add_medication")
	assert.Contains(t, out, "SENSITIVITY")

	out, err = run(t, "", "caps", "--category", "vitals")
	require.NoError(t, err)
	assert.NotContains(t, out, "log_medication")

	out, err = run(t, "", "capabilities", "--category", "astrology")
	require.NoError(t, err)
	assert.Contains(t, out, `No capabilities in category "astrology"`)
}

func TestCapabilities_JSON(t *testing.T) {
	out, err := run(t, "", "capabilities", "--json", "--category", "medication")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "["))
	assert.Contains(t, out, `"id": "log_medication"`)
}

func TestConfigShow_MasksKeys(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test-1234567890")
	out, err := run(t, "", "config", "show", "--data", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "sk-t****7890")
	assert.NotContains(t, out, "sk-test-1234567890")
	assert.Contains(t, out, "backend: memory")
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "", maskKey(""))
	assert.Equal(t, "****", maskKey("short"))
	assert.Equal(t, "abcd****wxyz", maskKey("abcdefghwxyz"))
}

func TestChat_OneShotOffline(t *testing.T) {
	out, err := run(t, "", "chat", "--offline", "--data", t.TempDir(), "-m", "hello")
	require.NoError(t, err)
	assert.Contains(t, out, "Myrai: You said: hello")
}

func TestChat_PipedInput(t *testing.T) {
	out, err := run(t, "good morning\n", "chat", "--offline", "--data", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "You said: good morning")
}

func TestChat_EmptyInput(t *testing.T) {
	_, err := run(t, "  \n", "chat", "--offline", "--data", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no message given")
}

func TestUnknownCommand(t *testing.T) {
	_, err := run(t, "", "dance")
	require.Error(t, err)
}
