package procscan

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	awerrors "agentwatch/internal/errors"
	"agentwatch/internal/model"
	"agentwatch/internal/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeProc(t *testing.T, root string, pid int, argv []string, cwd string) {
	t.Helper()
	dir := filepath.Join(root, strconv.Itoa(pid))
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cmdline"), []byte(strings.Join(argv, "\x00")+"\x00"), 0644))
	if cwd != "" {
		require.NoError(t, os.Symlink(cwd, filepath.Join(dir, "cwd")))
	}
}

func TestFetch(t *testing.T) {
	root := t.TempDir()
	project := t.TempDir()
	fakeProc(t, root, 101, []string{"/usr/local/bin/claude", "--resume"}, project)
	fakeProc(t, root, 102, []string{"node", "/usr/lib/node_modules/@openai/codex/bin/codex.js"}, "")
	fakeProc(t, root, 103, []string{"/usr/bin/vim", "main.go"}, "")
	fakeProc(t, root, 104, []string{"python3", "-m", "http.server"}, "")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "self"), 0755))

	src := New(root)
	res, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Agents, 2)

	byID := map[string]model.Agent{}
	for _, a := range res.Agents {
		byID[a.ID] = a
	}

	claude := byID["proc-101"]
	assert.Equal(t, "claude", claude.Name)
	assert.Equal(t, model.StatusRunning, claude.Status)
	assert.Equal(t, model.LocationLocal, claude.Location)
	assert.Equal(t, project, claude.CorrelationKey)
	assert.Equal(t, "in "+filepath.Base(project), claude.Task)
	assert.False(t, claude.StartTime.IsZero())

	codex := byID["proc-102"]
	assert.Equal(t, "codex", codex.Name)
	assert.Empty(t, codex.CorrelationKey)
}

func TestFetch_MissingProcfs(t *testing.T) {
	src := New(filepath.Join(t.TempDir(), "nope"))
	_, err := src.Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, awerrors.KindUnavailable, awerrors.Classify(err))
}

func TestFidelity(t *testing.T) {
	assert.Equal(t, provider.FidelityThin, New("").Fidelity())
}

func TestMatchBinary(t *testing.T) {
	tests := []struct {
		argv []string
		want string
		ok   bool
	}{
		{[]string{"claude"}, "claude", true},
		{[]string{"/home/u/.local/bin/aider", "--model", "x"}, "aider", true},
		{[]string{"node", "--no-warnings", "/opt/gemini/gemini.js"}, "gemini", true},
		{[]string{"node", "/usr/lib/node_modules/@anthropic-ai/claude-code/cli.js"}, "claude", true},
		{[]string{"node", "server.js"}, "", false},
		{[]string{"bash"}, "", false},
		{[]string{""}, "", false},
		{nil, "", false},
	}
	for _, tt := range tests {
		got, ok := matchBinary(tt.argv)
		assert.Equal(t, tt.ok, ok, "%v", tt.argv)
		assert.Equal(t, tt.want, got, "%v", tt.argv)
	}
}
