package claudelog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	awerrors "agentwatch/internal/errors"
	"agentwatch/internal/model"
	"agentwatch/internal/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const runningSession = `{"type":"summary","summary":"Fix flaky login test"}
{"type":"user","uuid":"u1","sessionId":"s1","cwd":"/work/app","slug":"fix-login","timestamp":"2026-03-01T10:00:00Z","message":{"role":"user","content":"please fix the login test"}}
{"type":"assistant","uuid":"a1","cwd":"/work/app","timestamp":"2026-03-01T10:00:05Z","message":{"role":"assistant","content":[{"type":"text","text":"Looking at it."},{"type":"tool_use","name":"Read","input":{"file_path":"/work/app/login_test.go"}}],"stop_reason":"tool_use","usage":{"input_tokens":100,"output_tokens":20}}}
{"type":"user","uuid":"u2","timestamp":"2026-03-01T10:00:06Z","message":{"role":"user","content":[{"type":"tool_result","content":"ok"}]}}
not json at all
{"type":"assistant","uuid":"a2","timestamp":"2026-03-01T10:00:09Z","message":{"role":"assistant","content":[{"type":"tool_use","name":"TodoWrite","input":{"todos":[{"content":"reproduce","status":"completed"},{"content":"fix","status":"in_progress"}]}},{"type":"tool_use","name":"Bash","input":{"command":"go test ./...   -run Login"}}],"stop_reason":"tool_use","usage":{"input_tokens":50,"output_tokens":5}}}
`

const doneSession = `{"type":"user","uuid":"u1","cwd":"/work/lib","timestamp":"2026-03-01T09:00:00Z","message":{"role":"user","content":"summarize README"}}
{"type":"assistant","uuid":"a1","timestamp":"2026-03-01T09:00:03Z","message":{"role":"assistant","content":[{"type":"text","text":"It is a library."}],"stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":5}}}
`

const erroredSession = `{"type":"user","uuid":"u1","timestamp":"2026-03-01T09:00:00Z","message":{"role":"user","content":"go"}}
{"type":"system","subtype":"api_error","level":"error","timestamp":"2026-03-01T09:00:01Z"}
`

func writeLog(t *testing.T, root, project, session, body string, mod time.Time) string {
	t.Helper()
	dir := filepath.Join(root, project)
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, session+".jsonl")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	require.NoError(t, os.Chtimes(path, mod, mod))
	return path
}

func newTestSource(root string, now time.Time) *Source {
	s := New(root, 30*time.Minute)
	s.now = func() time.Time { return now }
	return s
}

func byID(agents []model.Agent) map[string]model.Agent {
	m := make(map[string]model.Agent)
	for _, a := range agents {
		m[a.ID] = a
	}
	return m
}

func TestFetch_RichRecord(t *testing.T) {
	root := t.TempDir()
	now := time.Now()
	path := writeLog(t, root, "-work-app", "s1", runningSession, now)

	src := newTestSource(root, now)
	res, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Agents, 1)

	a := res.Agents[0]
	assert.Equal(t, "claude-s1", a.ID)
	assert.Equal(t, "claude: fix-login", a.Name)
	assert.Equal(t, model.StatusRunning, a.Status)
	assert.Equal(t, "Fix flaky login test", a.Task)
	assert.Equal(t, int64(175), a.Tokens)
	assert.Equal(t, []string{"Read", "TodoWrite", "Bash"}, a.Tools)
	assert.Equal(t, "Bash", a.CurrentTool)
	assert.Equal(t, []string{"/work/app/login_test.go"}, a.Files)
	assert.Equal(t, []string{"Read login_test.go", "TodoWrite", "Bash: go test ./... -run Login"}, a.RecentActions)
	assert.Equal(t, []string{"user: please fix the login test", "assistant: Looking at it."}, a.Preview)
	assert.Equal(t, "/work/app", a.CorrelationKey)
	assert.True(t, a.HasConversation)
	assert.Equal(t, 50, a.Progress)
	require.Len(t, a.TaskList, 2)
	assert.Equal(t, "fix", a.TaskList[1].Content)
	assert.True(t, a.StartTime.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)))

	require.Len(t, res.Activity, 3)
	assert.Equal(t, model.ActivityCommand, res.Activity[2].Type)
	assert.Equal(t, "s1-a2-1", res.Activity[2].ID)

	assert.Equal(t, map[string]string{"claude-s1": path}, src.Locations())
}

func TestFetch_Statuses(t *testing.T) {
	root := t.TempDir()
	now := time.Now()
	writeLog(t, root, "p", "done", doneSession, now)
	writeLog(t, root, "p", "err", erroredSession, now)

	res, err := newTestSource(root, now).Fetch(context.Background())
	require.NoError(t, err)
	agents := byID(res.Agents)

	assert.Equal(t, model.StatusDone, agents["claude-done"].Status)
	assert.Equal(t, 100, agents["claude-done"].Progress)
	assert.Empty(t, agents["claude-done"].CurrentTool)
	assert.Equal(t, "summarize README", agents["claude-done"].Task)
	assert.Equal(t, model.StatusError, agents["claude-err"].Status)
}

func TestFetch_WindowExcludesOldLogs(t *testing.T) {
	root := t.TempDir()
	now := time.Now()
	writeLog(t, root, "p", "old", doneSession, now.Add(-2*time.Hour))
	writeLog(t, root, "p", "new", doneSession, now)

	res, err := newTestSource(root, now).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Agents, 1)
	assert.Equal(t, "claude-new", res.Agents[0].ID)
}

func TestFetch_MissingRoot(t *testing.T) {
	src := New(filepath.Join(t.TempDir(), "absent"), 0)
	_, err := src.Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, awerrors.KindUnavailable, awerrors.Classify(err))
}

func TestFetch_ShapeChange(t *testing.T) {
	root := t.TempDir()
	writeLog(t, root, "p", "weird", `{"kind":"user","payload":{}}`+"\n"+`{"kind":"assistant"}`+"\n", time.Now())

	_, err := newTestSource(root, time.Now()).Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, awerrors.KindAPIShape, awerrors.Classify(err))
}

func TestFetch_EmptyFileIsNotShapeChange(t *testing.T) {
	root := t.TempDir()
	writeLog(t, root, "p", "empty", "", time.Now())

	res, err := newTestSource(root, time.Now()).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Agents, 1)
	assert.Equal(t, model.StatusQueued, res.Agents[0].Status)
	assert.False(t, res.Agents[0].HasConversation)
}

func TestConversation(t *testing.T) {
	root := t.TempDir()
	now := time.Now()
	writeLog(t, root, "p", "s1", runningSession, now)
	writeLog(t, root, "p", "archived", doneSession, now.Add(-24*time.Hour))

	src := newTestSource(root, now)
	_, err := src.Fetch(context.Background())
	require.NoError(t, err)

	turns, err := src.Conversation(context.Background(), "claude-s1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "user", turns[0].Role)
	assert.Equal(t, "please fix the login test", turns[0].Content)

	turns, err = src.Conversation(context.Background(), "claude-archived")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "It is a library.", turns[1].Content)

	turns, err = src.Conversation(context.Background(), "proc-42")
	require.NoError(t, err)
	assert.Empty(t, turns)

	turns, err = src.Conversation(context.Background(), "claude-../../etc")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestMarkers(t *testing.T) {
	src := New(t.TempDir(), 0)
	assert.Equal(t, provider.FidelityRich, src.Fidelity())
	assert.Equal(t, DefaultWindow, src.window)
}

func TestParseSession_LongLines(t *testing.T) {
	big := strings.Repeat("x", 512*1024)
	body := `{"type":"user","message":{"role":"user","content":"` + big + `"}}` + "\n"
	sess, err := parseSession("big", strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, sess.turns, 1)
	assert.Len(t, []rune(sess.preview[0]), len("user: ")+previewRunes)
}
