package claudelog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	awerrors "agentwatch/internal/errors"
	"agentwatch/internal/model"
	"agentwatch/internal/utils"
)

const (
	maxRecentActions = 5
	maxPreview       = 3
	maxActivity      = 5
	previewRunes     = 120
	taskRunes        = 80
)

var errNoTypedEntries = errors.New("no entry carries a type field")

// session is the folded state of one log file.
type session struct {
	id        string
	cwd       string
	slug      string
	summary   string
	firstUser string
	started   time.Time
	updated   time.Time
	tokens    int64
	status    model.Status
	tools     []string
	files     []string
	current   string
	actions   []action
	preview   []string
	todos     []todoItem
	turns     []model.ConversationTurn
}

type action struct {
	id   string
	text string
	kind model.ActivityType
	at   time.Time
}

// parseSession folds a log stream. It fails with an API-shape error when
// the stream holds JSON objects but none has a type field, which means the
// log format changed under us.
func parseSession(id string, r io.Reader) (*session, error) {
	s := &session{id: id, status: model.StatusQueued}
	seenTool := map[string]bool{}
	seenFile := map[string]bool{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 256*1024), 8*1024*1024)

	decoded, typed := 0, 0
	for scanner.Scan() {
		e, ok := decodeLine(scanner.Bytes())
		if !ok {
			continue
		}
		decoded++
		if e.Type == nil {
			continue
		}
		typed++

		if e.CWD != "" {
			s.cwd = e.CWD
		}
		if e.Slug != "" {
			s.slug = e.Slug
		}
		if !e.parsedAt.IsZero() {
			if s.started.IsZero() {
				s.started = e.parsedAt
			}
			s.updated = e.parsedAt
		}

		switch e.kind() {
		case "summary":
			if e.Summary != "" {
				s.summary = e.Summary
			}
		case "system":
			if e.Level == "error" || strings.Contains(e.Subtype, "error") {
				s.status = model.StatusError
			} else if e.Subtype == "turn_duration" {
				s.status = model.StatusDone
			}
		case "user":
			s.user(e)
		case "assistant":
			s.assistant(e, seenTool, seenFile)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", id, err)
	}
	if decoded > 0 && typed == 0 {
		return nil, awerrors.APIShape(SourceID, "decode "+id, errNoTypedEntries)
	}
	return s, nil
}

func (s *session) user(e entry) {
	if e.Message == nil || e.Sidechain {
		return
	}
	s.status = model.StatusThinking
	txt := e.Message.text()
	if txt == "" {
		// tool results only
		return
	}
	if s.firstUser == "" {
		s.firstUser = txt
	}
	s.turn("user", txt, e.parsedAt)
}

func (s *session) assistant(e entry, seenTool, seenFile map[string]bool) {
	if e.Message == nil {
		return
	}
	if u := e.Message.Usage; u != nil {
		s.tokens += u.InputTokens + u.OutputTokens
	}

	usedTool := false
	for i, b := range e.Message.blocks() {
		if b.Type != "tool_use" || b.Name == "" {
			continue
		}
		usedTool = true
		s.current = b.Name
		if !seenTool[b.Name] {
			seenTool[b.Name] = true
			s.tools = append(s.tools, b.Name)
		}
		in := b.input()
		for _, f := range []string{in.FilePath, in.NotebookPath, in.Path} {
			if f != "" && !seenFile[f] {
				seenFile[f] = true
				s.files = append(s.files, f)
			}
		}
		if len(in.Todos) > 0 {
			s.todos = in.Todos
		}
		s.actions = append(s.actions, action{
			id:   fmt.Sprintf("%s-%s-%d", s.id, e.UUID, i),
			text: describeTool(b.Name, in),
			kind: toolActivity(b.Name),
			at:   e.parsedAt,
		})
	}

	txt := e.Message.text()
	if txt != "" && !e.Sidechain {
		s.turn("assistant", txt, e.parsedAt)
	}

	stop := ""
	if e.Message.StopReason != nil {
		stop = *e.Message.StopReason
	}
	switch {
	case usedTool || stop == "tool_use":
		s.status = model.StatusRunning
	case stop == "end_turn" || stop == "stop_sequence":
		s.status = model.StatusDone
		s.current = ""
	default:
		s.status = model.StatusThinking
	}
}

func (s *session) turn(role, content string, at time.Time) {
	s.turns = append(s.turns, model.ConversationTurn{Role: role, Content: content, Timestamp: at})
	s.preview = append(s.preview, role+": "+awerrors.Truncate(utils.OneLine(content), previewRunes))
	if len(s.preview) > maxPreview {
		s.preview = s.preview[len(s.preview)-maxPreview:]
	}
}

func describeTool(name string, in toolInput) string {
	switch {
	case in.Command != "":
		return name + ": " + awerrors.Truncate(utils.OneLine(in.Command), 60)
	case in.FilePath != "":
		return name + " " + filepath.Base(in.FilePath)
	case in.NotebookPath != "":
		return name + " " + filepath.Base(in.NotebookPath)
	case in.Pattern != "":
		return name + ": " + awerrors.Truncate(in.Pattern, 60)
	case in.URL != "":
		return name + ": " + awerrors.Truncate(in.URL, 60)
	case in.Description != "":
		return name + ": " + awerrors.Truncate(utils.OneLine(in.Description), 60)
	default:
		return name
	}
}

func toolActivity(name string) model.ActivityType {
	switch name {
	case "Edit", "Write", "MultiEdit", "NotebookEdit":
		return model.ActivityFileEdit
	case "Bash":
		return model.ActivityCommand
	default:
		return model.ActivityToolUse
	}
}

// agent converts the folded session into a rich agent record.
func (s *session) agent() model.Agent {
	name := "claude"
	if s.slug != "" {
		name = "claude: " + s.slug
	}
	task := s.summary
	if task == "" {
		task = s.firstUser
	}

	ag := model.Agent{
		ID:              AgentID(s.id),
		Name:            name,
		Type:            model.TypeCodingAssistant,
		Status:          s.status,
		Task:            awerrors.Truncate(utils.OneLine(task), taskRunes),
		Tokens:          s.tokens,
		StartTime:       s.started,
		Tools:           s.tools,
		Files:           s.files,
		Location:        model.LocationLocal,
		Source:          SourceID,
		Preview:         s.preview,
		HasConversation: len(s.turns) > 0,
		CorrelationKey:  s.cwd,
	}
	if s.status.Active() {
		ag.CurrentTool = s.current
	}

	start := len(s.actions) - maxRecentActions
	if start < 0 {
		start = 0
	}
	for _, a := range s.actions[start:] {
		ag.RecentActions = append(ag.RecentActions, a.text)
	}

	if len(s.todos) > 0 {
		done := 0
		for _, td := range s.todos {
			ag.TaskList = append(ag.TaskList, model.TaskItem{Content: td.Content, Status: td.Status})
			if td.Status == "completed" {
				done++
			}
		}
		ag.Progress = done * 100 / len(s.todos)
	}
	if s.status == model.StatusDone && ag.Progress == 0 && len(s.todos) == 0 {
		ag.Progress = 100
	}
	return ag
}

func (s *session) activity(origin string) []model.ActivityEvent {
	start := len(s.actions) - maxActivity
	if start < 0 {
		start = 0
	}
	var events []model.ActivityEvent
	for _, a := range s.actions[start:] {
		if a.at.IsZero() {
			continue
		}
		events = append(events, model.ActivityEvent{
			ID:          a.id,
			Origin:      origin,
			Description: a.text,
			Type:        a.kind,
			Timestamp:   a.at,
		})
	}
	return events
}
