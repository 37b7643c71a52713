package claudelog

import (
	"encoding/json"
	"strings"
	"time"
)

// entry is one JSONL line of a session log. Every field is optional: the
// log format is owned by another program and changes without notice.
type entry struct {
	Type      *string   `json:"type"`
	Subtype   string    `json:"subtype"`
	Level     string    `json:"level"`
	UUID      string    `json:"uuid"`
	SessionID string    `json:"sessionId"`
	CWD       string    `json:"cwd"`
	Slug      string    `json:"slug"`
	Summary   string    `json:"summary"`
	Timestamp string    `json:"timestamp"`
	Sidechain bool      `json:"isSidechain"`
	Message   *message  `json:"message"`
	parsedAt  time.Time `json:"-"`
}

type message struct {
	Role       string          `json:"role"`
	Content    json.RawMessage `json:"content"`
	StopReason *string         `json:"stop_reason"`
	Usage      *usage          `json:"usage"`
}

type usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// block is one element of a structured message content array.
type block struct {
	Type    string          `json:"type"`
	Text    string          `json:"text"`
	Name    string          `json:"name"`
	Input   json.RawMessage `json:"input"`
	IsError bool            `json:"is_error"`
}

// toolInput is the subset of tool arguments used for files and actions.
type toolInput struct {
	FilePath     string     `json:"file_path"`
	Path         string     `json:"path"`
	NotebookPath string     `json:"notebook_path"`
	Command      string     `json:"command"`
	Pattern      string     `json:"pattern"`
	URL          string     `json:"url"`
	Description  string     `json:"description"`
	Todos        []todoItem `json:"todos"`
}

type todoItem struct {
	Content string `json:"content"`
	Status  string `json:"status"`
}

// decodeLine decodes one line. ok is false for blank or non-object lines,
// which are skipped rather than failing the file.
func decodeLine(line []byte) (e entry, ok bool) {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" || trimmed[0] != '{' {
		return entry{}, false
	}
	if err := json.Unmarshal([]byte(trimmed), &e); err != nil {
		return entry{}, false
	}
	if e.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339Nano, e.Timestamp); err == nil {
			e.parsedAt = t
		}
	}
	return e, true
}

func (e entry) kind() string {
	if e.Type == nil {
		return ""
	}
	return *e.Type
}

// blocks returns the message content as blocks. Plain string content
// becomes a single text block.
func (m *message) blocks() []block {
	if m == nil || len(m.Content) == 0 {
		return nil
	}
	var text string
	if err := json.Unmarshal(m.Content, &text); err == nil {
		if text == "" {
			return nil
		}
		return []block{{Type: "text", Text: text}}
	}
	var blocks []block
	if err := json.Unmarshal(m.Content, &blocks); err != nil {
		return nil
	}
	return blocks
}

func (m *message) text() string {
	var parts []string
	for _, b := range m.blocks() {
		if b.Type == "text" && strings.TrimSpace(b.Text) != "" {
			parts = append(parts, strings.TrimSpace(b.Text))
		}
	}
	return strings.Join(parts, "\n")
}

func (b block) input() toolInput {
	var in toolInput
	if len(b.Input) > 0 {
		_ = json.Unmarshal(b.Input, &in)
	}
	return in
}
