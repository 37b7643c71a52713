package model

import (
	"strings"
	"time"
)

// Status is the normalized lifecycle state of a monitored agent run.
type Status string

const (
	StatusRunning  Status = "running"
	StatusThinking Status = "thinking"
	StatusPaused   Status = "paused"
	StatusDone     Status = "done"
	StatusError    Status = "error"
	StatusQueued   Status = "queued"
)

// AllStatuses lists every status in display order.
var AllStatuses = []Status{StatusRunning, StatusThinking, StatusPaused, StatusDone, StatusError, StatusQueued}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusRunning, StatusThinking, StatusPaused, StatusDone, StatusError, StatusQueued:
		return true
	}
	return false
}

// Active reports whether the agent is currently doing work.
func (s Status) Active() bool {
	return s == StatusRunning || s == StatusThinking
}

// NormalizeStatus maps free-text labels reported by sources onto the closed
// status set. Unknown labels become queued.
func NormalizeStatus(label string) Status {
	label = strings.ToLower(strings.TrimSpace(label))
	if s := Status(label); s.Valid() {
		return s
	}
	switch label {
	case "busy", "active", "working", "in_progress":
		return StatusRunning
	case "retry":
		return StatusThinking
	case "idle", "waiting":
		return StatusPaused
	case "completed", "complete", "succeeded", "success", "exited":
		return StatusDone
	case "failed", "failure", "crashed", "dead":
		return StatusError
	default:
		return StatusQueued
	}
}

// AgentType is the kind of process being monitored.
type AgentType string

const (
	TypeCodingAssistant AgentType = "coding_assistant"
	TypeChat            AgentType = "chat"
	TypeCI              AgentType = "ci"
	TypeTerminal        AgentType = "terminal"
	TypeContainer       AgentType = "container"
)

// ChatCapable reports whether agents of this type can have conversation history.
func (t AgentType) ChatCapable() bool {
	return t == TypeCodingAssistant || t == TypeChat
}

// Location is where an agent runs.
type Location string

const (
	LocationLocal  Location = "local"
	LocationRemote Location = "remote"
	LocationCloud  Location = "cloud"
)

// TaskItem is one entry of an agent's task checklist.
type TaskItem struct {
	Content string `json:"content"`
	Status  string `json:"status"`
}

// Agent is the normalized record of one monitored agent run.
//
// CorrelationKey is never serialized. Sources that can tie a record to the
// same logical session reported by another source (a working directory, a
// session id) set it so reconciliation does not have to guess.
type Agent struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Type            AgentType  `json:"type"`
	Status          Status     `json:"status"`
	Task            string     `json:"task"`
	Tokens          int64      `json:"tokens"`
	StartTime       time.Time  `json:"startTime"`
	Elapsed         string     `json:"elapsed"`
	Progress        int        `json:"progress"`
	Tools           []string   `json:"tools"`
	CurrentTool     string     `json:"currentTool,omitempty"`
	Files           []string   `json:"files"`
	Location        Location   `json:"location"`
	Source          string     `json:"source"`
	ParentID        string     `json:"parentId,omitempty"`
	TaskList        []TaskItem `json:"taskList,omitempty"`
	RecentActions   []string   `json:"recentActions,omitempty"`
	Preview         []string   `json:"preview,omitempty"`
	HasConversation bool       `json:"hasConversation,omitempty"`
	CorrelationKey  string     `json:"-"`
}

// Clone returns a deep copy of the agent.
func (a Agent) Clone() Agent {
	c := a
	c.Tools = cloneStrings(a.Tools)
	c.Files = cloneStrings(a.Files)
	c.RecentActions = cloneStrings(a.RecentActions)
	c.Preview = cloneStrings(a.Preview)
	if a.TaskList != nil {
		c.TaskList = append([]TaskItem(nil), a.TaskList...)
	}
	return c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

// ConversationTurn is one message of an agent's conversation history.
type ConversationTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}
