// Package claudelog reads Claude Code session logs
// (~/.claude/projects/<project>/<session>.jsonl) and turns recently active
// sessions into rich agent records with tools, files, recent actions and a
// conversation preview.
package claudelog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	awerrors "agentwatch/internal/errors"
	"agentwatch/internal/model"
	"agentwatch/internal/provider"
)

// SourceID identifies the log source.
const SourceID = "claudelog"

// DefaultWindow is how recently a log must have been written to count as a
// live session.
const DefaultWindow = 30 * time.Minute

// AgentID derives the agent id for a session id.
func AgentID(sessionID string) string {
	return "claude-" + sessionID
}

// Source scans a projects directory.
type Source struct {
	root   string
	window time.Duration
	now    func() time.Time

	mu        sync.RWMutex
	locations map[string]string
}

var (
	_ provider.Source             = (*Source)(nil)
	_ provider.FidelitySource     = (*Source)(nil)
	_ provider.ConversationSource = (*Source)(nil)
	_ provider.LocationIndex      = (*Source)(nil)
)

// New creates a log source. An empty root means ~/.claude/projects.
func New(root string, window time.Duration) *Source {
	if root == "" {
		if home, err := os.UserHomeDir(); err == nil {
			root = filepath.Join(home, ".claude", "projects")
		}
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Source{root: root, window: window, now: time.Now, locations: map[string]string{}}
}

func (s *Source) ID() string                  { return SourceID }
func (s *Source) Name() string                { return "Claude Code" }
func (s *Source) Fidelity() provider.Fidelity { return provider.FidelityRich }

// Fetch parses every session log written within the window.
func (s *Source) Fetch(ctx context.Context) (provider.Result, error) {
	if s.root == "" {
		return provider.Result{}, awerrors.Unavailable(SourceID, "resolve home", os.ErrNotExist)
	}
	if _, err := os.Stat(s.root); err != nil {
		return provider.Result{}, awerrors.Unavailable(SourceID, "stat "+s.root, err)
	}

	paths, err := filepath.Glob(filepath.Join(s.root, "*", "*.jsonl"))
	if err != nil {
		return provider.Result{}, awerrors.Other(SourceID, "glob", err)
	}

	cutoff := s.now().Add(-s.window)
	var res provider.Result
	locations := make(map[string]string)

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return provider.Result{}, err
		}
		fi, err := os.Stat(path)
		if err != nil || fi.ModTime().Before(cutoff) {
			continue
		}

		sess, err := s.parseFile(path)
		if err != nil {
			var srcErr *awerrors.SourceError
			if errors.As(err, &srcErr) && srcErr.Kind == awerrors.KindAPIShape {
				return provider.Result{}, err
			}
			// a single unreadable log should not hide the others
			continue
		}

		ag := sess.agent()
		if ag.StartTime.IsZero() {
			ag.StartTime = fi.ModTime()
		}
		locations[ag.ID] = path
		res.Agents = append(res.Agents, ag)
		res.Activity = append(res.Activity, sess.activity(ag.Name)...)
	}

	s.mu.Lock()
	s.locations = locations
	s.mu.Unlock()
	return res, nil
}

func (s *Source) parseFile(path string) (*session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	id := strings.TrimSuffix(filepath.Base(path), ".jsonl")
	return parseSession(id, f)
}

// Locations returns agent id -> log path for the sessions seen in the last
// fetch.
func (s *Source) Locations() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.locations))
	for k, v := range s.locations {
		out[k] = v
	}
	return out
}

// Conversation loads the full user/assistant history of a session. Unknown
// agents have no history; that is not an error.
func (s *Source) Conversation(ctx context.Context, agentID string) ([]model.ConversationTurn, error) {
	path, err := s.locate(agentID)
	if err != nil || path == "" {
		return nil, err
	}
	sess, err := s.parseFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation for %s: %w", agentID, err)
	}
	return sess.turns, nil
}

func (s *Source) locate(agentID string) (string, error) {
	s.mu.RLock()
	path, ok := s.locations[agentID]
	s.mu.RUnlock()
	if ok {
		return path, nil
	}
	// sessions older than the window are still browsable
	sessionID, found := strings.CutPrefix(agentID, "claude-")
	if !found || sessionID == "" || strings.ContainsAny(sessionID, `/\*?[`) {
		return "", nil
	}
	matches, err := filepath.Glob(filepath.Join(s.root, "*", sessionID+".jsonl"))
	if err != nil || len(matches) == 0 {
		return "", err
	}
	return matches[0], nil
}
