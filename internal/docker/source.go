package docker

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	awerrors "agentwatch/internal/errors"
	"agentwatch/internal/model"
	"agentwatch/internal/provider"

	"github.com/docker/docker/api/types/container"
)

// SourceID identifies the docker source in health records and agent ids.
const SourceID = "docker"

// DefaultLabel marks containers that run agents.
const DefaultLabel = "agentwatch.agent"

// Optional labels that refine the record built for a container.
const (
	LabelName    = "agentwatch.name"
	LabelType    = "agentwatch.type"
	LabelTask    = "agentwatch.task"
	LabelTokens  = "agentwatch.tokens"
	LabelSession = "agentwatch.session"
	LabelParent  = "agentwatch.parent"
)

// Source lists labelled containers through the Docker API.
type Source struct {
	label   string
	connect func() (*Client, error)

	mu     sync.Mutex
	client *Client
}

var _ provider.Source = (*Source)(nil)

// NewSource creates a docker source. The daemon is contacted lazily on the
// first fetch so a missing daemon surfaces as health, not a startup error.
func NewSource(label string) *Source {
	if label == "" {
		label = DefaultLabel
	}
	return &Source{label: label, connect: NewClient}
}

// NewSourceWithClient is used by tests and by callers sharing a client.
func NewSourceWithClient(label string, c *Client) *Source {
	s := NewSource(label)
	s.client = c
	return s
}

func (s *Source) ID() string   { return SourceID }
func (s *Source) Name() string { return "Docker" }

func (s *Source) getClient() (*Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}
	c, err := s.connect()
	if err != nil {
		return nil, err
	}
	s.client = c
	return c, nil
}

// Fetch lists agent containers. An unreachable daemon is unavailable.
func (s *Source) Fetch(ctx context.Context) (provider.Result, error) {
	c, err := s.getClient()
	if err != nil {
		return provider.Result{}, awerrors.Unavailable(SourceID, "connect", err)
	}
	if err := c.CheckDaemon(ctx); err != nil {
		return provider.Result{}, awerrors.Unavailable(SourceID, "ping", err)
	}

	containers, err := c.ListLabelled(ctx, s.label)
	if err != nil {
		return provider.Result{}, awerrors.Other(SourceID, "list", err)
	}

	agents := make([]model.Agent, 0, len(containers))
	for _, ctr := range containers {
		agents = append(agents, toAgent(ctr))
	}
	return provider.Result{Agents: agents}, nil
}

// Close releases the daemon connection, if one was opened.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

func toAgent(ctr container.Summary) model.Agent {
	id := ctr.ID
	if len(id) > 12 {
		id = id[:12]
	}

	name := ctr.Labels[LabelName]
	if name == "" && len(ctr.Names) > 0 {
		name = strings.TrimPrefix(ctr.Names[0], "/")
	}
	if name == "" {
		name = id
	}

	typ := model.AgentType(ctr.Labels[LabelType])
	if typ == "" {
		typ = model.TypeContainer
	}

	task := ctr.Labels[LabelTask]
	if task == "" {
		task = ctr.Image
	}

	ag := model.Agent{
		ID:             "docker-" + id,
		Name:           name,
		Type:           typ,
		Status:         containerStatus(string(ctr.State), ctr.Status),
		Task:           task,
		Location:       model.LocationRemote,
		Source:         SourceID,
		ParentID:       ctr.Labels[LabelParent],
		CorrelationKey: ctr.Labels[LabelSession],
	}
	if ctr.Created > 0 {
		ag.StartTime = time.Unix(ctr.Created, 0)
	}
	if tokens, err := strconv.ParseInt(ctr.Labels[LabelTokens], 10, 64); err == nil && tokens > 0 {
		ag.Tokens = tokens
	}
	return ag
}

// containerStatus maps the daemon's state plus its human status line
// ("Exited (0) 5 minutes ago") onto an agent status.
func containerStatus(state, status string) model.Status {
	switch state {
	case "running":
		return model.StatusRunning
	case "paused":
		return model.StatusPaused
	case "restarting":
		return model.StatusThinking
	case "created":
		return model.StatusQueued
	case "exited":
		if strings.Contains(status, "(0)") {
			return model.StatusDone
		}
		return model.StatusError
	case "dead", "removing":
		return model.StatusError
	default:
		return model.NormalizeStatus(state)
	}
}
