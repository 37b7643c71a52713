package k8s

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"

	awerrors "agentwatch/internal/errors"
	"agentwatch/internal/model"
	"agentwatch/internal/provider"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// SourceID identifies the kubernetes source.
const SourceID = "kube"

// DefaultSelector picks the pods that run agents.
const DefaultSelector = "app=agent"

// Optional labels and annotations that refine a pod's record.
const (
	LabelName          = "agentwatch.name"
	LabelType          = "agentwatch.type"
	AnnotationTask     = "agentwatch.task"
	AnnotationTokens   = "agentwatch.tokens"
	AnnotationSession  = "agentwatch.session"
	AnnotationProgress = "agentwatch.progress"
)

// Source lists agent pods through client-go.
type Source struct {
	selector string
	connect  func() (*Client, error)

	mu     sync.Mutex
	client *Client
}

var _ provider.Source = (*Source)(nil)

// NewSource creates a kubernetes source. The cluster connection is built
// lazily on first fetch so missing credentials show up as health.
func NewSource(kubeconfig, namespace, selector string) *Source {
	if selector == "" {
		selector = DefaultSelector
	}
	return &Source{
		selector: selector,
		connect:  func() (*Client, error) { return NewClient(kubeconfig, namespace) },
	}
}

// NewSourceWithClient wraps an existing client.
func NewSourceWithClient(c *Client, selector string) *Source {
	s := NewSource("", "", selector)
	s.client = c
	return s
}

func (s *Source) ID() string   { return SourceID }
func (s *Source) Name() string { return "Kubernetes" }

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

func (s *Source) Fetch(ctx context.Context) (provider.Result, error) {
	c, err := s.getClient()
	if err != nil {
		return provider.Result{}, awerrors.Unavailable(SourceID, "connect", err)
	}

	pods, err := c.ListPods(ctx, s.selector)
	if err != nil {
		return provider.Result{}, classifyListError(err)
	}

	agents := make([]model.Agent, 0, len(pods))
	for _, pod := range pods {
		agents = append(agents, toAgent(pod))
	}
	return provider.Result{Agents: agents}, nil
}

func classifyListError(err error) error {
	var netErr net.Error
	switch {
	case errors.As(err, &netErr), apierrors.IsServiceUnavailable(err):
		return awerrors.Unavailable(SourceID, "list", err)
	case apierrors.IsForbidden(err), apierrors.IsUnauthorized(err):
		return awerrors.Unavailable(SourceID, "list", err)
	case apierrors.IsNotFound(err), apierrors.IsMethodNotSupported(err):
		return awerrors.APIShape(SourceID, "list", err)
	default:
		return awerrors.Other(SourceID, "list", err)
	}
}

func toAgent(pod corev1.Pod) model.Agent {
	name := pod.Labels[LabelName]
	if name == "" {
		name = pod.Name
	}
	typ := model.AgentType(pod.Labels[LabelType])
	if typ == "" {
		typ = model.TypeContainer
	}

	ag := model.Agent{
		ID:             "pod-" + pod.Namespace + "-" + pod.Name,
		Name:           name,
		Type:           typ,
		Status:         podStatus(pod),
		Task:           pod.Annotations[AnnotationTask],
		Location:       model.LocationCloud,
		Source:         SourceID,
		CorrelationKey: pod.Annotations[AnnotationSession],
	}
	if pod.Status.StartTime != nil {
		ag.StartTime = pod.Status.StartTime.Time
	} else if !pod.CreationTimestamp.IsZero() {
		ag.StartTime = pod.CreationTimestamp.Time
	}
	if tokens, err := strconv.ParseInt(pod.Annotations[AnnotationTokens], 10, 64); err == nil && tokens > 0 {
		ag.Tokens = tokens
	}
	if p, err := strconv.Atoi(pod.Annotations[AnnotationProgress]); err == nil && p >= 0 && p <= 100 {
		ag.Progress = p
	}
	for _, c := range pod.Spec.Containers {
		ag.Tools = append(ag.Tools, c.Name)
	}
	return ag
}

// podStatus maps the pod phase, refined by container states: a running pod
// whose container is crash looping is an error, not running.
func podStatus(pod corev1.Pod) model.Status {
	switch pod.Status.Phase {
	case corev1.PodPending:
		return model.StatusQueued
	case corev1.PodRunning:
		for _, cs := range pod.Status.ContainerStatuses {
			if w := cs.State.Waiting; w != nil && (w.Reason == "CrashLoopBackOff" || w.Reason == "Error") {
				return model.StatusError
			}
		}
		return model.StatusRunning
	case corev1.PodSucceeded:
		return model.StatusDone
	case corev1.PodFailed:
		return model.StatusError
	default:
		return model.StatusQueued
	}
}
