// Package sources assembles the configured agent sources into provider
// adapters.
package sources

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"agentwatch/internal/config"
	"agentwatch/internal/docker"
	"agentwatch/internal/k8s"
	"agentwatch/internal/provider"
	"agentwatch/internal/sources/claudelog"
	"agentwatch/internal/sources/procscan"
)

// Info describes one source for listings.
type Info struct {
	ID      string
	Name    string
	Group   string
	Enabled bool
}

// Set is the built source list. Adapters are in registration order, which
// is also the identity-collision precedence order.
type Set struct {
	Adapters []*provider.Adapter
	closers  []io.Closer
}

type candidate struct {
	group   string
	enabled bool
	build   func() provider.Source
}

func candidates(s config.SourcesSettings) []candidate {
	return []candidate{
		{config.GroupLocal, s.Procscan.Enabled, func() provider.Source {
			return procscan.New(s.Procscan.ProcRoot)
		}},
		{config.GroupLocal, s.Claudelog.Enabled, func() provider.Source {
			return claudelog.New(s.Claudelog.Root, s.Claudelog.Window)
		}},
		{config.GroupRemote, s.Docker.Enabled, func() provider.Source {
			return docker.NewSource(s.Docker.Label)
		}},
		{config.GroupRemote, s.Kube.Enabled, func() provider.Source {
			return k8s.NewSource(s.Kube.Kubeconfig, s.Kube.Namespace, s.Kube.Selector)
		}},
	}
}

func inGroup(group, want string) bool {
	want = strings.ToLower(strings.TrimSpace(want))
	return want == "" || want == config.GroupAll || want == group
}

// Build creates an adapter for every enabled source in the configured group.
// Source clients connect lazily, so Build itself does no I/O.
func Build(s config.Settings, logger *slog.Logger) (*Set, error) {
	switch g := strings.ToLower(s.Sources.Group); g {
	case "", config.GroupAll, config.GroupLocal, config.GroupRemote:
	default:
		return nil, fmt.Errorf("unknown source group %q", s.Sources.Group)
	}
	if logger == nil {
		logger = slog.Default()
	}

	set := &Set{}
	for _, c := range candidates(s.Sources) {
		if !c.enabled || !inGroup(c.group, s.Sources.Group) {
			continue
		}
		src := c.build()
		opts := []provider.Option{provider.WithLogger(logger.With("source", src.ID()))}
		if s.SourceTimeout > 0 {
			opts = append(opts, provider.WithTimeout(s.SourceTimeout))
		}
		set.Adapters = append(set.Adapters, provider.NewAdapter(src, opts...))
		if cl, ok := src.(io.Closer); ok {
			set.closers = append(set.closers, cl)
		}
	}
	return set, nil
}

// Describe lists every known source with whether the settings enable it.
func Describe(s config.Settings) []Info {
	var out []Info
	for _, c := range candidates(s.Sources) {
		src := c.build()
		out = append(out, Info{
			ID:      src.ID(),
			Name:    src.Name(),
			Group:   c.group,
			Enabled: c.enabled && inGroup(c.group, s.Sources.Group),
		})
	}
	return out
}

// Close releases source clients.
func (s *Set) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
