// Package procscan discovers locally running agent CLIs by scanning the
// process table. Its records are thin: they prove a session exists and
// where it runs, and are enriched by richer log-based sources.
package procscan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	awerrors "agentwatch/internal/errors"
	"agentwatch/internal/model"
	"agentwatch/internal/provider"
)

// SourceID identifies the process scanner.
const SourceID = "procscan"

// KnownBinaries maps executable names to the agent type they run.
var KnownBinaries = map[string]model.AgentType{
	"claude":   model.TypeCodingAssistant,
	"codex":    model.TypeCodingAssistant,
	"gemini":   model.TypeCodingAssistant,
	"opencode": model.TypeCodingAssistant,
	"aider":    model.TypeCodingAssistant,
	"amp":      model.TypeCodingAssistant,
}

// interpreters whose first script argument names the real program
var interpreters = map[string]bool{"node": true, "bun": true, "deno": true, "python": true, "python3": true}

// Source scans a procfs root.
type Source struct {
	procRoot string
	self     int
}

var (
	_ provider.Source         = (*Source)(nil)
	_ provider.FidelitySource = (*Source)(nil)
)

func New(procRoot string) *Source {
	if procRoot == "" {
		procRoot = "/proc"
	}
	return &Source{procRoot: procRoot, self: os.Getpid()}
}

func (s *Source) ID() string                  { return SourceID }
func (s *Source) Name() string                { return "Local processes" }
func (s *Source) Fidelity() provider.Fidelity { return provider.FidelityThin }

// Fetch lists one agent per matching process. A missing procfs (non-Linux
// hosts) is unavailable rather than an error.
func (s *Source) Fetch(ctx context.Context) (provider.Result, error) {
	if _, err := os.Stat(s.procRoot); err != nil {
		return provider.Result{}, awerrors.Unavailable(SourceID, "stat procfs", err)
	}

	entries, err := filepath.Glob(filepath.Join(s.procRoot, "[0-9]*", "cmdline"))
	if err != nil {
		return provider.Result{}, awerrors.Other(SourceID, "glob", err)
	}

	var agents []model.Agent
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return provider.Result{}, err
		}
		pid, err := strconv.Atoi(filepath.Base(filepath.Dir(entry)))
		if err != nil || pid == s.self {
			continue
		}
		// processes exit between glob and read; skip them
		data, err := os.ReadFile(entry)
		if err != nil {
			continue
		}
		binary, ok := matchBinary(strings.Split(strings.TrimRight(string(data), "\x00"), "\x00"))
		if !ok {
			continue
		}
		agents = append(agents, s.toAgent(pid, binary))
	}
	return provider.Result{Agents: agents}, nil
}

// matchBinary returns the known agent binary named by argv, looking past a
// script interpreter when there is one.
func matchBinary(argv []string) (string, bool) {
	if len(argv) == 0 || argv[0] == "" {
		return "", false
	}
	name := filepath.Base(argv[0])
	if _, ok := KnownBinaries[name]; ok {
		return name, true
	}
	if interpreters[name] {
		for _, arg := range argv[1:] {
			if strings.HasPrefix(arg, "-") {
				continue
			}
			script := strings.TrimSuffix(filepath.Base(arg), filepath.Ext(arg))
			if _, ok := KnownBinaries[script]; ok {
				return script, true
			}
			// @scope/pkg/dist/cli.js style paths
			for part := range strings.SplitSeq(arg, "/") {
				if strings.HasSuffix(part, "-code") {
					part = strings.TrimSuffix(part, "-code")
				}
				if _, ok := KnownBinaries[part]; ok {
					return part, true
				}
			}
			break
		}
	}
	return "", false
}

func (s *Source) toAgent(pid int, binary string) model.Agent {
	procDir := filepath.Join(s.procRoot, strconv.Itoa(pid))
	ag := model.Agent{
		ID:       fmt.Sprintf("proc-%d", pid),
		Name:     binary,
		Type:     KnownBinaries[binary],
		Status:   model.StatusRunning,
		Location: model.LocationLocal,
		Source:   SourceID,
	}
	if cwd, err := os.Readlink(filepath.Join(procDir, "cwd")); err == nil {
		ag.CorrelationKey = cwd
		ag.Task = "in " + filepath.Base(cwd)
	}
	// procfs directories are created when the process starts
	if fi, err := os.Stat(procDir); err == nil {
		ag.StartTime = fi.ModTime()
	}
	return ag
}
