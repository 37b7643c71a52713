package aggregator

import (
	"fmt"

	"agentwatch/internal/model"
	"agentwatch/internal/provider"
)

// enrich folds rich records into thin records that describe the same logical
// session under a different identity scheme. A pair is matched by
// CorrelationKey when both sides carry one. Otherwise the most recently
// started unclaimed rich record is used, which can misattribute data between
// two concurrent sessions of the same tool.
func (a *Aggregator) enrich(merged map[string]model.Agent, order *[]string) {
	var thin, rich []string
	for _, id := range *order {
		ag := merged[id]
		switch a.fidelityOf(ag.Source) {
		case provider.FidelityThin:
			thin = append(thin, id)
		case provider.FidelityRich:
			if hasRichFields(ag) {
				rich = append(rich, id)
			}
		}
	}
	if len(thin) == 0 || len(rich) == 0 {
		return
	}

	claimed := make(map[string]bool)
	for _, tid := range thin {
		rid := pickRich(merged, merged[tid], rich, claimed)
		if rid == "" {
			continue
		}
		if err := a.fold(merged, tid, rid); err != nil {
			a.logger.Warn("enrichment skipped", "thin", tid, "rich", rid, "error", err)
			continue
		}
		claimed[rid] = true
		delete(merged, rid)
		delete(a.retained, rid)
		a.lookup[tid] = rid
	}

	kept := (*order)[:0]
	for _, id := range *order {
		if !claimed[id] {
			kept = append(kept, id)
		}
	}
	*order = kept
}

func hasRichFields(ag model.Agent) bool {
	return len(ag.RecentActions) > 0 || len(ag.Preview) > 0 || len(ag.Files) > 0
}

// pickRich selects the rich record for a thin one. Keys are authoritative:
// a keyed thin record only falls back to unkeyed rich records.
func pickRich(merged map[string]model.Agent, t model.Agent, rich []string, claimed map[string]bool) string {
	if t.CorrelationKey != "" {
		for _, rid := range rich {
			if !claimed[rid] && merged[rid].CorrelationKey == t.CorrelationKey {
				return rid
			}
		}
	}

	best := ""
	for _, rid := range rich {
		if claimed[rid] {
			continue
		}
		r := merged[rid]
		if t.CorrelationKey != "" && r.CorrelationKey != "" {
			continue
		}
		if best == "" || r.StartTime.After(merged[best].StartTime) {
			best = rid
		}
	}
	return best
}

// fold copies the rich record's populated optional fields onto the thin
// record. A populated field is never replaced by an empty one.
func (a *Aggregator) fold(merged map[string]model.Agent, tid, rid string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while merging: %v", r)
		}
	}()

	t := merged[tid]
	r := merged[rid]

	if len(r.Tools) > 0 {
		t.Tools = append([]string(nil), r.Tools...)
	}
	if len(r.Files) > 0 {
		t.Files = append([]string(nil), r.Files...)
	}
	if len(r.RecentActions) > 0 {
		t.RecentActions = append([]string(nil), r.RecentActions...)
	}
	if len(r.Preview) > 0 {
		t.Preview = append([]string(nil), r.Preview...)
	}
	if len(r.TaskList) > 0 {
		t.TaskList = append([]model.TaskItem(nil), r.TaskList...)
	}
	if r.CurrentTool != "" {
		t.CurrentTool = r.CurrentTool
	}
	if r.Task != "" {
		t.Task = r.Task
	}
	if r.Tokens > 0 {
		t.Tokens = r.Tokens
	}
	if r.Progress > 0 {
		t.Progress = r.Progress
	}
	if r.ParentID != "" {
		t.ParentID = r.ParentID
	}
	if r.HasConversation {
		t.HasConversation = true
	}

	merged[tid] = t
	return nil
}
