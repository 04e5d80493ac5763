package resolve

import "sync/atomic"

// Stats counts the work done by resolution.
type Stats struct {
	States         int64 // resolution states created
	RuleExpansions int64 // rule applications explored
	CycleSkips     int64 // rule applications skipped as already active
	Pruned         int64 // conjunction branches cut before resolving
	Iterations     int64 // fixpoint iterations
	Answers        int64 // answers returned to callers
}

// Add returns the field-wise sum of s and o.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		States:         s.States + o.States,
		RuleExpansions: s.RuleExpansions + o.RuleExpansions,
		CycleSkips:     s.CycleSkips + o.CycleSkips,
		Pruned:         s.Pruned + o.Pruned,
		Iterations:     s.Iterations + o.Iterations,
		Answers:        s.Answers + o.Answers,
	}
}

// counters accumulates Stats across goroutines.
type counters struct {
	states, expansions, skips, pruned, iterations, answers atomic.Int64
}

func (c *counters) add(s Stats) {
	c.states.Add(s.States)
	c.expansions.Add(s.RuleExpansions)
	c.skips.Add(s.CycleSkips)
	c.pruned.Add(s.Pruned)
	c.iterations.Add(s.Iterations)
	c.answers.Add(s.Answers)
}

func (c *counters) snapshot() Stats {
	return Stats{
		States:         c.states.Load(),
		RuleExpansions: c.expansions.Load(),
		CycleSkips:     c.skips.Load(),
		Pruned:         c.pruned.Load(),
		Iterations:     c.iterations.Load(),
		Answers:        c.answers.Load(),
	}
}
