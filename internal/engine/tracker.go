package engine

// pipelineAction is what the tracker asks the engine to do to the pipeline.
type pipelineAction int

const (
	actionNone pipelineAction = iota
	actionPause
	actionResume
)

// stateTracker turns raw pipeline state changes and buffering percentages into the
// player-level states (stopped, buffering, paused, playing).
//
// Buffering below 100% while PLAYING is requested pauses the pipeline and reports
// buffering; reaching 100% resumes it. Leaving Stopped reports buffering right away,
// so a Stop that lands before the pipeline settles still has a state to change from.
// Stopped is reported by Stop itself, the raw READY/NULL transitions are not forwarded.
type stateTracker struct {
	target    State
	reported  State
	buffering bool
}

func (t *stateTracker) request(target State) []Event {
	t.target = target
	if target != StatePlaying {
		t.buffering = false
	}
	if target == StateStopped {
		return t.report(StateStopped)
	}
	if t.reported == StateStopped {
		return t.report(StateBuffering)
	}
	return nil
}

func (t *stateTracker) buffer(percent int) ([]Event, pipelineAction) {
	events := []Event{{Type: EventBuffering, Percent: percent}}
	if t.target != StatePlaying {
		return events, actionNone
	}

	switch {
	case percent < 100 && !t.buffering:
		t.buffering = true
		return append(events, t.report(StateBuffering)...), actionPause
	case percent >= 100 && t.buffering:
		t.buffering = false
		return events, actionResume
	}
	return events, actionNone
}

// pipeline handles a state change of the top-level pipeline (already mapped, with
// READY/NULL passed as StateStopped).
func (t *stateTracker) pipeline(s State) []Event {
	if t.buffering || t.target == StateStopped {
		return nil
	}

	switch s {
	case StatePlaying:
		return t.report(StatePlaying)
	case StatePaused:
		if t.target == StatePaused {
			return t.report(StatePaused)
		}
	}
	return nil
}

func (t *stateTracker) report(s State) []Event {
	if s == t.reported {
		return nil
	}
	t.reported = s
	return []Event{{Type: EventStateChanged, State: s}}
}
