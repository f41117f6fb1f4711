package loop

import (
	"fmt"
	"time"
)

// Stage is a step of one gather-act-verify iteration.
type Stage string

const (
	StageGather Stage = "gather"
	StageAct    Stage = "act"
	StageVerify Stage = "verify"
	// StagePass is terminal: the action stands.
	StagePass Stage = "pass"
	// StageFail hands feedback to the planner, which may retry.
	StageFail Stage = "fail"
)

var transitions = map[Stage][]Stage{
	StageGather: {StageAct},
	StageAct:    {StageVerify},
	StageVerify: {StagePass, StageFail},
	StageFail:   {StageGather, StageAct},
}

// Transition records one stage change.
type Transition struct {
	From Stage     `json:"from"`
	To   Stage     `json:"to"`
	At   time.Time `json:"at"`
}

// Iteration tracks the stages of one agent step. Retry policy belongs to
// the caller; MaxRetries is only used to report exhaustion.
type Iteration struct {
	Stage      Stage        `json:"stage"`
	Attempt    int          `json:"attempt"`
	MaxRetries int          `json:"max_retries"`
	Feedback   string       `json:"feedback,omitempty"`
	History    []Transition `json:"history"`
}

// NewIteration starts an iteration at the gather stage.
func NewIteration(maxRetries int) *Iteration {
	return &Iteration{Stage: StageGather, MaxRetries: maxRetries, History: []Transition{}}
}

// CanTransition reports whether next may follow the current stage.
func (it *Iteration) CanTransition(next Stage) error {
	allowed, ok := transitions[it.Stage]
	if !ok {
		return fmt.Errorf("cannot transition from terminal stage %s", it.Stage)
	}
	for _, s := range allowed {
		if s == next {
			if it.Stage == StageFail && it.Exhausted() {
				return fmt.Errorf("cannot retry: %d of %d retries used", it.Attempt, it.MaxRetries)
			}
			return nil
		}
	}
	return fmt.Errorf("cannot transition from %s to %s", it.Stage, next)
}

// Advance moves to next. Leaving the fail stage counts as a retry.
func (it *Iteration) Advance(next Stage) error {
	if err := it.CanTransition(next); err != nil {
		return err
	}
	if it.Stage == StageFail {
		it.Attempt++
		it.Feedback = ""
	}
	it.History = append(it.History, Transition{From: it.Stage, To: next, At: time.Now()})
	it.Stage = next
	return nil
}

// Resolve leaves the verify stage according to a verdict. A nil verdict
// means the action was not verified and is allowed to stand.
func (it *Iteration) Resolve(v *Verdict) error {
	if v == nil || v.Passed {
		return it.Advance(StagePass)
	}
	if err := it.Advance(StageFail); err != nil {
		return err
	}
	it.Feedback = v.Feedback
	return nil
}

// Exhausted reports a failed iteration with no retries left.
func (it *Iteration) Exhausted() bool {
	return it.Stage == StageFail && it.Attempt >= it.MaxRetries
}

// Done reports whether the iteration reached a terminal state.
func (it *Iteration) Done() bool {
	return it.Stage == StagePass || it.Exhausted()
}
