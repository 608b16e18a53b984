package jobs

import (
	"testing"

	"engram/internal/store"
)

// TestJobTransitionTable checks every cell of the job transition table, both the
// allowed destinations and a sample of refused ones.
func TestJobTransitionTable(t *testing.T) {
	allowed := map[store.JobState][]store.JobState{
		store.JobIdle:         {store.JobIdentifying, store.JobFailed},
		store.JobIdentifying:  {store.JobRipping, store.JobReviewNeeded, store.JobFailed},
		store.JobReviewNeeded: {store.JobRipping, store.JobCompleted, store.JobFailed},
		store.JobRipping:      {store.JobMatching, store.JobOrganizing, store.JobReviewNeeded, store.JobCompleted, store.JobFailed},
		store.JobMatching:     {store.JobOrganizing, store.JobReviewNeeded, store.JobCompleted, store.JobFailed},
		store.JobOrganizing:   {store.JobReviewNeeded, store.JobCompleted, store.JobFailed},
	}
	for from, tos := range allowed {
		for _, to := range tos {
			if err := ValidateJobTransition(from, to); err != nil {
				t.Errorf("expected %s -> %s to be allowed, got %v", from, to, err)
			}
		}
	}

	all := []store.JobState{
		store.JobIdle, store.JobIdentifying, store.JobReviewNeeded, store.JobRipping,
		store.JobMatching, store.JobOrganizing, store.JobCompleted, store.JobFailed,
	}
	for _, from := range all {
		for _, to := range all {
			if from == to {
				continue
			}
			isAllowed := false
			for _, candidate := range allowed[from] {
				if candidate == to {
					isAllowed = true
					break
				}
			}
			err := ValidateJobTransition(from, to)
			if isAllowed && err != nil {
				t.Errorf("expected %s -> %s to be allowed, got %v", from, to, err)
			}
			if !isAllowed && err == nil {
				t.Errorf("expected %s -> %s to be refused, was allowed", from, to)
			}
		}
	}
}

// TestJobTransitionSameStateIdempotent covers the universal invariant that
// same-state transitions are always permitted, including from terminal
// states, without treating a terminal state as reopened.
func TestJobTransitionSameStateIdempotent(t *testing.T) {
	for _, s := range []store.JobState{
		store.JobIdle, store.JobIdentifying, store.JobReviewNeeded, store.JobRipping,
		store.JobMatching, store.JobOrganizing, store.JobCompleted, store.JobFailed,
	} {
		if err := ValidateJobTransition(s, s); err != nil {
			t.Errorf("same-state transition %s -> %s should be idempotent, got %v", s, s, err)
		}
	}
}

// TestJobTerminalStatesHaveNoOutgoingTransitions covers the universal
// invariant that a job in a terminal state has no outgoing transitions.
func TestJobTerminalStatesHaveNoOutgoingTransitions(t *testing.T) {
	others := []store.JobState{
		store.JobIdle, store.JobIdentifying, store.JobReviewNeeded, store.JobRipping,
		store.JobMatching, store.JobOrganizing,
	}
	for _, terminal := range []store.JobState{store.JobCompleted, store.JobFailed} {
		for _, to := range others {
			if err := ValidateJobTransition(terminal, to); err == nil {
				t.Errorf("expected terminal state %s to refuse transition to %s", terminal, to)
			}
		}
	}
}

// TestTitleTransitionTable checks the title state machine:
// movie titles and extras skip MATCHING (Ripping -> Matched directly) while
// TV episode titles must take the Ripping -> Matching -> Matched route.
func TestTitleTransitionTable(t *testing.T) {
	allowed := map[store.TitleState][]store.TitleState{
		store.TitlePending:  {store.TitleRipping, store.TitleFailed},
		store.TitleRipping:  {store.TitleMatching, store.TitleMatched, store.TitleFailed},
		store.TitleMatching: {store.TitleMatched, store.TitleReview, store.TitleFailed},
		store.TitleMatched:  {store.TitleComplete, store.TitleReview, store.TitleFailed},
		store.TitleReview:   {store.TitleMatching, store.TitleMatched, store.TitleComplete, store.TitleFailed},
	}
	for from, tos := range allowed {
		for _, to := range tos {
			if err := ValidateTitleTransition(from, to); err != nil {
				t.Errorf("expected %s -> %s to be allowed, got %v", from, to, err)
			}
		}
	}
	if err := ValidateTitleTransition(store.TitlePending, store.TitleMatched); err == nil {
		t.Error("expected TitlePending -> TitleMatched to be refused (must pass through Ripping)")
	}
	if err := ValidateTitleTransition(store.TitleComplete, store.TitleRipping); err == nil {
		t.Error("expected TitleComplete to refuse outgoing transitions")
	}
}

func TestTitleTransitionSameStateIdempotent(t *testing.T) {
	for _, s := range []store.TitleState{
		store.TitlePending, store.TitleRipping, store.TitleMatching, store.TitleMatched,
		store.TitleReview, store.TitleComplete, store.TitleFailed,
	} {
		if err := ValidateTitleTransition(s, s); err != nil {
			t.Errorf("same-state transition %s -> %s should be idempotent, got %v", s, s, err)
		}
	}
}

func TestErrInvalidTransitionMessage(t *testing.T) {
	err := ValidateJobTransition(store.JobCompleted, store.JobRipping)
	if err == nil {
		t.Fatal("expected an error")
	}
	var invalid ErrInvalidTransition
	if !asErrInvalidTransition(err, &invalid) {
		t.Fatalf("expected ErrInvalidTransition, got %T", err)
	}
	if invalid.From != store.JobCompleted || invalid.To != store.JobRipping {
		t.Errorf("unexpected fields: %+v", invalid)
	}
}

func asErrInvalidTransition(err error, out *ErrInvalidTransition) bool {
	v, ok := err.(ErrInvalidTransition)
	if ok {
		*out = v
	}
	return ok
}
