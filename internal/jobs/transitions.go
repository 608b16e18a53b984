package jobs

import (
	"fmt"

	"engram/internal/store"
)

// validJobTransitions enumerates every legal JobState move, verbatim from
// the job state machine's transition table. Same-state transitions are idempotent
// and permitted from every non-terminal state; ValidateJobTransition checks
// that separately so this table only needs to list the distinct moves.
var validJobTransitions = map[store.JobState][]store.JobState{
	store.JobIdle:         {store.JobIdentifying, store.JobFailed},
	store.JobIdentifying:  {store.JobRipping, store.JobReviewNeeded, store.JobFailed},
	store.JobReviewNeeded: {store.JobRipping, store.JobCompleted, store.JobFailed},
	store.JobRipping:      {store.JobMatching, store.JobOrganizing, store.JobReviewNeeded, store.JobCompleted, store.JobFailed},
	store.JobMatching:     {store.JobOrganizing, store.JobReviewNeeded, store.JobCompleted, store.JobFailed},
	store.JobOrganizing:   {store.JobReviewNeeded, store.JobCompleted, store.JobFailed},
	store.JobCompleted:    {},
	store.JobFailed:       {},
}

// validTitleTransitions enumerates every legal TitleState move.
// Ripping goes straight to Matched for movie titles and disc extras, which
// never traverse the matching stage; TV episode titles take the
// Ripping -> Matching -> Matched route. Review can come back to Matched when
// a human assigns the episode by hand.
var validTitleTransitions = map[store.TitleState][]store.TitleState{
	store.TitlePending:  {store.TitleRipping, store.TitleFailed},
	store.TitleRipping:  {store.TitleMatching, store.TitleMatched, store.TitleFailed},
	store.TitleMatching: {store.TitleMatched, store.TitleReview, store.TitleFailed},
	store.TitleMatched:  {store.TitleComplete, store.TitleReview, store.TitleFailed},
	store.TitleReview:   {store.TitleMatching, store.TitleMatched, store.TitleComplete, store.TitleFailed},
	store.TitleFailed:   {},
	store.TitleComplete: {},
}

// ErrInvalidTransition reports an illegal state move.
type ErrInvalidTransition struct {
	From, To any
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid transition from %v to %v", e.From, e.To)
}

// ValidateJobTransition reports whether moving a job from 'from' to 'to' is
// permitted. Same-state moves are always idempotent, including from the two
// terminal states: a job in a terminal state has no outgoing transitions to
// any other state, but re-asserting the state it's already in is a no-op,
// not a refusal.
func ValidateJobTransition(from, to store.JobState) error {
	if from == to {
		return nil
	}
	for _, candidate := range validJobTransitions[from] {
		if candidate == to {
			return nil
		}
	}
	return ErrInvalidTransition{From: from, To: to}
}

// ValidateTitleTransition reports whether moving a title from 'from' to 'to'
// is permitted. Same-state moves are always idempotent.
func ValidateTitleTransition(from, to store.TitleState) error {
	if from == to {
		return nil
	}
	for _, candidate := range validTitleTransitions[from] {
		if candidate == to {
			return nil
		}
	}
	return ErrInvalidTransition{From: from, To: to}
}
