// Package voting holds the ballot logic shared by vote-skip (ephemeral,
// per-track) and playlist approval (durable, time-bounded).
package voting

import (
	"errors"
	"slices"
	"time"
)

var ErrAlreadyVoted = errors.New("you have already voted on this ballot")

// ApprovalQuorum is the absolute floor of votes one side needs before a
// ballot can finalize early. Combined with the strict-majority check it
// prevents one-vote landslides.
const ApprovalQuorum = 3

type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeApproved
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApproved:
		return "approved"
	case OutcomeRejected:
		return "rejected"
	default:
		return "pending"
	}
}

// Ballot is a time-bounded approval vote. One vote per member for the
// ballot's lifetime; it finalizes early when one side reaches a decisive
// quorum, or at expiry by simple majority of the votes cast.
type Ballot struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Up        []string  `json:"up_votes"`
	Down      []string  `json:"down_votes"`
	Finished  bool      `json:"finished"`
	Approved  bool      `json:"approved"`
}

func NewBallot(now time.Time, duration time.Duration) *Ballot {
	return &Ballot{
		StartTime: now,
		EndTime:   now.Add(duration),
		Up:        []string{},
		Down:      []string{},
	}
}

// Active reports whether the ballot still accepts votes.
func (b *Ballot) Active(now time.Time) bool {
	return !b.Finished && !now.After(b.EndTime)
}

func (b *Ballot) Voted(voterID string) bool {
	return slices.Contains(b.Up, voterID) || slices.Contains(b.Down, voterID)
}

// Cast records a vote and evaluates the decisive quorum on the side that just
// received it. Only that side can newly satisfy the threshold, so ties can
// never finalize early.
func (b *Ballot) Cast(voterID string, up bool) (Outcome, error) {
	if b.Voted(voterID) {
		return OutcomePending, ErrAlreadyVoted
	}

	if up {
		b.Up = append(b.Up, voterID)
		if len(b.Up) >= ApprovalQuorum && len(b.Up) > len(b.Down) {
			b.Finished = true
			b.Approved = true
			return OutcomeApproved, nil
		}
	} else {
		b.Down = append(b.Down, voterID)
		if len(b.Down) >= ApprovalQuorum && len(b.Down) > len(b.Up) {
			b.Finished = true
			b.Approved = false
			return OutcomeRejected, nil
		}
	}

	return OutcomePending, nil
}

// FinalizeExpired closes a ballot whose end time has passed, deciding by
// simple majority of the votes cast. Safe to call redundantly; the outcome is
// a deterministic function of the tallies at expiry. Returns true when this
// call performed the finalization.
func (b *Ballot) FinalizeExpired(now time.Time) bool {
	if b.Finished || !now.After(b.EndTime) {
		return false
	}
	b.Finished = true
	b.Approved = len(b.Up) > len(b.Down)
	return true
}

func (b *Ballot) Outcome() Outcome {
	if !b.Finished {
		return OutcomePending
	}
	if b.Approved {
		return OutcomeApproved
	}
	return OutcomeRejected
}
