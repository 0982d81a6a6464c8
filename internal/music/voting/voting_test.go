package voting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBallot_OneVotePerMember(t *testing.T) {
	b := NewBallot(time.Now(), time.Hour)

	_, err := b.Cast("alice", true)
	require.NoError(t, err)

	_, err = b.Cast("alice", true)
	assert.ErrorIs(t, err, ErrAlreadyVoted)

	// Switching sides is still the same member.
	_, err = b.Cast("alice", false)
	assert.ErrorIs(t, err, ErrAlreadyVoted)

	assert.Equal(t, 1, len(b.Up))
	assert.Equal(t, 0, len(b.Down))
}

func TestBallot_EarlyFinalizeNeedsQuorumAndMajority(t *testing.T) {
	b := NewBallot(time.Now(), time.Hour)

	out, err := b.Cast("u1", true)
	require.NoError(t, err)
	assert.Equal(t, OutcomePending, out)

	out, err = b.Cast("u2", true)
	require.NoError(t, err)
	assert.Equal(t, OutcomePending, out)

	out, err = b.Cast("d1", false)
	require.NoError(t, err)
	assert.Equal(t, OutcomePending, out)

	// Third up vote: quorum reached and 3 > 1.
	out, err = b.Cast("u3", true)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApproved, out)
	assert.True(t, b.Finished)
	assert.True(t, b.Approved)

	assert.False(t, b.Active(time.Now()))
}

func TestBallot_QuorumWithoutLeadDoesNotApprove(t *testing.T) {
	b := NewBallot(time.Now(), time.Hour)

	// Down reaches the quorum with a one-vote lead and wins; the up side at
	// quorum size but trailing never finalized anything on the way.
	_, _ = b.Cast("u1", true)
	_, _ = b.Cast("u2", true)
	_, _ = b.Cast("d1", false)
	_, _ = b.Cast("d2", false)
	out, err := b.Cast("d3", false)
	require.NoError(t, err)

	assert.Equal(t, OutcomeRejected, out)
	assert.True(t, b.Finished)
	assert.False(t, b.Approved)
}

func TestBallot_TwoTwoTieStaysPending(t *testing.T) {
	b := NewBallot(time.Now(), time.Hour)

	_, _ = b.Cast("u1", true)
	_, _ = b.Cast("u2", true)
	out, err := b.Cast("d1", false)
	require.NoError(t, err)
	assert.Equal(t, OutcomePending, out)
	out, err = b.Cast("d2", false)
	require.NoError(t, err)
	assert.Equal(t, OutcomePending, out)

	assert.False(t, b.Finished)
	assert.True(t, b.Active(time.Now()))
}

func TestBallot_ExpirySimpleMajority(t *testing.T) {
	start := time.Now()
	b := NewBallot(start, time.Hour)

	_, _ = b.Cast("u1", true)

	// Not expired yet.
	assert.False(t, b.FinalizeExpired(start.Add(30*time.Minute)))
	assert.False(t, b.Finished)

	// A single up vote carries at expiry.
	assert.True(t, b.FinalizeExpired(start.Add(2*time.Hour)))
	assert.True(t, b.Finished)
	assert.True(t, b.Approved)
	assert.Equal(t, OutcomeApproved, b.Outcome())

	// Redundant finalize is a no-op.
	assert.False(t, b.FinalizeExpired(start.Add(3*time.Hour)))
}

func TestBallot_ExpiryTieRejects(t *testing.T) {
	start := time.Now()
	b := NewBallot(start, time.Hour)

	_, _ = b.Cast("u1", true)
	_, _ = b.Cast("d1", false)

	require.True(t, b.FinalizeExpired(start.Add(2*time.Hour)))
	assert.False(t, b.Approved)
	assert.Equal(t, OutcomeRejected, b.Outcome())
}

func TestBallot_ExpiryNoVotesRejects(t *testing.T) {
	start := time.Now()
	b := NewBallot(start, time.Minute)

	require.True(t, b.FinalizeExpired(start.Add(time.Hour)))
	assert.False(t, b.Approved)
}

func TestSkipBallot_DuplicateVotes(t *testing.T) {
	s := NewSkipBallot()

	assert.True(t, s.Cast("alice"))
	assert.False(t, s.Cast("alice"))
	assert.True(t, s.Cast("bob"))
	assert.Equal(t, 2, s.Count())

	s.Reset()
	assert.Equal(t, 0, s.Count())
	assert.True(t, s.Cast("alice"))
}

func TestRequiredSkipVotes(t *testing.T) {
	cases := []struct {
		listeners int
		want      int
	}{
		{0, 2},
		{1, 2},
		{2, 2},
		{3, 2},
		{4, 2},
		{5, 3},
		{6, 3},
		{7, 4},
		{10, 5},
		{11, 6},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, RequiredSkipVotes(tc.listeners), "listeners=%d", tc.listeners)
	}
}
