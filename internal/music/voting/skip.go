package voting

// SkipBallot collects votes to skip the current track. It lives for exactly
// one track; the player resets it on every track change.
type SkipBallot struct {
	voters map[string]struct{}
}

func NewSkipBallot() *SkipBallot {
	return &SkipBallot{voters: make(map[string]struct{})}
}

// Cast records a vote. Voting twice is not an error but does not double
// count; the second call returns false.
func (s *SkipBallot) Cast(voterID string) bool {
	if _, ok := s.voters[voterID]; ok {
		return false
	}
	s.voters[voterID] = struct{}{}
	return true
}

func (s *SkipBallot) Count() int {
	return len(s.voters)
}

func (s *SkipBallot) Reset() {
	s.voters = make(map[string]struct{})
}

// RequiredSkipVotes returns how many votes it takes to skip given the number
// of non-bot listeners in the channel: half of them rounded up, never fewer
// than two.
func RequiredSkipVotes(listeners int) int {
	required := (listeners + 1) / 2
	if required < 2 {
		required = 2
	}
	return required
}
