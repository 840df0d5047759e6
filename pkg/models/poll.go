package models

import "fmt"

// Poll is a poll embedded in a message: a question, an ordered option
// list and a per-option voter set. Invariants maintained by Apply:
// a voter id appears in at most one option's set, and TotalVotes equals
// the sum of all option set sizes.
type Poll struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	// Votes maps option index to the ids of users who voted for it.
	Votes      map[int][]string `json:"votes,omitempty"`
	TotalVotes int              `json:"total_votes"`
	// Revision increments on every applied vote so narrow subscribers can
	// discard stale updates.
	Revision uint64 `json:"revision,omitempty"`
}

// Apply records a vote by user for the given option index. Voting for the
// option the user already holds is a toggle-off; voting for a different
// option moves the vote. TotalVotes is recomputed from the option sets.
func (p *Poll) Apply(option int, user string) error {
	if option < 0 || option >= len(p.Options) {
		return fmt.Errorf("option index %d out of range [0,%d)", option, len(p.Options))
	}
	if user == "" {
		return fmt.Errorf("empty voter id")
	}
	if p.Votes == nil {
		p.Votes = make(map[int][]string)
	}
	toggledOff := false
	for idx, voters := range p.Votes {
		for i, v := range voters {
			if v != user {
				continue
			}
			p.Votes[idx] = append(voters[:i], voters[i+1:]...)
			if len(p.Votes[idx]) == 0 {
				delete(p.Votes, idx)
			}
			if idx == option {
				toggledOff = true
			}
			break
		}
	}
	if !toggledOff {
		p.Votes[option] = append(p.Votes[option], user)
	}
	p.TotalVotes = p.countVotes()
	p.Revision++
	return nil
}

// VotedOption returns the option index the user currently holds, or -1.
func (p *Poll) VotedOption(user string) int {
	for idx, voters := range p.Votes {
		for _, v := range voters {
			if v == user {
				return idx
			}
		}
	}
	return -1
}

func (p *Poll) countVotes() int {
	n := 0
	for _, voters := range p.Votes {
		n += len(voters)
	}
	return n
}

// Validate checks structural invariants on a poll received from a client.
func (p *Poll) Validate() error {
	if p.Question == "" {
		return fmt.Errorf("poll question empty")
	}
	if len(p.Options) < 2 {
		return fmt.Errorf("poll needs at least two options")
	}
	for i, o := range p.Options {
		if o == "" {
			return fmt.Errorf("poll option %d empty", i)
		}
	}
	return nil
}
