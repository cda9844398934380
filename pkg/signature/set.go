package signature

import (
	"sort"

	"github.com/clemsos/safe-docs/pkg/types"
	"github.com/ethereum/go-ethereum/common"
)

// Set accumulates contributions keyed by signer. It does no validation and no
// locking: one writer per signing session, serialized by the caller.
type Set struct {
	contributions map[common.Address]*Contribution
}

func NewSet(contributions ...*Contribution) *Set {
	s := &Set{contributions: make(map[common.Address]*Contribution, len(contributions))}
	for _, c := range contributions {
		s.Add(c)
	}
	return s
}

// Add inserts c, replacing any earlier contribution from the same signer
func (s *Set) Add(c *Contribution) {
	if c == nil {
		return
	}
	if s.contributions == nil {
		s.contributions = make(map[common.Address]*Contribution)
	}
	s.contributions[c.Signer] = c
}

func (s *Set) Get(signer common.Address) (*Contribution, bool) {
	c, ok := s.contributions[signer]
	return c, ok
}

func (s *Set) Remove(signer common.Address) {
	delete(s.contributions, signer)
}

func (s *Set) Len() int {
	return len(s.contributions)
}

// All returns the contributions. The order is by signer only to keep output stable;
// canonical ordering is the aggregator's job.
func (s *Set) All() []*Contribution {
	all := make([]*Contribution, 0, len(s.contributions))
	for _, c := range s.contributions {
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool {
		return types.CompareAddresses(all[i].Signer, all[j].Signer) < 0
	})
	return all
}

// Clone copies the index; contributions themselves are shared and treated as immutable
func (s *Set) Clone() *Set {
	clone := &Set{contributions: make(map[common.Address]*Contribution, len(s.contributions))}
	for k, v := range s.contributions {
		clone.contributions[k] = v
	}
	return clone
}
