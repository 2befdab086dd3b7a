// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package memmodel collects the distinct outcomes a campaign observes
// across its executions, so a scenario's test can assert the exact set
// (§8's S4 "observed results must be exactly {0,1,2}", S5's Dekker
// violation) instead of eyeballing a trace dump.
package memmodel

import (
	"fmt"
	"sort"
)

// Outcome is one observed result: an ordered tuple of whatever values a
// scenario's observation points produced (e.g. the final value two threads
// each read from a shared Ref).
type Outcome []interface{}

func (o Outcome) key() string { return fmt.Sprint([]interface{}(o)) }

// OutcomeSet records the set of distinct outcomes seen across a campaign.
type OutcomeSet struct {
	seen  map[string]Outcome
	order []string
}

// NewOutcomeSet returns an empty set.
func NewOutcomeSet() *OutcomeSet {
	return &OutcomeSet{seen: make(map[string]Outcome)}
}

// Add records o, a no-op if it was already present.
func (s *OutcomeSet) Add(o Outcome) {
	k := o.key()
	if _, ok := s.seen[k]; ok {
		return
	}
	s.seen[k] = o
	s.order = append(s.order, k)
}

// Has reports whether o has been recorded.
func (s *OutcomeSet) Has(o Outcome) bool {
	_, ok := s.seen[o.key()]
	return ok
}

// Len is the number of distinct outcomes recorded.
func (s *OutcomeSet) Len() int { return len(s.seen) }

// Contains reports whether every outcome in other also appears in s.
func (s *OutcomeSet) Contains(other *OutcomeSet) bool {
	for k := range other.seen {
		if _, ok := s.seen[k]; !ok {
			return false
		}
	}
	return true
}

// AddAll unions other into s.
func (s *OutcomeSet) AddAll(other *OutcomeSet) {
	for _, k := range other.order {
		s.Add(other.seen[k])
	}
}

// Outcomes returns every distinct outcome seen, in discovery order.
func (s *OutcomeSet) Outcomes() []Outcome {
	out := make([]Outcome, len(s.order))
	for i, k := range s.order {
		out[i] = s.seen[k]
	}
	return out
}

func (s *OutcomeSet) String() string {
	keys := append([]string{}, s.order...)
	sort.Strings(keys)
	var b []byte
	for i, k := range keys {
		if i > 0 {
			b = append(b, '\n')
		}
		b = append(b, k...)
	}
	return string(b)
}
