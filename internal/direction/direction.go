// Package direction resolves the labeled feature directions a configuration
// watches, from direct specification, a saved vector file or example sets.
package direction

import (
	"errors"
	"fmt"
	"strings"
)

// ErrVectorResolution means a direction source was found but yielded nothing usable.
var ErrVectorResolution = errors.New("vector resolution failed")

type Polarity string

const (
	Good Polarity = "good"
	Bad  Polarity = "bad"
)

// ParsePolarity accepts "good"/"bad" in any case.
func ParsePolarity(s string) (Polarity, error) {
	switch Polarity(strings.ToLower(strings.TrimSpace(s))) {
	case Good:
		return Good, nil
	case Bad:
		return Bad, nil
	}
	return "", fmt.Errorf("unknown polarity %q", s)
}

// Direction is one feature the engine scores against.
type Direction struct {
	ID       string   `json:"uuid"`
	Label    string   `json:"label"`
	Polarity Polarity `json:"polarity"`
	Weight   *float64 `json:"weight,omitempty"`
}

// Source names where a Set came from.
type Source string

const (
	SourceDirect   Source = "direct_vectors"
	SourceFile     Source = "_vector_source"
	SourceExamples Source = "examples"
)

// Set is a resolved, non-empty collection of directions split by polarity.
type Set struct {
	Good   []Direction
	Bad    []Direction
	Source Source
	Path   string
}

// NewSet partitions directions by polarity, rejecting duplicates and empty input.
func NewSet(dirs []Direction, source Source, path string) (*Set, error) {
	s := &Set{Source: source, Path: path}
	seen := make(map[string]bool, len(dirs))
	for _, d := range dirs {
		if d.ID == "" {
			return nil, fmt.Errorf("%w: direction without uuid", ErrVectorResolution)
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("%w: duplicate direction %s", ErrVectorResolution, d.ID)
		}
		seen[d.ID] = true
		switch d.Polarity {
		case Good:
			s.Good = append(s.Good, d)
		case Bad:
			s.Bad = append(s.Bad, d)
		default:
			return nil, fmt.Errorf("%w: direction %s has polarity %q", ErrVectorResolution, d.ID, d.Polarity)
		}
	}
	if s.Len() == 0 {
		where := string(source)
		if path != "" {
			where = path
		}
		return nil, fmt.Errorf("%w: no directions in %s", ErrVectorResolution, where)
	}
	return s, nil
}

// Len is the total number of directions.
func (s *Set) Len() int {
	return len(s.Good) + len(s.Bad)
}

// All returns good directions followed by bad ones.
func (s *Set) All() []Direction {
	out := make([]Direction, 0, s.Len())
	out = append(out, s.Good...)
	return append(out, s.Bad...)
}

// IDs lists every direction id in All order.
func (s *Set) IDs() []string {
	all := s.All()
	ids := make([]string, len(all))
	for i, d := range all {
		ids[i] = d.ID
	}
	return ids
}

// Lookup finds a direction by id.
func (s *Set) Lookup(id string) (Direction, bool) {
	for _, d := range s.All() {
		if d.ID == id {
			return d, true
		}
	}
	return Direction{}, false
}
