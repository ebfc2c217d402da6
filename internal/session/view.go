/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"context"
	"maps"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/Seednode/blindboxd/internal/movie"
)

// posterConcurrency bounds parallel poster lookups for one session.
const posterConcurrency = 4

// Slot is one working set position as seen by a client.
type Slot struct {
	Index   int          `json:"index"`
	Movie   movie.Record `json:"movie"`
	Rank    int          `json:"rank,omitempty"`
	Skipped bool         `json:"skipped,omitempty"`
	Dropped bool         `json:"dropped,omitempty"`
}

// Snapshot is a copy of the session safe to hand to other goroutines.
type Snapshot struct {
	State          State          `json:"state"`
	Category       movie.Category `json:"category"`
	Label          string         `json:"label"`
	Slots          []Slot         `json:"slots"`
	Cursor         int            `json:"cursor"`
	Current        *movie.Record  `json:"current,omitempty"`
	Taken          []int          `json:"taken"`
	SkipsLeft      int            `json:"skips_left"`
	UnlimitedSkips bool           `json:"unlimited_skips"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		State:          s.state,
		Category:       s.category,
		Slots:          make([]Slot, 0, len(s.set)),
		Cursor:         s.cursor,
		Taken:          slices.Sorted(maps.Keys(s.taken)),
		SkipsLeft:      s.budget.Remaining(),
		UnlimitedSkips: s.budget.IsUnlimited(),
	}

	if s.category.Kind != "" {
		snap.Label = s.category.Label()
	}

	for i, rec := range s.set {
		snap.Slots = append(snap.Slots, Slot{
			Index:   i,
			Movie:   s.withPosterLocked(rec),
			Rank:    s.ranks[i],
			Skipped: s.skipped[i],
			Dropped: s.dropped[i],
		})
	}

	if s.state == Ranking && s.cursor < len(s.set) {
		current := s.withPosterLocked(s.set[s.cursor])
		snap.Current = &current
	}

	return snap
}

// Placement is one rank of the final board. Movie is nil when no movie was
// given that rank.
type Placement struct {
	Rank  int           `json:"rank"`
	Movie *movie.Record `json:"movie,omitempty"`
}

// Result is the finished board of a completed session.
type Result struct {
	Category   movie.Category `json:"category"`
	Label      string         `json:"label"`
	Placements []Placement    `json:"placements"`
	Skipped    int            `json:"skipped"`
	Dropped    int            `json:"dropped"`
}

// Result reports the final board, one placement per rank from MinRank to
// MaxRank. The second value is false until the session is complete.
func (s *Session) Result() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Complete {
		return Result{}, false
	}

	res := Result{
		Category:   s.category,
		Label:      s.category.Label(),
		Placements: make([]Placement, 0, MaxRank-MinRank+1),
		Skipped:    len(s.skipped),
		Dropped:    len(s.dropped),
	}

	for rank := MinRank; rank <= MaxRank; rank++ {
		p := Placement{Rank: rank}
		if i, ok := s.taken[rank]; ok {
			rec := s.withPosterLocked(s.set[i])
			p.Movie = &rec
		}
		res.Placements = append(res.Placements, p)
	}

	return res, true
}

// PosterResolver looks up a poster path for a record, returning an empty
// string when none is known.
type PosterResolver interface {
	ResolvePoster(ctx context.Context, rec movie.Record) string
}

// ResolvePosters fills the session's poster cache for every movie in the
// working set that lacks one, and returns how many were found. Lookups run
// concurrently and may finish in any order.
func (s *Session) ResolvePosters(ctx context.Context, resolver PosterResolver) int {
	s.mu.Lock()
	token := s.token

	var pending []movie.Record
	for _, rec := range s.set {
		if rec.HasPoster() {
			continue
		}
		if _, ok := s.posters[rec.ID]; ok {
			continue
		}
		pending = append(pending, rec)
	}
	s.mu.Unlock()

	if len(pending) == 0 {
		return 0
	}

	paths := make([]string, len(pending))

	var g errgroup.Group
	g.SetLimit(posterConcurrency)

	for i, rec := range pending {
		g.Go(func() error {
			paths[i] = resolver.ResolvePoster(ctx, rec)

			return nil
		})
	}

	_ = g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != token {
		return 0
	}

	found := 0
	for i, rec := range pending {
		if paths[i] == "" {
			continue
		}
		s.posters[rec.ID] = paths[i]
		found++
	}

	return found
}

// Poster returns the cached poster path for a movie id.
func (s *Session) Poster(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, ok := s.posters[id]

	return path, ok
}
