/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package replace supplies substitute movies when a player skips one.
package replace

import (
	"context"
	"math/rand/v2"

	"github.com/Seednode/blindboxd/internal/movie"
)

// Fetcher issues one candidate query for a category.
type Fetcher interface {
	FetchCandidates(ctx context.Context, cat movie.Category, rng *rand.Rand) []movie.Record
}

// Sourcer draws replacements from a standing pool, refilling it from the
// fetcher when it runs dry. A Sourcer belongs to one session and is not safe
// for concurrent use.
type Sourcer struct {
	fetcher  Fetcher
	category movie.Category
	rng      *rand.Rand

	pool    []movie.Record
	drawn   map[string]bool
	refills int
}

// New returns a sourcer seeded with the candidates left over after the
// working set was drawn.
func New(fetcher Fetcher, cat movie.Category, rng *rand.Rand, pool []movie.Record) *Sourcer {
	return &Sourcer{
		fetcher:  fetcher,
		category: cat,
		rng:      rng,
		pool:     movie.Dedup(pool),
		drawn:    make(map[string]bool),
	}
}

// Next returns the first pool entry that is neither excluded nor drawn
// before. When the pool holds nothing eligible it is refilled once; if that
// yields nothing either, Next reports false.
func (s *Sourcer) Next(ctx context.Context, exclude map[string]bool) (movie.Record, bool) {
	if rec, ok := s.draw(exclude); ok {
		return rec, true
	}

	if ctx.Err() != nil {
		return movie.Record{}, false
	}

	s.refill(ctx, exclude)

	return s.draw(exclude)
}

// Remaining is the number of entries left in the pool, eligible or not.
func (s *Sourcer) Remaining() int {
	return len(s.pool)
}

// Refills counts how many extra queries have been issued.
func (s *Sourcer) Refills() int {
	return s.refills
}

func (s *Sourcer) draw(exclude map[string]bool) (movie.Record, bool) {
	for len(s.pool) > 0 {
		rec := s.pool[0]
		s.pool = s.pool[1:]

		if exclude[rec.ID] || s.drawn[rec.ID] {
			continue
		}

		s.drawn[rec.ID] = true

		return rec, true
	}

	return movie.Record{}, false
}

func (s *Sourcer) refill(ctx context.Context, exclude map[string]bool) {
	s.refills++

	fresh := movie.Dedup(s.pool, s.fetcher.FetchCandidates(ctx, s.category, s.rng))

	eligible := fresh[:0]
	for _, rec := range fresh {
		if exclude[rec.ID] || s.drawn[rec.ID] {
			continue
		}
		eligible = append(eligible, rec)
	}

	movie.Shuffle(s.rng, eligible)
	s.pool = eligible
}
