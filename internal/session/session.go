/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package session implements the ranking game: a working set of movies, the
// ranks assigned to them, and the skip budget that governs replacements.
package session

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"

	"github.com/Seednode/blindboxd/internal/movie"
	"github.com/Seednode/blindboxd/internal/replace"
)

const (
	MinRank = 1
	MaxRank = movie.WorkingSetSize
)

type State int

const (
	SelectingCategory State = iota
	FetchingCandidates
	Ranking
	Complete
	Error
)

func (s State) String() string {
	switch s {
	case SelectingCategory:
		return "selecting"
	case FetchingCandidates:
		return "fetching"
	case Ranking:
		return "ranking"
	case Complete:
		return "complete"
	case Error:
		return "error"
	}

	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Fetcher produces raw candidates for a category. It never fails; an empty
// result means nothing usable was found.
type Fetcher interface {
	FetchCandidates(ctx context.Context, cat movie.Category, rng *rand.Rand) []movie.Record
}

// SkipOutcome tells the caller what a successful skip did to the slot.
type SkipOutcome int

const (
	// SkipReplaced put a new movie in the current slot. The cursor did not
	// move.
	SkipReplaced SkipOutcome = iota
	// SkipDropped found no replacement. The slot is left out of the result
	// and the cursor moved on.
	SkipDropped
)

func (o SkipOutcome) String() string {
	if o == SkipDropped {
		return "dropped"
	}

	return "replaced"
}

// Session is one player's ranking game. All methods are safe for concurrent
// use; blocking fetches run without holding the lock, and any call that
// arrives while one is outstanding is rejected with ErrBusy.
type Session struct {
	mu sync.Mutex

	fetcher Fetcher
	rng     *rand.Rand

	state    State
	token    string
	category movie.Category
	budget   Budget

	set     []movie.Record
	ranks   map[int]int
	taken   map[int]int
	cursor  int
	skipped map[int]bool
	dropped map[int]bool
	seen    map[string]bool
	sourcer *replace.Sourcer

	posters map[string]string
}

// New returns an idle session. rng is owned by the session from here on.
func New(fetcher Fetcher, rng *rand.Rand) *Session {
	s := &Session{
		fetcher: fetcher,
		rng:     rng,
	}
	s.clearLocked()

	return s
}

func (s *Session) clearLocked() {
	s.state = SelectingCategory
	s.token = ""
	s.category = movie.Category{}
	s.budget = Budget{}
	s.set = nil
	s.ranks = make(map[int]int)
	s.taken = make(map[int]int)
	s.cursor = 0
	s.skipped = make(map[int]bool)
	s.dropped = make(map[int]bool)
	s.seen = make(map[string]bool)
	s.sourcer = nil
	s.posters = make(map[string]string)
}

// derivedRandLocked seeds a generator for one fetch so no generator is ever
// shared between goroutines.
func (s *Session) derivedRandLocked() *rand.Rand {
	return rand.New(rand.NewPCG(s.rng.Uint64(), s.rng.Uint64()))
}

// Start discards any previous game and draws a fresh working set for cat.
// It returns ErrNoCandidates when nothing was found and ErrStale when the
// session was restarted or reset before the fetch finished.
func (s *Session) Start(ctx context.Context, cat movie.Category, budget Budget) error {
	s.mu.Lock()
	s.clearLocked()

	token := uuid.NewString()
	s.token = token
	s.state = FetchingCandidates
	s.category = cat
	s.budget = budget

	rng := s.derivedRandLocked()
	s.mu.Unlock()

	candidates := s.fetcher.FetchCandidates(ctx, cat, rng)
	picked, rest := movie.Split(rng, candidates, movie.WorkingSetSize)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != token {
		return ErrStale
	}

	if err := ctx.Err(); err != nil {
		s.state = SelectingCategory

		return err
	}

	if len(picked) == 0 {
		s.state = Error

		return ErrNoCandidates
	}

	s.set = picked
	for _, rec := range picked {
		s.seen[rec.ID] = true
	}
	s.sourcer = replace.New(s.fetcher, cat, rng, rest)
	s.state = Ranking

	return nil
}

// Reset returns the session to category selection. Fetches still in flight
// will come back stale.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearLocked()
}

func (s *Session) rankableLocked() error {
	switch {
	case s.state == FetchingCandidates:
		return ErrBusy
	case s.state != Ranking, s.cursor >= len(s.set):
		return ErrNotRanking
	}

	return nil
}

// AssignRank gives the movie under the cursor a rank and moves on. Ranks are
// final: a rank outside 1..10 or one already held by another movie is
// rejected without touching the session.
func (s *Session) AssignRank(rank int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.rankableLocked(); err != nil {
		return err
	}

	if rank < MinRank || rank > MaxRank {
		return ErrRankOutOfRange
	}

	if _, ok := s.taken[rank]; ok {
		return ErrRankTaken
	}

	s.ranks[s.cursor] = rank
	s.taken[rank] = s.cursor
	s.cursor++
	s.settleLocked()

	return nil
}

// Skip spends one skip on the movie under the cursor and tries to replace
// it with a movie this session has not shown yet.
func (s *Session) Skip(ctx context.Context) (SkipOutcome, error) {
	s.mu.Lock()

	if err := s.rankableLocked(); err != nil {
		s.mu.Unlock()

		return 0, err
	}

	if !s.budget.Allows() {
		s.mu.Unlock()

		return 0, ErrNoSkips
	}

	token := s.token
	index := s.cursor
	sourcer := s.sourcer

	exclude := make(map[string]bool, len(s.seen))
	for id := range s.seen {
		exclude[id] = true
	}

	s.state = FetchingCandidates
	s.mu.Unlock()

	rec, found := sourcer.Next(ctx, exclude)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != token {
		return 0, ErrStale
	}

	s.state = Ranking

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.skipped[index] = true
	s.budget = s.budget.consume()

	if found {
		s.set[index] = rec
		s.seen[rec.ID] = true

		return SkipReplaced, nil
	}

	s.dropped[index] = true
	s.cursor++
	s.settleLocked()

	return SkipDropped, nil
}

// settleLocked moves to Complete once the cursor has passed every slot and
// every slot that was not dropped holds a rank.
func (s *Session) settleLocked() {
	if s.cursor == len(s.set) && len(s.ranks) == len(s.set)-len(s.dropped) {
		s.state = Complete
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Session) Category() movie.Category {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.category
}

func (s *Session) withPosterLocked(rec movie.Record) movie.Record {
	if rec.PosterPath == "" {
		rec.PosterPath = s.posters[rec.ID]
	}

	return rec
}
