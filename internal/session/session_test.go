/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"sync"
	"testing"

	"github.com/Seednode/blindboxd/internal/movie"
)

var action = movie.Category{Kind: movie.Genre, Value: "Action"}

// queueFetcher returns one queued batch per call, then nothing.
type queueFetcher struct {
	mu      sync.Mutex
	batches [][]movie.Record
	calls   int
}

func (f *queueFetcher) FetchCandidates(_ context.Context, _ movie.Category, _ *rand.Rand) []movie.Record {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if len(f.batches) == 0 {
		return nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]

	return batch
}

func records(ids ...string) []movie.Record {
	out := make([]movie.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, movie.Record{ID: id, Title: "Movie " + id})
	}

	return out
}

func numbered(n int) []movie.Record {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = strconv.Itoa(i + 1)
	}

	return records(ids...)
}

func started(t *testing.T, budget Budget, batches ...[]movie.Record) (*Session, *queueFetcher) {
	t.Helper()

	f := &queueFetcher{batches: batches}
	s := New(f, movie.NewRand(42))

	if err := s.Start(context.Background(), action, budget); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	return s, f
}

func TestStartSamplesWorkingSet(t *testing.T) {
	s, _ := started(t, Limited(0), numbered(25))

	snap := s.Snapshot()
	if snap.State != Ranking {
		t.Fatalf("state = %v, want ranking", snap.State)
	}
	if len(snap.Slots) != movie.WorkingSetSize {
		t.Fatalf("working set has %d movies, want %d", len(snap.Slots), movie.WorkingSetSize)
	}

	seen := make(map[string]bool)
	for _, slot := range snap.Slots {
		if seen[slot.Movie.ID] {
			t.Errorf("movie %s appears twice", slot.Movie.ID)
		}
		seen[slot.Movie.ID] = true
	}

	if snap.Current == nil || snap.Current.ID != snap.Slots[0].Movie.ID {
		t.Errorf("current movie = %v, want first slot", snap.Current)
	}
}

func TestStartNoCandidates(t *testing.T) {
	f := &queueFetcher{}
	s := New(f, movie.NewRand(1))

	err := s.Start(context.Background(), action, Limited(1))
	if !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("Start() error = %v, want ErrNoCandidates", err)
	}
	if s.State() != Error {
		t.Errorf("state = %v, want error", s.State())
	}
	if err := s.AssignRank(1); !errors.Is(err, ErrNotRanking) {
		t.Errorf("AssignRank() in error state = %v, want ErrNotRanking", err)
	}
}

func TestRankUniquenessAndAppendOnly(t *testing.T) {
	s, _ := started(t, Limited(0), numbered(10))

	ranks := []int{3, 3, 7, 11, 0, 7, 1}
	var accepted []int
	for _, r := range ranks {
		before := s.Snapshot()

		err := s.AssignRank(r)
		if err != nil {
			if !errors.Is(err, ErrInvalidOperation) {
				t.Fatalf("AssignRank(%d) error = %v, want ErrInvalidOperation", r, err)
			}
			after := s.Snapshot()
			if after.Cursor != before.Cursor || len(after.Taken) != len(before.Taken) {
				t.Fatalf("rejected AssignRank(%d) mutated the session", r)
			}
			continue
		}
		accepted = append(accepted, r)
	}

	if want := []int{3, 7, 1}; len(accepted) != len(want) {
		t.Fatalf("accepted ranks = %v, want %v", accepted, want)
	}

	snap := s.Snapshot()
	for i, want := range []int{3, 7, 1} {
		if snap.Slots[i].Rank != want {
			t.Errorf("slot %d rank = %d, want %d", i, snap.Slots[i].Rank, want)
		}
	}
}

func TestRankRejections(t *testing.T) {
	s, _ := started(t, Limited(0), numbered(3))

	if err := s.AssignRank(4); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		rank int
		want error
	}{
		{0, ErrRankOutOfRange},
		{11, ErrRankOutOfRange},
		{-1, ErrRankOutOfRange},
		{4, ErrRankTaken},
	}

	for _, tt := range tests {
		if err := s.AssignRank(tt.rank); !errors.Is(err, tt.want) {
			t.Errorf("AssignRank(%d) = %v, want %v", tt.rank, err, tt.want)
		}
	}
}

func TestScenarioSmallSetWithReplacement(t *testing.T) {
	s, f := started(t, Limited(1), records("A", "B", "C"), records("D"))

	// A rank of 5 is valid even with only three movies.
	if err := s.AssignRank(5); err != nil {
		t.Fatalf("AssignRank(5) error = %v", err)
	}
	snap := s.Snapshot()
	if snap.Slots[0].Rank != 5 || snap.Cursor != 1 {
		t.Fatalf("after first rank: slot0 = %d, cursor = %d", snap.Slots[0].Rank, snap.Cursor)
	}

	if err := s.AssignRank(5); !errors.Is(err, ErrRankTaken) {
		t.Fatalf("second AssignRank(5) = %v, want ErrRankTaken", err)
	}
	if s.Snapshot().Cursor != 1 {
		t.Fatal("cursor moved after a rejected rank")
	}

	outcome, err := s.Skip(context.Background())
	if err != nil {
		t.Fatalf("Skip() error = %v", err)
	}
	if outcome != SkipReplaced {
		t.Fatalf("Skip() outcome = %v, want replaced", outcome)
	}
	if f.calls != 2 {
		t.Errorf("fetcher calls = %d, want one refill after the start", f.calls)
	}

	snap = s.Snapshot()
	if snap.Slots[1].Movie.ID != "D" {
		t.Errorf("slot 1 = %s, want D", snap.Slots[1].Movie.ID)
	}
	if snap.Cursor != 1 {
		t.Errorf("cursor = %d, want 1", snap.Cursor)
	}
	if snap.SkipsLeft != 0 || snap.UnlimitedSkips {
		t.Errorf("skips left = %d (unlimited %v), want 0", snap.SkipsLeft, snap.UnlimitedSkips)
	}
	for i, slot := range snap.Slots {
		if slot.Skipped != (i == 1) {
			t.Errorf("slot %d skipped = %v", i, slot.Skipped)
		}
	}

	if _, err := s.Skip(context.Background()); !errors.Is(err, ErrNoSkips) {
		t.Fatalf("Skip() with no budget = %v, want ErrNoSkips", err)
	}
	after := s.Snapshot()
	if after.Slots[1].Movie.ID != "D" || after.Cursor != 1 || f.calls != 2 {
		t.Error("rejected skip mutated the session")
	}
}

func TestSkipDropsWhenNoReplacement(t *testing.T) {
	s, _ := started(t, Limited(2), records("A", "B"))

	outcome, err := s.Skip(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if outcome != SkipDropped {
		t.Fatalf("outcome = %v, want dropped", outcome)
	}

	snap := s.Snapshot()
	if snap.Cursor != 1 || !snap.Slots[0].Dropped {
		t.Fatalf("cursor = %d, dropped = %v", snap.Cursor, snap.Slots[0].Dropped)
	}
	if snap.SkipsLeft != 1 {
		t.Errorf("skips left = %d, want 1", snap.SkipsLeft)
	}

	if err := s.AssignRank(2); err != nil {
		t.Fatal(err)
	}
	if s.State() != Complete {
		t.Fatalf("state = %v, want complete", s.State())
	}

	res, ok := s.Result()
	if !ok {
		t.Fatal("Result() not available for a complete session")
	}
	if len(res.Placements) != MaxRank {
		t.Fatalf("placements = %d, want %d", len(res.Placements), MaxRank)
	}
	filled := 0
	for _, p := range res.Placements {
		if p.Movie != nil {
			filled++
			if p.Rank != 2 {
				t.Errorf("movie placed at rank %d, want 2", p.Rank)
			}
		}
	}
	if filled != 1 || res.Dropped != 1 || res.Skipped != 1 {
		t.Errorf("filled = %d, dropped = %d, skipped = %d", filled, res.Dropped, res.Skipped)
	}
}

func TestSkipNeverRepeatsMovies(t *testing.T) {
	s, _ := started(t, Unlimited(), records("A", "B", "C", "D", "E"), records("A", "E", "F"))

	shown := make(map[string]bool)
	for _, slot := range s.Snapshot().Slots {
		shown[slot.Movie.ID] = true
	}

	for range 6 {
		if s.State() != Ranking {
			break
		}
		outcome, err := s.Skip(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if outcome == SkipReplaced {
			cur := s.Snapshot().Current
			if shown[cur.ID] {
				t.Fatalf("replacement %s was already shown", cur.ID)
			}
			shown[cur.ID] = true
		}
	}

	if !s.Snapshot().UnlimitedSkips {
		t.Error("unlimited budget was used up")
	}
}

func TestBudgetMonotonic(t *testing.T) {
	s, _ := started(t, Limited(2), numbered(20))

	prev := s.Snapshot().SkipsLeft
	for range 4 {
		_, _ = s.Skip(context.Background())
		left := s.Snapshot().SkipsLeft
		if left > prev {
			t.Fatalf("skip budget grew from %d to %d", prev, left)
		}
		prev = left
	}

	if prev != 0 {
		t.Errorf("skips left = %d, want 0", prev)
	}
}

func TestCompletion(t *testing.T) {
	s, _ := started(t, Limited(0), numbered(10))

	for rank := MaxRank; rank >= MinRank; rank-- {
		if s.State() == Complete {
			t.Fatalf("complete before rank %d was assigned", rank)
		}
		if err := s.AssignRank(rank); err != nil {
			t.Fatal(err)
		}
	}

	if s.State() != Complete {
		t.Fatalf("state = %v, want complete", s.State())
	}
	if err := s.AssignRank(1); !errors.Is(err, ErrNotRanking) {
		t.Errorf("AssignRank() after completion = %v, want ErrNotRanking", err)
	}

	res, ok := s.Result()
	if !ok {
		t.Fatal("Result() unavailable")
	}
	for _, p := range res.Placements {
		if p.Movie == nil {
			t.Errorf("rank %d is empty", p.Rank)
		}
	}
}

func TestResultUnavailableWhileRanking(t *testing.T) {
	s, _ := started(t, Limited(0), numbered(10))

	if _, ok := s.Result(); ok {
		t.Error("Result() available before completion")
	}
}

func TestReset(t *testing.T) {
	s, _ := started(t, Limited(1), numbered(10))

	s.Reset()

	if s.State() != SelectingCategory {
		t.Errorf("state = %v, want selecting", s.State())
	}
	if len(s.Snapshot().Slots) != 0 {
		t.Error("working set survived reset")
	}
	if err := s.AssignRank(1); !errors.Is(err, ErrNotRanking) {
		t.Errorf("AssignRank() after reset = %v", err)
	}
}

// blockingFetcher holds its first call until released.
type blockingFetcher struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (f *blockingFetcher) FetchCandidates(_ context.Context, _ movie.Category, _ *rand.Rand) []movie.Record {
	first := false
	f.once.Do(func() { first = true })

	if first {
		close(f.entered)
		<-f.release
		return records("OLD1", "OLD2")
	}

	return records("NEW1", "NEW2")
}

func TestStaleStartDiscarded(t *testing.T) {
	f := &blockingFetcher{entered: make(chan struct{}), release: make(chan struct{})}
	s := New(f, movie.NewRand(3))

	errs := make(chan error, 1)
	go func() {
		errs <- s.Start(context.Background(), action, Limited(0))
	}()

	<-f.entered

	if err := s.AssignRank(1); !errors.Is(err, ErrBusy) {
		t.Errorf("AssignRank() during fetch = %v, want ErrBusy", err)
	}

	if err := s.Start(context.Background(), action, Limited(0)); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}

	close(f.release)

	if err := <-errs; !errors.Is(err, ErrStale) {
		t.Fatalf("first Start() error = %v, want ErrStale", err)
	}

	for _, slot := range s.Snapshot().Slots {
		if slot.Movie.ID == "OLD1" || slot.Movie.ID == "OLD2" {
			t.Fatalf("stale movie %s reached the working set", slot.Movie.ID)
		}
	}
}

func TestStartCancelled(t *testing.T) {
	f := &queueFetcher{batches: [][]movie.Record{numbered(10)}}
	s := New(f, movie.NewRand(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Start(ctx, action, Limited(0)); !errors.Is(err, context.Canceled) {
		t.Fatalf("Start() error = %v, want context.Canceled", err)
	}
	if s.State() != SelectingCategory {
		t.Errorf("state = %v, want selecting", s.State())
	}
}

func TestStartDeterministicForSeed(t *testing.T) {
	ids := func() []string {
		f := &queueFetcher{batches: [][]movie.Record{numbered(30)}}
		s := New(f, movie.NewRand(99))
		if err := s.Start(context.Background(), action, Limited(0)); err != nil {
			t.Fatal(err)
		}

		var out []string
		for _, slot := range s.Snapshot().Slots {
			out = append(out, slot.Movie.ID)
		}
		return out
	}

	a, b := ids(), ids()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("working sets differ for the same seed: %v vs %v", a, b)
		}
	}
}

type posterMap map[string]string

func (p posterMap) ResolvePoster(_ context.Context, rec movie.Record) string {
	return p[rec.ID]
}

func TestResolvePosters(t *testing.T) {
	set := records("A", "B", "C")
	set[2].PosterPath = "/own.jpg"

	s, _ := started(t, Limited(0), set)

	found := s.ResolvePosters(context.Background(), posterMap{"A": "/a.jpg", "C": "/ignored.jpg"})
	if found != 1 {
		t.Fatalf("ResolvePosters() = %d, want 1", found)
	}

	if path, ok := s.Poster("A"); !ok || path != "/a.jpg" {
		t.Errorf("Poster(A) = %q, %v", path, ok)
	}
	if _, ok := s.Poster("B"); ok {
		t.Error("Poster(B) cached without a result")
	}

	for _, slot := range s.Snapshot().Slots {
		switch slot.Movie.ID {
		case "A":
			if slot.Movie.PosterPath != "/a.jpg" {
				t.Errorf("snapshot poster for A = %q", slot.Movie.PosterPath)
			}
		case "C":
			if slot.Movie.PosterPath != "/own.jpg" {
				t.Errorf("snapshot poster for C = %q", slot.Movie.PosterPath)
			}
		}
	}
}
