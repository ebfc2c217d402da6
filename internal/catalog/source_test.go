/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"testing"

	"github.com/Seednode/blindboxd/internal/curated"
	"github.com/Seednode/blindboxd/internal/movie"
	"github.com/Seednode/blindboxd/internal/tmdb"
)

type fakeClient struct {
	mu sync.Mutex

	page        *tmdb.Page
	discoverErr error
	queries     []tmdb.DiscoverQuery

	details   map[int]tmdb.Details
	lookups   []int
	searchHit []tmdb.Movie
}

func (f *fakeClient) Discover(_ context.Context, q tmdb.DiscoverQuery) (*tmdb.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queries = append(f.queries, q)
	if f.discoverErr != nil {
		return nil, f.discoverErr
	}
	if f.page == nil {
		return &tmdb.Page{}, nil
	}
	return f.page, nil
}

func (f *fakeClient) Details(_ context.Context, id int) (*tmdb.Details, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lookups = append(f.lookups, id)
	d, ok := f.details[id]
	if !ok {
		return nil, fmt.Errorf("movie %d: TMDb API returned status 404", id)
	}
	return &d, nil
}

func (f *fakeClient) Search(_ context.Context, query string, year int) ([]tmdb.Movie, error) {
	return f.searchHit, nil
}

func testLibrary() *curated.Library {
	return &curated.Library{
		Oscars: []curated.Entry{
			{Title: "Forrest Gump", Year: 1994, Category: "Best Picture", TMDbID: 13},
			{Title: "Forrest Gump", Year: 1994, Category: "Best Actor", TMDbID: 13},
			{Title: "Pulp Fiction", Year: 1994, Category: "Best Original Screenplay", TMDbID: 680},
			{Title: "The Matrix", Year: 1999, Category: "Best Visual Effects", TMDbID: 603},
			{Title: "The Cider House Rules", Year: 1999, Category: "Best Adapted Screenplay"},
			{Title: "Gladiator", Year: 2000, Category: "Best Picture", TMDbID: 98},
			{Title: "Titanic", Year: 1997, Category: "Best Picture", TMDbID: 597},
		},
		Greatest: []curated.Entry{
			{Title: "Alien", Year: 1979, Genre: "Horror;Science Fiction", TMDbID: 348},
			{Title: "The Matrix", Year: 1999, Genre: "Action;Science Fiction", TMDbID: 603},
			{Title: "L'Atalante", Year: 1934, Genre: "Drama;Romance"},
			{Title: "Heat", Year: 1995, Genre: "Crime;Drama;Action;Thriller", TMDbID: 949},
		},
		Podcasts: []curated.List{
			{Name: "The Rewatchables", Slug: "rewatchables", Entries: []curated.Entry{
				{Title: "Heat", Year: 1995, TMDbID: 949},
				{Title: "Varsity Blues", Year: 1999},
				{Title: "Heat", Year: 1995, TMDbID: 949},
			}},
			{Name: "Blank Check", Slug: "blank-check", Entries: []curated.Entry{
				{Title: "Jaws", Year: 1975, TMDbID: 578},
			}},
		},
	}
}

func recordIDs(recs []movie.Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}

func TestGenreQueryAndCuratedMerge(t *testing.T) {
	client := &fakeClient{page: &tmdb.Page{Results: []tmdb.Movie{
		{ID: 78, Title: "Blade Runner", ReleaseDate: "1982-06-25", GenreIDs: []int{878}},
		{ID: 0, Title: "No id"},
		{ID: 5, Title: "  "},
	}}}
	src := New(client, testLibrary(), Config{GenrePages: 3})

	for seed := uint64(1); seed <= 20; seed++ {
		got := src.FetchCandidates(context.Background(), movie.Category{Kind: movie.Genre, Value: "Sci-Fi"}, movie.NewRand(seed))

		if want := []string{"78", "348", "603"}; !slices.Equal(recordIDs(got), want) {
			t.Fatalf("seed %d: ids = %v, want %v", seed, recordIDs(got), want)
		}
	}

	for _, q := range client.queries {
		if q.GenreID != 878 {
			t.Errorf("GenreID = %d, want 878", q.GenreID)
		}
		if q.Page < 1 || q.Page > 3 {
			t.Errorf("page %d outside 1..3", q.Page)
		}
	}
}

func TestGenreRemoteFailureKeepsCurated(t *testing.T) {
	client := &fakeClient{discoverErr: errors.New("connection refused")}

	var logged []string
	src := New(client, testLibrary(), Config{Logf: func(format string, args ...any) {
		logged = append(logged, fmt.Sprintf(format, args...))
	}})

	got := src.FetchCandidates(context.Background(), movie.Category{Kind: movie.Genre, Value: "Horror"}, movie.NewRand(1))
	if want := []string{"348"}; !slices.Equal(recordIDs(got), want) {
		t.Errorf("ids = %v, want %v", recordIDs(got), want)
	}
	if len(logged) == 0 {
		t.Error("remote failure was not logged")
	}
}

func TestDecadeQuery(t *testing.T) {
	client := &fakeClient{}
	src := New(client, testLibrary(), Config{DecadePages: 20})

	got := src.FetchCandidates(context.Background(), movie.Category{Kind: movie.Decade, Value: "1990s"}, movie.NewRand(9))

	q := client.queries[0]
	if q.YearStart != 1990 || q.YearEnd != 1999 || q.GenreID != 0 {
		t.Errorf("query = %+v", q)
	}
	if q.Page < 1 || q.Page > 20 {
		t.Errorf("page %d outside 1..20", q.Page)
	}

	// Greatest entries from the decade plus every podcast entry from it.
	ids := recordIDs(got)
	for _, want := range []string{"603", "949"} {
		if !slices.Contains(ids, want) {
			t.Errorf("missing curated %s in %v", want, ids)
		}
	}
	if slices.Contains(ids, "348") || slices.Contains(ids, "578") {
		t.Errorf("out-of-decade entries merged: %v", ids)
	}
}

func TestOscarDecade(t *testing.T) {
	client := &fakeClient{details: map[int]tmdb.Details{
		13:  {ID: 13, Title: "Forrest Gump", PosterPath: "/gump.jpg", ReleaseDate: "1994-06-23"},
		597: {ID: 597, Title: "Titanic", PosterPath: "/titanic.jpg", ReleaseDate: "1997-11-18"},
	}}
	src := New(client, testLibrary(), Config{Concurrency: 2})

	got := src.FetchCandidates(context.Background(), movie.Category{Kind: movie.OscarDecade, Value: "1990s"}, movie.NewRand(1))

	// 680 fails its lookup and is dropped; 603 is not a major category; the
	// Cider House Rules has no id; Gladiator is in the next decade.
	if want := []string{"13", "597"}; !slices.Equal(recordIDs(got), want) {
		t.Fatalf("ids = %v, want %v", recordIDs(got), want)
	}
	if got[0].PosterPath != "/gump.jpg" {
		t.Errorf("poster not resolved: %+v", got[0])
	}

	lookups := slices.Clone(client.lookups)
	sort.Ints(lookups)
	if want := []int{13, 597, 680}; !slices.Equal(lookups, want) {
		t.Errorf("lookups = %v, want %v (one per unique winner)", lookups, want)
	}
}

func TestGreatestRequiresID(t *testing.T) {
	src := New(&fakeClient{}, testLibrary(), Config{})

	got := src.FetchCandidates(context.Background(), movie.Category{Kind: movie.Greatest, Value: movie.GreatestValue}, movie.NewRand(1))
	if want := []string{"348", "603", "949"}; !slices.Equal(recordIDs(got), want) {
		t.Errorf("ids = %v, want %v", recordIDs(got), want)
	}
}

func TestPodcastVerbatim(t *testing.T) {
	src := New(&fakeClient{}, testLibrary(), Config{})

	got := src.FetchCandidates(context.Background(), movie.Category{Kind: movie.Podcast, Value: "rewatchables"}, movie.NewRand(1))
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	if got[1].ID != "podcast:rewatchables:varsity-blues:1" {
		t.Errorf("synthetic id = %q", got[1].ID)
	}

	if got := src.FetchCandidates(context.Background(), movie.Category{Kind: movie.Podcast, Value: "nope"}, movie.NewRand(1)); got != nil {
		t.Errorf("unknown list returned %v", got)
	}
}

func TestResolvePoster(t *testing.T) {
	client := &fakeClient{
		details:   map[int]tmdb.Details{949: {ID: 949, PosterPath: "/heat.jpg"}},
		searchHit: []tmdb.Movie{{ID: 1, Title: "Varsity Blues"}, {ID: 2, Title: "Varsity Blues", PosterPath: "/vb.jpg"}},
	}
	src := New(client, testLibrary(), Config{})
	ctx := context.Background()

	if got := src.ResolvePoster(ctx, movie.Record{PosterPath: "/have.jpg"}); got != "/have.jpg" {
		t.Errorf("existing poster = %q", got)
	}
	if got := src.ResolvePoster(ctx, movie.Record{TMDbID: 949}); got != "/heat.jpg" {
		t.Errorf("detail poster = %q", got)
	}
	if got := src.ResolvePoster(ctx, movie.Record{Title: "Varsity Blues", Year: 1999}); got != "/vb.jpg" {
		t.Errorf("search poster = %q", got)
	}
	if got := src.ResolvePoster(ctx, movie.Record{TMDbID: 1}); got != "" {
		t.Errorf("failed lookup poster = %q, want empty", got)
	}
}
