/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package catalog turns a category into candidate movies. It queries the
// remote catalog for genres and decades, filters the bundled lists for the
// Oscar, greatest and podcast categories, and merges matching curated
// entries into remote results.
//
// Remote failures never reach the caller: they are logged and the remote part
// of the result is simply empty.
package catalog

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Seednode/blindboxd/internal/curated"
	"github.com/Seednode/blindboxd/internal/movie"
	"github.com/Seednode/blindboxd/internal/tmdb"
)

const (
	defaultGenrePages  = 10
	defaultDecadePages = 20
	defaultConcurrency = 8
)

// OscarCategories are the award categories that count as a "winner".
var OscarCategories = []string{
	"Best Picture",
	"Best Actor",
	"Best Actress",
	"Best Director",
	"Best Original Screenplay",
	"Best Adapted Screenplay",
}

// Client is the subset of the TMDb client the adapter uses.
type Client interface {
	Discover(ctx context.Context, q tmdb.DiscoverQuery) (*tmdb.Page, error)
	Details(ctx context.Context, id int) (*tmdb.Details, error)
	Search(ctx context.Context, query string, year int) ([]tmdb.Movie, error)
}

type Config struct {
	// Random pages are drawn from 1..GenrePages or 1..DecadePages.
	GenrePages  int
	DecadePages int

	// Concurrency bounds parallel detail lookups.
	Concurrency int

	Logf func(format string, args ...any)
}

type Source struct {
	client      Client
	lists       *curated.Library
	genrePages  int
	decadePages int
	concurrency int
	logf        func(format string, args ...any)
}

func New(client Client, lists *curated.Library, cfg Config) *Source {
	if cfg.GenrePages < 1 {
		cfg.GenrePages = defaultGenrePages
	}
	if cfg.DecadePages < 1 {
		cfg.DecadePages = defaultDecadePages
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Logf == nil {
		cfg.Logf = func(string, ...any) {}
	}

	return &Source{
		client:      client,
		lists:       lists,
		genrePages:  cfg.GenrePages,
		decadePages: cfg.DecadePages,
		concurrency: cfg.Concurrency,
		logf:        cfg.Logf,
	}
}

// FetchCandidates returns the candidate pool for a resolved category. The
// result may be empty and may contain duplicates; the sampler dedups.
func (s *Source) FetchCandidates(ctx context.Context, cat movie.Category, rng *rand.Rand) []movie.Record {
	switch cat.Kind {
	case movie.Genre:
		g, ok := lookupGenre(cat.Value)
		if !ok {
			s.logf("CATALOG: Unknown genre %q", cat.Value)
			return nil
		}

		page := 1 + rng.IntN(s.genrePages)
		remote := s.discover(ctx, tmdb.DiscoverQuery{GenreID: g.ID, Page: page})
		local := s.curatedWhere(func(r movie.Record) bool {
			return g.matches(r.Genres)
		})

		return append(remote, local...)

	case movie.Decade:
		years, err := movie.ParseDecade(cat.Value)
		if err != nil {
			s.logf("CATALOG: %v", err)
			return nil
		}

		page := 1 + rng.IntN(s.decadePages)
		remote := s.discover(ctx, tmdb.DiscoverQuery{YearStart: years.Start, YearEnd: years.End, Page: page})
		local := s.curatedWhere(func(r movie.Record) bool {
			return years.Contains(r.Year)
		})

		return append(remote, local...)

	case movie.OscarDecade:
		years, err := movie.ParseDecade(cat.Value)
		if err != nil {
			s.logf("CATALOG: %v", err)
			return nil
		}

		return s.oscarWinners(ctx, years)

	case movie.Greatest:
		return s.greatest()

	case movie.Podcast:
		list, ok := s.lists.Podcast(cat.Value)
		if !ok {
			s.logf("CATALOG: Unknown podcast list %q", cat.Value)
			return nil
		}

		return curated.Normalize(list.Source(), list.Entries)
	}

	s.logf("CATALOG: Unsupported category %s", cat)

	return nil
}

func (s *Source) discover(ctx context.Context, q tmdb.DiscoverQuery) []movie.Record {
	page, err := s.client.Discover(ctx, q)
	if err != nil {
		s.logf("CATALOG: Remote query failed: %v", err)
		return nil
	}

	source := fmt.Sprintf("tmdb:discover:p%d", q.Page)

	out := make([]movie.Record, 0, len(page.Results))
	for _, m := range page.Results {
		if m.ID == 0 || strings.TrimSpace(m.Title) == "" {
			continue
		}

		out = append(out, movie.Record{
			ID:         movie.TMDbKey(m.ID),
			TMDbID:     m.ID,
			Title:      m.Title,
			Year:       m.Year(),
			Genres:     tmdb.GenreNames(m.GenreIDs),
			PosterPath: m.PosterPath,
			Source:     source,
		})
	}

	if len(out) == 0 {
		s.logf("CATALOG: Remote query returned no results (page %d)", q.Page)
	}

	return out
}

func (s *Source) greatest() []movie.Record {
	var withID []curated.Entry
	for _, e := range s.lists.Greatest {
		if e.TMDbID > 0 {
			withID = append(withID, e)
		}
	}

	return curated.Normalize("curated:greatest", withID)
}

// curatedWhere returns curated records that can be merged into remote
// results: greatest films with a catalog id, and every podcast entry.
func (s *Source) curatedWhere(keep func(movie.Record) bool) []movie.Record {
	pool := s.greatest()
	for _, list := range s.lists.Podcasts {
		pool = append(pool, curated.Normalize(list.Source(), list.Entries)...)
	}

	var out []movie.Record
	for _, r := range pool {
		if keep(r) {
			out = append(out, r)
		}
	}

	return out
}

func (s *Source) oscarWinners(ctx context.Context, years movie.YearRange) []movie.Record {
	seen := make(map[int]bool)

	var winners []curated.Entry
	for _, e := range s.lists.Oscars {
		if !years.Contains(e.Year) || !slices.Contains(OscarCategories, e.Category) || e.TMDbID == 0 {
			continue
		}
		if seen[e.TMDbID] {
			continue
		}
		seen[e.TMDbID] = true
		winners = append(winners, e)
	}

	// Lookups finish in any order; each writes only its own slot.
	resolved := make([]*movie.Record, len(winners))

	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for i, e := range winners {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			details, err := s.client.Details(ctx, e.TMDbID)
			if err != nil {
				s.logf("CATALOG: Detail lookup for %q failed: %v", e.Title, err)
				return nil
			}

			rec := detailsRecord(details, "curated:oscars")
			rec.ID = movie.TMDbKey(e.TMDbID)
			rec.TMDbID = e.TMDbID
			if rec.Title == "" {
				rec.Title = e.Title
			}
			if rec.Year == 0 {
				rec.Year = e.Year
			}
			resolved[i] = &rec

			return nil
		})
	}

	_ = g.Wait()

	out := make([]movie.Record, 0, len(resolved))
	for _, r := range resolved {
		if r != nil {
			out = append(out, *r)
		}
	}

	return out
}

// ResolvePoster finds a poster path for a record that lacks one: by detail
// lookup when the catalog id is known, otherwise by title search. It returns
// an empty string when nothing is found.
func (s *Source) ResolvePoster(ctx context.Context, rec movie.Record) string {
	if rec.HasPoster() {
		return rec.PosterPath
	}

	if rec.TMDbID > 0 {
		details, err := s.client.Details(ctx, rec.TMDbID)
		if err != nil {
			s.logf("CATALOG: Poster lookup for %q failed: %v", rec.Title, err)
			return ""
		}

		return details.PosterPath
	}

	results, err := s.client.Search(ctx, rec.Title, rec.Year)
	if err != nil {
		s.logf("CATALOG: Poster search for %q failed: %v", rec.Title, err)
		return ""
	}
	for _, m := range results {
		if m.PosterPath != "" {
			return m.PosterPath
		}
	}

	return ""
}

func detailsRecord(d *tmdb.Details, source string) movie.Record {
	genres := make([]string, 0, len(d.Genres))
	for _, g := range d.Genres {
		genres = append(genres, g.Name)
	}

	return movie.Record{
		ID:         movie.TMDbKey(d.ID),
		TMDbID:     d.ID,
		Title:      d.Title,
		Year:       d.Year(),
		Genres:     genres,
		PosterPath: d.PosterPath,
		Source:     source,
	}
}
