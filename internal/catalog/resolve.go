/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/Seednode/blindboxd/internal/movie"
)

var ErrUnknownValue = errors.New("unknown category value")

// GenreChoice is a genre offered on the home page. Label is what players see,
// Name is the catalog's own genre name.
type GenreChoice struct {
	Label string `json:"label"`
	Name  string `json:"name"`
	ID    int    `json:"id"`
}

// matches reports whether any curated tag contains the genre's label or
// catalog name.
func (g GenreChoice) matches(tags []string) bool {
	label := strings.ToLower(g.Label)
	name := strings.ToLower(g.Name)

	for _, tag := range tags {
		tag = strings.ToLower(tag)
		if strings.Contains(tag, label) || strings.Contains(tag, name) {
			return true
		}
	}

	return false
}

var Genres = []GenreChoice{
	{Label: "Action", Name: "Action", ID: 28},
	{Label: "Comedy", Name: "Comedy", ID: 35},
	{Label: "Drama", Name: "Drama", ID: 18},
	{Label: "Horror", Name: "Horror", ID: 27},
	{Label: "Sci-Fi", Name: "Science Fiction", ID: 878},
	{Label: "Thriller", Name: "Thriller", ID: 53},
	{Label: "Romance", Name: "Romance", ID: 10749},
	{Label: "Animation", Name: "Animation", ID: 16},
	{Label: "Crime", Name: "Crime", ID: 80},
	{Label: "Western", Name: "Western", ID: 37},
}

// Decades offered for the decade and Oscar categories. Other decades still
// resolve when typed into the URL.
var Decades = []string{"1980s", "1990s", "2000s", "2010s", "2020s"}

func lookupGenre(value string) (GenreChoice, bool) {
	for _, g := range Genres {
		if strings.EqualFold(g.Label, value) || strings.EqualFold(g.Name, value) {
			return g, true
		}
	}

	return GenreChoice{}, false
}

// Resolve turns a URL kind/value pair into a canonical category. Values are
// matched case-insensitively first and fuzzily second, so "scifi" resolves to
// "Sci-Fi" and "rewatchables" to the matching podcast list.
func (s *Source) Resolve(kind, value string) (movie.Category, error) {
	k, err := movie.ParseKind(kind)
	if err != nil {
		return movie.Category{}, err
	}

	value = strings.TrimSpace(value)

	switch k {
	case movie.Genre:
		if g, ok := lookupGenre(value); ok {
			return movie.Category{Kind: k, Value: g.Label}, nil
		}

		targets := make([]string, 0, 2*len(Genres))
		labels := make([]string, 0, 2*len(Genres))
		for _, g := range Genres {
			targets = append(targets, g.Label, g.Name)
			labels = append(labels, g.Label, g.Label)
		}
		if i, ok := closest(value, targets); ok {
			return movie.Category{Kind: k, Value: labels[i]}, nil
		}

	case movie.Decade, movie.OscarDecade:
		years, err := movie.ParseDecade(value)
		if err != nil {
			return movie.Category{}, err
		}

		return movie.Category{Kind: k, Value: movie.DecadeLabel(years)}, nil

	case movie.Greatest:
		if value == "" || strings.EqualFold(value, movie.GreatestValue) {
			return movie.Category{Kind: k, Value: movie.GreatestValue}, nil
		}

	case movie.Podcast:
		targets := make([]string, 0, 2*len(s.lists.Podcasts))
		slugs := make([]string, 0, 2*len(s.lists.Podcasts))
		for _, p := range s.lists.Podcasts {
			if strings.EqualFold(p.Slug, value) || strings.EqualFold(p.Name, value) {
				return movie.Category{Kind: k, Value: p.Slug}, nil
			}
			targets = append(targets, p.Slug, p.Name)
			slugs = append(slugs, p.Slug, p.Slug)
		}
		if i, ok := closest(value, targets); ok {
			return movie.Category{Kind: k, Value: slugs[i]}, nil
		}
	}

	return movie.Category{}, fmt.Errorf("%w: %s/%s", ErrUnknownValue, kind, value)
}

// closest returns the index of the target nearest to value.
func closest(value string, targets []string) (int, bool) {
	if value == "" {
		return 0, false
	}

	ranks := fuzzy.RankFindNormalizedFold(value, targets)
	if len(ranks) == 0 {
		return 0, false
	}
	sort.Sort(ranks)

	return ranks[0].OriginalIndex, true
}

// PodcastChoice is a podcast list offered on the home page.
type PodcastChoice struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
	Size int    `json:"size"`
}

func (s *Source) Podcasts() []PodcastChoice {
	out := make([]PodcastChoice, 0, len(s.lists.Podcasts))
	for _, p := range s.lists.Podcasts {
		out = append(out, PodcastChoice{Name: p.Name, Slug: p.Slug, Size: len(p.Entries)})
	}

	return out
}
