/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package curated serves the static lists bundled with the binary: Oscar
// winners, the all-time greatest films, and the podcast lists. Every entry is
// normalized into a movie.Record on the way out, so nothing downstream
// branches on which list a movie came from.
package curated

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Seednode/blindboxd/internal/movie"
)

//go:embed data/*.json
var data embed.FS

// Entry is the shared schema of every bundled list. Fields a list does not
// carry are left empty.
type Entry struct {
	Title      string `json:"title"`
	Year       int    `json:"year,omitempty"`
	Genre      string `json:"genre,omitempty"`
	Category   string `json:"category,omitempty"`
	TMDbID     int    `json:"tmdb_id,omitempty"`
	PosterPath string `json:"poster_path,omitempty"`
}

// Tags splits the semicolon separated genre field.
func (e Entry) Tags() []string {
	if e.Genre == "" {
		return nil
	}

	var tags []string
	for tag := range strings.SplitSeq(e.Genre, ";") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}

	return tags
}

// Record normalizes the entry. Entries without a catalog id get a synthetic
// id built from source, title and pos.
func (e Entry) Record(source string, pos int) movie.Record {
	id := movie.SyntheticID(source, e.Title, pos)
	if e.TMDbID > 0 {
		id = movie.TMDbKey(e.TMDbID)
	}

	return movie.Record{
		ID:         id,
		TMDbID:     e.TMDbID,
		Title:      e.Title,
		Year:       e.Year,
		Genres:     e.Tags(),
		PosterPath: e.PosterPath,
		Source:     source,
	}
}

// Normalize converts entries in list order, dropping entries without a title.
func Normalize(source string, entries []Entry) []movie.Record {
	out := make([]movie.Record, 0, len(entries))
	for i, e := range entries {
		if strings.TrimSpace(e.Title) == "" {
			continue
		}
		out = append(out, e.Record(source, i))
	}

	return out
}

// List is a named podcast list.
type List struct {
	Name    string  `json:"name"`
	Slug    string  `json:"slug"`
	Entries []Entry `json:"entries"`
}

// Source is the diagnostic tag for records produced from the list.
func (l List) Source() string {
	return "podcast:" + l.Slug
}

type Library struct {
	Oscars   []Entry
	Greatest []Entry
	Podcasts []List
}

// Load parses the bundled lists.
func Load() (*Library, error) {
	lib := &Library{}

	if err := decode("data/oscar_winners.json", &lib.Oscars); err != nil {
		return nil, err
	}
	if err := decode("data/greatest.json", &lib.Greatest); err != nil {
		return nil, err
	}
	if err := decode("data/podcasts.json", &lib.Podcasts); err != nil {
		return nil, err
	}

	return lib, nil
}

func decode(name string, dest any) error {
	raw, err := data.ReadFile(name)
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}

	return nil
}

// Podcast returns the list with the given slug.
func (l *Library) Podcast(slug string) (List, bool) {
	for _, p := range l.Podcasts {
		if p.Slug == slug {
			return p, true
		}
	}

	return List{}, false
}
