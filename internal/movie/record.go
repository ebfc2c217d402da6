/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package movie holds the normalized movie record shared by every candidate
// source, the category selector, and the dedup/sampling helpers that turn
// candidate pools into a working set.
package movie

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Record is a normalized candidate movie. Two records with the same ID are
// the same movie, whatever their other fields say.
type Record struct {
	ID         string   `json:"id"`
	TMDbID     int      `json:"tmdb_id,omitempty"`
	Title      string   `json:"title"`
	Year       int      `json:"year,omitempty"`
	Genres     []string `json:"genres,omitempty"`
	PosterPath string   `json:"poster_path,omitempty"`
	Source     string   `json:"source,omitempty"`
}

// HasPoster reports whether the record already carries a poster reference.
func (r Record) HasPoster() bool {
	return r.PosterPath != ""
}

// TMDbKey is the record ID used for anything carrying a catalog id.
func TMDbKey(id int) string {
	return strconv.Itoa(id)
}

// SyntheticID builds a stable ID for entries without a catalog id, from the
// list they came from, their title and their position in that list.
func SyntheticID(source, title string, pos int) string {
	return fmt.Sprintf("%s:%s:%d", source, slug(title), pos)
}

func slug(s string) string {
	var b strings.Builder

	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false

			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}

	return strings.TrimSuffix(b.String(), "-")
}
