/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package movie

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrUnknownKind   = errors.New("unknown category kind")
	ErrInvalidDecade = errors.New("invalid decade")
)

// Kind is the family a category belongs to.
type Kind string

const (
	Genre       Kind = "genre"
	Decade      Kind = "decade"
	OscarDecade Kind = "oscar"
	Greatest    Kind = "greatest"
	Podcast     Kind = "podcast"
)

// Kinds lists every category kind in display order.
var Kinds = []Kind{Genre, Decade, OscarDecade, Greatest, Podcast}

// GreatestValue is the only value accepted for the Greatest kind.
const GreatestValue = "all"

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if strings.EqualFold(string(k), s) {
			return k, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Category selects the pool a session draws from. It is fixed once a
// session has started.
type Category struct {
	Kind  Kind   `json:"kind"`
	Value string `json:"value"`
}

func (c Category) String() string {
	return string(c.Kind) + "/" + c.Value
}

// Label is the human readable heading for the category.
func (c Category) Label() string {
	switch c.Kind {
	case OscarDecade:
		return "Oscar Winners: " + c.Value
	case Greatest:
		return "Greatest of All Time"
	default:
		return c.Value
	}
}

// YearRange is an inclusive range of release years.
type YearRange struct {
	Start int
	End   int
}

func (r YearRange) Contains(year int) bool {
	return year >= r.Start && year <= r.End
}

// ParseDecade accepts "1980s" or "1980" and returns 1980..1989.
func ParseDecade(s string) (YearRange, error) {
	trimmed := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s")
	if len(trimmed) != 4 {
		return YearRange{}, fmt.Errorf("%w: %q", ErrInvalidDecade, s)
	}

	start, err := strconv.Atoi(trimmed)
	if err != nil || start%10 != 0 || start < 1900 {
		return YearRange{}, fmt.Errorf("%w: %q", ErrInvalidDecade, s)
	}

	return YearRange{Start: start, End: start + 9}, nil
}

// DecadeLabel renders the canonical "1980s" form for a range.
func DecadeLabel(r YearRange) string {
	return strconv.Itoa(r.Start) + "s"
}
