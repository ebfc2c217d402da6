/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"github.com/Seednode/blindboxd/internal/catalog"
	"github.com/Seednode/blindboxd/internal/movie"
	"github.com/Seednode/blindboxd/internal/session"
)

type CategoryOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Size  int    `json:"size,omitempty"`
}

type CategoryGroup struct {
	Kind    movie.Kind       `json:"kind"`
	Title   string           `json:"title"`
	Options []CategoryOption `json:"options"`
}

type DifficultyOption struct {
	Value session.Difficulty `json:"value"`
	Skips string             `json:"skips"`
}

// CategoriesResponse lists everything the home page offers.
type CategoriesResponse struct {
	Remote       bool               `json:"remote"`
	Groups       []CategoryGroup    `json:"groups"`
	Difficulties []DifficultyOption `json:"difficulties"`
}

func buildCategories(src *catalog.Source, remote bool) CategoriesResponse {
	genres := CategoryGroup{Kind: movie.Genre, Title: "Genre"}
	for _, g := range catalog.Genres {
		genres.Options = append(genres.Options, CategoryOption{Value: g.Label, Label: g.Label})
	}

	decades := CategoryGroup{Kind: movie.Decade, Title: "Decade"}
	oscars := CategoryGroup{Kind: movie.OscarDecade, Title: "Oscar Winners"}
	for _, d := range catalog.Decades {
		decades.Options = append(decades.Options, CategoryOption{Value: d, Label: d})
		oscars.Options = append(oscars.Options, CategoryOption{Value: d, Label: d})
	}

	greatest := CategoryGroup{
		Kind:    movie.Greatest,
		Title:   "Greatest of All Time",
		Options: []CategoryOption{{Value: movie.GreatestValue, Label: "All Time"}},
	}

	podcasts := CategoryGroup{Kind: movie.Podcast, Title: "Podcasts"}
	for _, p := range src.Podcasts() {
		podcasts.Options = append(podcasts.Options, CategoryOption{Value: p.Slug, Label: p.Name, Size: p.Size})
	}

	resp := CategoriesResponse{
		Remote: remote,
		Groups: []CategoryGroup{genres, decades, oscars, greatest, podcasts},
	}

	for _, d := range session.Difficulties {
		resp.Difficulties = append(resp.Difficulties, DifficultyOption{
			Value: d,
			Skips: d.Budget().String(),
		})
	}

	return resp
}

func serveCategories(cfg *Config, src *catalog.Source, remote bool, errs chan<- error) httprouter.Handle {
	data, err := json.Marshal(buildCategories(src, remote))
	if err != nil {
		panic("encoding categories: " + err.Error())
	}

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("Cache-Control", "public, max-age=3600")
		securityHeaders(cfg, w)

		_, err := w.Write(data)
		if err != nil {
			errs <- err
		}
	}
}
