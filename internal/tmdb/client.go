/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package tmdb is a small client for the parts of The Movie Database API the
// game needs: discover, movie details, title search and image URLs.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL  = "https://api.themoviedb.org/3"
	DefaultImageURL = "https://image.tmdb.org/t/p/"

	// Quality floor and filters applied to every discover query.
	minVoteCount   = 100
	minVoteAverage = 6
	language       = "en-US"
	originalLang   = "en"
)

var ErrNoAPIKey = errors.New("TMDb API key not configured")

// Cache stores decoded detail lookups keyed by movie id.
type Cache interface {
	Get(key string, dest any) bool
	Set(key string, value any) error
}

type Config struct {
	APIKey            string
	BaseURL           string
	RequestsPerSecond float64
	Timeout           time.Duration
	Cache             Cache
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      Cache
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(limit, 1),
		cache:   cfg.Cache,
	}
}

// Available returns true if an API key is configured.
func (c *Client) Available() bool {
	return c.apiKey != ""
}

type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Movie is a summary as returned by discover and search.
type Movie struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	ReleaseDate string  `json:"release_date"`
	Overview    string  `json:"overview"`
	PosterPath  string  `json:"poster_path"`
	VoteAverage float64 `json:"vote_average"`
	GenreIDs    []int   `json:"genre_ids"`
}

// Year returns the release year, or 0 when the date is missing.
func (m Movie) Year() int {
	return releaseYear(m.ReleaseDate)
}

type Details struct {
	ID           int     `json:"id"`
	Title        string  `json:"title"`
	ReleaseDate  string  `json:"release_date"`
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	VoteAverage  float64 `json:"vote_average"`
	Genres       []Genre `json:"genres"`
	Runtime      int     `json:"runtime"`
}

func (d Details) Year() int {
	return releaseYear(d.ReleaseDate)
}

// Page is one page of discover or search results.
type Page struct {
	Page         int     `json:"page"`
	Results      []Movie `json:"results"`
	TotalPages   int     `json:"total_pages"`
	TotalResults int     `json:"total_results"`
}

// DiscoverQuery narrows a discover request. Zero fields are not sent.
type DiscoverQuery struct {
	GenreID   int
	YearStart int
	YearEnd   int
	Page      int
}

func (q DiscoverQuery) values() url.Values {
	params := url.Values{}
	params.Set("language", language)
	params.Set("sort_by", "popularity.desc")
	params.Set("vote_count.gte", strconv.Itoa(minVoteCount))
	params.Set("vote_average.gte", strconv.Itoa(minVoteAverage))
	params.Set("with_original_language", originalLang)

	if q.GenreID > 0 {
		params.Set("with_genres", strconv.Itoa(q.GenreID))
	}
	if q.YearStart > 0 {
		params.Set("primary_release_date.gte", fmt.Sprintf("%d-01-01", q.YearStart))
	}
	if q.YearEnd > 0 {
		params.Set("primary_release_date.lte", fmt.Sprintf("%d-12-31", q.YearEnd))
	}

	page := q.Page
	if page < 1 {
		page = 1
	}
	params.Set("page", strconv.Itoa(page))

	return params
}

// Discover returns one page of popular, well-rated English-language movies.
func (c *Client) Discover(ctx context.Context, q DiscoverQuery) (*Page, error) {
	var page Page
	if err := c.get(ctx, "/discover/movie", q.values(), &page); err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}

	return &page, nil
}

// Details looks up a single movie, consulting the cache first.
func (c *Client) Details(ctx context.Context, id int) (*Details, error) {
	key := strconv.Itoa(id)

	var details Details
	if c.cache != nil && c.cache.Get(key, &details) {
		return &details, nil
	}

	params := url.Values{}
	params.Set("language", language)

	if err := c.get(ctx, "/movie/"+key, params, &details); err != nil {
		return nil, fmt.Errorf("movie %d: %w", id, err)
	}

	if c.cache != nil {
		// Cache write errors are ignored.
		_ = c.cache.Set(key, details)
	}

	return &details, nil
}

// Search finds movies by title. A non-zero year narrows the results.
func (c *Client) Search(ctx context.Context, query string, year int) ([]Movie, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("language", language)
	params.Set("include_adult", "false")
	params.Set("page", "1")
	if year > 0 {
		params.Set("year", strconv.Itoa(year))
	}

	var page Page
	if err := c.get(ctx, "/search/movie", params, &page); err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	return page.Results, nil
}

// ImageURL returns the full poster URL for a path at the given size
// (e.g. "w300", "w500").
func ImageURL(path, size string) string {
	if path == "" {
		return ""
	}

	return DefaultImageURL + size + path
}

func (c *Client) get(ctx context.Context, path string, params url.Values, dest any) error {
	if c.apiKey == "" {
		return ErrNoAPIKey
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	params.Set("api_key", c.apiKey)
	fullURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("TMDb API returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}

func releaseYear(date string) int {
	if len(date) < 4 {
		return 0
	}

	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}

	return year
}
