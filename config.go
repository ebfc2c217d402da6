/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Seednode/blindboxd/internal/tmdb"
)

type Config struct {
	bind           string
	cache          string
	decadePages    int
	genrePages     int
	imageOrigin    string
	port           int
	prefix         string
	profile        bool
	seed           uint64
	sessionTimeout time.Duration
	tlsCert        string
	tlsKey         string
	tmdbAPIKey     string
	tmdbRate       float64
	tmdbURL        string
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.genrePages < 1 || c.decadePages < 1 {
		return fmt.Errorf("invalid page range (must be at least 1): genre %d, decade %d", c.genrePages, c.decadePages)
	}
	if c.tmdbRate < 0 {
		return fmt.Errorf("invalid TMDb rate (must not be negative): %v", c.tmdbRate)
	}

	u, err := url.Parse(c.imageOrigin)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("invalid image origin (must be an https URL): %q", c.imageOrigin)
	}
	if !strings.HasSuffix(c.imageOrigin, "/") {
		c.imageOrigin += "/"
	}

	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("BLINDBOXD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "blindboxd",
		Short:         "Rank ten movies, sight unseen, one at a time.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: BLINDBOXD_BIND)")
	fs.StringVar(&cfg.cache, "cache", "", "path to TMDb detail cache database; memory only if unset (env: BLINDBOXD_CACHE)")
	fs.IntVar(&cfg.decadePages, "decade-pages", 20, "number of catalog pages to draw decade movies from (env: BLINDBOXD_DECADE_PAGES)")
	fs.IntVar(&cfg.genrePages, "genre-pages", 10, "number of catalog pages to draw genre movies from (env: BLINDBOXD_GENRE_PAGES)")
	fs.StringVar(&cfg.imageOrigin, "image-origin", "https://image.tmdb.org/", "only proxy images below this URL (env: BLINDBOXD_IMAGE_ORIGIN)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: BLINDBOXD_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: BLINDBOXD_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: BLINDBOXD_PROFILE)")
	fs.Uint64Var(&cfg.seed, "seed", 0, "fixed random seed for new sessions; random if 0 (env: BLINDBOXD_SEED)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle ranking sessions are ended (env: BLINDBOXD_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: BLINDBOXD_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: BLINDBOXD_TLS_KEY)")
	fs.StringVar(&cfg.tmdbAPIKey, "tmdb-api-key", "", "TMDb API key; curated categories only if unset (env: BLINDBOXD_TMDB_API_KEY)")
	fs.Float64Var(&cfg.tmdbRate, "tmdb-rate", 20, "maximum TMDb requests per second; unlimited if 0 (env: BLINDBOXD_TMDB_RATE)")
	fs.StringVar(&cfg.tmdbURL, "tmdb-url", tmdb.DefaultBaseURL, "TMDb API base URL (env: BLINDBOXD_TMDB_URL)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: BLINDBOXD_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: BLINDBOXD_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("blindboxd v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
