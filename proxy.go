/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
)

// serveProxy relays poster images from the image origin so pages never load
// them cross-origin.
func serveProxy(cfg *Config, client *http.Client, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		target := r.URL.Query().Get("url")
		if target == "" || !strings.HasPrefix(target, cfg.imageOrigin) {
			http.Error(w, "Invalid URL", http.StatusBadRequest)

			logf(cfg, "PROXY: Rejected %q from %s", target, realIP(r))

			return
		}

		req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
		if err != nil {
			http.Error(w, "Invalid URL", http.StatusBadRequest)

			return
		}

		resp, err := client.Do(req)
		if err != nil {
			http.Error(w, "Failed to fetch image", http.StatusBadGateway)

			logf(cfg, "PROXY: Fetching %s failed: %v", target, err)

			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			http.Error(w, "Failed to fetch image", resp.StatusCode)

			logf(cfg, "PROXY: Upstream returned %d for %s", resp.StatusCode, target)

			return
		}

		if ct := resp.Header.Get("Content-Type"); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		if resp.ContentLength >= 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
		}
		w.Header().Set("Cache-Control", "public, max-age=86400")
		securityHeaders(cfg, w)
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Cross-Origin-Resource-Policy", "cross-origin")
		w.WriteHeader(http.StatusOK)

		written, err := io.Copy(w, resp.Body)
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "PROXY: Relayed %s (%s) to %s in %s",
			target,
			humanReadableSize(written),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}
