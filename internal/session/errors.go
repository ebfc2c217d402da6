/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOperation is wrapped by every synchronous rejection. A
	// rejected call never mutates the session.
	ErrInvalidOperation = errors.New("invalid operation")

	ErrRankOutOfRange = fmt.Errorf("%w: rank must be between %d and %d", ErrInvalidOperation, MinRank, MaxRank)
	ErrRankTaken      = fmt.Errorf("%w: rank already assigned", ErrInvalidOperation)
	ErrNoSkips        = fmt.Errorf("%w: no skips remaining", ErrInvalidOperation)
	ErrNotRanking     = fmt.Errorf("%w: session is not ranking", ErrInvalidOperation)
	ErrBusy           = fmt.Errorf("%w: fetch in progress", ErrInvalidOperation)

	// ErrNoCandidates means the category produced an empty working set.
	ErrNoCandidates = errors.New("no movies found")

	// ErrStale is returned when a fetch finishes after the session was
	// restarted or reset. Its result has been discarded.
	ErrStale = errors.New("stale fetch result discarded")

	ErrUnknownDifficulty = errors.New("unknown difficulty")
)
