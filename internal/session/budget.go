/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"fmt"
	"strconv"
	"strings"
)

// NormalSkips is the skip allowance on normal difficulty.
const NormalSkips = 3

// Budget counts remaining skips. The zero value allows none.
type Budget struct {
	remaining int
	infinite  bool
}

// Limited returns a budget of n skips. Negative n is treated as zero.
func Limited(n int) Budget {
	return Budget{remaining: max(n, 0)}
}

// Unlimited returns a budget that is never used up.
func Unlimited() Budget {
	return Budget{infinite: true}
}

func (b Budget) Allows() bool {
	return b.infinite || b.remaining > 0
}

func (b Budget) IsUnlimited() bool {
	return b.infinite
}

// Remaining reports the finite skip count; it is meaningless when the
// budget is unlimited.
func (b Budget) Remaining() int {
	return b.remaining
}

func (b Budget) consume() Budget {
	if b.infinite || b.remaining == 0 {
		return b
	}

	return Budget{remaining: b.remaining - 1}
}

func (b Budget) String() string {
	if b.infinite {
		return "unlimited"
	}

	return strconv.Itoa(b.remaining)
}

type Difficulty string

const (
	Easy   Difficulty = "easy"
	Normal Difficulty = "normal"
	Hard   Difficulty = "hard"
)

var Difficulties = []Difficulty{Easy, Normal, Hard}

func ParseDifficulty(s string) (Difficulty, error) {
	for _, d := range Difficulties {
		if strings.EqualFold(s, string(d)) {
			return d, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownDifficulty, s)
}

// Budget maps a difficulty to its skip allowance: none on hard, a few on
// normal, and unlimited on easy.
func (d Difficulty) Budget() Budget {
	switch d {
	case Easy:
		return Unlimited()
	case Normal:
		return Limited(NormalSkips)
	default:
		return Limited(0)
	}
}
