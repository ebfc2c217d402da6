/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package movie

import (
	"math/rand/v2"
)

// WorkingSetSize is the number of movies ranked in one session.
const WorkingSetSize = 10

// NewRand returns a PCG generator. A zero seed draws a random one.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Dedup merges pools in order, keeping the first record seen for each ID.
// Records without an ID are dropped.
func Dedup(pools ...[]Record) []Record {
	seen := make(map[string]bool)

	var out []Record
	for _, pool := range pools {
		for _, rec := range pool {
			if rec.ID == "" || seen[rec.ID] {
				continue
			}
			seen[rec.ID] = true
			out = append(out, rec)
		}
	}

	return out
}

// Shuffle permutes records in place.
func Shuffle(rng *rand.Rand, records []Record) {
	rng.Shuffle(len(records), func(i, j int) {
		records[i], records[j] = records[j], records[i]
	})
}

// Split dedups candidates, shuffles them, and returns the first n as picked
// and everything left over as rest. Fewer than n unique candidates yields a
// short picked slice and an empty rest.
func Split(rng *rand.Rand, candidates []Record, n int) (picked, rest []Record) {
	pool := Dedup(candidates)
	Shuffle(rng, pool)

	if n < 0 {
		n = 0
	}
	if n > len(pool) {
		n = len(pool)
	}

	return pool[:n:n], pool[n:]
}

// Sample returns min(n, unique candidates) records drawn uniformly without
// replacement.
func Sample(rng *rand.Rand, candidates []Record, n int) []Record {
	picked, _ := Split(rng, candidates, n)

	return picked
}
