// Package pairing builds Secret Santa assignments.
//
// THE ALGORITHM:
//  1. Shuffle the active participants with Fisher–Yates.
//  2. Each participant gives to the next one in the shuffled order, and the
//     last one wraps around to the first.
//
// The result is a single cycle through everybody. Nobody can draw themselves
// (their successor is always someone else when n ≥ 2) and every participant is
// a giver exactly once and a receiver exactly once, by construction.
//
// This is NOT a uniformly random derangement: a single n-cycle can never
// contain, say, two independent swaps. That's an accepted trade-off. It never
// needs the reject-and-resample loop a general derangement would.
//
// Everything here is pure: no database, no clock. Persisting the edges is the
// caller's job.
package pairing

import (
	"fmt"
	"math/rand/v2"

	"github.com/sakif/secret-santa/internal/apperror"
	"github.com/sakif/secret-santa/internal/model"
)

// MinParticipants is the smallest group that produces a meaningful exchange.
// With 2 people the cycle degenerates into a mutual swap; with 1 it's a self-pair.
const MinParticipants = 3

// Edge is a single giver → receiver assignment, before it is persisted.
type Edge struct {
	GiverID    string `json:"giver"`
	ReceiverID string `json:"receiver"`
}

// Source is the randomness a Generator draws from.
// *rand.Rand from math/rand/v2 satisfies it, which lets tests pass a seeded source.
type Source interface {
	IntN(n int) int
}

// globalSource uses math/rand/v2's auto-seeded top-level generator.
type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// Generator produces pairings from a random source.
type Generator struct {
	src Source
}

// NewGenerator returns a Generator backed by the process-wide random source.
func NewGenerator() *Generator {
	return &Generator{src: globalSource{}}
}

// NewGeneratorWithSource returns a Generator that draws from src.
// Pass a seeded *rand.Rand to get a reproducible shuffle.
func NewGeneratorWithSource(src Source) *Generator {
	return &Generator{src: src}
}

// Generate shuffles the given participants and returns one edge per participant.
//
// Callers should pass only active participants. Generate does not look at the
// Active flag itself; it pairs exactly the slice it is given.
func (g *Generator) Generate(participants []model.Participant) ([]Edge, error) {
	if len(participants) < MinParticipants {
		return nil, apperror.Wrap(apperror.ErrInsufficientParticipants,
			fmt.Sprintf("At least %d participants required for Secret Santa (have %d)",
				MinParticipants, len(participants)))
	}

	ids := make([]string, len(participants))
	for i, p := range participants {
		ids[i] = p.ID
	}

	g.shuffle(ids)
	edges := cycle(ids)

	// Unreachable with the cyclic construction, but cheap to re-check before
	// anything is written.
	if err := Validate(ids, edges); err != nil {
		return nil, err
	}

	return edges, nil
}

// shuffle is an in-place Fisher–Yates shuffle: walking from the last index down
// to 1, swap element i with a uniformly chosen element at index ≤ i.
func (g *Generator) shuffle(ids []string) {
	for i := len(ids) - 1; i > 0; i-- {
		j := g.src.IntN(i + 1)
		ids[i], ids[j] = ids[j], ids[i]
	}
}

// cycle pairs each id with its successor, wrapping the last back to the first.
//
//	[C, A, E, B, D] → C→A, A→E, E→B, B→D, D→C
func cycle(order []string) []Edge {
	edges := make([]Edge, len(order))
	for i, giver := range order {
		edges[i] = Edge{
			GiverID:    giver,
			ReceiverID: order[(i+1)%len(order)],
		}
	}
	return edges
}

// Validate checks that edges form a complete assignment over activeIDs:
// every active id gives exactly once and receives exactly once, and nobody
// gives to themselves.
//
// Any deviation returns apperror.ErrCorruptPairingState. That signals a logic
// defect, so callers must surface it instead of retrying.
func Validate(activeIDs []string, edges []Edge) error {
	giverCount := make(map[string]int, len(edges))
	receiverCount := make(map[string]int, len(edges))

	for _, e := range edges {
		if e.GiverID == e.ReceiverID {
			return corrupt("participant %s is paired with themselves", e.GiverID)
		}
		giverCount[e.GiverID]++
		receiverCount[e.ReceiverID]++
	}

	for _, id := range activeIDs {
		if n := giverCount[id]; n != 1 {
			return corrupt("participant %s has %d giving assignments", id, n)
		}
		if n := receiverCount[id]; n != 1 {
			return corrupt("participant %s has %d receiving assignments", id, n)
		}
	}

	return nil
}

func corrupt(format string, args ...any) error {
	return apperror.Wrap(apperror.ErrCorruptPairingState, "Invalid pairing state: "+fmt.Sprintf(format, args...))
}
