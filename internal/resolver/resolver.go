// Package resolver computes raw, pre-clamp axis deltas for the two
// participants of an interaction. Every function is pure.
package resolver

import (
	"fmt"
	"math"

	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/grammar"
)

// Input carries everything a resolver may read for one axis.
type Input struct {
	SpeakerScore    float64
	ListenerScore   float64
	BaseMagnitude   float64
	Multiplier      float64
	MinGapThreshold float64
}

// DominanceShift moves score from the lower-scored participant to the
// higher-scored one, in proportion to the gap between them. Gaps strictly
// below minGapThreshold produce no change. At gap == minGapThreshold the
// listener wins unless the speaker's score is strictly greater.
func DominanceShift(speakerScore, listenerScore, baseMagnitude, multiplier, minGapThreshold float64) (float64, float64) {
	gap := math.Abs(speakerScore - listenerScore)
	if gap < minGapThreshold {
		return 0.0, 0.0
	}
	magnitude := baseMagnitude * multiplier * gap
	if speakerScore > listenerScore {
		return magnitude, -magnitude
	}
	return -magnitude, magnitude
}

// SharedDrain charges both participants the same cost regardless of who
// dominated the exchange.
func SharedDrain(baseMagnitude, multiplier float64) (float64, float64) {
	drain := -(baseMagnitude * multiplier)
	return drain, drain
}

// NoEffect leaves the axis untouched.
func NoEffect() (float64, float64) {
	return 0.0, 0.0
}

// Resolve dispatches to the resolver selected by kind.
func Resolve(kind grammar.ResolverKind, in Input) (speaker, listener float64) {
	switch kind {
	case grammar.DominanceShift:
		return DominanceShift(in.SpeakerScore, in.ListenerScore, in.BaseMagnitude, in.Multiplier, in.MinGapThreshold)
	case grammar.SharedDrain:
		return SharedDrain(in.BaseMagnitude, in.Multiplier)
	case grammar.NoEffect:
		return NoEffect()
	}
	panic(fmt.Sprintf("resolver: unhandled kind %s", kind))
}

// Clamp bounds a score to [0, 1].
func Clamp(score float64) float64 {
	return math.Min(1.0, math.Max(0.0, score))
}
