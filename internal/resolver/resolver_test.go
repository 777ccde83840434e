package resolver

import (
	"math"
	"testing"

	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/grammar"
)

const epsilon = 1e-12

func TestDominanceShift(t *testing.T) {
	tests := []struct {
		name         string
		speaker      float64
		listener     float64
		base         float64
		multiplier   float64
		threshold    float64
		wantSpeaker  float64
		wantListener float64
	}{
		{name: "speaker wins", speaker: 0.80, listener: 0.50, base: 0.03, multiplier: 1.0, threshold: 0.05, wantSpeaker: 0.009, wantListener: -0.009},
		{name: "listener wins", speaker: 0.20, listener: 0.70, base: 0.1, multiplier: 1.0, threshold: 0.05, wantSpeaker: -0.05, wantListener: 0.05},
		{name: "below threshold", speaker: 0.52, listener: 0.50, base: 0.03, multiplier: 1.0, threshold: 0.05, wantSpeaker: 0, wantListener: 0},
		{name: "exact tie", speaker: 0.5, listener: 0.5, base: 0.03, multiplier: 1.5, threshold: 0.05, wantSpeaker: 0, wantListener: 0},
		{name: "yell scales", speaker: 0.9, listener: 0.1, base: 0.05, multiplier: 1.5, threshold: 0.05, wantSpeaker: 0.06, wantListener: -0.06},
		{name: "whisper scales", speaker: 0.9, listener: 0.1, base: 0.05, multiplier: 0.5, threshold: 0.05, wantSpeaker: 0.02, wantListener: -0.02},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			speaker, listener := DominanceShift(tt.speaker, tt.listener, tt.base, tt.multiplier, tt.threshold)
			if math.Abs(speaker-tt.wantSpeaker) > epsilon || math.Abs(listener-tt.wantListener) > epsilon {
				t.Errorf("DominanceShift(%v, %v) = (%v, %v), want (%v, %v)", tt.speaker, tt.listener, speaker, listener, tt.wantSpeaker, tt.wantListener)
			}
		})
	}
}

func TestDominanceShiftAtThresholdFavoursListener(t *testing.T) {
	// 0.5 and 0.25 are exact in binary, so the gap equals the threshold exactly.
	speaker, listener := DominanceShift(0.25, 0.5, 1.0, 1.0, 0.25)
	if speaker != -0.25 || listener != 0.25 {
		t.Fatalf("expected listener to win at the threshold, got (%v, %v)", speaker, listener)
	}
	speaker, listener = DominanceShift(0.5, 0.25, 1.0, 1.0, 0.25)
	if speaker != 0.25 || listener != -0.25 {
		t.Fatalf("expected speaker to win with the higher score, got (%v, %v)", speaker, listener)
	}
}

func TestDominanceShiftProperties(t *testing.T) {
	scores := []float64{0, 0.01, 0.049, 0.05, 0.1, 0.25, 0.333, 0.5, 0.51, 0.75, 0.99, 1}
	thresholds := []float64{0, 0.05, 0.2}
	for _, threshold := range thresholds {
		for _, s := range scores {
			for _, l := range scores {
				speaker, listener := DominanceShift(s, l, 0.03, 1.5, threshold)
				if speaker != -listener {
					t.Fatalf("not zero-sum for (%v, %v, %v): (%v, %v)", s, l, threshold, speaker, listener)
				}
				if math.Abs(s-l) < threshold && (speaker != 0 || listener != 0) {
					t.Fatalf("expected no shift below threshold for (%v, %v, %v)", s, l, threshold)
				}
			}
		}
	}
}

func TestSharedDrain(t *testing.T) {
	speaker, listener := SharedDrain(0.01, 1.5)
	if math.Abs(speaker-(-0.015)) > epsilon || speaker != listener {
		t.Fatalf("expected (-0.015, -0.015), got (%v, %v)", speaker, listener)
	}

	for _, base := range []float64{0.001, 0.01, 0.2} {
		for _, multiplier := range []float64{0.5, 1, 1.5} {
			speaker, listener := SharedDrain(base, multiplier)
			if speaker != listener || speaker >= 0 || speaker != -(base*multiplier) {
				t.Fatalf("SharedDrain(%v, %v) = (%v, %v)", base, multiplier, speaker, listener)
			}
		}
	}
}

func TestNoEffect(t *testing.T) {
	speaker, listener := NoEffect()
	if speaker != 0 || listener != 0 {
		t.Fatalf("expected (0, 0), got (%v, %v)", speaker, listener)
	}
}

func TestResolveDispatch(t *testing.T) {
	in := Input{SpeakerScore: 0.8, ListenerScore: 0.5, BaseMagnitude: 0.03, Multiplier: 1.0, MinGapThreshold: 0.05}

	speaker, listener := Resolve(grammar.DominanceShift, in)
	if math.Abs(speaker-0.009) > epsilon || math.Abs(listener+0.009) > epsilon {
		t.Fatalf("dominance dispatch: (%v, %v)", speaker, listener)
	}

	speaker, listener = Resolve(grammar.SharedDrain, in)
	if speaker != -0.03 || listener != -0.03 {
		t.Fatalf("drain dispatch: (%v, %v)", speaker, listener)
	}

	speaker, listener = Resolve(grammar.NoEffect, in)
	if speaker != 0 || listener != 0 {
		t.Fatalf("no effect dispatch: (%v, %v)", speaker, listener)
	}
}

func TestClamp(t *testing.T) {
	tests := map[float64]float64{-0.5: 0, 0: 0, 0.3: 0.3, 1: 1, 1.7: 1}
	for in, want := range tests {
		if got := Clamp(in); got != want {
			t.Errorf("Clamp(%v) = %v, want %v", in, got, want)
		}
	}
}
