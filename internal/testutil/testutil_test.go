package testutil

import (
	"math"
	"testing"
)

func TestStraightFrames(t *testing.T) {
	frames := StraightFrames(5, 10, 2.0)
	if len(frames) != 5 {
		t.Fatalf("expected 5 frames, got %d", len(frames))
	}
	for i, f := range frames {
		wantX := 10 + float64(i)*2.0
		if math.Abs(f.EgoTranslation[0]-wantX) > 1e-12 {
			t.Errorf("frame %d: x = %v, want %v", i, f.EgoTranslation[0], wantX)
		}
		if f.TimestampNanos != int64(i)*100_000_000 {
			t.Errorf("frame %d: timestamp = %d", i, f.TimestampNanos)
		}
		// Heading +X throughout.
		if math.Abs(f.EgoRotation[0][0]-1) > 1e-12 {
			t.Errorf("frame %d: unexpected rotation %v", i, f.EgoRotation)
		}
	}
}

func TestArcFrames(t *testing.T) {
	frames := ArcFrames(6, 1.5, 0.1)
	if len(frames) != 6 {
		t.Fatalf("expected 6 frames, got %d", len(frames))
	}
	for i := 1; i < len(frames); i++ {
		dx := frames[i].EgoTranslation[0] - frames[i-1].EgoTranslation[0]
		dy := frames[i].EgoTranslation[1] - frames[i-1].EgoTranslation[1]
		if dist := math.Hypot(dx, dy); math.Abs(dist-1.5) > 1e-9 {
			t.Errorf("step %d: distance = %v, want 1.5", i, dist)
		}
	}
	// Turning left means y grows once the heading rotates.
	last := frames[len(frames)-1]
	if last.EgoTranslation[1] <= 0 {
		t.Errorf("expected positive y drift on a left arc, got %v", last.EgoTranslation[1])
	}
}

func TestSceneFrames(t *testing.T) {
	history, future := SceneFrames(4, 8, 2.0)
	if len(history) != 4 || len(future) != 8 {
		t.Fatalf("lengths = %d/%d, want 4/8", len(history), len(future))
	}

	// History runs newest to oldest.
	for i := 1; i < len(history); i++ {
		if history[i].TimestampNanos >= history[i-1].TimestampNanos {
			t.Fatalf("history not reverse chronological at %d", i)
		}
	}

	// The future picks up one step after the current frame.
	if future[0].TimestampNanos <= history[0].TimestampNanos {
		t.Errorf("future starts at %d, history current is %d",
			future[0].TimestampNanos, history[0].TimestampNanos)
	}
	gap := future[0].EgoTranslation[0] - history[0].EgoTranslation[0]
	if math.Abs(gap-2.0) > 1e-12 {
		t.Errorf("seam spacing = %v, want 2.0", gap)
	}
}
