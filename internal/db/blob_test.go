package db

import (
	"math"
	"testing"

	"github.com/banshee-data/trajlab/internal/geom"
	"github.com/banshee-data/trajlab/internal/testutil"
)

func TestFrameBlobRoundTrip(t *testing.T) {
	frames := testutil.ArcFrames(5, 2.0, 0.1)

	blob := EncodeFrameBlob(frames)
	if len(blob) != len(frames)*FrameRecordSize {
		t.Fatalf("blob length = %d, want %d", len(blob), len(frames)*FrameRecordSize)
	}

	decoded, err := DecodeFrameBlob(blob)
	if err != nil {
		t.Fatalf("DecodeFrameBlob failed: %v", err)
	}
	if len(decoded) != len(frames) {
		t.Fatalf("decoded %d frames, want %d", len(decoded), len(frames))
	}

	for i := range frames {
		if decoded[i].TimestampNanos != frames[i].TimestampNanos {
			t.Errorf("frame %d timestamp = %d, want %d", i, decoded[i].TimestampNanos, frames[i].TimestampNanos)
		}
		if decoded[i].EgoTranslation != frames[i].EgoTranslation {
			t.Errorf("frame %d translation = %v, want %v", i, decoded[i].EgoTranslation, frames[i].EgoTranslation)
		}
		gotYaw := geom.Rotation33ToYaw(decoded[i].EgoRotation)
		wantYaw := geom.Rotation33ToYaw(frames[i].EgoRotation)
		if math.Abs(gotYaw-wantYaw) > 1e-12 {
			t.Errorf("frame %d yaw = %v, want %v", i, gotYaw, wantYaw)
		}
	}
}

func TestFrameBlobEmpty(t *testing.T) {
	blob := EncodeFrameBlob(nil)
	if len(blob) != 0 {
		t.Fatalf("empty encode produced %d bytes", len(blob))
	}

	decoded, err := DecodeFrameBlob(blob)
	if err != nil {
		t.Fatalf("DecodeFrameBlob failed: %v", err)
	}
	if len(decoded) != 0 {
		t.Errorf("decoded %d frames from empty blob", len(decoded))
	}
}

func TestFrameBlobBadLength(t *testing.T) {
	if _, err := DecodeFrameBlob(make([]byte, FrameRecordSize+1)); err == nil {
		t.Error("expected error for blob length not a multiple of the record size")
	}
}

func TestFrameBlobTooLarge(t *testing.T) {
	blob := make([]byte, (maxBlobFrames+1)*FrameRecordSize)
	if _, err := DecodeFrameBlob(blob); err == nil {
		t.Error("expected error for blob above the frame limit")
	}
}
