package db

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/banshee-data/trajlab/internal/geom"
	"github.com/banshee-data/trajlab/internal/traj"
)

// FrameRecordSize is the size in bytes of a single encoded frame:
// timestamp(8) + x(8) + y(8) + z(8) + yaw(8).
const FrameRecordSize = 40

// Limit maximum frames per blob to prevent excessive memory allocation from
// corrupted rows. At 96 bytes per decoded Frame, 100k frames = ~10MB memory.
const maxBlobFrames = 100000

// EncodeFrameBlob encodes frames to a compact binary blob for storage.
// Only the planar pose survives the round trip: the rotation matrix is
// collapsed to its yaw angle and rebuilt as a pure +Z rotation on decode.
func EncodeFrameBlob(frames []traj.Frame) []byte {
	blob := make([]byte, len(frames)*FrameRecordSize)

	for i, f := range frames {
		offset := i * FrameRecordSize

		binary.LittleEndian.PutUint64(blob[offset:], uint64(f.TimestampNanos))
		binary.LittleEndian.PutUint64(blob[offset+8:], math.Float64bits(f.EgoTranslation[0]))
		binary.LittleEndian.PutUint64(blob[offset+16:], math.Float64bits(f.EgoTranslation[1]))
		binary.LittleEndian.PutUint64(blob[offset+24:], math.Float64bits(f.EgoTranslation[2]))
		binary.LittleEndian.PutUint64(blob[offset+32:], math.Float64bits(geom.Rotation33ToYaw(f.EgoRotation)))
	}

	return blob
}

// DecodeFrameBlob decodes a binary blob back into frames.
func DecodeFrameBlob(blob []byte) ([]traj.Frame, error) {
	if len(blob)%FrameRecordSize != 0 {
		return nil, fmt.Errorf("frame blob length %d is not a multiple of %d", len(blob), FrameRecordSize)
	}

	numFrames := len(blob) / FrameRecordSize
	if numFrames > maxBlobFrames {
		return nil, fmt.Errorf("frame blob holds %d frames, limit is %d", numFrames, maxBlobFrames)
	}

	frames := make([]traj.Frame, numFrames)

	for i := 0; i < numFrames; i++ {
		offset := i * FrameRecordSize

		yaw := math.Float64frombits(binary.LittleEndian.Uint64(blob[offset+32:]))

		frames[i] = traj.Frame{
			TimestampNanos: int64(binary.LittleEndian.Uint64(blob[offset:])),
			EgoTranslation: [3]float64{
				math.Float64frombits(binary.LittleEndian.Uint64(blob[offset+8:])),
				math.Float64frombits(binary.LittleEndian.Uint64(blob[offset+16:])),
				math.Float64frombits(binary.LittleEndian.Uint64(blob[offset+24:])),
			},
			EgoRotation: geom.YawToRotation33(yaw),
		}
	}

	return frames, nil
}
