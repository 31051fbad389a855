// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package objectstore

import (
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionTag identifies the at-rest compression of a stored
// object. The tag is the first byte of every stored frame, so the
// values are storage constants that must never be renumbered.
type CompressionTag uint8

const (
	// CompressionNone stores the object uncompressed. Used in
	// staging and aggregate partitions, where objects are short
	// lived or read often, and for incompressible archive content.
	CompressionNone CompressionTag = 0

	// CompressionLZ4 applies LZ4 block compression. Fallback for
	// archive content where zstd buys little ratio over LZ4's much
	// cheaper decode.
	CompressionLZ4 CompressionTag = 1

	// CompressionZstd applies zstd at the default level. Preferred
	// for archived documents, which are mostly text-like and read
	// rarely.
	CompressionZstd CompressionTag = 2
)

func (tag CompressionTag) String() string {
	switch tag {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", tag)
	}
}

// frameHeaderSize is one tag byte plus the big-endian uncompressed
// length.
const frameHeaderSize = 1 + 8

// zstd encoder and decoder are reused across calls; both are safe
// for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("objectstore: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("objectstore: zstd decoder initialization failed: " + err.Error())
	}
}

// encodeFrame stores data in a self-describing frame for a partition.
// Archive partitions are compressed; if the object does not shrink,
// the frame falls back to CompressionNone.
func encodeFrame(data []byte, partition Partition) []byte {
	tag := CompressionNone
	var payload []byte

	if partition.Kind == Archive && len(data) > 0 {
		if compressed := zstdEncoder.EncodeAll(data, nil); len(compressed) < len(data) {
			tag = CompressionZstd
			payload = compressed
		} else if compressed := lz4Compress(data); compressed != nil {
			tag = CompressionLZ4
			payload = compressed
		}
	}
	if tag == CompressionNone {
		payload = data
	}

	frame := make([]byte, frameHeaderSize, frameHeaderSize+len(payload))
	frame[0] = byte(tag)
	binary.BigEndian.PutUint64(frame[1:], uint64(len(data)))
	return append(frame, payload...)
}

// decodeFrame recovers the original object bytes from a stored frame.
// The uncompressed length in the header is verified against what the
// codec actually produced.
func decodeFrame(frame []byte) ([]byte, error) {
	if len(frame) < frameHeaderSize {
		return nil, fmt.Errorf("stored frame truncated: %d bytes", len(frame))
	}
	tag := CompressionTag(frame[0])
	size := binary.BigEndian.Uint64(frame[1:frameHeaderSize])
	payload := frame[frameHeaderSize:]

	switch tag {
	case CompressionNone:
		if uint64(len(payload)) != size {
			return nil, fmt.Errorf("uncompressed frame: %d bytes, header says %d", len(payload), size)
		}
		return payload, nil

	case CompressionLZ4:
		data := make([]byte, size)
		read, err := lz4.UncompressBlock(payload, data)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if uint64(read) != size {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, header says %d", read, size)
		}
		return data, nil

	case CompressionZstd:
		data, err := zstdDecoder.DecodeAll(payload, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if uint64(len(data)) != size {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, header says %d", len(data), size)
		}
		return data, nil

	default:
		return nil, fmt.Errorf("unknown compression tag %d", tag)
	}
}

// lz4Compress block-compresses data, returning nil when the result
// would not be smaller than the input.
func lz4Compress(data []byte) []byte {
	bound := lz4.CompressBlockBound(len(data))
	destination := make([]byte, bound)
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil || written == 0 || written >= len(data) {
		return nil
	}
	return destination[:written]
}
