package codec

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the payload compressor of a snapshot frame.
type Compression uint8

const (
	// CompressionNone stores the payload as is.
	CompressionNone Compression = 0
	// CompressionLZ4 is LZ4 block compression (fast).
	CompressionLZ4 Compression = 1
	// CompressionZstd is Zstandard (better ratio).
	CompressionZstd Compression = 2
)

// ErrCorruptPayload is returned when a compressed payload cannot be
// restored to its recorded size.
var ErrCorruptPayload = errors.New("codec: corrupt payload")

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	}
	return fmt.Sprintf("Compression(%d)", uint8(c))
}

// ParseCompression maps a name back to its Compression.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	}
	return 0, fmt.Errorf("codec: unknown compression %q", s)
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil)
}

// Compress compresses data with c.
func Compress(c Compression, data []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		if n == 0 && len(data) > 0 {
			return nil, fmt.Errorf("codec: lz4 could not compress %d bytes", len(data))
		}
		return buf[:n], nil
	case CompressionZstd:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, err
		}
		defer zstdEncoderPool.Put(enc)
		return enc.EncodeAll(data, nil), nil
	}
	return nil, fmt.Errorf("codec: unknown compression %d", uint8(c))
}

// Decompress restores size bytes compressed with c.
func Decompress(c Compression, data []byte, size int) ([]byte, error) {
	switch c {
	case CompressionNone:
		if len(data) != size {
			return nil, fmt.Errorf("%w: %d bytes, want %d", ErrCorruptPayload, len(data), size)
		}
		return data, nil
	case CompressionLZ4:
		out := make([]byte, size)
		if size == 0 {
			return out, nil
		}
		n, err := lz4.UncompressBlock(data, out)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptPayload, err)
		}
		if n != size {
			return nil, fmt.Errorf("%w: lz4 restored %d bytes, want %d", ErrCorruptPayload, n, size)
		}
		return out, nil
	case CompressionZstd:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, err
		}
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(data, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptPayload, err)
		}
		if len(out) != size {
			return nil, fmt.Errorf("%w: zstd restored %d bytes, want %d", ErrCorruptPayload, len(out), size)
		}
		return out, nil
	}
	return nil, fmt.Errorf("codec: unknown compression %d", uint8(c))
}
