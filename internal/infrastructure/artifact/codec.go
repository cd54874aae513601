package artifact

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	domainreview "apiview/internal/domain/review"
)

// Stored code files start with a one byte header naming the compression.
const (
	compressionNone byte = 0
	compressionLZ4  byte = 1
	compressionZstd byte = 2
)

// maxDecodedSize bounds the size an lz4 header may claim.
const maxDecodedSize = 256 << 20

var (
	encMode cbor.EncMode
	decMode cbor.DecMode

	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("artifact: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("artifact: CBOR decoder initialization failed: " + err.Error())
	}

	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("artifact: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("artifact: zstd decoder initialization failed: " + err.Error())
	}
}

// Codec serializes code files as deterministic CBOR, optionally zstd compressed.
type Codec struct {
	compression byte
}

// NewCodec accepts "zstd", "lz4" or "none".
func NewCodec(compression string) (Codec, error) {
	switch compression {
	case "", "zstd":
		return Codec{compression: compressionZstd}, nil
	case "lz4":
		return Codec{compression: compressionLZ4}, nil
	case "none":
		return Codec{compression: compressionNone}, nil
	default:
		return Codec{}, fmt.Errorf("unsupported compression %q", compression)
	}
}

func (c Codec) Encode(file domainreview.CodeFile) ([]byte, error) {
	raw, err := encMode.Marshal(file)
	if err != nil {
		return nil, fmt.Errorf("cbor encode code file: %w", err)
	}
	switch c.compression {
	case compressionZstd:
		return zstdEncoder.EncodeAll(raw, []byte{compressionZstd}), nil
	case compressionLZ4:
		return encodeLZ4(raw)
	default:
		return append([]byte{compressionNone}, raw...), nil
	}
}

// encodeLZ4 writes header, uvarint raw size, then one lz4 block.
// Incompressible payloads are stored uncompressed.
func encodeLZ4(raw []byte) ([]byte, error) {
	block := make([]byte, lz4.CompressBlockBound(len(raw)))
	written, err := lz4.CompressBlock(raw, block, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress code file: %w", err)
	}
	if written == 0 || written >= len(raw) {
		return append([]byte{compressionNone}, raw...), nil
	}

	out := make([]byte, 0, 1+binary.MaxVarintLen64+written)
	out = append(out, compressionLZ4)
	out = binary.AppendUvarint(out, uint64(len(raw)))
	return append(out, block[:written]...), nil
}

func decodeLZ4(payload []byte) ([]byte, error) {
	size, n := binary.Uvarint(payload)
	if n <= 0 || size > maxDecodedSize {
		return nil, errors.New("lz4 code file has a bad size header")
	}
	raw := make([]byte, size)
	read, err := lz4.UncompressBlock(payload[n:], raw)
	if err != nil {
		return nil, fmt.Errorf("lz4 decode code file: %w", err)
	}
	if uint64(read) != size {
		return nil, fmt.Errorf("lz4 decode code file: got %d bytes, want %d", read, size)
	}
	return raw, nil
}

// Decode reads any header regardless of the codec's own setting, so the
// compression can change without rewriting stored files.
func (c Codec) Decode(data []byte) (domainreview.CodeFile, error) {
	if len(data) == 0 {
		return domainreview.CodeFile{}, errors.New("empty code file payload")
	}

	var raw []byte
	switch data[0] {
	case compressionNone:
		raw = data[1:]
	case compressionZstd:
		decoded, err := zstdDecoder.DecodeAll(data[1:], nil)
		if err != nil {
			return domainreview.CodeFile{}, fmt.Errorf("zstd decode code file: %w", err)
		}
		raw = decoded
	case compressionLZ4:
		decoded, err := decodeLZ4(data[1:])
		if err != nil {
			return domainreview.CodeFile{}, err
		}
		raw = decoded
	default:
		return domainreview.CodeFile{}, fmt.Errorf("unknown code file header %d", data[0])
	}

	var file domainreview.CodeFile
	if err := decMode.Unmarshal(raw, &file); err != nil {
		return domainreview.CodeFile{}, fmt.Errorf("cbor decode code file: %w", err)
	}
	return file, nil
}
