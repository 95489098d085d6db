/*
	This file supports serialization/deserialization and compression of block data.
*/

package dvid

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"strings"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// Compression is the format of compression for storing data.
// NOTE: Should be no more than 8 (3 bits) of compression types.
type Compression uint8

const (
	Uncompressed Compression = 0
	Snappy       Compression = 1
	Zstd         Compression = 2
)

func (compress Compression) String() string {
	switch compress {
	case Uncompressed:
		return "none"
	case Snappy:
		return "snappy"
	case Zstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// ParseCompression returns the compression given its name.
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(name) {
	case "", "none", "uncompressed":
		return Uncompressed, nil
	case "snappy":
		return Snappy, nil
	case "zstd":
		return Zstd, nil
	default:
		return Uncompressed, fmt.Errorf("unknown compression %q", name)
	}
}

// Checksum is the type of checksum employed for error checking stored data.
// NOTE: Should be no more than 4 (2 bits) of checksum types.
type Checksum uint8

const (
	NoChecksum Checksum = 0
	CRC32      Checksum = 1
)

func (checksum Checksum) String() string {
	switch checksum {
	case NoChecksum:
		return "No checksum"
	case CRC32:
		return "CRC32 checksum"
	default:
		return "Unknown checksum"
	}
}

// SerializationFormat is a single byte combining both compression and checksum methods.
type SerializationFormat uint8

func EncodeSerializationFormat(compress Compression, checksum Checksum) SerializationFormat {
	a := (uint8(compress) & 0x07) << 5
	b := (uint8(checksum) & 0x03) << 3
	return SerializationFormat(a | b)
}

func DecodeSerializationFormat(s SerializationFormat) (compress Compression, checksum Checksum) {
	compress = Compression(uint8(s) >> 5)
	checksum = Checksum((uint8(s) >> 3) & 0x03)
	return
}

// zstd encoders and decoders are safe for concurrent use of EncodeAll/DecodeAll.
var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

func zstdCodecs() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		if zstdEncoder, zstdErr = zstd.NewWriter(nil); zstdErr != nil {
			return
		}
		zstdDecoder, zstdErr = zstd.NewReader(nil)
	})
	return zstdEncoder, zstdDecoder, zstdErr
}

// SerializeData serializes a slice of bytes using optional compression and checksum.
// The first byte holds the format, followed by an optional checksum, then the data.
func SerializeData(data []byte, compress Compression, checksum Checksum) ([]byte, error) {
	var byteData []byte
	switch compress {
	case Uncompressed:
		byteData = data
	case Snappy:
		byteData = snappy.Encode(nil, data)
	case Zstd:
		enc, _, err := zstdCodecs()
		if err != nil {
			return nil, err
		}
		byteData = enc.EncodeAll(data, make([]byte, 0, len(data)/4))
	default:
		return nil, fmt.Errorf("illegal compression (%s) during serialization", compress)
	}

	s := make([]byte, 1, 5+len(byteData))
	s[0] = byte(EncodeSerializationFormat(compress, checksum))

	// Note the actual data is written last, after any checksum so we don't have to
	// worry about length when deserializing.
	switch checksum {
	case NoChecksum:
	case CRC32:
		s = binary.LittleEndian.AppendUint32(s, crc32.ChecksumIEEE(byteData))
	default:
		return nil, fmt.Errorf("illegal checksum (%s) in SerializeData()", checksum)
	}
	return append(s, byteData...), nil
}

// DeserializeData deserializes a slice of bytes written by SerializeData,
// verifying any checksum and uncompressing the data.
func DeserializeData(s []byte) ([]byte, error) {
	if len(s) == 0 {
		return nil, fmt.Errorf("cannot deserialize empty data")
	}
	compress, checksum := DecodeSerializationFormat(SerializationFormat(s[0]))
	s = s[1:]

	switch checksum {
	case NoChecksum:
	case CRC32:
		if len(s) < 4 {
			return nil, fmt.Errorf("serialized data too short for CRC32 checksum")
		}
		stored := binary.LittleEndian.Uint32(s[:4])
		s = s[4:]
		if crc32.ChecksumIEEE(s) != stored {
			return nil, fmt.Errorf("bad checksum: stored %x, computed %x", stored, crc32.ChecksumIEEE(s))
		}
	default:
		return nil, fmt.Errorf("illegal checksum in serialized data: %d", checksum)
	}

	switch compress {
	case Uncompressed:
		return s, nil
	case Snappy:
		return snappy.Decode(nil, s)
	case Zstd:
		_, dec, err := zstdCodecs()
		if err != nil {
			return nil, err
		}
		return dec.DecodeAll(s, nil)
	default:
		return nil, fmt.Errorf("illegal compression format in serialized data: %d", compress)
	}
}
