// Package segment encodes committed segments into the .spdx binary format
// shared by every durable store:
//
//	header (64 bytes) | blocks | directory (JSON) | footer (32 bytes)
//
// Each block is a zstd-compressed JSON section (stored docs, one per
// indexed field, one per facet field). The directory lists block offsets
// and checksums; the footer carries the directory checksum.
package segment

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/zstd"

	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/document"
	"github.com/Adithya-Monish-Kumar-K/facetsearch/internal/indexer/index"
)

// MagicBytes identifies a valid .spdx segment.
const (
	MagicBytes    uint32 = 0x53504458
	FormatVersion uint32 = 2
	HeaderSize    int    = 64
	FooterSize    int    = 32
)

const (
	blockStored = "stored"
	blockField  = "field"
	blockFacet  = "facet"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	encoder *zstd.Encoder
	decoder *zstd.Decoder
)

func init() {
	var err error
	if encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault)); err != nil {
		panic("segment: creating zstd encoder: " + err.Error())
	}
	if decoder, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0)); err != nil {
		panic("segment: creating zstd decoder: " + err.Error())
	}
}

// SegmentHeader is the fixed header written at the start of every segment.
type SegmentHeader struct {
	Magic      uint32
	Version    uint32
	Generation uint64
	BaseDoc    uint32
	DocCount   uint32
	CreatedAt  int64
	DirOffset  int64
	DirSize    int64
}

// BlockEntry locates one compressed block inside the segment.
type BlockEntry struct {
	Kind   string `json:"k"`
	Name   string `json:"n,omitempty"`
	Offset int64  `json:"o"`
	Len    int    `json:"l"`
	CRC    uint32 `json:"c"`
}

// Encode serialises seg.
func Encode(seg *index.Segment) ([]byte, error) {
	data, err := seg.Data()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Write(make([]byte, HeaderSize))

	var dir []BlockEntry
	writeBlock := func(kind, name string, v any) error {
		raw, err := jsonAPI.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshaling %s block %q: %w", kind, name, err)
		}
		compressed := encoder.EncodeAll(raw, nil)
		dir = append(dir, BlockEntry{
			Kind:   kind,
			Name:   name,
			Offset: int64(buf.Len()),
			Len:    len(compressed),
			CRC:    crc32.ChecksumIEEE(compressed),
		})
		buf.Write(compressed)
		return nil
	}

	if err := writeBlock(blockStored, "", data.Stored); err != nil {
		return nil, err
	}
	for _, fd := range data.Fields {
		if err := writeBlock(blockField, fd.Name, fd); err != nil {
			return nil, err
		}
	}
	for _, fd := range data.Facets {
		if err := writeBlock(blockFacet, fd.Name, fd); err != nil {
			return nil, err
		}
	}

	dirStart := buf.Len()
	dirData, err := jsonAPI.Marshal(dir)
	if err != nil {
		return nil, fmt.Errorf("marshaling directory: %w", err)
	}
	buf.Write(dirData)

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(dirData))
	binary.LittleEndian.PutUint32(footer[4:8], uint32(len(dir)))
	binary.LittleEndian.PutUint64(footer[8:16], uint64(dirStart))
	binary.LittleEndian.PutUint64(footer[16:24], uint64(len(dirData)))
	binary.LittleEndian.PutUint64(footer[24:32], uint64(buf.Len()+FooterSize))
	buf.Write(footer)

	out := buf.Bytes()
	header := out[:HeaderSize]
	binary.LittleEndian.PutUint32(header[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(header[4:8], FormatVersion)
	binary.LittleEndian.PutUint64(header[8:16], data.Generation)
	binary.LittleEndian.PutUint32(header[16:20], data.BaseDoc)
	binary.LittleEndian.PutUint32(header[20:24], data.NumDocs)
	binary.LittleEndian.PutUint64(header[24:32], uint64(time.Now().Unix()))
	binary.LittleEndian.PutUint64(header[32:40], uint64(dirStart))
	binary.LittleEndian.PutUint64(header[40:48], uint64(len(dirData)))
	return out, nil
}

// ReadHeader parses and validates the fixed header.
func ReadHeader(b []byte) (SegmentHeader, error) {
	if len(b) < HeaderSize+FooterSize {
		return SegmentHeader{}, fmt.Errorf("invalid segment: %d bytes is too short", len(b))
	}
	h := SegmentHeader{
		Magic:      binary.LittleEndian.Uint32(b[0:4]),
		Version:    binary.LittleEndian.Uint32(b[4:8]),
		Generation: binary.LittleEndian.Uint64(b[8:16]),
		BaseDoc:    binary.LittleEndian.Uint32(b[16:20]),
		DocCount:   binary.LittleEndian.Uint32(b[20:24]),
		CreatedAt:  int64(binary.LittleEndian.Uint64(b[24:32])),
		DirOffset:  int64(binary.LittleEndian.Uint64(b[32:40])),
		DirSize:    int64(binary.LittleEndian.Uint64(b[40:48])),
	}
	if h.Magic != MagicBytes {
		return SegmentHeader{}, fmt.Errorf("invalid segment: bad magic bytes %x", h.Magic)
	}
	if h.Version != FormatVersion {
		return SegmentHeader{}, fmt.Errorf("invalid segment: unsupported version %d", h.Version)
	}
	return h, nil
}

// Decode parses a segment produced by Encode, verifying every checksum.
func Decode(b []byte) (*index.Segment, error) {
	h, err := ReadHeader(b)
	if err != nil {
		return nil, err
	}
	footer := b[len(b)-FooterSize:]
	if total := binary.LittleEndian.Uint64(footer[24:32]); total != uint64(len(b)) {
		return nil, fmt.Errorf("invalid segment: footer records %d bytes, have %d", total, len(b))
	}
	dirEnd := h.DirOffset + h.DirSize
	if h.DirOffset < int64(HeaderSize) || dirEnd > int64(len(b)-FooterSize) {
		return nil, fmt.Errorf("invalid segment: directory out of bounds")
	}
	dirData := b[h.DirOffset:dirEnd]
	if crc := binary.LittleEndian.Uint32(footer[0:4]); crc != crc32.ChecksumIEEE(dirData) {
		return nil, fmt.Errorf("invalid segment: directory checksum mismatch")
	}
	var dir []BlockEntry
	if err := jsonAPI.Unmarshal(dirData, &dir); err != nil {
		return nil, fmt.Errorf("parsing directory: %w", err)
	}

	data := index.SegmentData{
		Generation: h.Generation,
		BaseDoc:    h.BaseDoc,
		NumDocs:    h.DocCount,
	}
	for _, e := range dir {
		end := e.Offset + int64(e.Len)
		if e.Offset < int64(HeaderSize) || end > h.DirOffset {
			return nil, fmt.Errorf("invalid segment: %s block %q out of bounds", e.Kind, e.Name)
		}
		block := b[e.Offset:end]
		if crc32.ChecksumIEEE(block) != e.CRC {
			return nil, fmt.Errorf("invalid segment: %s block %q checksum mismatch", e.Kind, e.Name)
		}
		raw, err := decoder.DecodeAll(block, nil)
		if err != nil {
			return nil, fmt.Errorf("decompressing %s block %q: %w", e.Kind, e.Name, err)
		}
		switch e.Kind {
		case blockStored:
			var stored [][]document.FieldValue
			if err := jsonAPI.Unmarshal(raw, &stored); err != nil {
				return nil, fmt.Errorf("parsing stored block: %w", err)
			}
			data.Stored = stored
		case blockField:
			var fd index.FieldData
			if err := jsonAPI.Unmarshal(raw, &fd); err != nil {
				return nil, fmt.Errorf("parsing field block %q: %w", e.Name, err)
			}
			data.Fields = append(data.Fields, fd)
		case blockFacet:
			var fd index.FacetData
			if err := jsonAPI.Unmarshal(raw, &fd); err != nil {
				return nil, fmt.Errorf("parsing facet block %q: %w", e.Name, err)
			}
			data.Facets = append(data.Facets, fd)
		default:
			return nil, fmt.Errorf("invalid segment: unknown block kind %q", e.Kind)
		}
	}
	if data.Stored == nil && data.NumDocs == 0 {
		data.Stored = [][]document.FieldValue{}
	}
	return index.FromData(data)
}
