// Package swf reads the SWF container: the file header, optional zlib or
// LZMA body compression, and the tag tree down to the tags that carry
// action bytecode.
package swf

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"

	"github.com/ulikunitz/xz/lzma"
)

// Compression identifies how the body after the 8-byte header is stored.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionZlib
	CompressionLZMA
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZlib:
		return "zlib"
	case CompressionLZMA:
		return "lzma"
	}
	return fmt.Sprintf("Compression(%d)", int(c))
}

// Rect is a bounding box in twips.
type Rect struct {
	XMin, XMax, YMin, YMax int32
}

// Header is the fixed part of a SWF file.
type Header struct {
	Compression Compression
	Version     uint8
	FileLength  uint32
	FrameSize   Rect
	FrameRate   float64
	FrameCount  uint16
}

// File is a decoded SWF file.
type File struct {
	Header
	Tags []Tag
}

// maxFileLength caps the declared uncompressed size.
const maxFileLength = 1 << 30

// Read decodes a SWF file from r.
func Read(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read swf: %w", err)
	}
	return Parse(data)
}

// Parse decodes a SWF file held in memory.
func Parse(data []byte) (*File, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("swf header too short: %d bytes", len(data))
	}

	var h Header
	switch string(data[:3]) {
	case "FWS":
		h.Compression = CompressionNone
	case "CWS":
		h.Compression = CompressionZlib
	case "ZWS":
		h.Compression = CompressionLZMA
	default:
		return nil, fmt.Errorf("invalid swf signature %q", data[:3])
	}
	h.Version = data[3]
	h.FileLength = binary.LittleEndian.Uint32(data[4:8])
	if h.FileLength < 8 || h.FileLength > maxFileLength {
		return nil, fmt.Errorf("invalid swf file length %d", h.FileLength)
	}

	body, err := decompress(h, data[8:])
	if err != nil {
		return nil, err
	}
	slog.Debug("Read swf header", "version", h.Version, "compression", h.Compression,
		"file_length", h.FileLength, "body", len(body))

	r := &byteReader{data: body}
	if h.FrameSize, err = r.rect(); err != nil {
		return nil, fmt.Errorf("failed to read frame size: %w", err)
	}
	rate, err := r.u16()
	if err != nil {
		return nil, fmt.Errorf("failed to read frame rate: %w", err)
	}
	h.FrameRate = float64(rate) / 256
	if h.FrameCount, err = r.u16(); err != nil {
		return nil, fmt.Errorf("failed to read frame count: %w", err)
	}

	tags, err := readTags(r, 0)
	if err != nil {
		return nil, err
	}
	return &File{Header: h, Tags: tags}, nil
}

func decompress(h Header, rest []byte) ([]byte, error) {
	size := int64(h.FileLength) - 8
	switch h.Compression {
	case CompressionZlib:
		zr, err := zlib.NewReader(bytes.NewReader(rest))
		if err != nil {
			return nil, fmt.Errorf("zlib reader creation failed: %w", err)
		}
		defer zr.Close()
		body, err := io.ReadAll(io.LimitReader(zr, size))
		if err != nil {
			return nil, fmt.Errorf("zlib decompression failed: %w", err)
		}
		return body, nil

	case CompressionLZMA:
		// SWF stores a 4-byte compressed length and the 5 LZMA property
		// bytes; the classic .lzma header also wants the 8-byte size.
		if len(rest) < 9 {
			return nil, fmt.Errorf("lzma header too short: %d bytes", len(rest))
		}
		hdr := make([]byte, 0, 13)
		hdr = append(hdr, rest[4:9]...)
		hdr = binary.LittleEndian.AppendUint64(hdr, uint64(size))
		lr, err := lzma.NewReader(io.MultiReader(bytes.NewReader(hdr), bytes.NewReader(rest[9:])))
		if err != nil {
			return nil, fmt.Errorf("lzma reader creation failed: %w", err)
		}
		body, err := io.ReadAll(io.LimitReader(lr, size))
		if err != nil {
			return nil, fmt.Errorf("lzma decompression failed: %w", err)
		}
		return body, nil
	}

	if int64(len(rest)) > size {
		rest = rest[:size]
	}
	return rest, nil
}
