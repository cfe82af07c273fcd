package rscache

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz/lzma"
)

// Compression identifies how a payload frame's body is packed.
type Compression byte

// Compression tag values, as they appear on the wire.
const (
	CompressionNone  Compression = 0
	CompressionBzip2 Compression = 1
	CompressionGzip  Compression = 2
	CompressionLzma  Compression = 3
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionBzip2:
		return "bzip2"
	case CompressionGzip:
		return "gzip"
	case CompressionLzma:
		return "lzma"
	default:
		return fmt.Sprintf("unknown(%d)", byte(c))
	}
}

// bzip2Magic is the 4-byte bzip2 stream header this cache's encoder strips
// from its compressed output and its decoder expects the decompressor to
// need back. The encoder always compresses at bzip2 level 1, so the
// stripped header is always "BZh1".
var bzip2Magic = [4]byte{'B', 'Z', 'h', '1'}

// DecodedPayload is the result of Decode: logical entry bytes plus an
// optional trailing protocol version. It and the raw frame bytes Encode
// produces are deliberately two different Go types (rather than one type
// with a "decoded" flag), per the marker-type design used for
// Buffer<Decoded>/Buffer<Encoded> in the source this was ported from.
type DecodedPayload struct {
	Data    []byte
	Version *int16
}

// Decode parses a payload frame (§4.2): a compression tag, a length-framed
// and optionally XTEA-enciphered body, and an optional trailing version.
// keys may be nil for unenciphered payloads.
func Decode(frame []byte, keys *XTEAKeys) (*DecodedPayload, error) {
	if len(frame) < 5 {
		return nil, fmt.Errorf("rscache: payload frame too short (%d bytes)", len(frame))
	}

	compression := Compression(frame[0])
	switch compression {
	case CompressionNone, CompressionBzip2, CompressionGzip, CompressionLzma:
	default:
		return nil, &CompressionUnsupportedError{Tag: byte(compression)}
	}
	compressedLen := int(binary.BigEndian.Uint32(frame[1:5]))
	offset := 5

	var decompressedLen uint32
	if compression != CompressionNone {
		if len(frame) < offset+4 {
			return nil, fmt.Errorf("rscache: payload frame too short for decompressed length")
		}
		decompressedLen = binary.BigEndian.Uint32(frame[offset : offset+4])
		offset += 4
	}

	if len(frame) < offset+compressedLen {
		return nil, fmt.Errorf("rscache: payload frame too short for body (%d bytes)", compressedLen)
	}
	body := make([]byte, compressedLen)
	copy(body, frame[offset:offset+compressedLen])
	offset += compressedLen

	if keys != nil {
		n := (len(body) / 8) * 8
		xteaDecipher(body[:n], *keys)
	}

	var data []byte
	var err error
	switch compression {
	case CompressionNone:
		data = body
	case CompressionBzip2:
		data, err = decodeBzip2(body, int(decompressedLen))
	case CompressionGzip:
		data, err = decodeGzip(body, int(decompressedLen))
	case CompressionLzma:
		data, err = decodeLzma(body, int(decompressedLen))
	default:
		return nil, &CompressionUnsupportedError{Tag: byte(compression)}
	}
	if err != nil {
		return nil, err
	}

	var version *int16
	if len(frame)-offset >= 2 {
		v := int16(binary.BigEndian.Uint16(frame[offset : offset+2]))
		version = &v
	}

	return &DecodedPayload{Data: data, Version: version}, nil
}

// Encode is the inverse of Decode: it compresses data per compression,
// optionally enciphers the compressed body, and frames it with a length
// prefix and optional trailing version.
func Encode(data []byte, compression Compression, keys *XTEAKeys, version *int16) ([]byte, error) {
	decompressedLen := len(data)

	var body []byte
	var err error
	switch compression {
	case CompressionNone:
		body = data
	case CompressionBzip2:
		body, err = encodeBzip2(data)
	case CompressionGzip:
		body, err = encodeGzip(data)
	case CompressionLzma:
		body, err = encodeLzma(data)
	default:
		return nil, &CompressionUnsupportedError{Tag: byte(compression)}
	}
	if err != nil {
		return nil, err
	}

	if keys != nil {
		n := (len(body) / 8) * 8
		xteaEncipher(body[:n], *keys)
	}

	buf := make([]byte, 0, 5+4+len(body)+2)
	buf = append(buf, byte(compression))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(body)))
	if compression != CompressionNone {
		buf = binary.BigEndian.AppendUint32(buf, uint32(decompressedLen))
	}
	buf = append(buf, body...)
	if version != nil {
		buf = binary.BigEndian.AppendUint16(buf, uint16(*version))
	}

	return buf, nil
}

func decodeBzip2(body []byte, decompressedLen int) ([]byte, error) {
	framed := make([]byte, 4+len(body))
	copy(framed[:4], bzip2Magic[:])
	copy(framed[4:], body)

	r, err := bzip2.NewReader(bytes.NewReader(framed), &bzip2.ReaderConfig{})
	if err != nil {
		return nil, fmt.Errorf("rscache: bzip2 decode: %w", err)
	}
	out := make([]byte, decompressedLen)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("rscache: bzip2 decode: %w", err)
	}
	return out, nil
}

func encodeBzip2(data []byte) ([]byte, error) {
	buf := &bytes.Buffer{}
	w, err := bzip2.NewWriter(buf, &bzip2.WriterConfig{Level: 1})
	if err != nil {
		return nil, fmt.Errorf("rscache: bzip2 encode: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("rscache: bzip2 encode: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("rscache: bzip2 encode: %w", err)
	}
	compressed := buf.Bytes()
	if len(compressed) < 4 {
		return nil, fmt.Errorf("rscache: bzip2 encode: output shorter than its own magic")
	}
	return compressed[4:], nil
}

func decodeGzip(body []byte, decompressedLen int) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("rscache: gzip decode: %w", err)
	}
	defer r.Close()
	out := make([]byte, decompressedLen)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("rscache: gzip decode: %w", err)
	}
	return out, nil
}

func encodeGzip(data []byte) ([]byte, error) {
	buf := &bytes.Buffer{}
	w, err := gzip.NewWriterLevel(buf, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("rscache: gzip encode: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("rscache: gzip encode: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("rscache: gzip encode: %w", err)
	}
	return buf.Bytes(), nil
}

// lzmaProperties is the fixed (lc, lp, pb) triple used for the cache's raw,
// header-less LZMA streams; the decompressed size is carried externally in
// the payload frame rather than in an embedded LZMA header.
func lzmaProperties() lzma.Properties {
	return lzma.Properties{LC: 3, LP: 0, PB: 2}
}

func decodeLzma(body []byte, decompressedLen int) ([]byte, error) {
	props := lzmaProperties()
	cfg := lzma.ReaderConfig{
		Properties:   &props,
		DictCap:      1 << 22,
		SizeInHeader: false,
		EOSMarker:    false,
	}
	r, err := cfg.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("rscache: lzma decode: %w", err)
	}
	out := make([]byte, decompressedLen)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("rscache: lzma decode: %w", err)
	}
	return out, nil
}

func encodeLzma(data []byte) ([]byte, error) {
	props := lzmaProperties()
	buf := &bytes.Buffer{}
	cfg := lzma.WriterConfig{
		Properties:   &props,
		DictCap:      1 << 22,
		SizeInHeader: false,
		EOSMarker:    false,
	}
	w, err := cfg.NewWriter(buf)
	if err != nil {
		return nil, fmt.Errorf("rscache: lzma encode: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("rscache: lzma encode: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("rscache: lzma encode: %w", err)
	}
	return buf.Bytes(), nil
}
