// SPDX-License-Identifier: MPL-2.0

package record

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// LogVersion is the state log format version written by this package.
const LogVersion = "1.0"

const (
	// EncodingZlib compresses entries with zlib. It is the default.
	EncodingZlib Encoding = "zlib"
	// EncodingZstd compresses entries with zstd.
	EncodingZstd Encoding = "zstd"
	// EncodingTxt writes entries uncompressed.
	EncodingTxt Encoding = "txt"
)

// ErrInvalidEncoding is returned for unknown encoding names.
var ErrInvalidEncoding = errors.New("invalid state log encoding")

type (
	// Encoding names the compression of state log entries.
	Encoding string

	// InvalidEncodingError wraps ErrInvalidEncoding.
	InvalidEncodingError struct {
		Value string
	}

	// Header is the first line of a state log.
	Header struct {
		LogVersion    string    `json:"log_version"`
		ServerVersion string    `json:"server_version"`
		Seed          uint64    `json:"seed"`
		Encoding      Encoding  `json:"encoding"`
		Start         time.Time `json:"start"`
	}

	// Entry is one recorded scene snapshot.
	Entry struct {
		Stamp time.Time `json:"stamp"`
		Scene string    `json:"scene"`
	}

	nopWriteCloser struct{ io.Writer }
)

func (e *InvalidEncodingError) Error() string {
	return fmt.Sprintf("invalid state log encoding %q (valid: zlib, zstd, txt)", e.Value)
}

// Unwrap returns ErrInvalidEncoding.
func (e *InvalidEncodingError) Unwrap() error { return ErrInvalidEncoding }

// ParseEncoding maps a name to an Encoding. Empty means zlib.
func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(s) {
	case "":
		return EncodingZlib, nil
	case EncodingZlib, EncodingZstd, EncodingTxt:
		return Encoding(s), nil
	default:
		return "", &InvalidEncodingError{Value: s}
	}
}

func (nopWriteCloser) Close() error { return nil }

func (e Encoding) newWriter(w io.Writer) (io.WriteCloser, error) {
	switch e {
	case EncodingZlib:
		return zlib.NewWriter(w), nil
	case EncodingZstd:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("create zstd writer: %w", err)
		}
		return enc, nil
	case EncodingTxt:
		return nopWriteCloser{w}, nil
	default:
		return nil, &InvalidEncodingError{Value: string(e)}
	}
}

func (e Encoding) newReader(r io.Reader) (io.ReadCloser, error) {
	switch e {
	case EncodingZlib:
		zr, err := zlib.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("open zlib stream: %w", err)
		}
		return zr, nil
	case EncodingZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("open zstd stream: %w", err)
		}
		return dec.IOReadCloser(), nil
	case EncodingTxt:
		return io.NopCloser(r), nil
	default:
		return nil, &InvalidEncodingError{Value: string(e)}
	}
}
