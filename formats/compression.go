package formats

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Compression wraps an export stream.
type Compression string

const (
	CompressionNone Compression = ""
	CompressionGZ   Compression = "gzip"
	CompressionZSTD Compression = "zstd"
	CompressionXZ   Compression = "xz"
)

// ParseCompression accepts none, gzip/gz, zstd/zst or xz in any letter case.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressionNone, nil
	case "gzip", "gz":
		return CompressionGZ, nil
	case "zstd", "zst":
		return CompressionZSTD, nil
	case "xz":
		return CompressionXZ, nil
	default:
		return CompressionNone, fmt.Errorf("%w: %q", ErrUnsupportedCompression, s)
	}
}

// Extension returns the filename suffix, including the dot.
func (c Compression) Extension() string {
	switch c {
	case CompressionGZ:
		return ".gz"
	case CompressionZSTD:
		return ".zst"
	case CompressionXZ:
		return ".xz"
	default:
		return ""
	}
}

// ContentType returns the MIME type of the compressed download.
func (c Compression) ContentType() string {
	switch c {
	case CompressionGZ:
		return "application/gzip"
	case CompressionZSTD:
		return "application/zstd"
	case CompressionXZ:
		return "application/x-xz"
	default:
		return ""
	}
}

// CreateWriter wraps writer with a compressing writer. The returned close
// function flushes the compressor and must be called; it does not close
// writer.
func (c Compression) CreateWriter(writer io.Writer) (io.Writer, func() error, error) {
	switch c {
	case CompressionNone:
		return writer, func() error { return nil }, nil

	case CompressionGZ:
		gzWriter := gzip.NewWriter(writer)
		return gzWriter, gzWriter.Close, nil

	case CompressionXZ:
		xzWriter, err := xz.NewWriter(writer)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create xz writer: %w", err)
		}
		return xzWriter, xzWriter.Close, nil

	case CompressionZSTD:
		zstdWriter, err := zstd.NewWriter(writer)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
		return zstdWriter, zstdWriter.Close, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedCompression, string(c))
	}
}
