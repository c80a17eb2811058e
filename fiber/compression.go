package fiber

import (
	"bytes"
	"compress/gzip"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	gofiber "github.com/gofiber/fiber/v2"
)

// CompressionConfig configures response compression.
type CompressionConfig struct {
	// EnableBrotli enables Brotli compression (better compression ratio)
	EnableBrotli bool
	// EnableGzip enables Gzip compression (wider browser support)
	EnableGzip bool
	// BrotliLevel compression level (0-11, default 4 for balance)
	BrotliLevel int
	// GzipLevel compression level (1-9, default 6 for balance)
	GzipLevel int
	// MinSize minimum response size to compress
	MinSize int
	// CompressibleTypes content types that should be compressed. Only
	// buffered bodies are considered; see BrotliGzipMiddleware.
	CompressibleTypes []string
	// SkipPaths path prefixes never compressed
	SkipPaths []string
}

// DefaultCompressionConfig returns default compression configuration.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		EnableBrotli: true,
		EnableGzip:   true,
		BrotliLevel:  4,
		GzipLevel:    6,
		MinSize:      1024,
		CompressibleTypes: []string{
			"text/html",
			"text/css",
			"text/javascript",
			"text/plain",
			"application/javascript",
			"application/json",
			"image/svg+xml",
		},
	}
}

// BrotliGzipMiddleware creates a compression middleware with Brotli and Gzip support.
// Brotli is preferred when supported by the client, falling back to Gzip.
// Streamed bodies are never touched. That covers server-sent events and files
// served by the filesystem middleware, so static stylesheets go out
// uncompressed; put a compressing proxy in front when that matters.
func BrotliGzipMiddleware(config CompressionConfig) gofiber.Handler {
	config.BrotliLevel = clamp(config.BrotliLevel, brotli.BestSpeed, brotli.BestCompression)
	config.GzipLevel = clamp(config.GzipLevel, gzip.BestSpeed, gzip.BestCompression)

	brotliLevel := config.BrotliLevel
	gzipLevel := config.GzipLevel

	brotliWriterPool := &sync.Pool{
		New: func() interface{} {
			return brotli.NewWriterLevel(nil, brotliLevel)
		},
	}
	gzipWriterPool := &sync.Pool{
		New: func() interface{} {
			w, _ := gzip.NewWriterLevel(nil, gzipLevel)
			return w
		},
	}

	return func(c *gofiber.Ctx) error {
		path := c.Path()
		for _, skipPath := range config.SkipPaths {
			if strings.HasPrefix(path, skipPath) {
				return c.Next()
			}
		}

		accept := strings.ToLower(c.Get(gofiber.HeaderAcceptEncoding))
		useBrotli := config.EnableBrotli && strings.Contains(accept, "br")
		useGzip := !useBrotli && config.EnableGzip && strings.Contains(accept, "gzip")
		if !useBrotli && !useGzip {
			return c.Next()
		}

		if err := c.Next(); err != nil {
			return err
		}

		resp := c.Response()
		if resp.IsBodyStream() || len(resp.Header.Peek(gofiber.HeaderContentEncoding)) > 0 {
			return nil
		}

		body := resp.Body()
		if len(body) < config.MinSize || !compressible(string(resp.Header.ContentType()), config.CompressibleTypes) {
			return nil
		}

		var compressed []byte
		var encoding string
		if useBrotli {
			compressed, encoding = compressBrotli(body, brotliWriterPool), "br"
		} else {
			compressed, encoding = compressGzip(body, gzipWriterPool), "gzip"
		}

		// only use compression if it actually reduces size
		if len(compressed) == 0 || len(compressed) >= len(body) {
			return nil
		}

		c.Set(gofiber.HeaderContentEncoding, encoding)
		c.Vary(gofiber.HeaderAcceptEncoding)
		resp.SetBodyRaw(compressed)
		return nil
	}
}

func compressible(contentType string, types []string) bool {
	for _, ct := range types {
		if strings.Contains(contentType, ct) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// compressBrotli compresses data using Brotli with writer pool.
func compressBrotli(data []byte, pool *sync.Pool) []byte {
	writer := pool.Get().(*brotli.Writer)
	defer pool.Put(writer)

	var buf bytes.Buffer
	writer.Reset(&buf)
	if _, err := writer.Write(data); err != nil {
		return nil
	}
	if err := writer.Close(); err != nil {
		return nil
	}
	return buf.Bytes()
}

// compressGzip compresses data using Gzip with writer pool.
func compressGzip(data []byte, pool *sync.Pool) []byte {
	writer := pool.Get().(*gzip.Writer)
	defer pool.Put(writer)

	var buf bytes.Buffer
	writer.Reset(&buf)
	if _, err := writer.Write(data); err != nil {
		return nil
	}
	if err := writer.Close(); err != nil {
		return nil
	}
	return buf.Bytes()
}
