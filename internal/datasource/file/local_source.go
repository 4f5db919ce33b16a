// Package file implements a local filesystem-backed data source and the
// stream decoding shared by every source kind.
//
// Open returns decoded UTF-8 text: gzip and zstd input is decompressed, a
// configured charset is converted, and a leading byte order mark is removed
// (a UTF-16 BOM also selects the decoder).
package file

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Compression values.
const (
	CompressionAuto = "auto"
	CompressionNone = "none"
	CompressionGzip = "gzip"
	CompressionZstd = "zstd"
)

var (
	// ErrUnknownCompression is returned for a Compression value Open does not support.
	ErrUnknownCompression = errors.New("unknown compression")
	// ErrUnknownEncoding is returned for a charset name that is not in the IANA index.
	ErrUnknownEncoding = errors.New("unknown encoding")
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Options controls how a Local source decodes the file.
type Options struct {
	// Compression is auto, none, gzip or zstd. Empty means auto: the file
	// extension is checked first, then the leading magic bytes.
	Compression string
	// Encoding is an IANA charset name. Empty means UTF-8.
	Encoding string
}

// Local is a filesystem data source that opens files from the local disk.
// It implements datasource.Source.
type Local struct {
	path string
	opt  Options
}

// NewLocal returns a new Local data source bound to the provided filesystem
// path. It is safe for concurrent use; every Open returns an independent
// reader.
func NewLocal(path string, opt Options) *Local { return &Local{path: path, opt: opt} }

// Path returns the file path.
func (l *Local) Path() string { return l.path }

// Open opens the file and returns a reader of decoded text.
//
// A context that is already done short-circuits without touching the
// filesystem. Filesystem errors are wrapped with the path and still satisfy
// errors.Is(err, os.ErrNotExist) and friends.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if _, err := decoderFor(l.opt.Encoding); err != nil {
		return nil, err
	}

	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	adviseSequential(f)
	return Decode(f, l.path, l.opt)
}

// Decode wraps rc, an undecoded stream named name, with decompression and
// charset decoding. name is only used for extension-based detection and
// error messages. Closing the result closes rc; on error rc is closed.
func Decode(rc io.ReadCloser, name string, opt Options) (io.ReadCloser, error) {
	dec, err := decoderFor(opt.Encoding)
	if err != nil {
		_ = rc.Close()
		return nil, err
	}

	out := &stack{closers: []io.Closer{rc}}
	br := bufio.NewReaderSize(rc, 1<<16)

	kind, err := compression(br, name, opt.Compression)
	if err != nil {
		_ = out.Close()
		return nil, err
	}

	var r io.Reader = br
	switch kind {
	case CompressionGzip:
		zr, err := gzip.NewReader(br)
		if err != nil {
			_ = out.Close()
			return nil, fmt.Errorf("gzip %s: %w", name, err)
		}
		out.push(zr)
		r = zr
	case CompressionZstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			_ = out.Close()
			return nil, fmt.Errorf("zstd %s: %w", name, err)
		}
		zrc := zr.IOReadCloser()
		out.push(zrc)
		r = zrc
	}

	out.Reader = transform.NewReader(r, unicode.BOMOverride(dec))
	return out, nil
}

// compression resolves the configured compression, peeking at br when it is auto.
func compression(br *bufio.Reader, name, configured string) (string, error) {
	c := strings.ToLower(strings.TrimSpace(configured))
	switch c {
	case CompressionNone, CompressionGzip, CompressionZstd:
		return c, nil
	case "", CompressionAuto:
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownCompression, configured)
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz", ".gzip":
		return CompressionGzip, nil
	case ".zst", ".zstd":
		return CompressionZstd, nil
	}

	head, err := br.Peek(len(zstdMagic))
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return "", fmt.Errorf("peek %s: %w", name, err)
	}
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		return CompressionGzip, nil
	case bytes.HasPrefix(head, zstdMagic):
		return CompressionZstd, nil
	}
	return CompressionNone, nil
}

// decoderFor returns the transformer applied after the BOM check. UTF-8 is
// passed through unchanged.
func decoderFor(name string) (transform.Transformer, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" || n == "utf-8" || n == "utf8" {
		return transform.Nop, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("%w %q", ErrUnknownEncoding, name)
	}
	return enc.NewDecoder(), nil
}

// stack is the returned reader; Close closes the layers outermost first.
type stack struct {
	io.Reader
	closers []io.Closer
}

func (s *stack) push(c io.Closer) { s.closers = append(s.closers, c) }

func (s *stack) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
