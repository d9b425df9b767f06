// Package digester computes content digests over incrementally delivered byte
// streams. It knows nothing of HTTP, multipart framing or file paths: callers hand
// it a chunk iterator and a sink for the bytes.
package digester

import (
	"context"
	"errors"
	"fmt"
	"io"

	_ "crypto/sha256"
	_ "crypto/sha512"

	digest "github.com/opencontainers/go-digest"
)

// DefaultChunkSize is the read size used when the caller does not configure one.
const DefaultChunkSize = 1024 * 1024

// Chunks is an iterator over a byte stream. Next returns the next chunk in
// arrival order. The stream ends when Next returns an empty chunk or io.EOF.
// The returned slice is only valid until the following call to Next.
type Chunks interface {
	Next() ([]byte, error)
}

// Result is the outcome of consuming a stream.
type Result struct {
	Digest digest.Digest
	Size   int64
}

// StreamError is returned when the chunk source or the sink fails mid-stream.
// Offset is the number of bytes that had been consumed when the failure occurred.
type StreamError struct {
	Op     string
	Offset int64
	Err    error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream %s failed at offset %d: %s", e.Op, e.Offset, e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// Consume reads every chunk from src, updates the digest of the passed algorithm
// with each chunk and writes the chunk to dst (which may be nil). If the algorithm
// is empty, sha256 is used. The context is checked between chunks. On any failure
// no digest is returned and whatever was written to dst is the caller's concern.
func Consume(ctx context.Context, src Chunks, dst io.Writer, alg digest.Algorithm) (Result, error) {
	if alg == "" {
		alg = digest.Canonical
	}
	if !alg.Available() {
		return Result{}, fmt.Errorf("digest algorithm %q is not available", alg)
	}
	d := alg.Digester()
	var size int64
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, &StreamError{Op: "read", Offset: size, Err: err}
		}
		chunk, err := src.Next()
		if len(chunk) != 0 {
			// hash.Hash never returns an error from Write
			d.Hash().Write(chunk)
			if dst != nil {
				if _, werr := dst.Write(chunk); werr != nil {
					return Result{}, &StreamError{Op: "write", Offset: size, Err: werr}
				}
			}
			size += int64(len(chunk))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Result{}, &StreamError{Op: "read", Offset: size, Err: err}
		}
		if len(chunk) == 0 {
			break
		}
	}
	return Result{Digest: d.Digest(), Size: size}, nil
}

// Copy is a convenience wrapper that consumes the passed reader in chunks of the
// passed size and writes the bytes to dst.
func Copy(ctx context.Context, dst io.Writer, r io.Reader, chunkSize int, alg digest.Algorithm) (Result, error) {
	return Consume(ctx, ReaderChunks(r, chunkSize), dst, alg)
}

// Verify compares a computed result against an expected digest and, if size is
// not negative, an expected size.
func Verify(res Result, expected digest.Digest, size int64) error {
	if res.Digest != expected {
		return fmt.Errorf("computed digest %s does not match expected digest %s", res.Digest, expected)
	}
	if size >= 0 && res.Size != size {
		return fmt.Errorf("digest %s: received %d bytes, expected %d", expected, res.Size, size)
	}
	return nil
}
