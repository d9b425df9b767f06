package digester

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	digest "github.com/opencontainers/go-digest"
)

const helloSha256 = "sha256:b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
const helloSha512 = "sha512:309ecc489c12d6eb4cc40f50c902f2b4d0ed77ee511a7c7a9bcd3ca86d4cd86f989dd35bc5ff499670da34255b45b0cfd830e81f605dcf7dc5542e93ae9cd76f"
const emptySha256 = "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// Test known digests
func TestKnownDigests(t *testing.T) {
	type testcase struct {
		input string
		alg   digest.Algorithm
		dgst  string
	}
	testcases := []testcase{
		{"hello world", "", helloSha256},
		{"hello world", digest.SHA256, helloSha256},
		{"hello world", digest.SHA512, helloSha512},
		{"", digest.SHA256, emptySha256},
	}
	for _, tc := range testcases {
		res, err := Copy(context.Background(), nil, strings.NewReader(tc.input), 4, tc.alg)
		if err != nil {
			t.Fatal(err)
		}
		if string(res.Digest) != tc.dgst {
			t.Errorf("expected %s, got %s", tc.dgst, res.Digest)
		}
		if res.Size != int64(len(tc.input)) {
			t.Errorf("expected size %d, got %d", len(tc.input), res.Size)
		}
	}
}

// Test that the digest does not depend on how the stream is chunked and that
// the sink receives the bytes in order
func TestChunkingIndependence(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789abcdef"), 4099)
	var last digest.Digest
	for _, size := range []int{1, 7, 4096, len(data), len(data) * 2} {
		sink := &bytes.Buffer{}
		res, err := Copy(context.Background(), sink, bytes.NewReader(data), size, digest.SHA256)
		if err != nil {
			t.Fatal(err)
		}
		if res.Digest != digest.FromBytes(data) {
			t.Fatalf("chunk size %d: unexpected digest %s", size, res.Digest)
		}
		if last != "" && res.Digest != last {
			t.Fatalf("chunk size %d produced a different digest", size)
		}
		last = res.Digest
		if !bytes.Equal(sink.Bytes(), data) {
			t.Fatalf("chunk size %d: sink content differs", size)
		}
	}
}

func TestSliceChunks(t *testing.T) {
	res, err := Consume(context.Background(), SliceChunks([]byte("hello"), []byte(" "), []byte("world")), nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Digest != helloSha256 || res.Size != 11 {
		t.Fatalf("unexpected result %+v", res)
	}
	// an empty chunk ends the stream
	res, err = Consume(context.Background(), SliceChunks([]byte("hello world"), []byte{}, []byte("ignored")), nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Digest != helloSha256 {
		t.Fatalf("expected stream to end at the empty chunk, got %s", res.Digest)
	}
}

type failingReader struct {
	n int
}

func (fr *failingReader) Read(p []byte) (int, error) {
	if fr.n <= 0 {
		return 0, errors.New("connection reset")
	}
	fr.n--
	p[0] = 'x'
	return 1, nil
}

func TestSourceFailure(t *testing.T) {
	res, err := Copy(context.Background(), io.Discard, &failingReader{n: 3}, 16, "")
	var se *StreamError
	if !errors.As(err, &se) {
		t.Fatalf("expected StreamError, got %v", err)
	}
	if se.Op != "read" || se.Offset != 3 {
		t.Fatalf("unexpected stream error %+v", se)
	}
	if res.Digest != "" {
		t.Fatal("expected no digest on failure")
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestSinkFailure(t *testing.T) {
	_, err := Copy(context.Background(), failingWriter{}, strings.NewReader("hello world"), 4, "")
	var se *StreamError
	if !errors.As(err, &se) || se.Op != "write" {
		t.Fatalf("expected write StreamError, got %v", err)
	}
}

func TestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Copy(ctx, nil, strings.NewReader("hello world"), 4, "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestVerify(t *testing.T) {
	res := Result{Digest: helloSha256, Size: 11}
	if err := Verify(res, helloSha256, 11); err != nil {
		t.Fatal(err)
	}
	if err := Verify(res, helloSha256, -1); err != nil {
		t.Fatal(err)
	}
	if err := Verify(res, emptySha256, 11); err == nil {
		t.Fatal("expected digest mismatch")
	}
	if err := Verify(res, helloSha256, 12); err == nil {
		t.Fatal("expected size mismatch")
	}
}
