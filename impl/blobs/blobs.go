// Package blobs keeps layer blob bytes on the file system under
// <dataPath>/blobs/<algorithm>/<hex>. Blobs are streamed through the digester into
// a temp file under <dataPath>/tmp and only moved into place once the computed
// digest is known (and matches, if a digest was expected).
package blobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"toymanifest/impl/digester"
	"toymanifest/impl/schema"

	"github.com/google/uuid"
	digest "github.com/opencontainers/go-digest"
	log "github.com/sirupsen/logrus"
)

// Store is a file system blob store. It is safe for concurrent use: each upload
// has its own temp file and the final rename is atomic.
type Store struct {
	dataPath  string
	chunkSize int
}

// Staged is a blob that has been written to a temp file and digested but is not
// yet visible. Exactly one of Commit or Discard must be called.
type Staged struct {
	digester.Result
	store *Store
	tmp   string
}

// New returns a blob store rooted at the passed data path.
func New(dataPath string, chunkSize int) (*Store, error) {
	for _, dir := range []string{filepath.Join(dataPath, "blobs"), filepath.Join(dataPath, "tmp")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	return &Store{dataPath: dataPath, chunkSize: chunkSize}, nil
}

// Path returns the file system path of the passed digest.
func (s *Store) Path(d digest.Digest) string {
	return filepath.Join(s.dataPath, "blobs", string(d.Algorithm()), d.Encoded())
}

// Stage streams the reader into a temp file computing a digest of the passed
// algorithm. On a stream failure the temp file is removed.
func (s *Store) Stage(ctx context.Context, r io.Reader, alg digest.Algorithm) (*Staged, error) {
	tmp := filepath.Join(s.dataPath, "tmp", uuid.New().String())
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}
	res, err := digester.Copy(ctx, f, r, s.chunkSize, alg)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		removeTemp(f.Name())
		return nil, err
	}
	return &Staged{Result: res, store: s, tmp: f.Name()}, nil
}

// Put stages the reader and commits it if the computed digest matches expected.
// If expected is empty the blob is committed under whatever digest was computed.
func (s *Store) Put(ctx context.Context, r io.Reader, expected digest.Digest) (digester.Result, error) {
	alg := digest.Canonical
	if expected != "" {
		alg = expected.Algorithm()
	}
	staged, err := s.Stage(ctx, r, alg)
	if err != nil {
		return digester.Result{}, err
	}
	if expected != "" && staged.Digest != expected {
		staged.Discard()
		return digester.Result{}, &schema.ValidationError{
			Field:   "digest",
			Message: fmt.Sprintf("digest mismatch: computed %s, expected %s", staged.Digest, expected),
		}
	}
	if err := staged.Commit(); err != nil {
		return digester.Result{}, err
	}
	return staged.Result, nil
}

// Commit moves the staged blob into place. If a blob with the same digest already
// exists the existing one is kept.
func (b *Staged) Commit() error {
	dst := b.store.Path(b.Digest)
	if b.store.Exists(b.Digest) {
		log.Debugf("blob %s already present", b.Digest)
		removeTemp(b.tmp)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		removeTemp(b.tmp)
		return err
	}
	if err := os.Chmod(b.tmp, 0644); err != nil {
		removeTemp(b.tmp)
		return err
	}
	if err := os.Rename(b.tmp, dst); err != nil {
		removeTemp(b.tmp)
		return err
	}
	return nil
}

// Discard removes the staged temp file.
func (b *Staged) Discard() {
	removeTemp(b.tmp)
}

// Exists returns true if the blob for the passed digest is present.
func (s *Store) Exists(d digest.Digest) bool {
	if d.Validate() != nil {
		return false
	}
	fi, err := os.Stat(s.Path(d))
	return err == nil && fi.Mode().IsRegular()
}

// Open opens the blob for the passed digest and returns it with its size. The
// error wraps os.ErrNotExist if the blob is not present.
func (s *Store) Open(d digest.Digest) (*os.File, int64, error) {
	if err := d.Validate(); err != nil {
		return nil, 0, fmt.Errorf("%w: %s", os.ErrNotExist, err)
	}
	f, err := os.Open(s.Path(d))
	if err != nil {
		return nil, 0, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, fi.Size(), nil
}

func removeTemp(name string) {
	if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Errorf("removing temp blob file %s: %s", name, err)
	}
}
