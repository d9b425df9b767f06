package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"toymanifest/impl/schema"

	digest "github.com/opencontainers/go-digest"
	specs "github.com/opencontainers/image-spec/specs-go"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Store is the contract shared by the persistent and the in-memory stores.
type Store interface {
	// Insert writes one record per layer of the passed manifest as a single atomic
	// unit and returns the timestamp assigned to the write.
	Insert(ctx context.Context, m ocispec.Manifest) (time.Time, error)
	// GetManifestByConfigDigest returns the records of one manifest ordered by
	// layer order, or ErrNotFound.
	GetManifestByConfigDigest(ctx context.Context, configDigest string) ([]LayerRecord, error)
	// GetLayerByDigest returns any record having the passed layer digest, or ErrNotFound.
	GetLayerByDigest(ctx context.Context, layerDigest string) (LayerRecord, error)
	// ReadinessCheck performs a cheap bounded read and reports whether the store is
	// queryable. It never returns an error.
	ReadinessCheck(ctx context.Context) bool
	Close() error
}

// PartitionManager is implemented by both stores to maintain the weekly partitions.
type PartitionManager interface {
	// EnsurePartitions creates the partition covering now plus the configured
	// horizon of following weeks. It is idempotent.
	EnsurePartitions(ctx context.Context, now time.Time) ([]Partition, error)
	// Partitions lists the partitions ordered by start time.
	Partitions(ctx context.Context) ([]PartitionStats, error)
}

// ManifestStore is what the server and the command line sub-commands work with.
type ManifestStore interface {
	Store
	PartitionManager
}

// ErrNotFound is returned by the lookups when no record matches.
var ErrNotFound = errors.New("not found")

// ErrNoPartition is wrapped in a StorageError when no partition covers the
// insert time.
var ErrNoPartition = errors.New("no partition covers the insert time")

// StorageError wraps a failure of the persistence engine, a missing partition,
// or a malformed digest handed to the store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store %s: %s", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func notFound(what, dgst string) error {
	return fmt.Errorf("%s %s: %w", what, dgst, ErrNotFound)
}

// clock hands out timestamps that never decrease, even if the wall clock steps
// backwards between two inserts.
type clock struct {
	sync.Mutex
	last time.Time
	now  func() time.Time
}

func newClock() *clock {
	return &clock{now: time.Now}
}

func (c *clock) Now() time.Time {
	c.Lock()
	defer c.Unlock()
	t := c.now().UTC().Round(0)
	if t.Before(c.last) {
		t = c.last
	}
	c.last = t
	return t
}

// checkDigests rejects a manifest whose config or layer digests would not parse.
// The validator has already done this for anything arriving over the API.
func checkDigests(m ocispec.Manifest) error {
	if _, err := schema.ParseDigest(string(m.Config.Digest)); err != nil {
		return &StorageError{Op: "insert", Err: err}
	}
	for _, l := range m.Layers {
		if _, err := schema.ParseDigest(string(l.Digest)); err != nil {
			return &StorageError{Op: "insert", Err: err}
		}
	}
	return nil
}

// ManifestFromRecords reconstructs a manifest from the records returned by
// GetManifestByConfigDigest. The records must all carry the same config digest.
// A config-only record (layer order -1) contributes no layer.
func ManifestFromRecords(rows []LayerRecord) (ocispec.Manifest, error) {
	if len(rows) == 0 {
		return ocispec.Manifest{}, errors.New("no records to reconstruct a manifest from")
	}
	sorted := make([]LayerRecord, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LayerOrder < sorted[j].LayerOrder
	})
	first := sorted[0]
	m := ocispec.Manifest{
		Versioned: specs.Versioned{SchemaVersion: first.ManifestSchemaVersion},
		MediaType: first.ManifestMediaType,
		Config: ocispec.Descriptor{
			MediaType:   first.ConfigMediaType,
			Digest:      digest.Digest(first.ConfigDigest),
			Size:        first.ConfigSize,
			URLs:        nilIfEmptySlice(first.ConfigURLs),
			Annotations: nilIfEmptyMap(first.ConfigAnnotations),
		},
		Layers:      make([]ocispec.Descriptor, 0, len(sorted)),
		Annotations: nilIfEmptyMap(first.ManifestAnnotations),
	}
	for i, row := range sorted {
		if row.ConfigDigest != first.ConfigDigest || row.ConfigMediaType != first.ConfigMediaType || row.ConfigSize != first.ConfigSize {
			return ocispec.Manifest{}, fmt.Errorf("record %d has config fields inconsistent with the first record", i)
		}
		if row.LayerOrder == configOnly {
			continue
		}
		m.Layers = append(m.Layers, ocispec.Descriptor{
			MediaType:   row.MediaType,
			Digest:      digest.Digest(row.Digest),
			Size:        row.Size,
			URLs:        nilIfEmptySlice(row.URLs),
			Annotations: nilIfEmptyMap(row.Annotations),
		})
	}
	return m, nil
}

func nilIfEmptyMap(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	return m
}

func nilIfEmptySlice(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
