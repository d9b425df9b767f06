package store

import (
	"context"
	"sort"
	"sync"
	"time"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Memory is a Store that keeps everything in maps. An insert swaps in the full row
// set of a manifest under the write lock, which gives the same visibility as a
// bstore transaction.
type Memory struct {
	sync.RWMutex
	horizon    int
	clock      *clock
	nextID     int64
	manifests  map[string][]LayerRecord
	partitions map[string]Partition
	closed     bool
}

func NewMemory(horizon int) *Memory {
	return &Memory{
		horizon:    horizon,
		clock:      newClock(),
		manifests:  map[string][]LayerRecord{},
		partitions: map[string]Partition{},
	}
}

func (s *Memory) Insert(ctx context.Context, m ocispec.Manifest) (time.Time, error) {
	if err := checkDigests(m); err != nil {
		return time.Time{}, err
	}
	if err := ctx.Err(); err != nil {
		return time.Time{}, &StorageError{Op: "insert", Err: err}
	}
	now := s.clock.Now()
	s.Lock()
	defer s.Unlock()
	if s.closed {
		return time.Time{}, &StorageError{Op: "insert", Err: errClosed}
	}
	p, ok := s.partitions[PartitionName(now)]
	if !ok {
		return time.Time{}, missingPartition(now)
	}
	cd := string(m.Config.Digest)
	updates, inserts, _ := merge(s.manifests[cd], recordsFor(m, now, p.Name))
	rows := make([]LayerRecord, 0, len(updates)+len(inserts))
	rows = append(rows, updates...)
	for _, r := range inserts {
		s.nextID++
		r.ID = s.nextID
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].LayerOrder < rows[j].LayerOrder
	})
	s.manifests[cd] = rows
	return now, nil
}

func (s *Memory) GetManifestByConfigDigest(ctx context.Context, configDigest string) ([]LayerRecord, error) {
	s.RLock()
	defer s.RUnlock()
	rows, ok := s.manifests[configDigest]
	if !ok {
		return nil, notFound("manifest", configDigest)
	}
	out := make([]LayerRecord, len(rows))
	copy(out, rows)
	return out, nil
}

func (s *Memory) GetLayerByDigest(ctx context.Context, layerDigest string) (LayerRecord, error) {
	s.RLock()
	defer s.RUnlock()
	if layerDigest != "" {
		for _, rows := range s.manifests {
			for _, r := range rows {
				if r.Digest == layerDigest {
					return r, nil
				}
			}
		}
	}
	return LayerRecord{}, notFound("layer", layerDigest)
}

func (s *Memory) ReadinessCheck(ctx context.Context) bool {
	s.RLock()
	defer s.RUnlock()
	return !s.closed && ctx.Err() == nil
}

func (s *Memory) EnsurePartitions(ctx context.Context, now time.Time) ([]Partition, error) {
	s.Lock()
	defer s.Unlock()
	var created []Partition
	for _, p := range partitionWindow(now, s.horizon) {
		if _, ok := s.partitions[p.Name]; ok {
			continue
		}
		s.partitions[p.Name] = p
		created = append(created, p)
	}
	return created, nil
}

func (s *Memory) Partitions(ctx context.Context) ([]PartitionStats, error) {
	s.RLock()
	defer s.RUnlock()
	counts := map[string]int{}
	for _, rows := range s.manifests {
		for _, r := range rows {
			counts[r.Partition]++
		}
	}
	stats := make([]PartitionStats, 0, len(s.partitions))
	for _, p := range s.partitions {
		stats = append(stats, PartitionStats{Partition: p, Records: counts[p.Name]})
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Start.Before(stats[j].Start)
	})
	return stats, nil
}

func (s *Memory) Close() error {
	s.Lock()
	defer s.Unlock()
	s.closed = true
	return nil
}
