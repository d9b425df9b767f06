package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/mjl-/bstore"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	log "github.com/sirupsen/logrus"
)

// Bstore is the persistent store. Each Insert is one bstore write transaction so
// concurrent readers see all rows of a manifest or none.
type Bstore struct {
	db      *bstore.DB
	horizon int
	clock   *clock
}

// NewBstore opens (creating if needed) the database file at the passed path.
func NewBstore(ctx context.Context, path string, horizon int) (*Bstore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}
	db, err := bstore.Open(ctx, path, &bstore.Options{Perm: 0660}, Partition{}, LayerRecord{})
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}
	return &Bstore{db: db, horizon: horizon, clock: newClock()}, nil
}

func (s *Bstore) Insert(ctx context.Context, m ocispec.Manifest) (time.Time, error) {
	if err := checkDigests(m); err != nil {
		return time.Time{}, err
	}
	now := s.clock.Now()
	name := PartitionName(now)
	err := s.db.Write(ctx, func(tx *bstore.Tx) error {
		p := Partition{Name: name}
		if err := tx.Get(&p); err == bstore.ErrAbsent {
			return missingPartition(now)
		} else if err != nil {
			return err
		}
		existing, err := bstore.QueryTx[LayerRecord](tx).FilterNonzero(LayerRecord{ConfigDigest: string(m.Config.Digest)}).List()
		if err != nil {
			return err
		}
		updates, inserts, deletes := merge(existing, recordsFor(m, now, p.Name))
		for i := range deletes {
			if err := tx.Delete(&deletes[i]); err != nil {
				return err
			}
		}
		for i := range updates {
			if err := tx.Update(&updates[i]); err != nil {
				return err
			}
		}
		for i := range inserts {
			if err := tx.Insert(&inserts[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var se *StorageError
		if errors.As(err, &se) {
			return time.Time{}, err
		}
		return time.Time{}, &StorageError{Op: "insert", Err: err}
	}
	return now, nil
}

func (s *Bstore) GetManifestByConfigDigest(ctx context.Context, configDigest string) ([]LayerRecord, error) {
	if configDigest == "" {
		return nil, notFound("manifest", configDigest)
	}
	rows, err := bstore.QueryDB[LayerRecord](ctx, s.db).FilterNonzero(LayerRecord{ConfigDigest: configDigest}).SortAsc("LayerOrder").List()
	if err != nil {
		return nil, &StorageError{Op: "get manifest", Err: err}
	}
	if len(rows) == 0 {
		return nil, notFound("manifest", configDigest)
	}
	return rows, nil
}

func (s *Bstore) GetLayerByDigest(ctx context.Context, layerDigest string) (LayerRecord, error) {
	if layerDigest == "" {
		return LayerRecord{}, notFound("layer", layerDigest)
	}
	row, err := bstore.QueryDB[LayerRecord](ctx, s.db).FilterNonzero(LayerRecord{Digest: layerDigest}).Limit(1).Get()
	if err == bstore.ErrAbsent {
		return LayerRecord{}, notFound("layer", layerDigest)
	} else if err != nil {
		return LayerRecord{}, &StorageError{Op: "get layer", Err: err}
	}
	return row, nil
}

func (s *Bstore) ReadinessCheck(ctx context.Context) bool {
	_, err := bstore.QueryDB[LayerRecord](ctx, s.db).Limit(1).Count()
	if err != nil {
		log.Warnf("readiness check failed: %s", err)
		return false
	}
	return true
}

func (s *Bstore) EnsurePartitions(ctx context.Context, now time.Time) ([]Partition, error) {
	var created []Partition
	err := s.db.Write(ctx, func(tx *bstore.Tx) error {
		for _, p := range partitionWindow(now, s.horizon) {
			exists, err := bstore.QueryTx[Partition](tx).FilterNonzero(Partition{Name: p.Name}).Exists()
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			if err := tx.Insert(&p); err != nil {
				return err
			}
			created = append(created, p)
		}
		return nil
	})
	if err != nil {
		return nil, &StorageError{Op: "ensure partitions", Err: err}
	}
	return created, nil
}

func (s *Bstore) Partitions(ctx context.Context) ([]PartitionStats, error) {
	var stats []PartitionStats
	err := s.db.Read(ctx, func(tx *bstore.Tx) error {
		parts, err := bstore.QueryTx[Partition](tx).SortAsc("Start").List()
		if err != nil {
			return err
		}
		for _, p := range parts {
			n, err := bstore.QueryTx[LayerRecord](tx).FilterNonzero(LayerRecord{Partition: p.Name}).Count()
			if err != nil {
				return err
			}
			stats = append(stats, PartitionStats{Partition: p, Records: n})
		}
		return nil
	})
	if err != nil {
		return nil, &StorageError{Op: "list partitions", Err: err}
	}
	return stats, nil
}

func (s *Bstore) Close() error {
	return s.db.Close()
}
