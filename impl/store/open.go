package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
)

const (
	TypeBstore = "bstore"
	TypeMemory = "memory"
)

// DbFile is the name of the bstore database file under the data path.
const DbFile = "manifests.db"

var errClosed = errors.New("store is closed")

// Open returns the store selected by storeType. The bstore database lives in
// the passed data path.
func Open(ctx context.Context, storeType, dataPath string, horizon int) (ManifestStore, error) {
	switch storeType {
	case TypeBstore, "":
		s, err := NewBstore(ctx, filepath.Join(dataPath, DbFile), horizon)
		if err != nil {
			return nil, err
		}
		return s, nil
	case TypeMemory:
		return NewMemory(horizon), nil
	}
	return nil, fmt.Errorf("unsupported store type %q, expected %q or %q", storeType, TypeBstore, TypeMemory)
}
