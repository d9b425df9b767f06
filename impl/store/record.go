package store

import (
	"time"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// configOnly is the layer order of the single record written for a manifest with
// no layers. Its layer digest is empty.
const configOnly = -1

// LayerRecord is one de-normalized row: a layer plus the fields of the manifest and
// config it belongs to. The first field is the bstore primary key.
type LayerRecord struct {
	ID          int64
	Digest      string `bstore:"index"`
	MediaType   string
	Size        int64
	LayerOrder  int
	URLs        []string
	Annotations map[string]string

	ConfigDigest      string `bstore:"nonzero,index,unique ConfigDigest+Digest+LayerOrder"`
	ConfigMediaType   string `bstore:"nonzero"`
	ConfigSize        int64
	ConfigURLs        []string
	ConfigAnnotations map[string]string

	ManifestMediaType     string
	ManifestSchemaVersion int `bstore:"nonzero"`
	ManifestAnnotations   map[string]string

	Partition string    `bstore:"nonzero,ref Partition"`
	Created   time.Time `bstore:"nonzero,index"`
}

// rowKey is the upsert key of a record.
type rowKey struct {
	configDigest string
	digest       string
	layerOrder   int
}

func (r LayerRecord) key() rowKey {
	return rowKey{r.ConfigDigest, r.Digest, r.LayerOrder}
}

// recordsFor de-normalizes a manifest into its records in layer order. A manifest
// with no layers yields one config-only record.
func recordsFor(m ocispec.Manifest, created time.Time, partition string) []LayerRecord {
	base := LayerRecord{
		ConfigDigest:          string(m.Config.Digest),
		ConfigMediaType:       m.Config.MediaType,
		ConfigSize:            m.Config.Size,
		ConfigURLs:            m.Config.URLs,
		ConfigAnnotations:     m.Config.Annotations,
		ManifestMediaType:     m.MediaType,
		ManifestSchemaVersion: m.SchemaVersion,
		ManifestAnnotations:   m.Annotations,
		Partition:             partition,
		Created:               created,
	}
	if len(m.Layers) == 0 {
		row := base
		row.LayerOrder = configOnly
		return []LayerRecord{row}
	}
	rows := make([]LayerRecord, 0, len(m.Layers))
	for i, l := range m.Layers {
		row := base
		row.Digest = string(l.Digest)
		row.MediaType = l.MediaType
		row.Size = l.Size
		row.LayerOrder = i
		row.URLs = l.URLs
		row.Annotations = l.Annotations
		rows = append(rows, row)
	}
	return rows
}

// merge plans the upsert of the new rows over the existing rows of the same
// manifest. Rows matching an existing key keep the existing ID, creation time and
// partition. Existing rows not in the new set are returned for deletion.
func merge(existing, rows []LayerRecord) (updates, inserts, deletes []LayerRecord) {
	old := make(map[rowKey]LayerRecord, len(existing))
	for _, e := range existing {
		old[e.key()] = e
	}
	for _, r := range rows {
		if e, ok := old[r.key()]; ok {
			r.ID = e.ID
			r.Created = e.Created
			r.Partition = e.Partition
			updates = append(updates, r)
			delete(old, r.key())
		} else {
			inserts = append(inserts, r)
		}
	}
	for _, e := range existing {
		if _, ok := old[e.key()]; ok {
			deletes = append(deletes, e)
		}
	}
	return
}
