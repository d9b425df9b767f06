// Package store persists validated manifests de-normalized into one LayerRecord per
// (manifest, layer) pair, keyed by content digest, and answers digest keyed point
// lookups. Records are grouped into one-week partitions by insertion time.
//
// There are two implementations of the Store interface: a persistent one on bstore
// (a bbolt backed object store) and an in-memory one. Both have the same contract:
// all rows of a manifest become visible at once or not at all, re-inserting a stored
// manifest is an upsert on (config digest, layer digest, layer order), and an insert
// fails if no partition covers the insert time.
package store
