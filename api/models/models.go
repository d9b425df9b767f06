// Package models has the JSON bodies returned by the API.
package models

import (
	"time"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

type Error struct {
	Message string `json:"message"`
}

type ManifestPosted struct {
	Message        string    `json:"message"`
	ManifestDigest string    `json:"manifest_digest"`
	Timestamp      time.Time `json:"timestamp"`
}

type ManifestFound struct {
	ManifestId string           `json:"manifest_id"`
	Manifest   ocispec.Manifest `json:"manifest"`
}

type ManifestNotFound struct {
	ManifestId string `json:"manifest_id"`
	Message    string `json:"message"`
}

type LayerUploaded struct {
	UploadDigest string `json:"upload_digest"`
	LayerId      string `json:"layer_id"`
	Size         int64  `json:"size"`
}
