package mock

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/textproto"

	digest "github.com/opencontainers/go-digest"
	specs "github.com/opencontainers/image-spec/specs-go"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

const (
	ConfigDigest  = "sha256:b5b2b2c507a0944348e0303114d8d93aaaa081732b86451d9bce1f432a537bc7"
	LayerDigest   = "sha256:9834876dcfb05cb167a5c24953eba58c4ac89b1adf57f28f2f9d09af107ee8f0"
	LayerSize     = 32654
	ConfigSize    = 7023
	LayerUrl      = "https://bitbucket/file1.tar.gz"
	LayerMedia    = "application/vnd.oci.image.layer.v1.tar+gzip"
	ConfigMedia   = "application/vnd.oci.image.config.v1+json"
	ManifestMedia = "application/vnd.oci.image.manifest.v1+json"
)

// ManifestJson is the manifest used throughout the round trip tests
// scenario: one config, one layer, annotations at each level.
var ManifestJson = fmt.Sprintf(`{
  "schemaVersion": 2,
  "mediaType": "",
  "config": {
    "mediaType": %q,
    "size": %d,
    "digest": %q,
    "annotations": {"this": "that"},
    "urls": []
  },
  "layers": [
    {
      "mediaType": %q,
      "size": %d,
      "digest": %q,
      "annotations": {},
      "urls": [%q]
    }
  ],
  "annotations": {"com.example.key1": "value1", "com.example.key2": "value2"}
}`, ConfigMedia, ConfigSize, ConfigDigest, LayerMedia, LayerSize, LayerDigest, LayerUrl)

// Manifest returns the typed equivalent of ManifestJson.
func Manifest() ocispec.Manifest {
	return ocispec.Manifest{
		Versioned: specs.Versioned{SchemaVersion: 2},
		Config: ocispec.Descriptor{
			MediaType:   ConfigMedia,
			Digest:      digest.Digest(ConfigDigest),
			Size:        ConfigSize,
			Annotations: map[string]string{"this": "that"},
		},
		Layers: []ocispec.Descriptor{
			{
				MediaType: LayerMedia,
				Digest:    digest.Digest(LayerDigest),
				Size:      LayerSize,
				URLs:      []string{LayerUrl},
			},
		},
		Annotations: map[string]string{"com.example.key1": "value1", "com.example.key2": "value2"},
	}
}

// ManifestWithLayers builds a manifest whose layers are the passed blobs. The
// config digest is derived from the passed seed so that each call site can get
// a distinct manifest.
func ManifestWithLayers(seed string, blobs ...[]byte) ocispec.Manifest {
	cfg := []byte(`{"seed":"` + seed + `"}`)
	m := ocispec.Manifest{
		Versioned: specs.Versioned{SchemaVersion: 2},
		MediaType: ManifestMedia,
		Config: ocispec.Descriptor{
			MediaType: ConfigMedia,
			Digest:    digest.FromBytes(cfg),
			Size:      int64(len(cfg)),
		},
		Layers: make([]ocispec.Descriptor, 0, len(blobs)),
	}
	for _, b := range blobs {
		m.Layers = append(m.Layers, ocispec.Descriptor{
			MediaType: LayerMedia,
			Digest:    digest.FromBytes(b),
			Size:      int64(len(b)),
		})
	}
	return m
}

// MultipartBody builds a multipart/mixed body with the manifest as the first part
// and each passed blob as a following part. The returned string is the content
// type including the boundary.
func MultipartBody(manifest any, blobs ...[]byte) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	mb, err := json.Marshal(manifest)
	if err != nil {
		return nil, "", err
	}
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Type", "application/json")
	part, err := w.CreatePart(hdr)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(mb); err != nil {
		return nil, "", err
	}
	for _, b := range blobs {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Type", LayerMedia)
		part, err := w.CreatePart(hdr)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(b); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return body, "multipart/mixed; boundary=" + w.Boundary(), nil
}
