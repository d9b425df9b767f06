package globals

// LayerMediaType is the content type of layer blobs served by GET /layer
const LayerMediaType = "application/vnd.oci.image.layer.v1.tar+gzip"

// ContentDigestHeader carries the digest of a blob, either on a multipart part
// to name the expected digest, or on a response.
const ContentDigestHeader = "Docker-Content-Digest"

// probes are the liveness and readiness endpoints, which are not logged
var probes = map[string]bool{
	"/livez":  true,
	"/readyz": true,
}
