package impl

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"

	"toymanifest/api/models"
	"toymanifest/impl/blobs"
	"toymanifest/impl/digester"
	"toymanifest/impl/globals"
	"toymanifest/impl/metrics"
	"toymanifest/impl/schema"
	"toymanifest/impl/store"

	"github.com/labstack/echo/v4"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	digest "github.com/opencontainers/go-digest"
	log "github.com/sirupsen/logrus"
)

// maxManifestBytes caps the size of a posted manifest document
const maxManifestBytes = 4 * 1024 * 1024

// OPTIONS /manifest
func (r *ManifestService) handleOptionsManifest(ctx echo.Context) error {
	h := ctx.Response().Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "OPTIONS, POST")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
	h.Set("Allow", "OPTIONS, POST")
	return ctx.NoContent(http.StatusOK)
}

// POST /manifest. The body is either the manifest JSON, or multipart where the first
// part is the manifest JSON and each following part is a blob referenced by the manifest.
// Blobs are staged and only committed once every part checks out, then the manifest
// is stored.
func (r *ManifestService) handlePostManifest(ctx echo.Context) error {
	metrics.IncManifestPosts()
	allowOrigin(ctx)
	req := ctx.Request()
	mediaType, params, err := mime.ParseMediaType(req.Header.Get(echo.HeaderContentType))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		body, err := readManifest(req.Body)
		if err != nil {
			return r.errorResult(ctx, err)
		}
		m, err := parseManifest(body)
		if err != nil {
			return r.errorResult(ctx, err)
		}
		return r.storeManifest(ctx, m, nil)
	}
	mr := multipart.NewReader(req.Body, params["boundary"])
	part, err := mr.NextPart()
	if err != nil {
		return r.errorResult(ctx, badRequest("body", "multipart body has no manifest part: %s", err))
	}
	body, err := readManifest(part)
	if err != nil {
		return r.errorResult(ctx, err)
	}
	m, err := parseManifest(body)
	if err != nil {
		return r.errorResult(ctx, err)
	}
	staged, err := r.stageBlobs(ctx, mr, m)
	if err != nil {
		return r.errorResult(ctx, err)
	}
	return r.storeManifest(ctx, m, staged)
}

// stageBlobs streams each remaining part of the passed multipart reader into the blob
// store. Each blob must match a descriptor of the manifest by digest and size. On any
// failure all blobs staged so far are discarded.
func (r *ManifestService) stageBlobs(ctx echo.Context, mr *multipart.Reader, m ocispec.Manifest) ([]*blobs.Staged, error) {
	descriptors := make(map[digest.Digest]ocispec.Descriptor, len(m.Layers)+1)
	descriptors[m.Config.Digest] = m.Config
	for _, layer := range m.Layers {
		descriptors[layer.Digest] = layer
	}
	staged := []*blobs.Staged{}
	discard := func() {
		for _, s := range staged {
			s.Discard()
		}
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return staged, nil
		} else if err != nil {
			discard()
			return nil, badRequest("body", "malformed multipart body: %s", err)
		}
		var expected digest.Digest
		alg := digest.Canonical
		if hdr := part.Header.Get(globals.ContentDigestHeader); hdr != "" {
			if expected, err = schema.ParseDigest(hdr); err != nil {
				discard()
				return nil, badRequest(globals.ContentDigestHeader, "%s", err)
			}
			alg = expected.Algorithm()
		}
		s, err := r.blobs.Stage(ctx.Request().Context(), part, alg)
		if err != nil {
			discard()
			return nil, err
		}
		staged = append(staged, s)
		if expected != "" {
			if err := digester.Verify(s.Result, expected, -1); err != nil {
				discard()
				return nil, badRequest("digest", "%s", err)
			}
		}
		desc, ok := descriptors[s.Digest]
		if !ok {
			discard()
			return nil, badRequest("digest", "blob %s is not referenced by the manifest", s.Digest)
		}
		if desc.Size != s.Size {
			discard()
			return nil, badRequest("size", "blob %s has size %d, the manifest says %d", s.Digest, s.Size, desc.Size)
		}
	}
}

// storeManifest stores the passed manifest, committing any staged blobs first.
func (r *ManifestService) storeManifest(ctx echo.Context, m ocispec.Manifest, staged []*blobs.Staged) error {
	for i, s := range staged {
		if err := s.Commit(); err != nil {
			for _, rest := range staged[i+1:] {
				rest.Discard()
			}
			return r.errorResult(ctx, err)
		}
		metrics.IncLayerUploads()
		metrics.AddUploadedBytes(float64(s.Size))
	}
	ts, err := r.store.Insert(ctx.Request().Context(), m)
	if err != nil {
		return r.errorResult(ctx, err)
	}
	log.Infof("stored manifest %s with %d layer(s) and %d blob(s)", m.Config.Digest, len(m.Layers), len(staged))
	return ctx.JSON(http.StatusOK, models.ManifestPosted{
		Message:        "manifest stored",
		ManifestDigest: m.Config.Digest.String(),
		Timestamp:      ts,
	})
}

// GET /manifest/{digest}
func (r *ManifestService) handleGetManifest(ctx echo.Context, configDigest string) error {
	metrics.IncManifestGets()
	allowOrigin(ctx)
	rows, err := r.store.GetManifestByConfigDigest(ctx.Request().Context(), configDigest)
	if errors.Is(err, store.ErrNotFound) {
		return ctx.JSON(http.StatusNotFound, models.ManifestNotFound{
			ManifestId: configDigest,
			Message:    "manifest not found",
		})
	} else if err != nil {
		return r.errorResult(ctx, err)
	}
	m, err := store.ManifestFromRecords(rows)
	if err != nil {
		return r.errorResult(ctx, err)
	}
	return ctx.JSON(http.StatusOK, models.ManifestFound{
		ManifestId: configDigest,
		Manifest:   m,
	})
}

// GET /layer/{digest}. Serves the blob if it is held locally, else redirects to the
// first url of the layer descriptor.
func (r *ManifestService) handleGetLayer(ctx echo.Context, layerDigest string) error {
	metrics.IncLayerGets()
	allowOrigin(ctx)
	rec, err := r.store.GetLayerByDigest(ctx.Request().Context(), layerDigest)
	if err != nil {
		return r.errorResult(ctx, err)
	}
	f, size, err := r.blobs.Open(digest.Digest(layerDigest))
	if err == nil {
		defer f.Close()
		ctx.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(size, 10))
		ctx.Response().Header().Set(globals.ContentDigestHeader, layerDigest)
		return ctx.Stream(http.StatusOK, globals.LayerMediaType, f)
	} else if !errors.Is(err, os.ErrNotExist) {
		return r.errorResult(ctx, err)
	}
	if len(rec.URLs) > 0 {
		return ctx.Redirect(http.StatusTemporaryRedirect, rec.URLs[0])
	}
	return r.errorResult(ctx, fmt.Errorf("layer %s has no content here and no urls: %w", layerDigest, store.ErrNotFound))
}

// POST /layer/{digest}. The body is the raw blob, or multipart/form-data in which
// case the first file part is the blob.
func (r *ManifestService) handlePostLayer(ctx echo.Context, layerDigest string) error {
	allowOrigin(ctx)
	expected, err := schema.ParseDigest(layerDigest)
	if err != nil {
		return r.errorResult(ctx, badRequest("digest", "%s", err))
	}
	req := ctx.Request()
	var body io.Reader = req.Body
	if mediaType, _, err := mime.ParseMediaType(req.Header.Get(echo.HeaderContentType)); err == nil && mediaType == echo.MIMEMultipartForm {
		if body, err = firstFilePart(req); err != nil {
			return r.errorResult(ctx, err)
		}
	}
	res, err := r.blobs.Put(req.Context(), body, expected)
	if err != nil {
		return r.errorResult(ctx, err)
	}
	metrics.IncLayerUploads()
	metrics.AddUploadedBytes(float64(res.Size))
	return ctx.JSON(http.StatusOK, models.LayerUploaded{
		UploadDigest: res.Digest.String(),
		LayerId:      layerDigest,
		Size:         res.Size,
	})
}

// GET /livez
func (r *ManifestService) handleLivez(ctx echo.Context) error {
	allowOrigin(ctx)
	return ctx.NoContent(http.StatusOK)
}

// GET /readyz
func (r *ManifestService) handleReadyz(ctx echo.Context) error {
	allowOrigin(ctx)
	if r.store.ReadinessCheck(ctx.Request().Context()) {
		return ctx.NoContent(http.StatusOK)
	}
	return ctx.NoContent(http.StatusServiceUnavailable)
}

// errorResult maps the passed error to a status code and writes it as a JSON
// error body.
func (r *ManifestService) errorResult(ctx echo.Context, err error) error {
	var ve *schema.ValidationError
	var se *digester.StreamError
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &ve):
		metrics.IncValidationFailures()
		status = http.StatusBadRequest
	case errors.As(err, &se) && se.Op != "write":
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		log.Errorf("%s %s: %s", ctx.Request().Method, ctx.Request().URL.Path, err)
	}
	metrics.IncApiErrorResults()
	return ctx.JSON(status, models.Error{Message: err.Error()})
}

// parseManifest decodes and validates manifest JSON
func parseManifest(body []byte) (ocispec.Manifest, error) {
	doc, err := schema.Decode(body)
	if err != nil {
		return ocispec.Manifest{}, err
	}
	return schema.Validate(doc)
}

// readManifest reads a manifest document, failing if it is larger than maxManifestBytes
func readManifest(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxManifestBytes+1))
	if err != nil {
		return nil, &digester.StreamError{Op: "read", Offset: int64(len(body)), Err: err}
	}
	if len(body) > maxManifestBytes {
		return nil, badRequest("body", "manifest exceeds %d bytes", maxManifestBytes)
	}
	return body, nil
}

// firstFilePart returns the first part of a multipart/form-data request that
// carries a file name. Form fields ahead of it are skipped.
func firstFilePart(req *http.Request) (io.Reader, error) {
	mr, err := req.MultipartReader()
	if err != nil {
		return nil, badRequest("body", "malformed multipart body: %s", err)
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, badRequest("body", "multipart body has no file part")
		} else if err != nil {
			return nil, badRequest("body", "malformed multipart body: %s", err)
		}
		if part.FileName() != "" {
			return part, nil
		}
	}
}

func badRequest(field, format string, args ...any) error {
	return &schema.ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func allowOrigin(ctx echo.Context) {
	ctx.Response().Header().Set(echo.HeaderAccessControlAllowOrigin, "*")
}
