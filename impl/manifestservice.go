// implements the manifest service. Provides implementations for the methods of the
// api.ServerInterface. This file is lean to simplify handling any changes to the
// API - each function simply calls a handler in 'handlers.go'.
package impl

import (
	"toymanifest/impl/blobs"
	"toymanifest/impl/store"

	_ "crypto/sha256"
	_ "crypto/sha512"

	"github.com/labstack/echo/v4"
)

type ManifestService struct {
	store store.Store
	blobs *blobs.Store
}

// NewManifestService creates and returns a ManifestService struct from the passed args. The
// ManifestService struct implements the api.ServerInterface interface, which mirrors the
// api/toymanifest.yaml openapi spec for the manifest server.
func NewManifestService(st store.Store, bs *blobs.Store) *ManifestService {
	return &ManifestService{
		store: st,
		blobs: bs,
	}
}

// OPTIONS /manifest
func (r *ManifestService) OptionsManifest(ctx echo.Context) error {
	return r.handleOptionsManifest(ctx)
}

// POST /manifest
func (r *ManifestService) PostManifest(ctx echo.Context) error {
	return r.handlePostManifest(ctx)
}

// GET /manifest/{digest}
func (r *ManifestService) GetManifest(ctx echo.Context, digest string) error {
	return r.handleGetManifest(ctx, digest)
}

// GET /layer/{digest}
func (r *ManifestService) GetLayer(ctx echo.Context, digest string) error {
	return r.handleGetLayer(ctx, digest)
}

// POST /layer/{digest}
func (r *ManifestService) PostLayer(ctx echo.Context, digest string) error {
	return r.handlePostLayer(ctx, digest)
}

// GET /livez
func (r *ManifestService) Livez(ctx echo.Context) error {
	return r.handleLivez(ctx)
}

// GET /readyz
func (r *ManifestService) Readyz(ctx echo.Context) error {
	return r.handleReadyz(ctx)
}
