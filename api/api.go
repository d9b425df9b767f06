// Package api describes the HTTP surface: the OpenAPI document, the server
// interface the handlers implement, and the echo route registration that binds
// path parameters before calling into the handlers.
package api

import (
	_ "embed"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/labstack/echo/v4"
	"github.com/oapi-codegen/runtime"
)

//go:embed toymanifest.yaml
var swaggerSpec []byte

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// (OPTIONS /manifest)
	OptionsManifest(ctx echo.Context) error
	// (POST /manifest)
	PostManifest(ctx echo.Context) error
	// (GET /manifest/{digest})
	GetManifest(ctx echo.Context, digest string) error
	// (GET /layer/{digest})
	GetLayer(ctx echo.Context, digest string) error
	// (POST /layer/{digest})
	PostLayer(ctx echo.Context, digest string) error
	// (GET /livez)
	Livez(ctx echo.Context) error
	// (GET /readyz)
	Readyz(ctx echo.Context) error
}

// ServerInterfaceWrapper converts echo contexts to parameters.
type ServerInterfaceWrapper struct {
	Handler ServerInterface
}

func (w *ServerInterfaceWrapper) OptionsManifest(ctx echo.Context) error {
	return w.Handler.OptionsManifest(ctx)
}

func (w *ServerInterfaceWrapper) PostManifest(ctx echo.Context) error {
	return w.Handler.PostManifest(ctx)
}

func (w *ServerInterfaceWrapper) GetManifest(ctx echo.Context) error {
	digest, err := bindDigest(ctx)
	if err != nil {
		return err
	}
	return w.Handler.GetManifest(ctx, digest)
}

func (w *ServerInterfaceWrapper) GetLayer(ctx echo.Context) error {
	digest, err := bindDigest(ctx)
	if err != nil {
		return err
	}
	return w.Handler.GetLayer(ctx, digest)
}

func (w *ServerInterfaceWrapper) PostLayer(ctx echo.Context) error {
	digest, err := bindDigest(ctx)
	if err != nil {
		return err
	}
	return w.Handler.PostLayer(ctx, digest)
}

func (w *ServerInterfaceWrapper) Livez(ctx echo.Context) error {
	return w.Handler.Livez(ctx)
}

func (w *ServerInterfaceWrapper) Readyz(ctx echo.Context) error {
	return w.Handler.Readyz(ctx)
}

// bindDigest binds the "digest" path parameter
func bindDigest(ctx echo.Context) (string, error) {
	var digest string
	err := runtime.BindStyledParameterWithOptions("simple", "digest", ctx.Param("digest"), &digest,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter digest: %s", err))
	}
	return digest, nil
}

// EchoRouter is the subset of echo.Echo and echo.Group used to register routes.
type EchoRouter interface {
	GET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	OPTIONS(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	POST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
}

// RegisterHandlers adds each server route to the EchoRouter.
func RegisterHandlers(router EchoRouter, si ServerInterface) {
	RegisterHandlersWithBaseURL(router, si, "")
}

// RegisterHandlersWithBaseURL registers the routes with a base URL prefix.
func RegisterHandlersWithBaseURL(router EchoRouter, si ServerInterface, baseURL string) {
	wrapper := ServerInterfaceWrapper{
		Handler: si,
	}
	router.OPTIONS(baseURL+"/manifest", wrapper.OptionsManifest)
	router.POST(baseURL+"/manifest", wrapper.PostManifest)
	router.GET(baseURL+"/manifest/:digest", wrapper.GetManifest)
	router.GET(baseURL+"/layer/:digest", wrapper.GetLayer)
	router.POST(baseURL+"/layer/:digest", wrapper.PostLayer)
	router.GET(baseURL+"/livez", wrapper.Livez)
	router.GET(baseURL+"/readyz", wrapper.Readyz)
}

// GetSwagger returns the OpenAPI description of the server.
func GetSwagger() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	swagger, err := loader.LoadFromData(swaggerSpec)
	if err != nil {
		return nil, fmt.Errorf("error loading OpenAPI document: %w", err)
	}
	return swagger, nil
}
