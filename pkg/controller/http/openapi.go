package http

import (
	_ "embed"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	legacyrouter "github.com/getkin/kin-openapi/routers/legacy"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

//go:embed openapi.yaml
var openAPISpec []byte

// OpenAPIValidator validates incoming API requests against the embedded
// OpenAPI document. Payloads the document rejects (unknown fields, enum
// violations) never reach a handler.
type OpenAPIValidator struct {
	router routers.Router
}

// NewOpenAPIValidator loads and checks the embedded document
func NewOpenAPIValidator() (*OpenAPIValidator, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openAPISpec)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load OpenAPI document")
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, goerr.Wrap(err, "invalid OpenAPI document")
	}

	router, err := legacyrouter.NewRouter(doc)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build OpenAPI router")
	}

	return &OpenAPIValidator{router: router}, nil
}

// Middleware validates the request, responding 400 when the document
// rejects it. Requests without a matching route pass through so the
// mux can answer 404 itself.
func (v *OpenAPIValidator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, pathParams, err := v.router.FindRoute(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				// Token checks happen in BearerAuth, not here
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			},
		}
		if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
			ctxlog.From(r.Context()).Warn("Rejected request by OpenAPI validation",
				"path", r.URL.Path,
				"error", err,
			)
			writeError(w, goerr.Wrap(err, "request rejected"), http.StatusBadRequest)
			return
		}

		next.ServeHTTP(w, r)
	})
}
