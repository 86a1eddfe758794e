package server

import (
	"encoding/json"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
)

const docsPage = `<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <title>Job Ledger API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => SwaggerUIBundle({ url: '{{SPEC}}', dom_id: '#swagger-ui' });
    </script>
  </body>
</html>`

// registerDocs serves the Swagger UI at /docs and the finished spec under
// the base path.
func registerDocs(r chi.Router, api huma.API, basePath string) {
	specPath := path.Join("/", basePath, "openapi.json")
	page := strings.ReplaceAll(docsPage, "{{SPEC}}", specPath)
	r.Get("/docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page))
	})

	var (
		once sync.Once
		spec []byte
	)
	r.Get(specPath, func(w http.ResponseWriter, _ *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			finishSpec(oas, path.Join("/", basePath, "health"))
			spec, _ = json.Marshal(oas)
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

// finishSpec declares bearer auth on every operation but the health check
// and points each default response at the error envelope.
func finishSpec(oas *huma.OpenAPI, healthPath string) {
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	bearer := []map[string][]string{{"bearerAuth": {}}}
	oas.Security = bearer
	errorResponse := &huma.Response{
		Description: "Error",
		Content: map[string]*huma.MediaType{
			"application/json": {Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"}},
		},
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{item.Get, item.Put, item.Post, item.Delete, item.Patch} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = errorResponse
			if route == healthPath {
				op.Security = []map[string][]string{}
			} else {
				op.Security = bearer
			}
		}
	}
}
