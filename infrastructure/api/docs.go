package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/swaggo/swag"

	"github.com/helixml/artsearch/infrastructure/api/docs"
)

// swaggerPage loads Swagger UI from a CDN; specPlaceholder is replaced with
// the document URL.
const (
	specPlaceholder = "__SPEC_URL__"
	swaggerPage     = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Artsearch API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
  <script>
    window.addEventListener("load", () => {
      window.ui = SwaggerUIBundle({ url: "` + specPlaceholder + `", dom_id: "#swagger-ui", tryItOutEnabled: true });
    });
  </script>
</body>
</html>`
)

// SwaggerUIHTML returns the Swagger UI page for the document at specURL.
func SwaggerUIHTML(specURL string) string {
	return strings.Replace(swaggerPage, specPlaceholder, specURL, 1)
}

// DocsRouter serves Swagger UI and the swag-registered API description.
type DocsRouter struct {
	specURL string
}

// NewDocsRouter creates a documentation router whose UI loads specURL.
func NewDocsRouter(specURL string) *DocsRouter {
	return &DocsRouter{specURL: specURL}
}

// Routes returns the chi router for documentation endpoints.
func (d *DocsRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(SwaggerUIHTML(d.specURL)))
	})

	// The host is filled from the request so "Try it out" works behind
	// any address or proxy.
	router.Get("/doc.json", func(w http.ResponseWriter, r *http.Request) {
		doc, err := swag.ReadDoc(docs.SwaggerInfo.InstanceName())
		if err != nil {
			http.Error(w, "api description not found", http.StatusNotFound)
			return
		}
		host := r.Host
		if forwarded := r.Header.Get("X-Forwarded-Host"); forwarded != "" {
			host = forwarded
		}
		doc = strings.Replace(doc, `"host": ""`, `"host": "`+host+`"`, 1)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(doc))
	})

	return router
}
