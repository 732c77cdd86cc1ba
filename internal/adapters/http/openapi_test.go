package http_test

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/aquadex/aquadex/api"
)

func loadOpenAPI(t *testing.T) *openapi3.T {
	t.Helper()
	loader := &openapi3.Loader{IsExternalRefsAllowed: false}
	doc, err := loader.LoadFromData(api.OpenAPI)
	if err != nil {
		t.Fatalf("failed to parse OpenAPI document: %v", err)
	}
	return doc
}

// TestOpenAPISpec validates the OpenAPI document and its key paths and schemas.
func TestOpenAPISpec(t *testing.T) {
	doc := loadOpenAPI(t)

	if err := doc.Validate(context.Background()); err != nil {
		t.Fatalf("OpenAPI validation failed: %v", err)
	}

	expectedPaths := []string{
		"/v1/health",
		"/v1/ready",
		"/v1/stores",
		"/v1/stores/nearby",
		"/v1/stores/search",
		"/v1/stores/{id}",
		"/v1/distance",
		"/graphql",
	}
	for _, path := range expectedPaths {
		if item := doc.Paths.Find(path); item == nil {
			t.Errorf("expected path %s not found", path)
		}
	}

	expectedSchemas := []string{
		"Coordinate",
		"Store",
		"StoreInput",
		"RankedStore",
		"NearbyResponse",
		"DistanceResponse",
		"APIError",
		"Pagination",
	}
	for _, schema := range expectedSchemas {
		if doc.Components.Schemas[schema] == nil {
			t.Errorf("expected schema %s not found", schema)
		}
	}
}

// TestOpenAPI_MatchesRoutes checks every documented operation is registered.
func TestOpenAPI_MatchesRoutes(t *testing.T) {
	doc := loadOpenAPI(t)
	app := setupApp(makeDeps())

	registered := map[string]bool{}
	for _, r := range app.GetRoutes(true) {
		registered[r.Method+" "+r.Path] = true
	}

	for path, item := range doc.Paths.Map() {
		route := strings.ReplaceAll(path, "{id}", ":id")
		for method := range item.Operations() {
			if !registered[method+" "+route] {
				t.Errorf("documented %s %s has no route", method, path)
			}
		}
	}
}

// TestOpenAPIInfo verifies document metadata.
func TestOpenAPIInfo(t *testing.T) {
	doc := loadOpenAPI(t)

	if doc.Info.Title != "AquaDex Store Directory API" {
		t.Errorf("expected title 'AquaDex Store Directory API', got %q", doc.Info.Title)
	}
	if doc.Info.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %q", doc.Info.Version)
	}
	if doc.Info.Description == "" {
		t.Error("expected non-empty description")
	}
	if len(doc.Servers) == 0 {
		t.Error("expected at least one server")
	}
}

func TestDocs_ServesEmbeddedOpenAPI(t *testing.T) {
	app := setupApp(makeDeps())

	resp, _ := app.Test(httptest.NewRequest("GET", "/docs/openapi.yaml", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/yaml" {
		t.Errorf("expected application/yaml, got %q", ct)
	}
	if body := readBody(t, resp.Body); !bytes.Equal(body, api.OpenAPI) {
		t.Error("served document differs from the embedded one")
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/docs", nil), -1)
	if body := string(readBody(t, resp.Body)); !strings.Contains(body, "swagger-ui") {
		t.Errorf("expected Swagger UI page, got %s", body)
	}
}
