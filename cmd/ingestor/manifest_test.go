package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const storesCSV = "\ufeffName,City,Categories,Lat,Lon,Active\n" +
	"Reef World,Oakland,saltwater; coral ,37.8044,-122.2712,true\n" +
	"Mail Order Shrimp,,shrimp,,,\n" +
	"Closed Tank,Fresno,,36.7378,-119.7871,false\n"

func TestParseCSV(t *testing.T) {
	stores, err := parseCSV(strings.NewReader(storesCSV))
	require.NoError(t, err)
	require.Len(t, stores, 3)

	assert.Equal(t, "Reef World", stores[0].Name)
	assert.Equal(t, []string{"saltwater", "coral"}, stores[0].Categories)
	require.NotNil(t, stores[0].Location)
	assert.InDelta(t, 37.8044, stores[0].Location.Lat, 1e-9)
	assert.True(t, stores[0].Active)

	assert.Nil(t, stores[1].Location, "blank coordinates mean no location")
	assert.True(t, stores[1].Active, "active defaults to true")

	assert.False(t, stores[2].Active)
}

func TestParseCSV_Errors(t *testing.T) {
	_, err := parseCSV(strings.NewReader("city,lat,lon\nOakland,1,2\n"))
	assert.Error(t, err, "name column is required")

	_, err = parseCSV(strings.NewReader("name,lat,lon\nBad,north,2\n"))
	assert.ErrorContains(t, err, "line 2")
}

func TestLoad_JSONManifestFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "bay-area.json")
	manifest := `{"source":"bay-area","stores":[
		{"name":"Reef World","lat":37.8044,"lon":-122.2712,"categories":["saltwater"]},
		{"name":"Equator Fish","lat":0,"lon":0},
		{"name":"Half Pin","lat":12.5}
	]}`
	require.NoError(t, os.WriteFile(p, []byte(manifest), 0o644))

	source, stores, err := load(context.Background(), http.DefaultClient, p)
	require.NoError(t, err)
	assert.Equal(t, "bay-area", source)
	require.Len(t, stores, 3)
	require.NotNil(t, stores[1].Location, "0,0 is a real coordinate")
	assert.Nil(t, stores[2].Location)
}

func TestLoad_CSVOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/exports/stores.csv" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(storesCSV))
	}))
	defer srv.Close()

	source, stores, err := load(context.Background(), srv.Client(), srv.URL+"/exports/stores.csv")
	require.NoError(t, err)
	assert.Equal(t, "stores.csv", source)
	assert.Len(t, stores, 3)

	_, _, err = load(context.Background(), srv.Client(), srv.URL+"/missing.json")
	assert.ErrorContains(t, err, "HTTP 404")
}

func TestWorkflowID(t *testing.T) {
	at := time.Unix(1700000000, 0)
	assert.Equal(t, "store-import-bay-area-1700000000", workflowID("bay-area", at))
}
