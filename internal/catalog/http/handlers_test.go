package cataloghttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daoyee/daoyee-quote/internal/catalog"
	"github.com/daoyee/daoyee-quote/internal/localcache"
	"github.com/daoyee/daoyee-quote/internal/sheet"
	"github.com/daoyee/daoyee-quote/internal/syncer"
)

type stubAnalyzer struct {
	text string
}

func (s stubAnalyzer) Analyze(ctx context.Context, p catalog.Product) string {
	return s.text
}

func newTestServer(t *testing.T) (*httptest.Server, *catalog.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	local, err := localcache.Open(filepath.Join(t.TempDir(), "cache.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close() })

	store := catalog.NewStore()
	coord, err := syncer.Connect(context.Background(), syncer.Options{
		Logger: logger,
		Store:  store,
		Local:  local,
	})
	require.NoError(t, err)
	t.Cleanup(coord.Close)

	renderer, err := sheet.NewRenderer()
	require.NoError(t, err)

	r := chi.NewRouter()
	NewHandler(logger, store, coord, stubAnalyzer{text: "成本结构合理。"}, renderer).MountRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, store
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

func TestCreateProductSeedsDefaultCosts(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/products", map[string]any{
		"code":         "A-100",
		"name":         "Beach slide",
		"profitMargin": 20,
		"taxRate":      13,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created productResponse
	decodeBody(t, resp, &created)
	assert.NotEmpty(t, created.ID)
	assert.Len(t, created.Costs, 4)
	assert.NotZero(t, created.CreatedAt)
}

func TestCreateProductComputesPrices(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/products", map[string]any{
		"code": "A-100",
		"name": "Beach slide",
		"costs": []map[string]any{
			{"name": "Upper", "isMaterial": true, "materialType": "new", "weight": 2},
			{"name": "Labor", "amount": 10},
		},
		"profitMargin": 20,
		"taxRate":      13,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created productResponse
	decodeBody(t, resp, &created)

	// Material line derives 2 * 12.0 from the default price table.
	assert.InDelta(t, 24.0, created.Costs[0].Amount, 0.0001)
	assert.InDelta(t, 34.0, created.TotalCost, 0.0001)
	assert.InDelta(t, 40.8, created.ExWorksPrice, 0.0001)
	assert.InDelta(t, 46.104, created.PriceWithTax, 0.0001)
}

func TestCreateProductValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/products", map[string]any{"name": "missing code"})
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/products", map[string]any{
		"code": "A-1", "name": "bad material",
		"costs": []map[string]any{{"name": "Upper", "materialType": "plutonium"}},
	})
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProductLifecycle(t *testing.T) {
	srv, store := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/products", map[string]any{"code": "A-1", "name": "First"})
	var created productResponse
	decodeBody(t, resp, &created)

	// Update preserves CreatedAt.
	resp = doJSON(t, http.MethodPut, srv.URL+"/api/products/"+created.ID, map[string]any{
		"code": "A-1", "name": "Renamed",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated productResponse
	decodeBody(t, resp, &updated)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/products/"+created.ID, nil)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Zero(t, store.Len())

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/products/"+created.ID, nil)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListProductsFilterAndSort(t *testing.T) {
	srv, _ := newTestServer(t)

	for i, spec := range []struct{ code, name, category string }{
		{"A-1", "Beach slide", "slides"},
		{"B-2", "Garden clog", "clogs"},
		{"C-3", "beach flip", ""},
	} {
		resp := postJSON(t, srv.URL+"/api/products", map[string]any{
			"code": spec.code, "name": spec.name, "category": spec.category,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode, "product %d", i)
		_ = resp.Body.Close()
	}

	var listed []productResponse
	resp, err := http.Get(srv.URL + "/api/products?q=beach")
	require.NoError(t, err)
	decodeBody(t, resp, &listed)
	assert.Len(t, listed, 2, "case-insensitive name match")

	resp, err = http.Get(srv.URL + "/api/products?category=" + catalog.CategoryNone)
	require.NoError(t, err)
	decodeBody(t, resp, &listed)
	require.Len(t, listed, 1)
	assert.Equal(t, "C-3", listed[0].Code)

	resp, err = http.Get(srv.URL + "/api/products?sort=asc")
	require.NoError(t, err)
	decodeBody(t, resp, &listed)
	require.Len(t, listed, 3)
	assert.Equal(t, "A-1", listed[0].Code)
}

func TestCategories(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, spec := range []struct{ code, category string }{
		{"A-1", "slides"}, {"B-2", ""}, {"C-3", "slides"},
	} {
		resp := postJSON(t, srv.URL+"/api/products", map[string]any{"code": spec.code, "name": spec.code, "category": spec.category})
		_ = resp.Body.Close()
	}

	var categories []string
	resp, err := http.Get(srv.URL + "/api/categories")
	require.NoError(t, err)
	decodeBody(t, resp, &categories)
	assert.Equal(t, []string{"slides", catalog.CategoryNone}, categories)

	resp, err = http.Get(srv.URL + "/api/categories/suggestions")
	require.NoError(t, err)
	decodeBody(t, resp, &categories)
	assert.Equal(t, []string{"slides"}, categories)
}

func TestMaterialsRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)

	var prices catalog.MaterialPrices
	resp, err := http.Get(srv.URL + "/api/materials")
	require.NoError(t, err)
	decodeBody(t, resp, &prices)
	assert.Equal(t, catalog.DefaultMaterialPrices(), prices)

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/materials", map[string]any{"new": 14, "old": 9, "eva": 16})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &prices)
	assert.Equal(t, catalog.MaterialPrices{New: 14, Old: 9, EVA: 16}, prices)
}

func TestRepriceSweep(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/products", map[string]any{
		"code": "A-1", "name": "Slide",
		"costs": []map[string]any{
			{"name": "Upper", "isMaterial": true, "materialType": "new", "weight": 2},
		},
	})
	var created productResponse
	decodeBody(t, resp, &created)
	assert.InDelta(t, 24.0, created.Costs[0].Amount, 0.0001)

	// Changing prices leaves stored products untouched until the sweep.
	resp = doJSON(t, http.MethodPut, srv.URL+"/api/materials", map[string]any{"new": 15, "old": 8.5, "eva": 15})
	_ = resp.Body.Close()

	var fetched productResponse
	resp, err := http.Get(srv.URL + "/api/products/" + created.ID)
	require.NoError(t, err)
	decodeBody(t, resp, &fetched)
	assert.InDelta(t, 24.0, fetched.Costs[0].Amount, 0.0001)

	resp = postJSON(t, srv.URL+"/api/materials/reprice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sweep map[string]int
	decodeBody(t, resp, &sweep)
	assert.Equal(t, 1, sweep["repriced"])

	resp, err = http.Get(srv.URL + "/api/products/" + created.ID)
	require.NoError(t, err)
	decodeBody(t, resp, &fetched)
	assert.InDelta(t, 30.0, fetched.Costs[0].Amount, 0.0001)
}

func TestAnalyzeCachesResult(t *testing.T) {
	srv, store := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/products", map[string]any{"code": "A-1", "name": "First"})
	var created productResponse
	decodeBody(t, resp, &created)

	resp = postJSON(t, srv.URL+"/api/products/"+created.ID+"/analyze", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var analyzed productResponse
	decodeBody(t, resp, &analyzed)
	assert.Equal(t, "成本结构合理。", analyzed.AIAnalysis)

	stored, ok := store.Get(created.ID)
	require.True(t, ok)
	assert.Equal(t, "成本结构合理。", stored.AIAnalysis)
}

func TestQuoteSheet(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/products", map[string]any{
		"code": "A-1", "name": "First",
		"costs":        []map[string]any{{"name": "Labor", "amount": 34}},
		"profitMargin": 20, "taxRate": 13,
	})
	var created productResponse
	decodeBody(t, resp, &created)

	resp = postJSON(t, srv.URL+"/api/quote-sheet", map[string]any{"ids": []string{created.ID}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer func() { _ = resp.Body.Close() }()
	body := new(bytes.Buffer)
	_, err := body.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, body.String(), "A-1")
	assert.Contains(t, body.String(), "46.10")

	resp = postJSON(t, srv.URL+"/api/quote-sheet", map[string]any{"ids": []string{"ghost"}})
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUploadImage(t *testing.T) {
	srv, _ := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "photo.bin")
	require.NoError(t, err)
	_, err = part.Write([]byte("not an image payload"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/api/images", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]string
	decodeBody(t, resp, &out)
	assert.True(t, strings.HasPrefix(out["dataUrl"], "data:"), fmt.Sprintf("got %q", out["dataUrl"]))
}
