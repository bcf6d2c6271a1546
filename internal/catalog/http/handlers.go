// Package cataloghttp exposes the catalog, pricing and sync operations as a
// JSON API.
package cataloghttp

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/daoyee/daoyee-quote/internal/catalog"
	"github.com/daoyee/daoyee-quote/internal/imaging"
	"github.com/daoyee/daoyee-quote/internal/platform/httpx"
	"github.com/daoyee/daoyee-quote/internal/pricing"
	"github.com/daoyee/daoyee-quote/internal/sheet"
	"github.com/daoyee/daoyee-quote/internal/syncer"
)

// maxUploadBytes bounds product photo uploads.
const maxUploadBytes = 10 << 20

// Analyzer produces advisory commentary for a product. It never fails;
// unavailable backends yield fallback text.
type Analyzer interface {
	Analyze(ctx context.Context, p catalog.Product) string
}

// Handler serves the catalog API.
type Handler struct {
	logger   *slog.Logger
	store    *catalog.Store
	coord    *syncer.Coordinator
	advisor  Analyzer
	renderer *sheet.Renderer
}

// NewHandler wires the API against the session's store and coordinator.
func NewHandler(logger *slog.Logger, store *catalog.Store, coord *syncer.Coordinator, advisor Analyzer, renderer *sheet.Renderer) *Handler {
	return &Handler{logger: logger, store: store, coord: coord, advisor: advisor, renderer: renderer}
}

func (h *Handler) respondProduct(w http.ResponseWriter, status int, p catalog.Product) {
	httpx.JSON(w, status, toResponse(p))
}

func toResponse(p catalog.Product) productResponse {
	quote := pricing.ForProduct(p)
	return productResponse{
		Product:      p,
		TotalCost:    quote.TotalCost,
		ExWorksPrice: quote.ExWorksPrice,
		PriceWithTax: quote.PriceWithTax,
	}
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	category := r.URL.Query().Get("category")
	if category == "" {
		category = catalog.CategoryAll
	}
	order := catalog.SortOrder(r.URL.Query().Get("sort"))
	if order != catalog.SortAsc {
		order = catalog.SortDesc
	}

	products := h.store.Filter(q, category)
	catalog.SortProducts(products, order)

	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toResponse(p))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := h.store.Get(chi.URLParam(r, "id"))
	if !ok {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "product not found")
		return
	}
	h.respondProduct(w, http.StatusOK, p)
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
		return
	}

	p := req.toProduct(catalog.NewID())
	stored := h.coord.SaveProduct(r.Context(), p)
	h.respondProduct(w, http.StatusCreated, stored)
}

func (h *Handler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existing, ok := h.store.Get(id)
	if !ok {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "product not found")
		return
	}

	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
		return
	}

	p := req.toProduct(id)
	p.CreatedAt = existing.CreatedAt
	p.AIAnalysis = existing.AIAnalysis
	stored := h.coord.SaveProduct(r.Context(), p)
	h.respondProduct(w, http.StatusOK, stored)
}

func (h *Handler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if !h.coord.DeleteProduct(r.Context(), chi.URLParam(r, "id")) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "product not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAnalyzeProduct runs the advisory analysis and caches the text on the
// product through a normal save. Always 200: the analyzer degrades to a
// fallback text instead of failing.
func (h *Handler) handleAnalyzeProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := h.store.Get(chi.URLParam(r, "id"))
	if !ok {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "product not found")
		return
	}

	p.AIAnalysis = h.advisor.Analyze(r.Context(), p)
	stored := h.coord.SaveProduct(r.Context(), p)
	h.respondProduct(w, http.StatusOK, stored)
}

// handleReprice re-derives material amounts across the whole catalog. Only
// ever triggered explicitly; price updates alone never touch stored products.
func (h *Handler) handleReprice(w http.ResponseWriter, r *http.Request) {
	count := h.coord.RepriceCatalog(r.Context())
	httpx.JSON(w, http.StatusOK, map[string]int{"repriced": count})
}

func (h *Handler) handleCategories(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.store.Categories())
}

func (h *Handler) handleCategorySuggestions(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.store.Suggestions())
}

func (h *Handler) handleGetMaterials(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.coord.MaterialPrices())
}

func (h *Handler) handleUpdateMaterials(w http.ResponseWriter, r *http.Request) {
	var req materialPricesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
		return
	}

	prices := catalog.MaterialPrices{New: req.New, Old: req.Old, EVA: req.EVA}
	h.coord.UpdateMaterialPrices(r.Context(), prices)
	httpx.JSON(w, http.StatusOK, prices)
}

func (h *Handler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
		return
	}

	settings := catalog.AppSettings{
		RemoteDSN:   req.RemoteDSN,
		RedisAddr:   req.RedisAddr,
		SyncEnabled: req.SyncEnabled,
	}
	if err := h.coord.Reconfigure(r.Context(), settings); err != nil {
		// Settings were persisted; only the remote connection failed.
		httpx.JSON(w, http.StatusOK, map[string]any{
			"settings": settings,
			"synced":   false,
			"warning":  "remote sync unavailable, running in local-only mode",
		})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"settings": settings,
		"synced":   h.coord.RemoteActive(),
	})
}

func (h *Handler) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "multipart field 'file' is required")
		return
	}
	defer func() {
		_ = file.Close()
	}()

	data, err := io.ReadAll(file)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "could not read upload")
		return
	}

	url, err := imaging.Process(data, header.Header.Get("Content-Type"))
	if err != nil {
		h.logger.Error("process image", slog.Any("error", err))
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable", "could not process image")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"dataUrl": url})
}

func (h *Handler) handleQuoteSheet(w http.ResponseWriter, r *http.Request) {
	var req quoteSheetRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
		return
	}

	products := make([]catalog.Product, 0, len(req.IDs))
	for _, id := range req.IDs {
		p, ok := h.store.Get(id)
		if !ok {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "product "+id+" not found")
			return
		}
		products = append(products, p)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.renderer.Render(w, products); err != nil {
		h.logger.Error("render quote sheet", slog.Any("error", err))
	}
}
