package cataloghttp

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the catalog API onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.handleListProducts)
			r.Post("/", h.handleCreateProduct)
			r.Get("/{id}", h.handleGetProduct)
			r.Put("/{id}", h.handleUpdateProduct)
			r.Delete("/{id}", h.handleDeleteProduct)
			r.Post("/{id}/analyze", h.handleAnalyzeProduct)
		})

		r.Get("/categories", h.handleCategories)
		r.Get("/categories/suggestions", h.handleCategorySuggestions)

		r.Get("/materials", h.handleGetMaterials)
		r.Put("/materials", h.handleUpdateMaterials)
		r.Post("/materials/reprice", h.handleReprice)

		r.Put("/settings", h.handleUpdateSettings)

		r.Post("/images", h.handleUploadImage)
		r.Post("/quote-sheet", h.handleQuoteSheet)
	})
}
