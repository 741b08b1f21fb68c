package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/podcast-live/internal/model"
)

// PodcastReader lists archived podcasts.
type PodcastReader interface {
	List(ctx context.Context, categoryID *uint64, limit, offset int) ([]model.Podcast, error)
	GetByID(ctx context.Context, id uint64) (model.Podcast, error)
}

// CategoryLister lists categories.
type CategoryLister interface {
	List(ctx context.Context) ([]model.Category, error)
}

// CatalogHandler serves the read-only podcast and category endpoints.
type CatalogHandler struct {
	Podcasts   PodcastReader
	Categories CategoryLister
}

func NewCatalogHandler(p PodcastReader, c CategoryLister) *CatalogHandler {
	return &CatalogHandler{Podcasts: p, Categories: c}
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListPodcasts: GET /podcasts?category_id=&limit=&offset=
func (h *CatalogHandler) ListPodcasts(c echo.Context) error {
	var categoryID *uint64
	if s := c.QueryParam("category_id"); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid category_id"})
		}
		categoryID = &id
	}
	limit := queryInt(c, "limit", defaultPageSize)
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset := queryInt(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	items, err := h.Podcasts.List(ctx, categoryID, limit, offset)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "limit": limit, "offset": offset})
}

// GetPodcast: GET /podcasts/:id
func (h *CatalogHandler) GetPodcast(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	p, err := h.Podcasts.GetByID(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// ListCategories: GET /categories
func (h *CatalogHandler) ListCategories(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	items, err := h.Categories.List(ctx)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func queryInt(c echo.Context, key string, def int) int {
	n, err := strconv.Atoi(c.QueryParam(key))
	if err != nil {
		return def
	}
	return n
}
