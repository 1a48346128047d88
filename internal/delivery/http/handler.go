package http

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/strdr1/telegram-bot-api-sub001/internal/domain"
	"github.com/strdr1/telegram-bot-api-sub001/internal/usecase"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	menus *usecase.MenuService
}

// NewHandler creates a new HTTP handler
func NewHandler(menus *usecase.MenuService) *Handler {
	return &Handler{menus: menus}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "menubot",
		"version": "1.0.0",
	})
}

// available writes 503 when no menu service is wired
func (h *Handler) available(c *gin.Context) bool {
	if h.menus == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "menu service not configured",
		})
		return false
	}
	return true
}

// GetStatus reports the state of both snapshots
func (h *Handler) GetStatus(c *gin.Context) {
	if !h.available(c) {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"snapshots":     h.menus.Status(),
		"generation":    h.menus.Generation(),
		"breakfastOpen": h.menus.BreakfastOpen(),
	})
}

// ListCategories lists every category visible to the resolvers
func (h *Handler) ListCategories(c *gin.Context) {
	if !h.available(c) {
		return
	}
	categories := h.menus.Categories(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"categories": categories,
		"count":      len(categories),
	})
}

// ResolveCategory maps the q parameter to a category
func (h *Handler) ResolveCategory(c *gin.Context) {
	if !h.available(c) {
		return
	}
	query, ok := requireQuery(c)
	if !ok {
		return
	}

	result, err := h.menus.ResolveCategory(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"result": result,
		"text":   usecase.RenderMatch(result, h.menus.DishLimit()),
	})
}

// SearchDishes finds items whose name or description contains every keyword
func (h *Handler) SearchDishes(c *gin.Context) {
	if !h.available(c) {
		return
	}
	query, ok := requireQuery(c)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "limit must be a non-negative integer",
			})
			return
		}
		limit = n
	}

	items, total, err := h.menus.SearchDishes(c.Request.Context(), query, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if items == nil {
		items = []domain.Item{}
	}
	c.JSON(http.StatusOK, gin.H{
		"query": query,
		"items": items,
		"total": total,
		"text":  usecase.RenderDishes(query, items, len(items)),
	})
}

// GetAIContext returns the menu text handed to the language model
func (h *Handler) GetAIContext(c *gin.Context) {
	if !h.available(c) {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"context": h.menus.AIContext(c.Request.Context()),
	})
}

// RefreshMenus reloads both snapshots. force=true ignores freshness.
func (h *Handler) RefreshMenus(c *gin.Context) {
	if !h.available(c) {
		return
	}
	force := false
	if raw := c.Query("force"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "force must be a boolean",
			})
			return
		}
		force = parsed
	}

	reports, err := h.menus.Refresh(c.Request.Context(), force)
	if reports == nil {
		reports = []*domain.RefreshReport{}
	}
	if err != nil {
		log.Printf("[HTTP] Refresh failed: %v", err)
		c.JSON(statusFor(err), gin.H{
			"error":   err.Error(),
			"reports": reports,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"reports":    reports,
		"generation": h.menus.Generation(),
	})
}

// ClearCache drops the delivery snapshot
func (h *Handler) ClearCache(c *gin.Context) {
	if !h.available(c) {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"cleared": h.menus.Clear(),
	})
}

func requireQuery(c *gin.Context) (string, bool) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "query parameter 'q' is required",
		})
		return "", false
	}
	return query, true
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("[HTTP] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{
		"error": err.Error(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSourceUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
