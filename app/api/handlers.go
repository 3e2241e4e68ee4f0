package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmelnik/newswire/app/database"
	"github.com/dmelnik/newswire/app/sources"
)

func NewHandler(items database.ItemStore, registry *sources.Registry,
	trigger RunTrigger, db Pinger) *Handler {
	return &Handler{
		items:    items,
		registry: registry,
		trigger:  trigger,
		db:       db,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"sources":   h.registry.Count(),
	}

	if err := h.db.Ping(); err != nil {
		slog.Error("Health check database ping failed", "error", err)
		health["database"] = "unreachable"
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}
	health["database"] = "ok"

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"sources": h.registry.Count(),
	}

	items := map[string]interface{}{}
	for _, kind := range []sources.Kind{sources.KindArticle, sources.KindVideo} {
		count, err := h.items.CountByKind(string(kind))
		if err != nil {
			slog.Error("Database error", "operation", "count_by_kind", "kind", kind, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}
		items[string(kind)] = count
	}
	stats["items"] = items

	if last := h.trigger.LastResult(); last != nil {
		stats["last_run"] = last
	}

	c.JSON(http.StatusOK, stats)
}

// TriggerRun starts a pipeline run unless one is already executing. The run
// happens inline: callers are automation, and they want the result.
func (h *Handler) TriggerRun(c *gin.Context) {
	result, ok := h.trigger.TriggerRun()
	if !ok {
		c.JSON(http.StatusConflict, gin.H{
			"error": "A run is already in progress",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}

func (h *Handler) ListSources(c *gin.Context) {
	srcs := h.registry.All()

	out := make([]map[string]interface{}, 0, len(srcs))
	for _, src := range srcs {
		out = append(out, map[string]interface{}{
			"name":     src.Name,
			"url":      src.URL,
			"kind":     src.Kind,
			"priority": src.Priority,
			"category": src.Category,
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"sources": out,
		"total":   len(out),
	})
}

func (h *Handler) GetLastRun(c *gin.Context) {
	last := h.trigger.LastResult()
	if last == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No run has completed yet"})
		return
	}

	c.JSON(http.StatusOK, last)
}
