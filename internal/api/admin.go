package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ArticleDesk/internal/domain"
)

const (
	minFontSize = 10
	maxFontSize = 40
)

type fontSizeRequest struct {
	FontSize int `json:"font_size"`
}

type domainRequest struct {
	Domain string `json:"domain"`
	URL    string `json:"url"`
}

// sync handles POST /sync/:connector and always forces the cycle. The
// cycle keeps running if the client goes away.
func (h *handler) sync(c *gin.Context) {
	if h.deps.Syncer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sync is not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), h.deps.SyncTimeout)
	defer cancel()

	report, err := h.deps.Syncer.Sync(ctx, c.Param("connector"), true)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *handler) sheetStats(c *gin.Context) {
	if h.deps.Sheets == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "sheets connector is not configured"})
		return
	}
	c.JSON(http.StatusOK, h.deps.Sheets.LastStats())
}

func (h *handler) getPreferences(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Store.Preferences())
}

func (h *handler) putPreferences(c *gin.Context) {
	var req fontSizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	if req.FontSize < minFontSize || req.FontSize > maxFontSize {
		badRequest(c, "font_size must be between 10 and 40")
		return
	}
	if err := h.deps.Store.SetFontSize(req.FontSize); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.deps.Store.Preferences())
}

func (h *handler) blockDomain(c *gin.Context) {
	h.editBlockList(c, h.deps.Store.BlockDomain)
}

func (h *handler) unblockDomain(c *gin.Context) {
	h.editBlockList(c, h.deps.Store.UnblockDomain)
}

// editBlockList accepts either a bare domain or a URL whose host is used.
func (h *handler) editBlockList(c *gin.Context, edit func(string) (bool, error)) {
	var req domainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}

	name := strings.ToLower(strings.TrimSpace(req.Domain))
	if name == "" && req.URL != "" {
		name = domain.Domain(req.URL)
	}
	if name == "" {
		badRequest(c, "domain or url is required")
		return
	}

	changed, err := edit(name)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"domain":          name,
		"changed":         changed,
		"blocked_domains": h.deps.Store.Preferences().BlockedDomains,
	})
}

func (h *handler) clearAll(c *gin.Context) {
	if err := h.deps.Store.ClearAll(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}
