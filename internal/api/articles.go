package api

import (
	"cmp"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"ArticleDesk/internal/domain"
)

type createRequest struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

type patchRequest struct {
	Status       *domain.Status `json:"status"`
	Priority     *string        `json:"priority"`
	Notes        *string        `json:"notes"`
	ArticleTitle *string        `json:"article_title"`
	Date         *string        `json:"date"`
}

type reanalyzeRequest struct {
	Text string `json:"text"`
}

type askRequest struct {
	Question string `json:"question"`
}

// listArticles handles GET /articles?status=&sort=&order=&all=
func (h *handler) listArticles(c *gin.Context) {
	var articles []domain.Article
	if c.Query("all") == "true" {
		articles = h.deps.Store.GetAll()
	} else {
		articles = h.deps.Store.GetActive()
	}

	if statuses := queryList(c, "status"); len(statuses) > 0 {
		articles = slices.DeleteFunc(articles, func(a domain.Article) bool {
			return !slices.Contains(statuses, string(a.Status))
		})
	}

	less, ok := sorters[c.DefaultQuery("sort", "added")]
	if !ok {
		badRequest(c, "sort must be one of: added, fraud, title, date, status")
		return
	}
	desc := c.DefaultQuery("order", "desc") != "asc"
	slices.SortStableFunc(articles, func(a, b domain.Article) int {
		if desc {
			return less(b, a)
		}
		return less(a, b)
	})

	c.JSON(http.StatusOK, gin.H{"articles": articles, "count": len(articles)})
}

var sorters = map[string]func(a, b domain.Article) int{
	"added": func(a, b domain.Article) int { return a.AddedAt.Compare(b.AddedAt) },
	"fraud": func(a, b domain.Article) int { return cmp.Compare(a.FraudIndicator.Rank(), b.FraudIndicator.Rank()) },
	"title": func(a, b domain.Article) int {
		return strings.Compare(strings.ToLower(a.Title()), strings.ToLower(b.Title()))
	},
	"date":   func(a, b domain.Article) int { return strings.Compare(a.Date, b.Date) },
	"status": func(a, b domain.Article) int { return strings.Compare(string(a.Status), string(b.Status)) },
}

// queryList accepts both repeated keys and comma separated values.
func queryList(c *gin.Context, key string) []string {
	var out []string
	for _, raw := range c.QueryArray(key) {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func (h *handler) getArticle(c *gin.Context) {
	article, ok := h.deps.Store.Get(c.Param("id"))
	if !ok {
		h.fail(c, domain.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, article)
}

// createArticle handles POST /articles with either {url} or {text}.
func (h *handler) createArticle(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}

	ctx, cancel := h.remoteContext(c)
	defer cancel()

	var (
		article domain.Article
		err     error
	)
	switch {
	case strings.TrimSpace(req.URL) != "":
		article, err = h.deps.Reviewer.SubmitURL(ctx, req.URL)
	case strings.TrimSpace(req.Text) != "":
		article, err = h.deps.Reviewer.SubmitText(ctx, req.Text)
	default:
		badRequest(c, "url or text is required")
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, article)
}

func (h *handler) patchArticle(c *gin.Context) {
	var req patchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	if req.Status != nil && !req.Status.Valid() {
		badRequest(c, "unknown status "+string(*req.Status))
		return
	}

	patch := domain.ArticlePatch{
		Status:       req.Status,
		Priority:     req.Priority,
		Notes:        req.Notes,
		ArticleTitle: req.ArticleTitle,
		Date:         req.Date,
	}
	if patch.Empty() {
		badRequest(c, "nothing to update")
		return
	}

	id := c.Param("id")
	ok, err := h.deps.Store.Update(c.Request.Context(), id, patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !ok {
		h.fail(c, domain.ErrNotFound)
		return
	}
	updated, _ := h.deps.Store.Get(id)
	c.JSON(http.StatusOK, updated)
}

// deleteArticle handles DELETE /articles/:id?mode=soft|hard|purge.
func (h *handler) deleteArticle(c *gin.Context) {
	remove := map[string]func(*gin.Context, string) (bool, error){
		"soft": func(c *gin.Context, id string) (bool, error) {
			return h.deps.Store.SoftDelete(c.Request.Context(), id)
		},
		"hard": func(c *gin.Context, id string) (bool, error) {
			return h.deps.Store.HardDelete(c.Request.Context(), id)
		},
		"purge": func(c *gin.Context, id string) (bool, error) {
			return h.deps.Store.Purge(c.Request.Context(), id)
		},
	}

	mode := c.DefaultQuery("mode", "soft")
	fn, known := remove[mode]
	if !known {
		badRequest(c, "mode must be one of: soft, hard, purge")
		return
	}

	ok, err := fn(c, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if !ok {
		h.fail(c, domain.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id"), "mode": mode})
}

// reanalyze handles POST /articles/:id/reanalyze with an optional {text}.
func (h *handler) reanalyze(c *gin.Context) {
	var req reanalyzeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid JSON body")
			return
		}
	}

	ctx, cancel := h.remoteContext(c)
	defer cancel()

	var (
		article domain.Article
		err     error
	)
	if strings.TrimSpace(req.Text) != "" {
		article, err = h.deps.Reviewer.ReanalyzeText(ctx, c.Param("id"), req.Text)
	} else {
		article, err = h.deps.Reviewer.Reanalyze(ctx, c.Param("id"))
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, article)
}

func (h *handler) ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}

	ctx, cancel := h.remoteContext(c)
	defer cancel()

	turn, err := h.deps.Reviewer.Ask(ctx, c.Param("id"), req.Question)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, turn)
}

func (h *handler) groupArticles(c *gin.Context) {
	ctx, cancel := h.remoteContext(c)
	defer cancel()

	groups, err := h.deps.Reviewer.GroupArticles(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

func (h *handler) personOverview(c *gin.Context) {
	ctx, cancel := h.remoteContext(c)
	defer cancel()

	person := c.Param("name")
	overview, err := h.deps.Reviewer.PersonOverview(ctx, c.Param("id"), person)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"person": person, "overview": overview})
}
