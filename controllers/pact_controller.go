package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cppla/pacts/middleware"
	"github.com/cppla/pacts/services"
	"github.com/cppla/pacts/utils"
)

// PactController manages pacts, their check-ins and the public feed.
type PactController struct {
	pacts *services.PactService
	pages *services.Pages
}

// NewPactController creates a new PactController instance.
func NewPactController(pacts *services.PactService, pages *services.Pages) *PactController {
	return &PactController{pacts: pacts, pages: pages}
}

// tagList accepts either "a, b" or ["a", "b"].
type tagList []string

func (t *tagList) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*t = tagList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*t = many
	return nil
}

// CreatePact allows authenticated users to publish a new pact.
func (p *PactController) CreatePact(ctx *gin.Context) {
	var req struct {
		Title       string  `json:"title"`
		Description string  `json:"description"`
		Deadline    string  `json:"deadline"`
		Tags        tagList `json:"tags"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}

	pact, err := p.pacts.CreatePact(ctx.Request.Context(), middleware.IdentityFrom(ctx), services.NewPact{
		Title:       req.Title,
		Description: req.Description,
		Deadline:    req.Deadline,
		Tags:        req.Tags,
	})
	if err != nil {
		respondError(ctx, err, 40402)
		return
	}
	utils.Created(ctx, gin.H{
		"id":          pact.ID,
		"title":       pact.Title,
		"description": pact.Description,
		"deadline":    pact.Deadline,
		"tags":        pact.TagList(),
		"created_at":  pact.CreatedAt,
	})
}

// GetPact renders the pact page for the (possibly anonymous) viewer.
func (p *PactController) GetPact(ctx *gin.Context) {
	pactID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	page, err := p.pages.PactPage(ctx.Request.Context(), pactID, middleware.IdentityFrom(ctx))
	if err != nil {
		respondError(ctx, err, 40402)
		return
	}
	utils.Success(ctx, page)
}

// CompletePact lets the author mark their pact as done.
func (p *PactController) CompletePact(ctx *gin.Context) {
	pactID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	pact, err := p.pacts.CompletePact(ctx.Request.Context(), middleware.IdentityFrom(ctx), pactID)
	if err != nil {
		respondError(ctx, err, 40402)
		return
	}
	utils.Success(ctx, gin.H{
		"id":           pact.ID,
		"is_completed": pact.IsCompleted,
		"completed_at": pact.CompletedAt,
	})
}

// CreateCheckIn posts a progress update on the caller's pact.
func (p *PactController) CreateCheckIn(ctx *gin.Context) {
	pactID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		Content  string `json:"content"`
		Status   string `json:"status"`
		ImageURL string `json:"image_url"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}
	ci, err := p.pacts.CreateCheckIn(ctx.Request.Context(), middleware.IdentityFrom(ctx), pactID, services.NewCheckIn{
		Content:  req.Content,
		Status:   req.Status,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		respondError(ctx, err, 40402)
		return
	}
	utils.Created(ctx, ci)
}

// Feed lists the most recent check-ins across all pacts.
func (p *PactController) Feed(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", strconv.Itoa(services.DefaultFeedLimit)))
	items, err := p.pages.Feed(ctx.Request.Context(), limit, middleware.IdentityFrom(ctx))
	if err != nil {
		respondError(ctx, err, 40400)
		return
	}
	utils.Success(ctx, gin.H{"check_ins": items})
}
