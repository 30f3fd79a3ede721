package controllers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cppla/pacts/middleware"
	"github.com/cppla/pacts/services"
	"github.com/cppla/pacts/utils"
)

// KudoController exposes the kudo toggle.
type KudoController struct {
	kudos *services.KudoService
}

func NewKudoController(kudos *services.KudoService) *KudoController {
	return &KudoController{kudos: kudos}
}

// ToggleKudo flips the caller's kudo on a check-in and returns the server state.
// pact_id may come from the JSON body or the query string.
func (k *KudoController) ToggleKudo(ctx *gin.Context) {
	checkInID, ok := parseID(ctx, "id")
	if !ok {
		return
	}

	var req struct {
		PactID uint `json:"pact_id"`
	}
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
			return
		}
	}
	if req.PactID == 0 {
		if raw := ctx.Query("pact_id"); raw != "" {
			n, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				utils.Error(ctx, http.StatusBadRequest, 40001, "invalid pact_id")
				return
			}
			req.PactID = uint(n)
		}
	}

	res, err := k.kudos.Toggle(ctx.Request.Context(), middleware.IdentityFrom(ctx), checkInID, req.PactID)
	if err != nil {
		respondError(ctx, err, 40403)
		return
	}
	utils.Success(ctx, res)
}
