package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/pacts/services"
	"github.com/cppla/pacts/utils"
)

// UserController serves public profiles and site statistics.
type UserController struct {
	pages *services.Pages
}

func NewUserController(pages *services.Pages) *UserController {
	return &UserController{pages: pages}
}

// GetProfile looks a user up by numeric id or username.
func (u *UserController) GetProfile(ctx *gin.Context) {
	prof, err := u.pages.Profile(ctx.Request.Context(), ctx.Param("key"))
	if err != nil {
		respondError(ctx, err, 40401)
		return
	}
	utils.Success(ctx, prof)
}

// GetStats returns row counts for users, pacts, check-ins and kudos.
func (u *UserController) GetStats(ctx *gin.Context) {
	st, err := u.pages.Stats(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err, 40400)
		return
	}
	utils.Success(ctx, st)
}
