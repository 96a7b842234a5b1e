package userhandler

import (
	"net/http"

	"livebid/internal/http/httperr"
	"livebid/internal/http/middleware"
	"livebid/internal/services/user"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc user.IUserService
}

func New(svc user.IUserService) *Handler { return &Handler{svc: svc} }

func (h *Handler) Register(public, authed gin.IRoutes) {
	public.POST("/auth/login", h.login)
	authed.GET("/me", h.me)
}

// @Summary		Sign in
// @Description	Signs in by phone, registering the account on first use. Repeated failures lock the phone out for a while.
// @Tags			Auth
// @Param			body	body		user.LoginRequest	true	"Credentials"
// @Success		200		{object}	user.Session
// @Failure		401		{object}	httperr.ErrorResponse
// @Failure		422		{object}	httperr.ErrorResponse
// @Failure		429		{object}	httperr.ErrorResponse
// @Router			/auth/login [post]
func (h *Handler) login(c *gin.Context) {
	var req user.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, err)
		return
	}
	s, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		httperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// @Summary		Current user
// @Tags			Me
// @Security		BearerAuth
// @Success		200	{object}	domain.User
// @Failure		401	{object}	httperr.ErrorResponse
// @Router			/me [get]
func (h *Handler) me(c *gin.Context) {
	u, _ := middleware.CurrentUser(c)
	c.JSON(http.StatusOK, u)
}
