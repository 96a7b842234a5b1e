// Package adminhandler serves the back-office routes. Every route expects
// middleware.Auth and middleware.RequireAdmin in front of it.
package adminhandler

import (
	"net/http"

	"livebid/internal/http/httperr"
	"livebid/internal/http/middleware"
	"livebid/internal/services/auction"
	"livebid/internal/services/user"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	auctions auction.IAuctionService
	users    user.IUserService
}

func New(auctions auction.IAuctionService, users user.IUserService) *Handler {
	return &Handler{auctions: auctions, users: users}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/admin/auctions", h.createAuction)
	r.DELETE("/admin/auctions/:id", h.deleteAuction)
	r.POST("/admin/auctions/:id/stop", h.stopAuction)
	r.GET("/admin/users", h.listUsers)
	r.POST("/admin/users/:id/ban", h.ban)
	r.POST("/admin/users/:id/unban", h.unban)
	r.GET("/admin/stats", h.stats)
	r.GET("/admin/export/:type", h.export)
}

// @Summary		Create an auction
// @Tags			Admin
// @Security		BearerAuth
// @Param			body	body		auction.CreateRequest	true	"Auction"
// @Success		201		{object}	domain.Auction
// @Failure		422		{object}	httperr.ErrorResponse
// @Router			/admin/auctions [post]
func (h *Handler) createAuction(c *gin.Context) {
	var req auction.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, err)
		return
	}
	admin, _ := middleware.CurrentUser(c)
	a, err := h.auctions.Create(c.Request.Context(), admin, req)
	if err != nil {
		httperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// @Summary		Delete an auction
// @Description	Removes the auction with its bids and stops its clock.
// @Tags			Admin
// @Security		BearerAuth
// @Param			id	path	string	true	"Auction ID"
// @Success		204
// @Failure		404	{object}	httperr.ErrorResponse
// @Router			/admin/auctions/{id} [delete]
func (h *Handler) deleteAuction(c *gin.Context) {
	if err := h.auctions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		httperr.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary		Stop an auction
// @Description	Closes a running auction now; the last bidder wins.
// @Tags			Admin
// @Security		BearerAuth
// @Param			id	path	string	true	"Auction ID"
// @Success		202
// @Failure		422	{object}	httperr.ErrorResponse
// @Router			/admin/auctions/{id}/stop [post]
func (h *Handler) stopAuction(c *gin.Context) {
	if err := h.auctions.Stop(c.Request.Context(), c.Param("id")); err != nil {
		httperr.Abort(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// @Summary		List users
// @Tags			Admin
// @Security		BearerAuth
// @Param			banned	query	bool	false	"Only banned users"
// @Success		200		{array}	domain.User
// @Router			/admin/users [get]
func (h *Handler) listUsers(c *gin.Context) {
	var q UsersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httperr.BadRequest(c, err)
		return
	}
	out, err := h.users.List(c.Request.Context(), q.Banned)
	if err != nil {
		httperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary		Ban a user
// @Tags			Admin
// @Security		BearerAuth
// @Param			id		path	string	true	"User ID"
// @Param			body	body	BanBody	true	"Reason"
// @Success		204
// @Failure		403	{object}	httperr.ErrorResponse
// @Failure		404	{object}	httperr.ErrorResponse
// @Router			/admin/users/{id}/ban [post]
func (h *Handler) ban(c *gin.Context) {
	var body BanBody
	if err := c.ShouldBindJSON(&body); err != nil {
		httperr.BadRequest(c, err)
		return
	}
	admin, _ := middleware.CurrentUser(c)
	if err := h.users.Ban(c.Request.Context(), admin, c.Param("id"), body.Reason); err != nil {
		httperr.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary		Unban a user
// @Tags			Admin
// @Security		BearerAuth
// @Param			id	path	string	true	"User ID"
// @Success		204
// @Failure		404	{object}	httperr.ErrorResponse
// @Router			/admin/users/{id}/unban [post]
func (h *Handler) unban(c *gin.Context) {
	if err := h.users.Unban(c.Request.Context(), c.Param("id")); err != nil {
		httperr.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary		Platform statistics
// @Tags			Admin
// @Security		BearerAuth
// @Success		200	{object}	domain.Stats
// @Router			/admin/stats [get]
func (h *Handler) stats(c *gin.Context) {
	st, err := h.users.Stats(c.Request.Context())
	if err != nil {
		httperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary		Export data
// @Description	Downloads every auction or every user as JSON.
// @Tags			Admin
// @Security		BearerAuth
// @Param			type	path	string	true	"What to export"	Enums(auctions,users)
// @Success		200
// @Failure		422	{object}	httperr.ErrorResponse
// @Router			/admin/export/{type} [get]
func (h *Handler) export(c *gin.Context) {
	kind := c.Param("type")
	out, err := h.users.Export(c.Request.Context(), kind)
	if err != nil {
		httperr.Abort(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+kind+`.json"`)
	c.JSON(http.StatusOK, out)
}
