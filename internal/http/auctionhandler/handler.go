package auctionhandler

import (
	"net/http"

	"livebid/internal/domain"
	"livebid/internal/http/httperr"
	"livebid/internal/http/middleware"
	"livebid/internal/services/auction"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc auction.IAuctionService
}

func New(svc auction.IAuctionService) *Handler { return &Handler{svc: svc} }

// Register mounts the read-only routes on public and the bidder routes on
// authed, which must carry middleware.Auth.
func (h *Handler) Register(public, authed gin.IRoutes) {
	public.GET("/auctions", h.list)
	public.GET("/auctions/:id", h.info)
	public.GET("/winners", h.winners)

	authed.POST("/auctions/:id/bid", h.bid)
	authed.POST("/auctions/:id/watch", h.watch)
	authed.GET("/me/watchlist", h.watchlist)
	authed.GET("/me/bids", h.myBids)
}

// @Summary		Get auction details
// @Description	Returns one auction with its countdown, participants and next acceptable bid.
// @Tags			Auctions
// @Param			id	path		string	true	"Auction ID"
// @Success		200	{object}	auction.AuctionView
// @Failure		404	{object}	httperr.ErrorResponse
// @Router			/auctions/{id} [get]
func (h *Handler) info(c *gin.Context) {
	v, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// @Summary		List auctions
// @Description	Lists auctions, soonest deadline first, optionally filtered by status.
// @Tags			Auctions
// @Param			status	query		string	false	"Status filter"	Enums(active,finished)
// @Success		200		{array}		auction.AuctionView
// @Failure		400		{object}	httperr.ErrorResponse
// @Failure		503		{object}	httperr.ErrorResponse
// @Router			/auctions [get]
func (h *Handler) list(c *gin.Context) {
	var q ListAuctionsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httperr.BadRequest(c, err)
		return
	}
	out, err := h.svc.List(c.Request.Context(), domain.Status(q.Status))
	if err != nil {
		httperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary		Winners board
// @Description	Finished auctions that have a winner, latest first.
// @Tags			Auctions
// @Param			limit	query		int	false	"Max results"	minimum(0)	maximum(100)	default(10)
// @Success		200		{array}		domain.FinishedAuction
// @Router			/winners [get]
func (h *Handler) winners(c *gin.Context) {
	var q WinnersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httperr.BadRequest(c, err)
		return
	}
	out, err := h.svc.Winners(c.Request.Context(), q.Limit)
	if err != nil {
		httperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary		Place a bid
// @Description	Places a bid for the signed-in user. Rejections carry a reason code and the minimum acceptable bid.
// @Tags			Auctions
// @Security		BearerAuth
// @Param			id		path		string			true	"Auction ID"
// @Param			body	body		PlaceBidBody	true	"Bid payload"
// @Success		200		{object}	auction.BidReceipt
// @Failure		400		{object}	httperr.ErrorResponse
// @Failure		403		{object}	httperr.ErrorResponse
// @Failure		409		{object}	httperr.ErrorResponse
// @Failure		422		{object}	httperr.ErrorResponse
// @Failure		429		{object}	httperr.ErrorResponse
// @Router			/auctions/{id}/bid [post]
func (h *Handler) bid(c *gin.Context) {
	var body PlaceBidBody
	if err := c.ShouldBindJSON(&body); err != nil {
		httperr.BadRequest(c, err)
		return
	}
	u, _ := middleware.CurrentUser(c)

	r, err := h.svc.PlaceBid(c.Request.Context(), u.ID, c.Param("id"), body.Amount)
	if err != nil {
		httperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// @Summary		Toggle watch
// @Description	Adds the auction to the user's watchlist, or removes it when already watched.
// @Tags			Auctions
// @Security		BearerAuth
// @Param			id	path		string	true	"Auction ID"
// @Success		200	{object}	WatchResponse
// @Failure		404	{object}	httperr.ErrorResponse
// @Failure		429	{object}	httperr.ErrorResponse
// @Router			/auctions/{id}/watch [post]
func (h *Handler) watch(c *gin.Context) {
	u, _ := middleware.CurrentUser(c)
	id := c.Param("id")

	watching, err := h.svc.ToggleWatch(c.Request.Context(), u.ID, id)
	if err != nil {
		httperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, WatchResponse{AuctionID: id, Watching: watching})
}

// @Summary		My watchlist
// @Tags			Me
// @Security		BearerAuth
// @Success		200	{array}	auction.AuctionView
// @Router			/me/watchlist [get]
func (h *Handler) watchlist(c *gin.Context) {
	u, _ := middleware.CurrentUser(c)
	out, err := h.svc.Watchlist(c.Request.Context(), u.ID)
	if err != nil {
		httperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary		My bids
// @Description	Every bid of the signed-in user, newest first.
// @Tags			Me
// @Security		BearerAuth
// @Success		200	{array}	domain.UserBid
// @Router			/me/bids [get]
func (h *Handler) myBids(c *gin.Context) {
	u, _ := middleware.CurrentUser(c)
	out, err := h.svc.MyBids(c.Request.Context(), u.ID)
	if err != nil {
		httperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
