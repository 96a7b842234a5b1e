package auctionhandler

type PlaceBidBody struct {
	Amount int64 `json:"amount" binding:"required,gt=0" example:"110"`
} // @name PlaceBidRequest

type ListAuctionsQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=active finished"`
} // @name ListAuctionsQuery

type WinnersQuery struct {
	Limit int `form:"limit,default=10" binding:"gte=0,lte=100"`
} // @name WinnersQuery

type WatchResponse struct {
	AuctionID string `json:"auctionId"`
	Watching  bool   `json:"watching"`
} // @name WatchResponse
