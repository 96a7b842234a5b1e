package adminhandler

type BanBody struct {
	Reason string `json:"reason" binding:"required" example:"shill bidding"`
} // @name BanRequest

type UsersQuery struct {
	Banned bool `form:"banned"`
} // @name UsersQuery
