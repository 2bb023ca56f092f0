package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/propline/dealdesk-backend/internal/middleware"
)

// RegisterRoutes sets up all API routes
func RegisterRoutes(
	e *echo.Echo,
	authMiddleware *middleware.AuthMiddleware,
	rateLimiter *middleware.RateLimiter,
	calculatorHandler *CalculatorHandler,
	dealHandler *DealHandler,
	planHandler *PaymentPlanHandler,
	blockHandler *BlockHandler,
	reservationHandler *ReservationHandler,
	contractHandler *ContractHandler,
	policyHandler *PolicyHandler,
	notificationHandler *NotificationHandler,
) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// API version 1, all routes protected
	api := e.Group("/api/v1")
	api.Use(authMiddleware.Authenticate())
	api.Use(rateLimiter.Middleware())

	// Calculator routes
	api.POST("/calculate", calculatorHandler.Calculate)
	api.POST("/generate-plan", calculatorHandler.GeneratePlan)

	// Deal routes
	deals := api.Group("/deals")
	deals.POST("", dealHandler.CreateDeal)
	deals.GET("", dealHandler.ListDeals)
	deals.GET("/:id", dealHandler.GetDeal)
	deals.GET("/:id/history", dealHandler.GetDealHistory)
	deals.GET("/:id/payment-plans", planHandler.ListPlansByDeal)

	// Payment plan routes
	plans := api.Group("/payment-plans")
	plans.POST("", planHandler.CreatePlan)
	plans.GET("/queue", planHandler.GetQueue)
	plans.GET("/:id", planHandler.GetPlan)
	plans.GET("/:id/history", planHandler.GetPlanHistory)
	plans.PATCH("/:id/approve", planHandler.ApprovePlan)
	plans.PATCH("/:id/reject", planHandler.RejectPlan)
	plans.PATCH("/:id/mark-accepted", planHandler.MarkAccepted)

	// Block routes
	blocks := api.Group("/blocks")
	blocks.POST("/request", blockHandler.RequestBlock)
	blocks.GET("", blockHandler.ListBlocks)
	blocks.GET("/:id", blockHandler.GetBlock)
	blocks.GET("/:id/history", blockHandler.GetBlockHistory)
	blocks.PATCH("/:id/approve", blockHandler.ApproveBlock)
	blocks.PATCH("/:id/reject", blockHandler.RejectBlock)
	blocks.PATCH("/:id/override/:action", blockHandler.OverrideBlock)
	blocks.PATCH("/:id/extend", blockHandler.ExtendBlock)
	blocks.PATCH("/:id/cancel", blockHandler.CancelBlock)

	// Reservation form routes
	forms := api.Group("/reservation-forms")
	forms.POST("", reservationHandler.CreateReservation)
	forms.GET("", reservationHandler.ListReservations)
	forms.GET("/:id", reservationHandler.GetReservation)
	forms.GET("/:id/history", reservationHandler.GetReservationHistory)
	forms.PATCH("/:id/approve", reservationHandler.ApproveReservation)
	forms.PATCH("/:id/reject", reservationHandler.RejectReservation)
	forms.PATCH("/:id/cancel", reservationHandler.CancelReservation)
	forms.PATCH("/:id/request-amendment", reservationHandler.RequestAmendment)
	forms.PATCH("/:id/approve-amendment", reservationHandler.ApproveAmendment)
	forms.PATCH("/:id/reject-amendment", reservationHandler.RejectAmendment)

	// Contract routes
	contracts := api.Group("/contracts")
	contracts.POST("", contractHandler.CreateContract)
	contracts.GET("", contractHandler.ListContracts)
	contracts.GET("/:id", contractHandler.GetContract)
	contracts.GET("/:id/history", contractHandler.GetContractHistory)
	contracts.GET("/:id/document", contractHandler.GetContractDocument)
	contracts.POST("/:id/document", contractHandler.ArchiveContractDocument)
	contracts.PATCH("/:id/settings", contractHandler.UpdateSettings)
	contracts.PATCH("/:id/lock-settings", contractHandler.LockSettings)
	contracts.PATCH("/:id/submit", contractHandler.SubmitContract)
	contracts.PATCH("/:id/approve", contractHandler.ApproveContract)
	contracts.PATCH("/:id/reject", contractHandler.RejectContract)
	contracts.PATCH("/:id/execute", contractHandler.ExecuteContract)

	// Policy routes
	api.GET("/policy", policyHandler.GetPolicy)
	api.PUT("/policy", policyHandler.UpdatePolicy)

	// Notification stream
	api.GET("/notifications/stream", notificationHandler.Stream)
}
