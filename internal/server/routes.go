package server

import (
	"github.com/labstack/echo/v4"

	"example.com/finance-dashboard/internal/handlers"
)

func registerRoutes(
	e *echo.Echo,
	healthHandler *handlers.HealthHandler,
	authHandler *handlers.AuthHandler,
	syncHandler *handlers.SyncHandler,
	notificationHandler *handlers.NotificationHandler,
	settingsHandler *handlers.SettingsHandler,
	spendingHandler *handlers.SpendingHandler,
	budgetHandler *handlers.BudgetHandler,
	debtHandler *handlers.DebtHandler,
	sessionMiddleware echo.MiddlewareFunc,
	authRateLimiter echo.MiddlewareFunc,
) {
	e.GET("/health", healthHandler.Health)

	api := e.Group("/api/v1")
	api.POST("/auth/login", authHandler.Login, authRateLimiter)

	protected := api.Group("", sessionMiddleware)

	syncGroup := protected.Group("/sync")
	syncGroup.PUT("/token", syncHandler.SetToken)
	syncGroup.GET("/token", syncHandler.TokenStatus)
	syncGroup.POST("/accounts", syncHandler.SyncAccounts)
	syncGroup.POST("/accounts/:accountId/transactions", syncHandler.RetrieveTransactions)
	syncGroup.POST("/accounts/:accountId/incremental", syncHandler.IncrementalSync)
	syncGroup.GET("/accounts/:accountId/recent", syncHandler.RecentPull)
	syncGroup.POST("/refresh-all", syncHandler.RefreshAll)
	syncGroup.GET("/metrics", syncHandler.Metrics)
	syncGroup.DELETE("/metrics", syncHandler.ClearMetrics)
	syncGroup.GET("/progress", notificationHandler.Stream)

	protected.GET("/accounts", syncHandler.ListAccounts)

	settingsGroup := protected.Group("/settings")
	settingsGroup.GET("/monthly-cycle", settingsHandler.GetMonthlyCycle)
	settingsGroup.PUT("/monthly-cycle", settingsHandler.UpdateMonthlyCycle)
	settingsGroup.POST("/monthly-cycle/reset", settingsHandler.ResetMonthlyCycle)

	protected.GET("/periods", spendingHandler.ListPeriods)
	protected.GET("/transactions", spendingHandler.ListTransactions)

	spending := protected.Group("/spending")
	spending.GET("/categories", spendingHandler.Categories)
	spending.GET("/summary", spendingHandler.Summary)
	spending.GET("/chart", spendingHandler.Chart)

	budgets := protected.Group("/budgets")
	budgets.GET("", budgetHandler.List)
	budgets.POST("", budgetHandler.Create)
	budgets.GET("/suggestions", budgetHandler.Suggestions)
	budgets.GET("/:id", budgetHandler.Get)
	budgets.DELETE("/:id", budgetHandler.Delete)
	budgets.POST("/:id/categories", budgetHandler.AddCategory)
	protected.DELETE("/budget-categories/:categoryId", budgetHandler.DeleteCategory)

	debts := protected.Group("/debts")
	debts.GET("", debtHandler.List)
	debts.POST("", debtHandler.Create)
	debts.POST("/match", debtHandler.Match)
	debts.POST("/sync-balances", debtHandler.SyncBalances)
	debts.GET("/:id", debtHandler.Get)
	debts.DELETE("/:id", debtHandler.Delete)
	debts.GET("/:id/rules", debtHandler.ListRules)
	debts.POST("/:id/rules", debtHandler.CreateRule)
	debts.POST("/:id/payments", debtHandler.AddPayment)

	matches := protected.Group("/debt-matches")
	matches.GET("", debtHandler.ListMatches)
	matches.POST("/:id/confirm", debtHandler.ConfirmMatch)
	matches.POST("/:id/reject", debtHandler.RejectMatch)
}
