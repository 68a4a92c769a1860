package http

import (
	"github.com/gin-gonic/gin"

	"github.com/okulov/libraria/internal/auth"
	"github.com/okulov/libraria/internal/entities"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Apply security headers to all responses
	router.Use(auth.SecurityHeadersMiddleware())

	// CSRF must run before session so that session context is preserved
	if len(cfg.CSRFSecret) > 0 {
		router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.SecureCookies, cfg.AuthService))
	}

	// Session runs after CSRF so session context isn't overwritten by
	// CSRF's request replacement
	if cfg.SessionManager != nil {
		router.Use(cfg.SessionManager.SessionLoadSave())
	}

	if cfg.AuthMiddleware != nil {
		router.Use(cfg.AuthMiddleware.Handler())
	} else {
		// No auth - inject default user ID
		router.Use(func(c *gin.Context) {
			c.Set(auth.ContextKeyUserID, auth.DefaultUserID)
			c.Set(auth.ContextKeyAuthType, auth.AuthTypeNone)
			c.Next()
		})
	}

	// adminOnly guards librarian-facing routes; a no-op when auth is off
	adminOnly := func(c *gin.Context) { c.Next() }
	if cfg.AuthMiddleware != nil {
		adminOnly = cfg.AuthMiddleware.RequireRole(entities.UserRoleAdmin)
	}

	// Auth routes
	if cfg.AuthService != nil && cfg.AuthService.IsAuthEnabled() {
		authController := auth.NewController(cfg.AuthService, cfg.SessionManager)
		authController.RegisterRoutes(router)
	}

	health := NewHealthController(cfg.Database, cfg.Version)
	booksController := NewBooksController(cfg.BookStore)
	loansController := NewLoansController(cfg.LoanService)

	// Health endpoints
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// Books API endpoints
	router.GET("/api/books", booksController.GetAllBooks)
	router.GET("/api/books/:id", booksController.GetBook)
	router.POST("/api/books", adminOnly, booksController.CreateBook)
	router.PUT("/api/books/:id", adminOnly, booksController.UpdateBook)
	router.DELETE("/api/books/:id", adminOnly, booksController.DeleteBook)
	router.GET("/api/stats/summary", booksController.GetStatsSummary)

	// Loans API endpoints. Ownership checks live in the loan service;
	// the router only gates the admin-wide listings.
	router.POST("/api/loans/borrow", loansController.Borrow)
	router.POST("/api/loans/return/:id", loansController.Return)
	router.GET("/api/loans/user/:userId", loansController.ListUserLoans)
	router.GET("/api/loans", loansController.ListAllLoans)
	router.GET("/api/loans/overdue", loansController.ListOverdueLoans)

	// User endpoints
	if cfg.AuthService != nil {
		usersController := NewUsersController(cfg.AuthService)
		router.GET("/api/me", usersController.Me)
		router.GET("/api/users", adminOnly, usersController.ListUsers)
	}

	return router
}
