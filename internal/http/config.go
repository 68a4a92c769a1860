package http

import (
	"github.com/okulov/libraria/internal/auth"
	"github.com/okulov/libraria/internal/config"
	"github.com/okulov/libraria/internal/database"
)

// RouterConfig carries all dependencies for NewRouter, keeping the
// constructor signature stable as wiring grows.
type RouterConfig struct {
	Database *database.Database

	BookStore   BookStore
	LoanService LoanManager

	AuthService    *auth.Service
	AuthMiddleware *auth.Middleware
	SessionManager *auth.SessionManager
	AuthConfig     config.Auth
	CSRFSecret     []byte
	SecureCookies  bool

	Version string
}
