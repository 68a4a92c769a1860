package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/okulov/libraria/internal/auth"
	"github.com/okulov/libraria/internal/entities"
)

// UserStore defines the user lookups the users API needs.
type UserStore interface {
	GetUserByID(id uint) (*entities.User, error)
	ListUsers() ([]entities.User, error)
}

type UsersController struct {
	store UserStore
}

func NewUsersController(store UserStore) *UsersController {
	return &UsersController{store: store}
}

// Me returns the authenticated user's profile.
// GET /api/me
func (uc *UsersController) Me(c *gin.Context) {
	userID := auth.GetUserID(c)
	if userID == 0 {
		c.JSON(http.StatusOK, gin.H{
			"id":   0,
			"role": auth.GetUserRole(c),
		})
		return
	}

	user, err := uc.store.GetUserByID(userID)
	if err != nil {
		respondInternalError(c, err, "get profile")
		return
	}

	c.JSON(http.StatusOK, user)
}

// ListUsers lists all registered users. Admin only (enforced at the
// router).
// GET /api/users
func (uc *UsersController) ListUsers(c *gin.Context) {
	users, err := uc.store.ListUsers()
	if err != nil {
		respondInternalError(c, err, "list users")
		return
	}

	c.JSON(http.StatusOK, users)
}
