package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/okulov/libraria/internal/entities"
	"github.com/okulov/libraria/internal/services"
)

// IdempotencyKeyHeader carries the optional borrow dedupe key. A
// replayed key returns the loan created by the first attempt.
const IdempotencyKeyHeader = "Idempotency-Key"

// LoanManager defines the circulation operations the loans API needs.
type LoanManager interface {
	Borrow(bookID uint, actor services.Actor, idempotencyKey string) (*entities.Loan, error)
	Return(loanID uint, actor services.Actor) (*entities.Loan, error)
	ListForUser(userID uint, actor services.Actor) ([]entities.Loan, error)
	ListAll(actor services.Actor) ([]entities.Loan, error)
	ListOverdue(actor services.Actor) ([]entities.Loan, error)
}

type LoansController struct {
	service LoanManager
}

func NewLoansController(service LoanManager) *LoansController {
	return &LoansController{service: service}
}

type borrowRequest struct {
	BookID uint `json:"book_id" binding:"required"`
}

// Borrow takes one available copy of a book for the acting user.
// POST /api/loans/borrow
func (lc *LoansController) Borrow(c *gin.Context) {
	var req borrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "book_id is required")
		return
	}

	loan, err := lc.service.Borrow(req.BookID, currentActor(c), c.GetHeader(IdempotencyKeyHeader))
	if err != nil {
		respondDomainError(c, err, "borrow")
		return
	}

	respondCreated(c, loan)
}

// Return closes a loan and puts the copy back on the shelf.
// POST /api/loans/return/:id
func (lc *LoansController) Return(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	loan, err := lc.service.Return(id, currentActor(c))
	if err != nil {
		respondDomainError(c, err, "return")
		return
	}

	c.JSON(http.StatusOK, loan)
}

// ListUserLoans lists a user's loans. Patrons may only list their own.
// GET /api/loans/user/:userId
func (lc *LoansController) ListUserLoans(c *gin.Context) {
	userID, ok := parseIDParam(c, "userId")
	if !ok {
		return
	}

	list, err := lc.service.ListForUser(userID, currentActor(c))
	if err != nil {
		respondDomainError(c, err, "list user loans")
		return
	}

	c.JSON(http.StatusOK, list)
}

// ListAllLoans lists every loan. Admin only.
// GET /api/loans
func (lc *LoansController) ListAllLoans(c *gin.Context) {
	list, err := lc.service.ListAll(currentActor(c))
	if err != nil {
		respondDomainError(c, err, "list all loans")
		return
	}

	c.JSON(http.StatusOK, list)
}

// ListOverdueLoans lists active loans past their due date. Admin only.
// GET /api/loans/overdue
func (lc *LoansController) ListOverdueLoans(c *gin.Context) {
	list, err := lc.service.ListOverdue(currentActor(c))
	if err != nil {
		respondDomainError(c, err, "list overdue loans")
		return
	}

	c.JSON(http.StatusOK, list)
}
