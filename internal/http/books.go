package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/okulov/libraria/internal/database/books"
	"github.com/okulov/libraria/internal/entities"
)

// BookStore defines the inventory operations the books API needs.
type BookStore interface {
	Create(book *entities.Book) error
	GetByID(id uint) (*entities.Book, error)
	List(opts books.ListOptions) ([]entities.Book, error)
	Update(id uint, book *entities.Book) (*entities.Book, error)
	UpdateCopyCount(id uint, newTotal int) (*entities.Book, error)
	Delete(id uint) error
	GetSummary() (*books.Summary, error)
}

type BooksController struct {
	store BookStore
}

func NewBooksController(store BookStore) *BooksController {
	return &BooksController{store: store}
}

type bookRequest struct {
	Title         string `json:"title"`
	Author        string `json:"author"`
	ISBN          string `json:"isbn"`
	PublishedYear int    `json:"published_year"`
	Category      string `json:"category"`
	Description   string `json:"description"`
	TotalCopies   *int   `json:"total_copies"`
}

// CreateBook registers a new title in the catalog.
// POST /api/books
func (bc *BooksController) CreateBook(c *gin.Context) {
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	totalCopies := 1
	if req.TotalCopies != nil {
		totalCopies = *req.TotalCopies
	}

	book := &entities.Book{
		Title:         req.Title,
		Author:        req.Author,
		ISBN:          req.ISBN,
		PublishedYear: req.PublishedYear,
		Category:      req.Category,
		Description:   req.Description,
		TotalCopies:   totalCopies,
	}

	if err := bc.store.Create(book); err != nil {
		respondDomainError(c, err, "create book")
		return
	}

	respondCreated(c, book)
}

// GetAllBooks lists the catalog with optional search, filters and sort.
// GET /api/books
func (bc *BooksController) GetAllBooks(c *gin.Context) {
	opts := books.ListOptions{
		Search:   c.Query("search"),
		Category: c.Query("category"),
		Author:   c.Query("author"),
		Sort:     c.Query("sort"),
	}

	list, err := bc.store.List(opts)
	if err != nil {
		respondInternalError(c, err, "list books")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count": len(list),
		"data":  list,
	})
}

// GetBook fetches a single book.
// GET /api/books/:id
func (bc *BooksController) GetBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	book, err := bc.store.GetByID(id)
	if err != nil {
		respondDomainError(c, err, "get book")
		return
	}

	c.JSON(http.StatusOK, book)
}

// UpdateBook replaces a book's catalog metadata, and adjusts the copy
// count when total_copies is supplied.
// PUT /api/books/:id
func (bc *BooksController) UpdateBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	book, err := bc.store.Update(id, &entities.Book{
		Title:         req.Title,
		Author:        req.Author,
		ISBN:          req.ISBN,
		PublishedYear: req.PublishedYear,
		Category:      req.Category,
		Description:   req.Description,
	})
	if err != nil {
		respondDomainError(c, err, "update book")
		return
	}

	if req.TotalCopies != nil {
		book, err = bc.store.UpdateCopyCount(id, *req.TotalCopies)
		if err != nil {
			respondDomainError(c, err, "update copy count")
			return
		}
	}

	c.JSON(http.StatusOK, book)
}

// DeleteBook removes a title from the catalog. Refused while active
// loans reference it.
// DELETE /api/books/:id
func (bc *BooksController) DeleteBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := bc.store.Delete(id); err != nil {
		respondDomainError(c, err, "delete book")
		return
	}

	respondSuccess(c, "book deleted")
}

// GetStatsSummary returns catalog-wide statistics.
// GET /api/stats/summary
func (bc *BooksController) GetStatsSummary(c *gin.Context) {
	summary, err := bc.store.GetSummary()
	if err != nil {
		respondInternalError(c, err, "stats summary")
		return
	}

	c.JSON(http.StatusOK, summary)
}
