package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okulov/libraria/internal/database"
	"github.com/okulov/libraria/internal/database/books"
	"github.com/okulov/libraria/internal/entities"
)

func setupBooksTestDB(t *testing.T) (*database.Database, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dbPath := "./test_http_books_" + strings.ReplaceAll(t.Name(), "/", "_") + ".db"
	db, err := database.NewDatabase(dbPath)
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
		os.Remove(dbPath)
	}
	return db, cleanup
}

func newBooksRouter(db *database.Database) *gin.Engine {
	controller := NewBooksController(books.NewRepository(db.DB))
	router := gin.New()
	router.POST("/api/books", controller.CreateBook)
	router.GET("/api/books", controller.GetAllBooks)
	router.GET("/api/books/:id", controller.GetBook)
	router.PUT("/api/books/:id", controller.UpdateBook)
	router.DELETE("/api/books/:id", controller.DeleteBook)
	router.GET("/api/stats/summary", controller.GetStatsSummary)
	return router
}

func TestBooksController_CreateBook(t *testing.T) {
	t.Run("creates a book", func(t *testing.T) {
		db, cleanup := setupBooksTestDB(t)
		defer cleanup()

		router := newBooksRouter(db)

		body := `{"title":"Dune","author":"Frank Herbert","isbn":"978-0441172719","category":"Fiction","total_copies":4}`
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/books", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)

		var created entities.Book
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
		assert.Equal(t, "Dune", created.Title)
		assert.Equal(t, 4, created.TotalCopies)
		assert.Equal(t, 4, created.AvailableCopies)
	})

	t.Run("rejects invalid payload", func(t *testing.T) {
		db, cleanup := setupBooksTestDB(t)
		defer cleanup()

		router := newBooksRouter(db)

		body := `{"title":"x","author":"Frank Herbert","isbn":"978-0441172719"}`
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/books", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "validation_error", resp.Code)
	})

	t.Run("returns conflict on duplicate ISBN", func(t *testing.T) {
		db, cleanup := setupBooksTestDB(t)
		defer cleanup()

		router := newBooksRouter(db)

		body := `{"title":"Dune","author":"Frank Herbert","isbn":"978-0441172719"}`
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/books", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusCreated, w.Code)

		w = httptest.NewRecorder()
		req, _ = http.NewRequest("POST", "/api/books", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "conflict", resp.Code)
	})
}

func TestBooksController_GetBook(t *testing.T) {
	t.Run("returns 404 for unknown book", func(t *testing.T) {
		db, cleanup := setupBooksTestDB(t)
		defer cleanup()

		router := newBooksRouter(db)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/books/999", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("returns 400 for invalid ID", func(t *testing.T) {
		db, cleanup := setupBooksTestDB(t)
		defer cleanup()

		router := newBooksRouter(db)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/books/abc", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestBooksController_UpdateBook(t *testing.T) {
	t.Run("updates metadata and copy count together", func(t *testing.T) {
		db, cleanup := setupBooksTestDB(t)
		defer cleanup()

		repo := books.NewRepository(db.DB)
		book := &entities.Book{Title: "Dune", Author: "Frank Herbert", ISBN: "978-1", TotalCopies: 2}
		require.NoError(t, repo.Create(book))

		router := newBooksRouter(db)

		body := `{"title":"Dune Messiah","author":"Frank Herbert","isbn":"978-1","category":"Fiction","total_copies":5}`
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("PUT", "/api/books/1", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var updated entities.Book
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
		assert.Equal(t, "Dune Messiah", updated.Title)
		assert.Equal(t, 5, updated.TotalCopies)
	})
}

func TestBooksController_DeleteBook(t *testing.T) {
	t.Run("refuses deletion while loans are active", func(t *testing.T) {
		db, cleanup := setupBooksTestDB(t)
		defer cleanup()

		repo := books.NewRepository(db.DB)
		book := &entities.Book{Title: "Dune", Author: "Frank Herbert", ISBN: "978-1", TotalCopies: 1}
		require.NoError(t, repo.Create(book))

		loan := &entities.Loan{Reference: "ref-1", UserID: 1, BookID: book.ID, Status: entities.LoanStatusActive}
		require.NoError(t, db.DB.Create(loan).Error)

		router := newBooksRouter(db)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("DELETE", "/api/books/1", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "conflict", resp.Code)
	})
}

func TestBooksController_GetAllBooks(t *testing.T) {
	db, cleanup := setupBooksTestDB(t)
	defer cleanup()

	repo := books.NewRepository(db.DB)
	require.NoError(t, repo.Create(&entities.Book{Title: "Dune", Author: "Frank Herbert", ISBN: "978-1", Category: "Fiction", TotalCopies: 1}))
	require.NoError(t, repo.Create(&entities.Book{Title: "Cosmos", Author: "Carl Sagan", ISBN: "978-2", Category: "Science", TotalCopies: 1}))

	router := newBooksRouter(db)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/books?category=Science", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Count int             `json:"count"`
		Data  []entities.Book `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Equal(t, 1, response.Count)
	assert.Equal(t, "Cosmos", response.Data[0].Title)
}

func TestBooksController_GetStatsSummary(t *testing.T) {
	db, cleanup := setupBooksTestDB(t)
	defer cleanup()

	repo := books.NewRepository(db.DB)
	require.NoError(t, repo.Create(&entities.Book{Title: "Dune", Author: "Frank Herbert", ISBN: "978-1", TotalCopies: 3}))

	router := newBooksRouter(db)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/stats/summary", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var summary books.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, int64(1), summary.TotalBooks)
	assert.Equal(t, int64(3), summary.TotalCopies)
	assert.Equal(t, int64(0), summary.BorrowedCopies)
}
