package entities

import (
	"time"
)

type UserRole string

const (
	UserRolePatron UserRole = "patron"
	UserRoleAdmin  UserRole = "admin"
)

type LoanStatus string

const (
	LoanStatusActive   LoanStatus = "active"
	LoanStatusReturned LoanStatus = "returned"
)

// BookCategories are the accepted catalog categories. Unknown values are
// rejected at registration; an empty value defaults to "Other".
var BookCategories = []string{
	"Fiction", "Non-Fiction", "Science", "History", "Biography",
	"Technology", "Self-Help", "Mystery", "Romance", "Other",
}

type User struct {
	ID           uint     `gorm:"primaryKey" json:"id"`
	Username     string   `gorm:"uniqueIndex;size:100" json:"username"`
	Email        string   `gorm:"uniqueIndex;size:255" json:"email"`
	PasswordHash string   `gorm:"size:100" json:"-"`
	Role         UserRole `gorm:"size:20;default:'patron'" json:"role"`

	// API token auth; only the SHA-256 hash is stored
	TokenHash      string     `gorm:"index;size:64" json:"-"`
	TokenCreatedAt *time.Time `json:"-"`

	// Login lockout state
	FailedLoginCount int        `json:"-"`
	LockedUntil      *time.Time `json:"-"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Book struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	Title         string `gorm:"index;size:200" json:"title"`
	Author        string `gorm:"index;size:100" json:"author"`
	ISBN          string `gorm:"uniqueIndex;size:20" json:"isbn"`
	PublishedYear int    `json:"published_year,omitempty"`
	Category      string `gorm:"index;size:50;default:'Other'" json:"category"`
	Description   string `gorm:"size:1000" json:"description,omitempty"`

	// Invariant: 0 <= AvailableCopies <= TotalCopies. AvailableCopies is
	// mutated only through the inventory increment/decrement operations.
	TotalCopies     int `gorm:"not null;default:1" json:"total_copies"`
	AvailableCopies int `gorm:"not null;default:1" json:"available_copies"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsAvailable reports whether at least one copy can be borrowed.
func (b *Book) IsAvailable() bool {
	return b.AvailableCopies > 0
}

type Loan struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Reference string `gorm:"uniqueIndex;size:36" json:"reference"`
	UserID    uint   `gorm:"index" json:"user_id"`
	BookID    uint   `gorm:"index" json:"book_id"`

	// Optional client-supplied dedupe key for borrow requests. Nullable so
	// that loans created without a key don't collide on the unique index.
	IdempotencyKey *string `gorm:"uniqueIndex;size:64" json:"-"`

	BorrowDate time.Time  `json:"borrow_date"`
	DueDate    time.Time  `json:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty"`
	Status     LoanStatus `gorm:"size:20;index;default:'active'" json:"status"`

	// Computed once, at return time. Flat currency units.
	FineAmount int `gorm:"not null;default:0" json:"fine_amount"`

	Book Book `gorm:"foreignKey:BookID" json:"book,omitempty"`
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsOverdue reports whether an active loan is past its due date at the
// given instant. Returned loans are never overdue.
func (l *Loan) IsOverdue(asOf time.Time) bool {
	return l.Status == LoanStatusActive && asOf.After(l.DueDate)
}

func (User) TableName() string {
	return "users"
}

func (Book) TableName() string {
	return "books"
}

func (Loan) TableName() string {
	return "loans"
}
