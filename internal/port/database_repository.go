package port

import (
	"context"
	"time"

	"github.com/rl1809/library-lending/internal/core/domain"
)

// Lookups return (nil, nil) when the row does not exist.

type BookRepository interface {
	ListBooks(ctx context.Context) ([]domain.Book, error)
	SearchBooks(ctx context.Context, search domain.BookSearch) ([]domain.Book, error)
	GetBook(ctx context.Context, id string) (*domain.Book, error)

	// CreateBook and UpdateBook return domain.ErrDuplicateBook on a title or ISBN clash
	CreateBook(ctx context.Context, book domain.Book) error

	// UpdateBook applies the set fields of patch to the stored row and returns the result.
	// Unset fields, quantity included, keep the value the row holds at write time.
	// Returns domain.ErrBookNotFound if the row does not exist.
	UpdateBook(ctx context.Context, id string, patch domain.BookPatch, updatedAt time.Time) (*domain.Book, error)

	// DeleteBook cascades to the book's loans, returns domain.ErrBookNotFound if nothing was deleted
	DeleteBook(ctx context.Context, id string) error
}

type BorrowerRepository interface {
	ListBorrowers(ctx context.Context) ([]domain.Borrower, error)
	GetBorrower(ctx context.Context, id string) (*domain.Borrower, error)

	// CreateBorrower and UpdateBorrower return domain.ErrDuplicateBorrower on an email clash
	CreateBorrower(ctx context.Context, borrower domain.Borrower) error
	UpdateBorrower(ctx context.Context, id string, patch domain.BorrowerPatch, updatedAt time.Time) (*domain.Borrower, error)

	DeleteBorrower(ctx context.Context, id string) error
}

type LoanRepository interface {
	// WithinTx runs fn in a single transaction, committed only if fn returns nil
	WithinTx(ctx context.Context, fn func(tx LendingTx) error) error

	// ListLoanDetails returns loans joined with book and borrower, oldest borrow first
	ListLoanDetails(ctx context.Context, filter LoanFilter) ([]domain.LoanDetail, error)
}

// LendingTx is the set of row operations checkout and return are built from.
type LendingTx interface {
	// BookForUpdate reads the book and locks its row until the transaction ends
	BookForUpdate(ctx context.Context, id string) (*domain.Book, error)
	Borrower(ctx context.Context, id string) (*domain.Borrower, error)

	// OpenLoan finds the open loan of the pair. Callers already hold the book lock.
	OpenLoan(ctx context.Context, bookID, borrowerID string) (*domain.Loan, error)

	// InsertLoan returns domain.ErrAlreadyCheckedOut if the pair already has an open loan
	InsertLoan(ctx context.Context, loan domain.Loan) error
	CloseLoan(ctx context.Context, loanID string, returnedAt time.Time) error

	// AdjustBookQuantity adds delta to the stock, returns domain.ErrOutOfStock
	// instead of letting it drop below zero
	AdjustBookQuantity(ctx context.Context, bookID string, delta int) error
}

// LoanFilter narrows ListLoanDetails. Zero values are ignored; time bounds are inclusive
// except DueBefore.
type LoanFilter struct {
	BorrowerID   string
	OpenOnly     bool
	DueBefore    time.Time
	DueFrom      time.Time
	BorrowedFrom time.Time
	BorrowedTo   time.Time
}

type Pinger interface {
	Ping(ctx context.Context) error
}
