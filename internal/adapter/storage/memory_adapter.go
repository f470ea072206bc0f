package storage

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rl1809/library-lending/internal/core/domain"
	"github.com/rl1809/library-lending/internal/port"
)

// MemoryAdapter keeps everything in maps behind one mutex. Transactions hold the
// mutex for their whole duration and restore a snapshot when they fail, which gives
// the same all-or-nothing checkout and return as the SQL store.
type MemoryAdapter struct {
	mu        sync.Mutex
	books     map[string]domain.Book
	borrowers map[string]domain.Borrower
	loans     map[string]domain.Loan
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		books:     make(map[string]domain.Book),
		borrowers: make(map[string]domain.Borrower),
		loans:     make(map[string]domain.Loan),
	}
}

func (m *MemoryAdapter) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryAdapter) ListBooks(ctx context.Context) ([]domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return sortedBooks(slices.Collect(maps.Values(m.books))), nil
}

func (m *MemoryAdapter) SearchBooks(ctx context.Context, search domain.BookSearch) ([]domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var found []domain.Book
	for _, b := range m.books {
		if matches(b, search) {
			found = append(found, b)
		}
	}

	return sortedBooks(found), nil
}

func matches(b domain.Book, s domain.BookSearch) bool {
	return (s.Title != "" && containsFold(b.Title, s.Title)) ||
		(s.Author != "" && containsFold(b.Author, s.Author)) ||
		(s.ISBN != "" && b.ISBN == s.ISBN)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func sortedBooks(books []domain.Book) []domain.Book {
	slices.SortFunc(books, func(a, b domain.Book) int { return cmp.Compare(a.Title, b.Title) })
	return books
}

func (m *MemoryAdapter) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.books[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *MemoryAdapter) CreateBook(ctx context.Context, book domain.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.bookClash(book) {
		return domain.ErrDuplicateBook
	}
	m.books[book.ID] = book
	return nil
}

func (m *MemoryAdapter) UpdateBook(ctx context.Context, id string, patch domain.BookPatch, updatedAt time.Time) (*domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	book, ok := m.books[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrBookNotFound, id)
	}
	book.Apply(patch)
	book.UpdatedAt = updatedAt

	if m.bookClash(book) {
		return nil, domain.ErrDuplicateBook
	}
	m.books[id] = book
	return &book, nil
}

func (m *MemoryAdapter) bookClash(book domain.Book) bool {
	for id, b := range m.books {
		if id != book.ID && (b.Title == book.Title || b.ISBN == book.ISBN) {
			return true
		}
	}
	return false
}

func (m *MemoryAdapter) DeleteBook(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.books[id]; !ok {
		return domain.ErrBookNotFound
	}
	delete(m.books, id)
	maps.DeleteFunc(m.loans, func(_ string, l domain.Loan) bool { return l.BookID == id })
	return nil
}

func (m *MemoryAdapter) ListBorrowers(ctx context.Context) ([]domain.Borrower, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	borrowers := slices.Collect(maps.Values(m.borrowers))
	slices.SortFunc(borrowers, func(a, b domain.Borrower) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.Email, b.Email))
	})
	return borrowers, nil
}

func (m *MemoryAdapter) GetBorrower(ctx context.Context, id string) (*domain.Borrower, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.borrowers[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *MemoryAdapter) CreateBorrower(ctx context.Context, borrower domain.Borrower) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.emailTaken(borrower) {
		return domain.ErrDuplicateBorrower
	}
	m.borrowers[borrower.ID] = borrower
	return nil
}

func (m *MemoryAdapter) UpdateBorrower(ctx context.Context, id string, patch domain.BorrowerPatch, updatedAt time.Time) (*domain.Borrower, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	borrower, ok := m.borrowers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrBorrowerNotFound, id)
	}
	borrower.Apply(patch)
	borrower.UpdatedAt = updatedAt

	if m.emailTaken(borrower) {
		return nil, domain.ErrDuplicateBorrower
	}
	m.borrowers[id] = borrower
	return &borrower, nil
}

func (m *MemoryAdapter) emailTaken(borrower domain.Borrower) bool {
	for id, b := range m.borrowers {
		if id != borrower.ID && b.Email == borrower.Email {
			return true
		}
	}
	return false
}

func (m *MemoryAdapter) DeleteBorrower(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.borrowers[id]; !ok {
		return domain.ErrBorrowerNotFound
	}
	delete(m.borrowers, id)
	maps.DeleteFunc(m.loans, func(_ string, l domain.Loan) bool { return l.BorrowerID == id })
	return nil
}

func (m *MemoryAdapter) ListLoanDetails(ctx context.Context, f port.LoanFilter) ([]domain.LoanDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var details []domain.LoanDetail
	for _, l := range m.loans {
		if !keep(l, f) {
			continue
		}
		book := m.books[l.BookID]
		borrower := m.borrowers[l.BorrowerID]
		details = append(details, domain.LoanDetail{
			Loan:          l,
			BookTitle:     book.Title,
			BorrowerName:  borrower.Name,
			BorrowerEmail: borrower.Email,
			BorrowerPhone: borrower.Phone,
		})
	}

	slices.SortFunc(details, func(a, b domain.LoanDetail) int {
		return cmp.Or(a.BorrowDate.Compare(b.BorrowDate), cmp.Compare(a.ID, b.ID))
	})
	return details, nil
}

func keep(l domain.Loan, f port.LoanFilter) bool {
	switch {
	case f.BorrowerID != "" && l.BorrowerID != f.BorrowerID:
		return false
	case f.OpenOnly && !l.Open():
		return false
	case !f.DueBefore.IsZero() && !l.DueDate.Before(f.DueBefore):
		return false
	case !f.DueFrom.IsZero() && l.DueDate.Before(f.DueFrom):
		return false
	case !f.BorrowedFrom.IsZero() && l.BorrowDate.Before(f.BorrowedFrom):
		return false
	case !f.BorrowedTo.IsZero() && l.BorrowDate.After(f.BorrowedTo):
		return false
	}
	return true
}

func (m *MemoryAdapter) WithinTx(ctx context.Context, fn func(tx port.LendingTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	books := maps.Clone(m.books)
	loans := maps.Clone(m.loans)

	if err := fn(memoryTx{m}); err != nil {
		m.books = books
		m.loans = loans
		return err
	}
	return nil
}

// memoryTx runs with MemoryAdapter.mu already held.
type memoryTx struct {
	m *MemoryAdapter
}

func (t memoryTx) BookForUpdate(ctx context.Context, id string) (*domain.Book, error) {
	b, ok := t.m.books[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (t memoryTx) Borrower(ctx context.Context, id string) (*domain.Borrower, error) {
	b, ok := t.m.borrowers[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (t memoryTx) OpenLoan(ctx context.Context, bookID, borrowerID string) (*domain.Loan, error) {
	for _, l := range t.m.loans {
		if l.BookID == bookID && l.BorrowerID == borrowerID && l.Open() {
			return &l, nil
		}
	}
	return nil, nil
}

func (t memoryTx) InsertLoan(ctx context.Context, loan domain.Loan) error {
	if open, _ := t.OpenLoan(ctx, loan.BookID, loan.BorrowerID); open != nil {
		return domain.ErrAlreadyCheckedOut
	}
	t.m.loans[loan.ID] = loan
	return nil
}

func (t memoryTx) CloseLoan(ctx context.Context, loanID string, returnedAt time.Time) error {
	l, ok := t.m.loans[loanID]
	if !ok || !l.Open() {
		return domain.ErrNotCheckedOut
	}
	l.ReturnDate = &returnedAt
	t.m.loans[loanID] = l
	return nil
}

func (t memoryTx) AdjustBookQuantity(ctx context.Context, bookID string, delta int) error {
	b, ok := t.m.books[bookID]
	if !ok {
		return domain.ErrBookNotFound
	}
	if b.Quantity+delta < 0 {
		return domain.ErrOutOfStock
	}
	b.Quantity += delta
	b.UpdatedAt = time.Now().UTC()
	t.m.books[bookID] = b
	return nil
}
