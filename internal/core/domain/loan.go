package domain

import "time"

type LoanStatus string

const (
	LoanStatusCheckedOut LoanStatus = "checked_out"
	LoanStatusOverdue    LoanStatus = "overdue"
	LoanStatusReturned   LoanStatus = "returned"
)

// Loan is one book lent to one borrower. ReturnDate is nil while the loan is open.
type Loan struct {
	ID         string
	BookID     string
	BorrowerID string
	BorrowDate time.Time
	DueDate    time.Time
	ReturnDate *time.Time
}

func (l Loan) Open() bool {
	return l.ReturnDate == nil
}

// Status derives the loan state at the given instant.
func (l Loan) Status(now time.Time) LoanStatus {
	switch {
	case !l.Open():
		return LoanStatusReturned
	case l.DueDate.Before(now):
		return LoanStatusOverdue
	default:
		return LoanStatusCheckedOut
	}
}

// LoanDetail is a loan joined with the book and borrower it refers to.
type LoanDetail struct {
	Loan
	BookTitle     string
	BorrowerName  string
	BorrowerEmail string
	BorrowerPhone *string
}

type CheckedOutBook struct {
	BookID    string
	BookTitle string
	Borrowers []CheckedOutBorrower
}

type CheckedOutBorrower struct {
	ID         string
	Name       string
	Email      string
	Phone      *string
	BorrowDate time.Time
	DueDate    time.Time
}

// ExportScope selects the loans of the last month to export.
type ExportScope string

const (
	ExportScopeOverdue ExportScope = "overdue"
	ExportScopeAll     ExportScope = "all"
)
