package domain

import "errors"

// Not found.
var (
	ErrBookNotFound     = errors.New("book not found")
	ErrBorrowerNotFound = errors.New("borrower not found")
	ErrNoBooksMatch     = errors.New("no books found matching the search criteria")
)

// Business rule violations.
var (
	ErrAlreadyCheckedOut  = errors.New("book is already checked out by this borrower")
	ErrOutOfStock         = errors.New("book is out of stock")
	ErrNotCheckedOut      = errors.New("book is not checked out by this borrower")
	ErrEmptySearch        = errors.New("at least one of title, author or isbn is required")
	ErrInvalidDateRange   = errors.New("dateTo must not be before dateFrom")
	ErrInvalidExportScope = errors.New(`invalid type, please specify either "overdue" or "all"`)
)

// Uniqueness violations.
var (
	ErrDuplicateBook     = errors.New("a book with this title or ISBN already exists")
	ErrDuplicateBorrower = errors.New("a borrower with this email already exists")
)
