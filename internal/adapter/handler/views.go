package handler

import (
	"time"

	"github.com/rl1809/library-lending/internal/core/domain"
)

type bookView struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	ISBN          string    `json:"isbn"`
	Quantity      int       `json:"quantity"`
	ShelfLocation string    `json:"shelfLocation"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func newBookView(b domain.Book) bookView {
	return bookView{
		ID:            b.ID,
		Title:         b.Title,
		Author:        b.Author,
		ISBN:          b.ISBN,
		Quantity:      b.Quantity,
		ShelfLocation: b.ShelfLocation,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

func newBookViews(books []domain.Book) []bookView {
	views := make([]bookView, 0, len(books))
	for _, b := range books {
		views = append(views, newBookView(b))
	}
	return views
}

type borrowerView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newBorrowerView(b domain.Borrower) borrowerView {
	return borrowerView{
		ID:        b.ID,
		Name:      b.Name,
		Email:     b.Email,
		Phone:     b.Phone,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

type loanView struct {
	ID         string            `json:"id"`
	BookID     string            `json:"bookId"`
	BorrowerID string            `json:"borrowerId"`
	BorrowDate time.Time         `json:"borrowDate"`
	DueDate    time.Time         `json:"dueDate"`
	ReturnDate *time.Time        `json:"returnDate"`
	Status     domain.LoanStatus `json:"status"`
}

func newLoanView(l domain.Loan, now time.Time) loanView {
	return loanView{
		ID:         l.ID,
		BookID:     l.BookID,
		BorrowerID: l.BorrowerID,
		BorrowDate: l.BorrowDate,
		DueDate:    l.DueDate,
		ReturnDate: l.ReturnDate,
		Status:     l.Status(now),
	}
}

type lendingResponse struct {
	Message string   `json:"message"`
	Loan    loanView `json:"loan"`
}

type checkedOutBookView struct {
	BookID    string                   `json:"bookId"`
	BookTitle string                   `json:"bookTitle"`
	Borrowers []checkedOutBorrowerView `json:"borrowers"`
}

type checkedOutBorrowerView struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      *string   `json:"phone"`
	BorrowDate time.Time `json:"borrowDate"`
	DueDate    time.Time `json:"dueDate"`
}

func newCheckedOutViews(groups []domain.CheckedOutBook) []checkedOutBookView {
	views := make([]checkedOutBookView, 0, len(groups))
	for _, g := range groups {
		v := checkedOutBookView{
			BookID:    g.BookID,
			BookTitle: g.BookTitle,
			Borrowers: make([]checkedOutBorrowerView, 0, len(g.Borrowers)),
		}
		for _, b := range g.Borrowers {
			v.Borrowers = append(v.Borrowers, checkedOutBorrowerView{
				ID:         b.ID,
				Name:       b.Name,
				Email:      b.Email,
				Phone:      b.Phone,
				BorrowDate: b.BorrowDate,
				DueDate:    b.DueDate,
			})
		}
		views = append(views, v)
	}
	return views
}

type borrowedBookView struct {
	BookID     string    `json:"bookId"`
	BookTitle  string    `json:"bookTitle"`
	BorrowDate time.Time `json:"borrowDate"`
	DueDate    time.Time `json:"dueDate"`
}

func newBorrowedBookViews(details []domain.LoanDetail) []borrowedBookView {
	views := make([]borrowedBookView, 0, len(details))
	for _, d := range details {
		views = append(views, borrowedBookView{
			BookID:     d.BookID,
			BookTitle:  d.BookTitle,
			BorrowDate: d.BorrowDate,
			DueDate:    d.DueDate,
		})
	}
	return views
}

type overdueView struct {
	BookID       string    `json:"bookId"`
	BookTitle    string    `json:"bookTitle"`
	BorrowerID   string    `json:"borrowerId"`
	BorrowerName string    `json:"borrowerName"`
	BorrowDate   time.Time `json:"borrowDate"`
	DueDate      time.Time `json:"dueDate"`
}

func newOverdueViews(details []domain.LoanDetail) []overdueView {
	views := make([]overdueView, 0, len(details))
	for _, d := range details {
		views = append(views, overdueView{
			BookID:       d.BookID,
			BookTitle:    d.BookTitle,
			BorrowerID:   d.BorrowerID,
			BorrowerName: d.BorrowerName,
			BorrowDate:   d.BorrowDate,
			DueDate:      d.DueDate,
		})
	}
	return views
}
