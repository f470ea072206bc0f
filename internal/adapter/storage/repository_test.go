package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/library-lending/internal/core/domain"
	"github.com/rl1809/library-lending/internal/port"
)

type repository interface {
	port.BookRepository
	port.BorrowerRepository
	port.LoanRepository
}

var baseTime = time.Date(2024, 3, 1, 9, 30, 0, 123456000, time.UTC)

func newTestBook(title, isbn string, quantity int) domain.Book {
	return domain.Book{
		ID:            uuid.NewString(),
		Title:         title,
		Author:        "Frank Herbert",
		ISBN:          isbn,
		Quantity:      quantity,
		ShelfLocation: "A-1",
		CreatedAt:     baseTime,
		UpdatedAt:     baseTime,
	}
}

func newTestBorrower(name, email string) domain.Borrower {
	return domain.Borrower{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	}
}

func openLoan(book domain.Book, borrower domain.Borrower, borrowed time.Time) domain.Loan {
	return domain.Loan{
		ID:         uuid.NewString(),
		BookID:     book.ID,
		BorrowerID: borrower.ID,
		BorrowDate: borrowed,
		DueDate:    borrowed.Add(7 * 24 * time.Hour),
	}
}

// runRepositoryTests checks behavior every storage backend must share. newRepo must
// return an empty repository.
func runRepositoryTests(t *testing.T, newRepo func(t *testing.T) repository) {
	t.Run("BookLifecycle", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		dune := newTestBook("Dune", "9780000000001", 3)
		require.NoError(t, repo.CreateBook(ctx, dune))
		require.NoError(t, repo.CreateBook(ctx, newTestBook("Children of Dune", "9780000000002", 1)))

		got, err := repo.GetBook(ctx, dune.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, dune, *got)

		books, err := repo.ListBooks(ctx)
		require.NoError(t, err)
		require.Len(t, books, 2)
		assert.Equal(t, "Children of Dune", books[0].Title)

		quantity := 5
		shelf := "B-2"
		later := baseTime.Add(time.Hour)
		updated, err := repo.UpdateBook(ctx, dune.ID, domain.BookPatch{Quantity: &quantity, ShelfLocation: &shelf}, later)
		require.NoError(t, err)
		assert.Equal(t, "Dune", updated.Title)
		assert.Equal(t, 5, updated.Quantity)
		assert.Equal(t, later, updated.UpdatedAt)

		got, err = repo.GetBook(ctx, dune.ID)
		require.NoError(t, err)
		assert.Equal(t, *updated, *got)

		_, err = repo.UpdateBook(ctx, uuid.NewString(), domain.BookPatch{Quantity: &quantity}, later)
		assert.ErrorIs(t, err, domain.ErrBookNotFound)

		require.NoError(t, repo.DeleteBook(ctx, dune.ID))
		got, err = repo.GetBook(ctx, dune.ID)
		require.NoError(t, err)
		assert.Nil(t, got)

		err = repo.DeleteBook(ctx, dune.ID)
		assert.ErrorIs(t, err, domain.ErrBookNotFound)
	})

	t.Run("BookUniqueness", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		require.NoError(t, repo.CreateBook(ctx, newTestBook("Dune", "9780000000001", 1)))

		err := repo.CreateBook(ctx, newTestBook("Dune", "9780000000009", 1))
		assert.ErrorIs(t, err, domain.ErrDuplicateBook)

		err = repo.CreateBook(ctx, newTestBook("Emma", "9780000000001", 1))
		assert.ErrorIs(t, err, domain.ErrDuplicateBook)

		emma := newTestBook("Emma", "9780000000003", 1)
		require.NoError(t, repo.CreateBook(ctx, emma))
		title := "Dune"
		_, err = repo.UpdateBook(ctx, emma.ID, domain.BookPatch{Title: &title}, baseTime)
		assert.ErrorIs(t, err, domain.ErrDuplicateBook)

		got, err := repo.GetBook(ctx, emma.ID)
		require.NoError(t, err)
		assert.Equal(t, "Emma", got.Title)

		// Uniqueness is case-sensitive on every backend.
		require.NoError(t, repo.CreateBook(ctx, newTestBook("dune", "9780000000004", 1)))
		require.NoError(t, repo.CreateBorrower(ctx, newTestBorrower("Ada", "ada@example.com")))
		require.NoError(t, repo.CreateBorrower(ctx, newTestBorrower("Ada", "ADA@example.com")))
	})

	t.Run("UpdateBookKeepsStock", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		book := newTestBook("Dune", "9780000000001", 3)
		borrower := newTestBorrower("Ada", "ada@example.com")
		require.NoError(t, repo.CreateBook(ctx, book))
		require.NoError(t, repo.CreateBorrower(ctx, borrower))

		// A checkout commits after the caller last read the book.
		require.NoError(t, repo.WithinTx(ctx, func(tx port.LendingTx) error {
			if err := tx.InsertLoan(ctx, openLoan(book, borrower, baseTime)); err != nil {
				return err
			}
			return tx.AdjustBookQuantity(ctx, book.ID, -1)
		}))

		title := "Dune Messiah"
		updated, err := repo.UpdateBook(ctx, book.ID, domain.BookPatch{Title: &title}, baseTime.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, "Dune Messiah", updated.Title)
		assert.Equal(t, 2, updated.Quantity)

		got, err := repo.GetBook(ctx, book.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Quantity)
	})

	t.Run("SearchBooks", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		dune := newTestBook("Dune", "9780000000001", 1)
		emma := newTestBook("Emma", "9780000000002", 1)
		emma.Author = "Jane Austen"
		sale := newTestBook("100% Off", "9780000000003", 1)
		for _, b := range []domain.Book{dune, emma, sale} {
			require.NoError(t, repo.CreateBook(ctx, b))
		}

		tests := []struct {
			name   string
			search domain.BookSearch
			want   []string
		}{
			{"title is case insensitive", domain.BookSearch{Title: "dUn"}, []string{"Dune"}},
			{"author substring", domain.BookSearch{Author: "austen"}, []string{"Emma"}},
			{"isbn exact", domain.BookSearch{ISBN: "9780000000002"}, []string{"Emma"}},
			{"isbn partial does not match", domain.BookSearch{ISBN: "978000"}, nil},
			{"criteria are or-ed", domain.BookSearch{Title: "dune", Author: "austen"}, []string{"Dune", "Emma"}},
			{"wildcards are literal", domain.BookSearch{Title: "%"}, []string{"100% Off"}},
			{"no match", domain.BookSearch{Title: "zzz"}, nil},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				books, err := repo.SearchBooks(ctx, tt.search)
				require.NoError(t, err)

				var titles []string
				for _, b := range books {
					titles = append(titles, b.Title)
				}
				assert.Equal(t, tt.want, titles)
			})
		}
	})

	t.Run("BorrowerLifecycle", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		phone := "555-0100"
		ada := newTestBorrower("Ada", "ada@example.com")
		ada.Phone = &phone
		bob := newTestBorrower("Bob", "bob@example.com")
		require.NoError(t, repo.CreateBorrower(ctx, bob))
		require.NoError(t, repo.CreateBorrower(ctx, ada))

		got, err := repo.GetBorrower(ctx, ada.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, ada, *got)

		got, err = repo.GetBorrower(ctx, bob.ID)
		require.NoError(t, err)
		assert.Nil(t, got.Phone)

		borrowers, err := repo.ListBorrowers(ctx)
		require.NoError(t, err)
		require.Len(t, borrowers, 2)
		assert.Equal(t, "Ada", borrowers[0].Name)

		dup := newTestBorrower("Ada Again", "ada@example.com")
		assert.ErrorIs(t, repo.CreateBorrower(ctx, dup), domain.ErrDuplicateBorrower)

		taken := "ada@example.com"
		_, err = repo.UpdateBorrower(ctx, bob.ID, domain.BorrowerPatch{Email: &taken}, baseTime)
		assert.ErrorIs(t, err, domain.ErrDuplicateBorrower)

		name := "Ada Lovelace"
		cleared := ""
		later := baseTime.Add(time.Hour)
		updated, err := repo.UpdateBorrower(ctx, ada.ID, domain.BorrowerPatch{Name: &name, Phone: &cleared}, later)
		require.NoError(t, err)
		assert.Equal(t, "Ada Lovelace", updated.Name)
		assert.Equal(t, "ada@example.com", updated.Email)
		assert.Nil(t, updated.Phone)

		got, err = repo.GetBorrower(ctx, ada.ID)
		require.NoError(t, err)
		assert.Equal(t, *updated, *got)

		_, err = repo.UpdateBorrower(ctx, uuid.NewString(), domain.BorrowerPatch{Name: &name}, later)
		assert.ErrorIs(t, err, domain.ErrBorrowerNotFound)

		require.NoError(t, repo.DeleteBorrower(ctx, ada.ID))
		assert.ErrorIs(t, repo.DeleteBorrower(ctx, ada.ID), domain.ErrBorrowerNotFound)
	})

	t.Run("LendingTx", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		book := newTestBook("Dune", "9780000000001", 1)
		borrower := newTestBorrower("Ada", "ada@example.com")
		require.NoError(t, repo.CreateBook(ctx, book))
		require.NoError(t, repo.CreateBorrower(ctx, borrower))

		loan := openLoan(book, borrower, baseTime)
		err := repo.WithinTx(ctx, func(tx port.LendingTx) error {
			locked, err := tx.BookForUpdate(ctx, book.ID)
			if err != nil {
				return err
			}
			require.NotNil(t, locked)
			assert.Equal(t, 1, locked.Quantity)

			if err := tx.InsertLoan(ctx, loan); err != nil {
				return err
			}
			return tx.AdjustBookQuantity(ctx, book.ID, -1)
		})
		require.NoError(t, err)

		got, err := repo.GetBook(ctx, book.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, got.Quantity)

		err = repo.WithinTx(ctx, func(tx port.LendingTx) error {
			return tx.InsertLoan(ctx, openLoan(book, borrower, baseTime.Add(time.Hour)))
		})
		assert.ErrorIs(t, err, domain.ErrAlreadyCheckedOut)

		err = repo.WithinTx(ctx, func(tx port.LendingTx) error {
			return tx.AdjustBookQuantity(ctx, book.ID, -1)
		})
		assert.ErrorIs(t, err, domain.ErrOutOfStock)

		returned := baseTime.Add(48 * time.Hour)
		err = repo.WithinTx(ctx, func(tx port.LendingTx) error {
			open, err := tx.OpenLoan(ctx, book.ID, borrower.ID)
			if err != nil {
				return err
			}
			require.NotNil(t, open)
			assert.Equal(t, loan.ID, open.ID)

			if err := tx.CloseLoan(ctx, open.ID, returned); err != nil {
				return err
			}
			return tx.AdjustBookQuantity(ctx, book.ID, 1)
		})
		require.NoError(t, err)

		err = repo.WithinTx(ctx, func(tx port.LendingTx) error {
			open, err := tx.OpenLoan(ctx, book.ID, borrower.ID)
			require.NoError(t, err)
			assert.Nil(t, open)
			return tx.CloseLoan(ctx, loan.ID, returned)
		})
		assert.ErrorIs(t, err, domain.ErrNotCheckedOut)

		details, err := repo.ListLoanDetails(ctx, port.LoanFilter{})
		require.NoError(t, err)
		require.Len(t, details, 1)
		require.NotNil(t, details[0].ReturnDate)
		assert.True(t, returned.Equal(*details[0].ReturnDate))
	})

	t.Run("RollbackOnError", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		book := newTestBook("Dune", "9780000000001", 2)
		borrower := newTestBorrower("Ada", "ada@example.com")
		require.NoError(t, repo.CreateBook(ctx, book))
		require.NoError(t, repo.CreateBorrower(ctx, borrower))

		errAbort := errors.New("abort")
		err := repo.WithinTx(ctx, func(tx port.LendingTx) error {
			if err := tx.InsertLoan(ctx, openLoan(book, borrower, baseTime)); err != nil {
				return err
			}
			if err := tx.AdjustBookQuantity(ctx, book.ID, -1); err != nil {
				return err
			}
			return errAbort
		})
		assert.ErrorIs(t, err, errAbort)

		got, err := repo.GetBook(ctx, book.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Quantity)

		details, err := repo.ListLoanDetails(ctx, port.LoanFilter{})
		require.NoError(t, err)
		assert.Empty(t, details)
	})

	t.Run("ListLoanDetails", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		dune := newTestBook("Dune", "9780000000001", 5)
		emma := newTestBook("Emma", "9780000000002", 5)
		phone := "555-0100"
		ada := newTestBorrower("Ada", "ada@example.com")
		ada.Phone = &phone
		bob := newTestBorrower("Bob", "bob@example.com")
		require.NoError(t, repo.CreateBook(ctx, dune))
		require.NoError(t, repo.CreateBook(ctx, emma))
		require.NoError(t, repo.CreateBorrower(ctx, ada))
		require.NoError(t, repo.CreateBorrower(ctx, bob))

		first := openLoan(dune, ada, baseTime)
		second := openLoan(emma, ada, baseTime.Add(24*time.Hour))
		third := openLoan(dune, bob, baseTime.Add(10*24*time.Hour))
		returned := baseTime.Add(11 * 24 * time.Hour)
		err := repo.WithinTx(ctx, func(tx port.LendingTx) error {
			for _, l := range []domain.Loan{third, first, second} {
				if err := tx.InsertLoan(ctx, l); err != nil {
					return err
				}
			}
			return tx.CloseLoan(ctx, third.ID, returned)
		})
		require.NoError(t, err)

		ids := func(details []domain.LoanDetail) []string {
			var out []string
			for _, d := range details {
				out = append(out, d.ID)
			}
			return out
		}

		all, err := repo.ListLoanDetails(ctx, port.LoanFilter{})
		require.NoError(t, err)
		assert.Equal(t, []string{first.ID, second.ID, third.ID}, ids(all))
		assert.Equal(t, "Dune", all[0].BookTitle)
		assert.Equal(t, "Ada", all[0].BorrowerName)
		assert.Equal(t, "ada@example.com", all[0].BorrowerEmail)
		require.NotNil(t, all[0].BorrowerPhone)
		assert.Equal(t, phone, *all[0].BorrowerPhone)
		assert.Nil(t, all[2].BorrowerPhone)

		tests := []struct {
			name   string
			filter port.LoanFilter
			want   []string
		}{
			{"open only", port.LoanFilter{OpenOnly: true}, []string{first.ID, second.ID}},
			{"by borrower", port.LoanFilter{BorrowerID: bob.ID}, []string{third.ID}},
			{"due before is exclusive", port.LoanFilter{DueBefore: second.DueDate}, []string{first.ID}},
			{"due from", port.LoanFilter{DueFrom: second.DueDate}, []string{second.ID, third.ID}},
			{"borrowed range is inclusive", port.LoanFilter{BorrowedFrom: first.BorrowDate, BorrowedTo: second.BorrowDate}, []string{first.ID, second.ID}},
			{"empty result", port.LoanFilter{BorrowedFrom: returned}, nil},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				details, err := repo.ListLoanDetails(ctx, tt.filter)
				require.NoError(t, err)
				assert.Equal(t, tt.want, ids(details))
			})
		}
	})

	t.Run("DeleteCascadesLoans", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		book := newTestBook("Dune", "9780000000001", 1)
		borrower := newTestBorrower("Ada", "ada@example.com")
		require.NoError(t, repo.CreateBook(ctx, book))
		require.NoError(t, repo.CreateBorrower(ctx, borrower))
		require.NoError(t, repo.WithinTx(ctx, func(tx port.LendingTx) error {
			return tx.InsertLoan(ctx, openLoan(book, borrower, baseTime))
		}))

		require.NoError(t, repo.DeleteBorrower(ctx, borrower.ID))

		details, err := repo.ListLoanDetails(ctx, port.LoanFilter{})
		require.NoError(t, err)
		assert.Empty(t, details)
	})
}
