package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/library-lending/internal/core/domain"
	"github.com/rl1809/library-lending/internal/port"
)

type BookService struct {
	repo port.BookRepository
}

func NewBookService(repo port.BookRepository) *BookService {
	return &BookService{repo: repo}
}

func (s *BookService) List(ctx context.Context) ([]domain.Book, error) {
	return s.repo.ListBooks(ctx)
}

func (s *BookService) Search(ctx context.Context, search domain.BookSearch) ([]domain.Book, error) {
	if search.Empty() {
		return nil, domain.ErrEmptySearch
	}

	books, err := s.repo.SearchBooks(ctx, search)
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, domain.ErrNoBooksMatch
	}

	return books, nil
}

func (s *BookService) Get(ctx context.Context, id string) (*domain.Book, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%w: %s", domain.ErrBookNotFound, id)
	}

	book, err := s.repo.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrBookNotFound, id)
	}

	return book, nil
}

func (s *BookService) Create(ctx context.Context, in domain.NewBook) (*domain.Book, error) {
	now := time.Now().UTC()
	book := domain.Book{
		ID:            uuid.NewString(),
		Title:         in.Title,
		Author:        in.Author,
		ISBN:          generateISBN(),
		Quantity:      in.Quantity,
		ShelfLocation: in.ShelfLocation,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.CreateBook(ctx, book); err != nil {
		return nil, err
	}

	return &book, nil
}

func (s *BookService) Update(ctx context.Context, id string, patch domain.BookPatch) (*domain.Book, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%w: %s", domain.ErrBookNotFound, id)
	}

	// Applied to the stored row, unset fields keep their current value.
	return s.repo.UpdateBook(ctx, id, patch, time.Now().UTC())
}

func (s *BookService) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return fmt.Errorf("%w: %s", domain.ErrBookNotFound, id)
	}
	return s.repo.DeleteBook(ctx, id)
}

// generateISBN returns a 13 digit number with the 978 prefix. The check digit is not computed.
func generateISBN() string {
	return fmt.Sprintf("978%010d", rand.Int64N(10_000_000_000))
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
