package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/library-lending/internal/core/domain"
	"github.com/rl1809/library-lending/internal/port"
)

type BorrowerService struct {
	repo port.BorrowerRepository
}

func NewBorrowerService(repo port.BorrowerRepository) *BorrowerService {
	return &BorrowerService{repo: repo}
}

func (s *BorrowerService) List(ctx context.Context) ([]domain.Borrower, error) {
	return s.repo.ListBorrowers(ctx)
}

func (s *BorrowerService) Get(ctx context.Context, id string) (*domain.Borrower, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%w: %s", domain.ErrBorrowerNotFound, id)
	}

	borrower, err := s.repo.GetBorrower(ctx, id)
	if err != nil {
		return nil, err
	}
	if borrower == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrBorrowerNotFound, id)
	}

	return borrower, nil
}

func (s *BorrowerService) Create(ctx context.Context, in domain.NewBorrower) (*domain.Borrower, error) {
	now := time.Now().UTC()
	borrower := domain.Borrower{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Email:     in.Email,
		Phone:     optionalPhone(in.Phone),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.CreateBorrower(ctx, borrower); err != nil {
		return nil, err
	}

	return &borrower, nil
}

func (s *BorrowerService) Update(ctx context.Context, id string, patch domain.BorrowerPatch) (*domain.Borrower, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%w: %s", domain.ErrBorrowerNotFound, id)
	}
	return s.repo.UpdateBorrower(ctx, id, patch, time.Now().UTC())
}

func optionalPhone(phone *string) *string {
	if phone == nil {
		return nil
	}
	return domain.OptionalString(*phone)
}

func (s *BorrowerService) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return fmt.Errorf("%w: %s", domain.ErrBorrowerNotFound, id)
	}
	return s.repo.DeleteBorrower(ctx, id)
}
