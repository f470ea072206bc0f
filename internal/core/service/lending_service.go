package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/rl1809/library-lending/internal/core/domain"
	"github.com/rl1809/library-lending/internal/port"
)

const DefaultLoanPeriod = 7 * 24 * time.Hour

const (
	opCheckout = "checkout"
	opReturn   = "return"
)

// LendingService owns the loan state machine: checkout opens a loan and takes a copy
// off the shelf, return closes it and puts the copy back. Both run in one transaction.
type LendingService struct {
	loans      port.LoanRepository
	borrowers  port.BorrowerRepository
	loanPeriod time.Duration
	now        func() time.Time
	logger     *slog.Logger

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	inst           instruments
}

type Option func(*LendingService)

func WithLoanPeriod(d time.Duration) Option {
	return func(s *LendingService) {
		if d > 0 {
			s.loanPeriod = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *LendingService) {
		s.now = now
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *LendingService) {
		s.logger = logger
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *LendingService) {
		s.tracerProvider = tp
	}
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *LendingService) {
		s.meterProvider = mp
	}
}

func NewLendingService(loans port.LoanRepository, borrowers port.BorrowerRepository, opts ...Option) *LendingService {
	s := &LendingService{
		loans:      loans,
		borrowers:  borrowers,
		loanPeriod: DefaultLoanPeriod,
		now: func() time.Time {
			return time.Now().UTC().Truncate(time.Microsecond)
		},
		logger:         slog.Default(),
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.inst = newInstruments(s.tracerProvider, s.meterProvider)

	return s
}

func (s *LendingService) Checkout(ctx context.Context, bookID, borrowerID string) (domain.Loan, error) {
	ctx, span := s.inst.start(ctx, "lending.checkout", bookID, borrowerID)
	defer span.End()

	if err := checkIDs(bookID, borrowerID); err != nil {
		s.reject(ctx, span, opCheckout, err)
		return domain.Loan{}, err
	}

	var loan domain.Loan
	err := s.loans.WithinTx(ctx, func(tx port.LendingTx) error {
		book, err := lockParties(ctx, tx, bookID, borrowerID)
		if err != nil {
			return err
		}

		open, err := tx.OpenLoan(ctx, bookID, borrowerID)
		if err != nil {
			return err
		}
		if open != nil {
			return domain.ErrAlreadyCheckedOut
		}

		if book.Quantity <= 0 {
			return domain.ErrOutOfStock
		}

		now := s.now()
		loan = domain.Loan{
			ID:         uuid.NewString(),
			BookID:     bookID,
			BorrowerID: borrowerID,
			BorrowDate: now,
			DueDate:    now.Add(s.loanPeriod),
		}
		if err := tx.InsertLoan(ctx, loan); err != nil {
			return err
		}

		return tx.AdjustBookQuantity(ctx, bookID, -1)
	})
	if err != nil {
		s.reject(ctx, span, opCheckout, err)
		return domain.Loan{}, err
	}

	s.inst.checkedOut.Add(ctx, 1)
	s.logger.InfoContext(ctx, "book checked out",
		"loan_id", loan.ID, "book_id", bookID, "borrower_id", borrowerID, "due_date", loan.DueDate)

	return loan, nil
}

func (s *LendingService) Return(ctx context.Context, bookID, borrowerID string) (domain.Loan, error) {
	ctx, span := s.inst.start(ctx, "lending.return", bookID, borrowerID)
	defer span.End()

	if err := checkIDs(bookID, borrowerID); err != nil {
		s.reject(ctx, span, opReturn, err)
		return domain.Loan{}, err
	}

	var loan domain.Loan
	err := s.loans.WithinTx(ctx, func(tx port.LendingTx) error {
		if _, err := lockParties(ctx, tx, bookID, borrowerID); err != nil {
			return err
		}

		open, err := tx.OpenLoan(ctx, bookID, borrowerID)
		if err != nil {
			return err
		}
		if open == nil {
			return domain.ErrNotCheckedOut
		}

		returnedAt := s.now()
		if err := tx.CloseLoan(ctx, open.ID, returnedAt); err != nil {
			return err
		}
		open.ReturnDate = &returnedAt
		loan = *open

		return tx.AdjustBookQuantity(ctx, bookID, 1)
	})
	if err != nil {
		s.reject(ctx, span, opReturn, err)
		return domain.Loan{}, err
	}

	s.inst.returned.Add(ctx, 1)
	s.logger.InfoContext(ctx, "book returned",
		"loan_id", loan.ID, "book_id", bookID, "borrower_id", borrowerID,
		"overdue", loan.ReturnDate.After(loan.DueDate))

	return loan, nil
}

func checkIDs(bookID, borrowerID string) error {
	if !validID(bookID) {
		return fmt.Errorf("%w: %s", domain.ErrBookNotFound, bookID)
	}
	if !validID(borrowerID) {
		return fmt.Errorf("%w: %s", domain.ErrBorrowerNotFound, borrowerID)
	}
	return nil
}

// lockParties locks the book row before anything else so concurrent checkouts and
// returns of one book queue up behind each other.
func lockParties(ctx context.Context, tx port.LendingTx, bookID, borrowerID string) (*domain.Book, error) {
	book, err := tx.BookForUpdate(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrBookNotFound, bookID)
	}

	borrower, err := tx.Borrower(ctx, borrowerID)
	if err != nil {
		return nil, err
	}
	if borrower == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrBorrowerNotFound, borrowerID)
	}

	return book, nil
}

func (s *LendingService) reject(ctx context.Context, span trace.Span, op string, err error) {
	recordSpanError(span, err)

	reason := rejectReason(err)
	if reason == "" {
		s.logger.ErrorContext(ctx, "lending operation failed", "operation", op, "error", err)
		return
	}

	s.inst.rejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrOperation, op),
		attribute.String(attrReason, reason),
	))
	s.logger.DebugContext(ctx, "lending operation rejected", "operation", op, "reason", reason)
}

// CheckedOut lists open loans grouped by book, books in order of their oldest open loan.
func (s *LendingService) CheckedOut(ctx context.Context) ([]domain.CheckedOutBook, error) {
	details, err := s.loans.ListLoanDetails(ctx, port.LoanFilter{OpenOnly: true})
	if err != nil {
		return nil, err
	}

	result := make([]domain.CheckedOutBook, 0)
	index := make(map[string]int)
	for _, d := range details {
		i, ok := index[d.BookID]
		if !ok {
			i = len(result)
			index[d.BookID] = i
			result = append(result, domain.CheckedOutBook{BookID: d.BookID, BookTitle: d.BookTitle})
		}
		result[i].Borrowers = append(result[i].Borrowers, domain.CheckedOutBorrower{
			ID:         d.BorrowerID,
			Name:       d.BorrowerName,
			Email:      d.BorrowerEmail,
			Phone:      d.BorrowerPhone,
			BorrowDate: d.BorrowDate,
			DueDate:    d.DueDate,
		})
	}

	return result, nil
}

func (s *LendingService) CheckedOutBy(ctx context.Context, borrowerID string) ([]domain.LoanDetail, error) {
	if !validID(borrowerID) {
		return nil, fmt.Errorf("%w: %s", domain.ErrBorrowerNotFound, borrowerID)
	}

	borrower, err := s.borrowers.GetBorrower(ctx, borrowerID)
	if err != nil {
		return nil, err
	}
	if borrower == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrBorrowerNotFound, borrowerID)
	}

	return s.loans.ListLoanDetails(ctx, port.LoanFilter{BorrowerID: borrowerID, OpenOnly: true})
}

func (s *LendingService) Overdue(ctx context.Context) ([]domain.LoanDetail, error) {
	return s.loans.ListLoanDetails(ctx, port.LoanFilter{OpenOnly: true, DueBefore: s.now()})
}

// LoansBetween returns every loan borrowed within [from, to].
func (s *LendingService) LoansBetween(ctx context.Context, from, to time.Time) ([]domain.LoanDetail, error) {
	if to.Before(from) {
		return nil, domain.ErrInvalidDateRange
	}
	return s.loans.ListLoanDetails(ctx, port.LoanFilter{BorrowedFrom: from, BorrowedTo: to})
}

// LastMonth returns either the loans that fell overdue during the last month and are
// still open, or all loans borrowed during the last month.
func (s *LendingService) LastMonth(ctx context.Context, scope domain.ExportScope) ([]domain.LoanDetail, error) {
	now := s.now()
	monthAgo := now.AddDate(0, -1, 0)

	var filter port.LoanFilter
	switch scope {
	case domain.ExportScopeOverdue:
		filter = port.LoanFilter{OpenOnly: true, DueFrom: monthAgo, DueBefore: now}
	case domain.ExportScopeAll:
		filter = port.LoanFilter{BorrowedFrom: monthAgo, BorrowedTo: now}
	default:
		return nil, domain.ErrInvalidExportScope
	}

	return s.loans.ListLoanDetails(ctx, filter)
}
