package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"    // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"

	"github.com/rl1809/library-lending/internal/core/domain"
	"github.com/rl1809/library-lending/internal/port"
)

const (
	tableBooks     = "books"
	tableBorrowers = "borrowers"
	tableLoans     = "book_borrowers"

	dialectMySQL    = "mysql"
	dialectPostgres = "postgres"
)

var (
	bookColumns     = []any{"id", "title", "author", "isbn", "quantity", "shelf_location", "created_at", "updated_at"}
	borrowerColumns = []any{"id", "name", "email", "phone", "created_at", "updated_at"}
	loanColumns     = []any{"id", "book_id", "borrower_id", "borrow_date", "due_date", "return_date"}

	likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
)

type bookRow struct {
	ID            string    `db:"id"`
	Title         string    `db:"title"`
	Author        string    `db:"author"`
	ISBN          string    `db:"isbn"`
	Quantity      int       `db:"quantity"`
	ShelfLocation string    `db:"shelf_location"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r bookRow) toDomain() domain.Book {
	return domain.Book{
		ID:            r.ID,
		Title:         r.Title,
		Author:        r.Author,
		ISBN:          r.ISBN,
		Quantity:      r.Quantity,
		ShelfLocation: r.ShelfLocation,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

type borrowerRow struct {
	ID        string         `db:"id"`
	Name      string         `db:"name"`
	Email     string         `db:"email"`
	Phone     sql.NullString `db:"phone"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (r borrowerRow) toDomain() domain.Borrower {
	return domain.Borrower{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		Phone:     fromNullString(r.Phone),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type loanRow struct {
	ID         string       `db:"id"`
	BookID     string       `db:"book_id"`
	BorrowerID string       `db:"borrower_id"`
	BorrowDate time.Time    `db:"borrow_date"`
	DueDate    time.Time    `db:"due_date"`
	ReturnDate sql.NullTime `db:"return_date"`
}

func (r loanRow) toDomain() domain.Loan {
	l := domain.Loan{
		ID:         r.ID,
		BookID:     r.BookID,
		BorrowerID: r.BorrowerID,
		BorrowDate: r.BorrowDate.UTC(),
		DueDate:    r.DueDate.UTC(),
	}
	if r.ReturnDate.Valid {
		t := r.ReturnDate.Time.UTC()
		l.ReturnDate = &t
	}
	return l
}

type loanDetailRow struct {
	loanRow
	BookTitle     string         `db:"book_title"`
	BorrowerName  string         `db:"borrower_name"`
	BorrowerEmail string         `db:"borrower_email"`
	BorrowerPhone sql.NullString `db:"borrower_phone"`
}

// SQLAdapter stores books, borrowers and loans in MySQL or PostgreSQL. Queries are built
// with goqu for the dialect matching the sqlx driver name.
type SQLAdapter struct {
	db          *sqlx.DB
	dialect     goqu.DialectWrapper
	dialectName string
}

func NewSQLAdapter(db *sqlx.DB) *SQLAdapter {
	name := dialectMySQL
	if db.DriverName() == "postgres" || db.DriverName() == "pgx" {
		name = dialectPostgres
	}

	return &SQLAdapter{
		db:          db,
		dialect:     goqu.Dialect(name),
		dialectName: name,
	}
}

func (a *SQLAdapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *SQLAdapter) ListBooks(ctx context.Context) ([]domain.Book, error) {
	ds := a.dialect.From(tableBooks).Select(bookColumns...).Order(goqu.C("title").Asc())
	return selectBooks(ctx, a.db, ds)
}

func (a *SQLAdapter) SearchBooks(ctx context.Context, search domain.BookSearch) ([]domain.Book, error) {
	var criteria []exp.Expression
	if search.Title != "" {
		criteria = append(criteria, likeFold("title", search.Title))
	}
	if search.Author != "" {
		criteria = append(criteria, likeFold("author", search.Author))
	}
	if search.ISBN != "" {
		criteria = append(criteria, goqu.C("isbn").Eq(search.ISBN))
	}

	ds := a.dialect.From(tableBooks).
		Select(bookColumns...).
		Where(goqu.Or(criteria...)).
		Order(goqu.C("title").Asc())

	return selectBooks(ctx, a.db, ds)
}

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// likeFold matches column values containing s, ignoring case. Lowering both sides
// keeps the match case-insensitive under the binary collation MySQL uses for titles.
func likeFold(column, s string) exp.BooleanExpression {
	return goqu.Func("LOWER", goqu.C(column)).Like(strings.ToLower(containsPattern(s)))
}

func selectBooks(ctx context.Context, q sqlx.QueryerContext, ds *goqu.SelectDataset) ([]domain.Book, error) {
	var rows []bookRow
	if err := selectAll(ctx, q, &rows, ds); err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}

	books := make([]domain.Book, 0, len(rows))
	for _, r := range rows {
		books = append(books, r.toDomain())
	}
	return books, nil
}

func (a *SQLAdapter) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	return getBook(ctx, a.db, a.dialect.From(tableBooks).Select(bookColumns...).Where(goqu.C("id").Eq(id)))
}

func getBook(ctx context.Context, q sqlx.QueryerContext, ds *goqu.SelectDataset) (*domain.Book, error) {
	var row bookRow
	found, err := getOne(ctx, q, &row, ds)
	if err != nil {
		return nil, fmt.Errorf("query book: %w", err)
	}
	if !found {
		return nil, nil
	}

	book := row.toDomain()
	return &book, nil
}

func (a *SQLAdapter) CreateBook(ctx context.Context, book domain.Book) error {
	stmt := a.dialect.Insert(tableBooks).Rows(goqu.Record{
		"id":             book.ID,
		"title":          book.Title,
		"author":         book.Author,
		"isbn":           book.ISBN,
		"quantity":       book.Quantity,
		"shelf_location": book.ShelfLocation,
		"created_at":     book.CreatedAt,
		"updated_at":     book.UpdatedAt,
	}).Prepared(true)

	if _, err := execStatement(ctx, a.db, stmt); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateBook
		}
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

func (a *SQLAdapter) UpdateBook(ctx context.Context, id string, patch domain.BookPatch, updatedAt time.Time) (*domain.Book, error) {
	var book *domain.Book
	err := a.inTx(ctx, func(tx *sqlx.Tx) error {
		locked, err := getBook(ctx, tx, a.dialect.From(tableBooks).
			Select(bookColumns...).
			Where(goqu.C("id").Eq(id)).
			ForUpdate(exp.Wait))
		if err != nil {
			return err
		}
		if locked == nil {
			return fmt.Errorf("%w: %s", domain.ErrBookNotFound, id)
		}

		locked.Apply(patch)
		locked.UpdatedAt = updatedAt

		stmt := a.dialect.Update(tableBooks).
			Set(bookChanges(patch, *locked)).
			Where(goqu.C("id").Eq(id)).
			Prepared(true)
		if _, err := execStatement(ctx, tx, stmt); err != nil {
			if isUniqueViolation(err) {
				return domain.ErrDuplicateBook
			}
			return fmt.Errorf("update book: %w", err)
		}

		book = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return book, nil
}

// bookChanges holds only the columns patch sets, with values taken from the patched book.
func bookChanges(patch domain.BookPatch, book domain.Book) goqu.Record {
	rec := goqu.Record{"updated_at": book.UpdatedAt}
	if patch.Title != nil {
		rec["title"] = book.Title
	}
	if patch.Author != nil {
		rec["author"] = book.Author
	}
	if patch.ISBN != nil {
		rec["isbn"] = book.ISBN
	}
	if patch.Quantity != nil {
		rec["quantity"] = book.Quantity
	}
	if patch.ShelfLocation != nil {
		rec["shelf_location"] = book.ShelfLocation
	}
	return rec
}

func (a *SQLAdapter) DeleteBook(ctx context.Context, id string) error {
	stmt := a.dialect.Delete(tableBooks).Where(goqu.C("id").Eq(id)).Prepared(true)

	result, err := execStatement(ctx, a.db, stmt)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("%w: %s", domain.ErrBookNotFound, id)
	}
	return nil
}

func (a *SQLAdapter) ListBorrowers(ctx context.Context) ([]domain.Borrower, error) {
	ds := a.dialect.From(tableBorrowers).
		Select(borrowerColumns...).
		Order(goqu.C("name").Asc(), goqu.C("email").Asc())

	var rows []borrowerRow
	if err := selectAll(ctx, a.db, &rows, ds); err != nil {
		return nil, fmt.Errorf("query borrowers: %w", err)
	}

	borrowers := make([]domain.Borrower, 0, len(rows))
	for _, r := range rows {
		borrowers = append(borrowers, r.toDomain())
	}
	return borrowers, nil
}

func (a *SQLAdapter) GetBorrower(ctx context.Context, id string) (*domain.Borrower, error) {
	return getBorrower(ctx, a.db, a.dialect, id)
}

func getBorrower(ctx context.Context, q sqlx.QueryerContext, d goqu.DialectWrapper, id string) (*domain.Borrower, error) {
	ds := d.From(tableBorrowers).Select(borrowerColumns...).Where(goqu.C("id").Eq(id))

	var row borrowerRow
	found, err := getOne(ctx, q, &row, ds)
	if err != nil {
		return nil, fmt.Errorf("query borrower: %w", err)
	}
	if !found {
		return nil, nil
	}

	borrower := row.toDomain()
	return &borrower, nil
}

func (a *SQLAdapter) CreateBorrower(ctx context.Context, borrower domain.Borrower) error {
	stmt := a.dialect.Insert(tableBorrowers).Rows(goqu.Record{
		"id":         borrower.ID,
		"name":       borrower.Name,
		"email":      borrower.Email,
		"phone":      toNullString(borrower.Phone),
		"created_at": borrower.CreatedAt,
		"updated_at": borrower.UpdatedAt,
	}).Prepared(true)

	if _, err := execStatement(ctx, a.db, stmt); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateBorrower
		}
		return fmt.Errorf("insert borrower: %w", err)
	}
	return nil
}

func (a *SQLAdapter) UpdateBorrower(ctx context.Context, id string, patch domain.BorrowerPatch, updatedAt time.Time) (*domain.Borrower, error) {
	var borrower *domain.Borrower
	err := a.inTx(ctx, func(tx *sqlx.Tx) error {
		ds := a.dialect.From(tableBorrowers).
			Select(borrowerColumns...).
			Where(goqu.C("id").Eq(id)).
			ForUpdate(exp.Wait)

		var row borrowerRow
		found, err := getOne(ctx, tx, &row, ds)
		if err != nil {
			return fmt.Errorf("query borrower: %w", err)
		}
		if !found {
			return fmt.Errorf("%w: %s", domain.ErrBorrowerNotFound, id)
		}

		locked := row.toDomain()
		locked.Apply(patch)
		locked.UpdatedAt = updatedAt

		rec := goqu.Record{"updated_at": locked.UpdatedAt}
		if patch.Name != nil {
			rec["name"] = locked.Name
		}
		if patch.Email != nil {
			rec["email"] = locked.Email
		}
		if patch.Phone != nil {
			rec["phone"] = toNullString(locked.Phone)
		}

		stmt := a.dialect.Update(tableBorrowers).Set(rec).Where(goqu.C("id").Eq(id)).Prepared(true)
		if _, err := execStatement(ctx, tx, stmt); err != nil {
			if isUniqueViolation(err) {
				return domain.ErrDuplicateBorrower
			}
			return fmt.Errorf("update borrower: %w", err)
		}

		borrower = &locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return borrower, nil
}

func (a *SQLAdapter) DeleteBorrower(ctx context.Context, id string) error {
	stmt := a.dialect.Delete(tableBorrowers).Where(goqu.C("id").Eq(id)).Prepared(true)

	result, err := execStatement(ctx, a.db, stmt)
	if err != nil {
		return fmt.Errorf("delete borrower: %w", err)
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("%w: %s", domain.ErrBorrowerNotFound, id)
	}
	return nil
}

func (a *SQLAdapter) ListLoanDetails(ctx context.Context, f port.LoanFilter) ([]domain.LoanDetail, error) {
	ds := a.dialect.From(goqu.T(tableLoans).As("l")).
		Join(goqu.T(tableBooks).As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("l.book_id")))).
		Join(goqu.T(tableBorrowers).As("r"), goqu.On(goqu.I("r.id").Eq(goqu.I("l.borrower_id")))).
		Select(
			goqu.I("l.id").As("id"),
			goqu.I("l.book_id").As("book_id"),
			goqu.I("l.borrower_id").As("borrower_id"),
			goqu.I("l.borrow_date").As("borrow_date"),
			goqu.I("l.due_date").As("due_date"),
			goqu.I("l.return_date").As("return_date"),
			goqu.I("b.title").As("book_title"),
			goqu.I("r.name").As("borrower_name"),
			goqu.I("r.email").As("borrower_email"),
			goqu.I("r.phone").As("borrower_phone"),
		).
		Where(loanConditions(f)...).
		Order(goqu.I("l.borrow_date").Asc(), goqu.I("l.id").Asc())

	var rows []loanDetailRow
	if err := selectAll(ctx, a.db, &rows, ds); err != nil {
		return nil, fmt.Errorf("query loans: %w", err)
	}

	details := make([]domain.LoanDetail, 0, len(rows))
	for _, r := range rows {
		details = append(details, domain.LoanDetail{
			Loan:          r.loanRow.toDomain(),
			BookTitle:     r.BookTitle,
			BorrowerName:  r.BorrowerName,
			BorrowerEmail: r.BorrowerEmail,
			BorrowerPhone: fromNullString(r.BorrowerPhone),
		})
	}
	return details, nil
}

func loanConditions(f port.LoanFilter) []exp.Expression {
	var where []exp.Expression
	if f.BorrowerID != "" {
		where = append(where, goqu.I("l.borrower_id").Eq(f.BorrowerID))
	}
	if f.OpenOnly {
		where = append(where, goqu.I("l.return_date").IsNull())
	}
	if !f.DueBefore.IsZero() {
		where = append(where, goqu.I("l.due_date").Lt(f.DueBefore))
	}
	if !f.DueFrom.IsZero() {
		where = append(where, goqu.I("l.due_date").Gte(f.DueFrom))
	}
	if !f.BorrowedFrom.IsZero() {
		where = append(where, goqu.I("l.borrow_date").Gte(f.BorrowedFrom))
	}
	if !f.BorrowedTo.IsZero() {
		where = append(where, goqu.I("l.borrow_date").Lte(f.BorrowedTo))
	}
	return where
}

func (a *SQLAdapter) WithinTx(ctx context.Context, fn func(tx port.LendingTx) error) error {
	return a.inTx(ctx, func(tx *sqlx.Tx) error {
		return fn(&sqlTx{tx: tx, dialect: a.dialect})
	})
}

func (a *SQLAdapter) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type sqlTx struct {
	tx      *sqlx.Tx
	dialect goqu.DialectWrapper
}

func (t *sqlTx) BookForUpdate(ctx context.Context, id string) (*domain.Book, error) {
	ds := t.dialect.From(tableBooks).
		Select(bookColumns...).
		Where(goqu.C("id").Eq(id)).
		ForUpdate(exp.Wait)

	return getBook(ctx, t.tx, ds)
}

func (t *sqlTx) Borrower(ctx context.Context, id string) (*domain.Borrower, error) {
	return getBorrower(ctx, t.tx, t.dialect, id)
}

func (t *sqlTx) OpenLoan(ctx context.Context, bookID, borrowerID string) (*domain.Loan, error) {
	ds := t.dialect.From(tableLoans).
		Select(loanColumns...).
		Where(
			goqu.C("book_id").Eq(bookID),
			goqu.C("borrower_id").Eq(borrowerID),
			goqu.C("return_date").IsNull(),
		)

	var row loanRow
	found, err := getOne(ctx, t.tx, &row, ds)
	if err != nil {
		return nil, fmt.Errorf("query open loan: %w", err)
	}
	if !found {
		return nil, nil
	}

	loan := row.toDomain()
	return &loan, nil
}

func (t *sqlTx) InsertLoan(ctx context.Context, loan domain.Loan) error {
	stmt := t.dialect.Insert(tableLoans).Rows(goqu.Record{
		"id":          loan.ID,
		"book_id":     loan.BookID,
		"borrower_id": loan.BorrowerID,
		"borrow_date": loan.BorrowDate,
		"due_date":    loan.DueDate,
	}).Prepared(true)

	if _, err := execStatement(ctx, t.tx, stmt); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyCheckedOut
		}
		return fmt.Errorf("insert loan: %w", err)
	}
	return nil
}

func (t *sqlTx) CloseLoan(ctx context.Context, loanID string, returnedAt time.Time) error {
	stmt := t.dialect.Update(tableLoans).
		Set(goqu.Record{"return_date": returnedAt}).
		Where(goqu.C("id").Eq(loanID), goqu.C("return_date").IsNull()).
		Prepared(true)

	result, err := execStatement(ctx, t.tx, stmt)
	if err != nil {
		return fmt.Errorf("close loan: %w", err)
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		return domain.ErrNotCheckedOut
	}
	return nil
}

func (t *sqlTx) AdjustBookQuantity(ctx context.Context, bookID string, delta int) error {
	stmt := t.dialect.Update(tableBooks).
		Set(goqu.Record{
			"quantity":   goqu.L("quantity + ?", delta),
			"updated_at": time.Now().UTC(),
		}).
		Where(goqu.C("id").Eq(bookID), goqu.L("quantity + ? >= 0", delta)).
		Prepared(true)

	result, err := execStatement(ctx, t.tx, stmt)
	if err != nil {
		return fmt.Errorf("adjust quantity: %w", err)
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		return domain.ErrOutOfStock
	}
	return nil
}

type statement interface {
	ToSQL() (string, []any, error)
}

func execStatement(ctx context.Context, e sqlx.ExecerContext, stmt statement) (sql.Result, error) {
	query, args, err := stmt.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build statement: %w", err)
	}
	return e.ExecContext(ctx, query, args...)
}

func selectAll(ctx context.Context, q sqlx.QueryerContext, dest any, ds *goqu.SelectDataset) error {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return sqlx.SelectContext(ctx, q, dest, query, args...)
}

func getOne(ctx context.Context, q sqlx.QueryerContext, dest any, ds *goqu.SelectDataset) (bool, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	err = sqlx.GetContext(ctx, q, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
