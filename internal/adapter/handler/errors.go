package handler

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/rl1809/library-lending/internal/adapter/export"
	"github.com/rl1809/library-lending/internal/core/domain"
)

const internalErrorMessage = "internal error"

// requestError is a malformed request detected by the handler itself.
type requestError struct {
	message string
}

func (e *requestError) Error() string {
	return e.message
}

func badRequest(message string) error {
	return &requestError{message: message}
}

type errorResponse struct {
	Status  int          `json:"status"`
	Message string       `json:"message"`
	Errors  []fieldError `json:"errors,omitempty"`
}

type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

var errorStatuses = []struct {
	err    error
	status int
}{
	{domain.ErrBookNotFound, http.StatusNotFound},
	{domain.ErrBorrowerNotFound, http.StatusNotFound},
	{domain.ErrNoBooksMatch, http.StatusNotFound},
	{domain.ErrAlreadyCheckedOut, http.StatusBadRequest},
	{domain.ErrOutOfStock, http.StatusBadRequest},
	{domain.ErrNotCheckedOut, http.StatusBadRequest},
	{domain.ErrEmptySearch, http.StatusBadRequest},
	{domain.ErrInvalidDateRange, http.StatusBadRequest},
	{domain.ErrInvalidExportScope, http.StatusBadRequest},
	{export.ErrUnsupportedFormat, http.StatusBadRequest},
	{domain.ErrDuplicateBook, http.StatusConflict},
	{domain.ErrDuplicateBorrower, http.StatusConflict},
}

var clientMessages = map[error]string{
	domain.ErrBookNotFound:       "Book not found",
	domain.ErrBorrowerNotFound:   "Borrower not found",
	domain.ErrNoBooksMatch:       "No books found matching the search criteria.",
	domain.ErrAlreadyCheckedOut:  "Book is already checked out by this borrower",
	domain.ErrOutOfStock:         "Book is out of stock",
	domain.ErrNotCheckedOut:      "Book is not checked out by this borrower",
	domain.ErrEmptySearch:        "Provide at least one of title, author or isbn",
	domain.ErrInvalidDateRange:   "dateTo must not be before dateFrom",
	domain.ErrInvalidExportScope: `Invalid type. Please specify either "overdue" or "all"`,
	export.ErrUnsupportedFormat:  `Invalid format. Please specify either "csv" or "xlsx"`,
	domain.ErrDuplicateBook:      "A book with this title or ISBN already exists",
	domain.ErrDuplicateBorrower:  "A borrower with this email already exists",
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		writeMessage(w, http.StatusBadRequest, reqErr.message)
		return
	}

	var invalid validator.ValidationErrors
	if errors.As(err, &invalid) {
		resp := errorResponse{Status: http.StatusBadRequest, Message: "validation failed"}
		for _, fe := range invalid {
			resp.Errors = append(resp.Errors, fieldError{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()})
		}
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			writeMessage(w, e.status, clientMessages[e.err])
			return
		}
	}

	h.logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeMessage(w, http.StatusInternalServerError, internalErrorMessage)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Status: status, Message: message})
}
