package handler

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/rl1809/library-lending/internal/adapter/export"
	"github.com/rl1809/library-lending/internal/core/domain"
)

const dateOnly = "2006-01-02"

func (h *HTTPHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	loan, err := h.lending.Checkout(r.Context(), vars["bookId"], vars["borrowerId"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, lendingResponse{
		Message: "Book checked out successfully",
		Loan:    newLoanView(loan, h.now()),
	})
}

func (h *HTTPHandler) Return(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	loan, err := h.lending.Return(r.Context(), vars["bookId"], vars["borrowerId"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, lendingResponse{
		Message: "Book returned successfully",
		Loan:    newLoanView(loan, h.now()),
	})
}

func (h *HTTPHandler) CheckedOut(w http.ResponseWriter, r *http.Request) {
	groups, err := h.lending.CheckedOut(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newCheckedOutViews(groups))
}

func (h *HTTPHandler) CheckedOutBy(w http.ResponseWriter, r *http.Request) {
	details, err := h.lending.CheckedOutBy(r.Context(), mux.Vars(r)["borrowerId"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newBorrowedBookViews(details))
}

func (h *HTTPHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	details, err := h.lending.Overdue(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newOverdueViews(details))
}

func (h *HTTPHandler) Export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	format, err := export.ParseFormat(q.Get("format"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	from, err := parseDate("dateFrom", q.Get("dateFrom"), false)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	to, err := parseDate("dateTo", q.Get("dateTo"), true)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	details, err := h.lending.LoansBetween(r.Context(), from, to)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeExport(w, r, format, details)
}

func (h *HTTPHandler) ExportLastMonth(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	scope := domain.ExportScope(q.Get("type"))
	if scope != domain.ExportScopeOverdue && scope != domain.ExportScopeAll {
		h.writeError(w, r, domain.ErrInvalidExportScope)
		return
	}

	format, err := export.ParseFormat(q.Get("format"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	details, err := h.lending.LastMonth(r.Context(), scope)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeExport(w, r, format, details)
}

// writeExport renders into memory first so a rendering failure still gets a JSON error.
func (h *HTTPHandler) writeExport(w http.ResponseWriter, r *http.Request, format export.Format, details []domain.LoanDetail) {
	var buf bytes.Buffer
	if err := export.Write(&buf, format, details); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", "attachment; filename="+format.Filename())
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// parseDate accepts RFC 3339 or a bare date. A bare date used as an upper bound
// covers the whole day.
func parseDate(name, value string, endOfDay bool) (time.Time, error) {
	if value == "" {
		return time.Time{}, badRequest(name + " is required")
	}

	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}

	t, err := time.ParseInLocation(dateOnly, value, time.UTC)
	if err != nil {
		return time.Time{}, badRequest(name + " must be an RFC 3339 timestamp or a YYYY-MM-DD date")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Microsecond)
	}
	return t, nil
}
