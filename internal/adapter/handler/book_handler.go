package handler

import (
	"cmp"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rl1809/library-lending/internal/core/domain"
)

type createBookRequest struct {
	Title         string `json:"title" validate:"required,max=255"`
	Author        string `json:"author" validate:"required,max=255"`
	Quantity      *int   `json:"quantity" validate:"required,min=0"`
	ShelfLocation string `json:"shelfLocation" validate:"required,max=255"`
}

type updateBookRequest struct {
	Title         *string `json:"title" validate:"omitempty,min=1,max=255"`
	Author        *string `json:"author" validate:"omitempty,min=1,max=255"`
	ISBN          *string `json:"isbn" validate:"omitempty,len=13,numeric"`
	Quantity      *int    `json:"quantity" validate:"omitempty,min=0"`
	ShelfLocation *string `json:"shelfLocation" validate:"omitempty,min=1,max=255"`
}

func (h *HTTPHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.books.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newBookViews(books))
}

func (h *HTTPHandler) SearchBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	books, err := h.books.Search(r.Context(), domain.BookSearch{
		Title:  q.Get("title"),
		Author: q.Get("author"),
		ISBN:   cmp.Or(q.Get("isbn"), q.Get("ISBN")),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newBookViews(books))
}

func (h *HTTPHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	book, err := h.books.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newBookView(*book))
}

func (h *HTTPHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var req createBookRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	book, err := h.books.Create(r.Context(), domain.NewBook{
		Title:         req.Title,
		Author:        req.Author,
		Quantity:      *req.Quantity,
		ShelfLocation: req.ShelfLocation,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, newBookView(*book))
}

func (h *HTTPHandler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	var req updateBookRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	book, err := h.books.Update(r.Context(), mux.Vars(r)["id"], domain.BookPatch{
		Title:         req.Title,
		Author:        req.Author,
		ISBN:          req.ISBN,
		Quantity:      req.Quantity,
		ShelfLocation: req.ShelfLocation,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newBookView(*book))
}

func (h *HTTPHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	if err := h.books.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
