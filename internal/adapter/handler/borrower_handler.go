package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rl1809/library-lending/internal/core/domain"
)

type createBorrowerRequest struct {
	Name  string  `json:"name" validate:"required,max=255"`
	Email string  `json:"email" validate:"required,email,max=255"`
	Phone *string `json:"phone" validate:"omitempty,max=255"`
}

type updateBorrowerRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=255"`
	Email *string `json:"email" validate:"omitempty,email,max=255"`
	Phone *string `json:"phone" validate:"omitempty,max=255"`
}

func (h *HTTPHandler) ListBorrowers(w http.ResponseWriter, r *http.Request) {
	borrowers, err := h.borrowers.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	views := make([]borrowerView, 0, len(borrowers))
	for _, b := range borrowers {
		views = append(views, newBorrowerView(b))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *HTTPHandler) GetBorrower(w http.ResponseWriter, r *http.Request) {
	borrower, err := h.borrowers.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newBorrowerView(*borrower))
}

func (h *HTTPHandler) CreateBorrower(w http.ResponseWriter, r *http.Request) {
	var req createBorrowerRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	borrower, err := h.borrowers.Create(r.Context(), domain.NewBorrower{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, newBorrowerView(*borrower))
}

func (h *HTTPHandler) UpdateBorrower(w http.ResponseWriter, r *http.Request) {
	var req updateBorrowerRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	borrower, err := h.borrowers.Update(r.Context(), mux.Vars(r)["id"], domain.BorrowerPatch{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newBorrowerView(*borrower))
}

func (h *HTTPHandler) DeleteBorrower(w http.ResponseWriter, r *http.Request) {
	if err := h.borrowers.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
