package domain

import "time"

type Book struct {
	ID            string
	Title         string
	Author        string
	ISBN          string
	Quantity      int // copies on the shelf
	ShelfLocation string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewBook carries the caller-supplied fields of a book; id, ISBN and
// timestamps are assigned by the service.
type NewBook struct {
	Title         string
	Author        string
	Quantity      int
	ShelfLocation string
}

// BookPatch holds a partial update. Nil fields are left unchanged.
type BookPatch struct {
	Title         *string
	Author        *string
	ISBN          *string
	Quantity      *int
	ShelfLocation *string
}

func (b *Book) Apply(p BookPatch) {
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.Author != nil {
		b.Author = *p.Author
	}
	if p.ISBN != nil {
		b.ISBN = *p.ISBN
	}
	if p.Quantity != nil {
		b.Quantity = *p.Quantity
	}
	if p.ShelfLocation != nil {
		b.ShelfLocation = *p.ShelfLocation
	}
}

// BookSearch matches books satisfying ANY of the non-empty criteria.
type BookSearch struct {
	Title  string
	Author string
	ISBN   string
}

func (s BookSearch) Empty() bool {
	return s.Title == "" && s.Author == "" && s.ISBN == ""
}
