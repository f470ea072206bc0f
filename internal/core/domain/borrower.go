package domain

import "time"

type Borrower struct {
	ID        string
	Name      string
	Email     string
	Phone     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type NewBorrower struct {
	Name  string
	Email string
	Phone *string
}

// BorrowerPatch holds a partial update. Nil fields are left unchanged, an empty
// phone clears it.
type BorrowerPatch struct {
	Name  *string
	Email *string
	Phone *string
}

func (b *Borrower) Apply(p BorrowerPatch) {
	if p.Name != nil {
		b.Name = *p.Name
	}
	if p.Email != nil {
		b.Email = *p.Email
	}
	if p.Phone != nil {
		b.Phone = OptionalString(*p.Phone)
	}
}

// OptionalString maps the empty string to nil.
func OptionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
