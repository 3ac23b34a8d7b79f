package users

import "context"

// MemoryRepo is a simple in-memory Repository useful for tests and early
// development.
//
// NOTE: This is not intended for production; the SQL repository is the real
// implementation.
type MemoryRepo struct {
	Users []User

	PhoneLookups int
}

func (r *MemoryRepo) ByPhone(ctx context.Context, phone string) (User, error) {
	_ = ctx
	r.PhoneLookups++
	for _, u := range r.Users {
		if u.PhoneNumber == phone {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *MemoryRepo) ByID(ctx context.Context, id string) (User, error) {
	_ = ctx
	for _, u := range r.Users {
		if u.ID == id {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}
