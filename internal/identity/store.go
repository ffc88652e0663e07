package identity

import "context"

// Store is the persistence boundary for user accounts.
type Store interface {
	// Create inserts a new user with the given email and bcrypt hash.
	// Returns [ErrDuplicateEmail] when the address is taken.
	Create(ctx context.Context, email, passwordHash string) (User, error)

	// GetByEmail looks a user up by email. Returns [ErrNotFound] when no
	// such account exists.
	GetByEmail(ctx context.Context, email string) (User, error)

	// GetByID looks a user up by numeric id. Returns [ErrNotFound] when no
	// such account exists.
	GetByID(ctx context.Context, id int64) (User, error)
}
