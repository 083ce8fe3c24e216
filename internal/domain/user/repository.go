package user

import "context"

// Repository defines the interface for user data access
// This interface is defined in the domain layer, but implemented in the infrastructure layer
type Repository interface {
	// Get returns ErrUserNotFound when no record exists
	Get(ctx context.Context, messengerUserID string) (*User, error)

	// Save inserts or replaces the record, including its mappings
	Save(ctx context.Context, u *User) error

	// Delete removes the record and its mappings
	Delete(ctx context.Context, messengerUserID string) error

	// List returns every stored user id
	List(ctx context.Context) ([]string, error)
}
