package users

// Repo is the principal directory: read-mostly resolution of users by opaque
// id or by email. Callers do not cache results across calls.
type Repo interface {
	Upsert(user *User) error
	Delete(email string) error
	GetByEmail(email string) (*User, error)
	GetByID(id string) (*User, error)
	List(offset, limit int) ([]*User, error)
}
