package sessions

// Repo gives access to browser sessions by id.
type Repo interface {
	// Get returns the live session, loading it from durable storage when it has credentials there.
	Get(id string) (*Session, error)
	Create() (*Session, error)
	Delete(id string) error
}
