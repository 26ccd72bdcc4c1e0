package storage

// ErrNotFound is returned when a chunk doesn't exist in the store.
type ErrNotFound struct {
	ID string
}

func (e ErrNotFound) Error() string {
	if e.ID == "" {
		return "chunk not found"
	}

	return "chunk not found: " + e.ID
}
