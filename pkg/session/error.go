package session

// NotFoundError is returned when a session doesn't exist in the store.
type NotFoundError struct {
	ID ID
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return "session not found"
	}

	return "session not found: " + string(e.ID)
}
