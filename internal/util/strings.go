package util

// ShortID truncates an ID to 8 characters for logs and tables.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
