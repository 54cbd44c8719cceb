package shared

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Page describes limit/offset pagination for list queries.
type Page struct {
	Limit  int
	Offset int
}

// NormalizePage clamps limit and offset to sane bounds.
func NormalizePage(limit, offset int) Page {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return Page{Limit: limit, Offset: offset}
}
