package pagination

// Page represents an offset-paginated result set along with the total number
// of rows matching the filter, so clients can page without a final probe
// request.
type Page[T any] struct {
	Items    []T   `json:"items"`
	Total    int64 `json:"total"`
	Returned int   `json:"returned"`
	Offset   int   `json:"offset"`
	Limit    int   `json:"limit"`
}

// NewPage wraps items in a Page envelope. A nil items slice is normalized to
// an empty one so JSON encodes [] rather than null.
func NewPage[T any](items []T, total int64, offset, limit int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:    items,
		Total:    total,
		Returned: len(items),
		Offset:   offset,
		Limit:    limit,
	}
}
