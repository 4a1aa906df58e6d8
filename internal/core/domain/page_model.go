package domain

// Page bounds a repository listing query. Number is 1-based.
type Page struct {
	Number int
	Size   int
}

// NewPage clamps out-of-range values to the first page of ten rows.
func NewPage(pageNumber, pageSize int) Page {
	number := 1
	if pageNumber > 0 {
		number = pageNumber
	}

	size := 10
	if pageSize > 0 {
		size = pageSize
	}

	return Page{
		Number: number,
		Size:   size,
	}
}
