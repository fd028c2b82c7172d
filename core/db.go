package core

// Pagination limits a list query to a single page of results.
type Pagination struct {
	Page     int `query:"page"`
	PageSize int `query:"page_size"`
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func (p *Pagination) Clean() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = defaultPageSize
	} else if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}
