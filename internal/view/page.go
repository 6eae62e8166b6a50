package view

const (
	DefaultPageSize = 25
	MaxPageSize     = 500
)

type Page struct {
	Rows     []Row `json:"leads"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int   `json:"total"`
	Pages    int   `json:"pages"`
}

// Paginate returns 1-based page of rows. Out-of-range pages clamp to the
// nearest valid page.
func Paginate(rows []Row, page, size int) Page {
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	p := Page{PageSize: size, Total: len(rows)}
	p.Pages = (len(rows) + size - 1) / size
	if p.Pages == 0 {
		p.Pages = 1
	}
	switch {
	case page < 1:
		page = 1
	case page > p.Pages:
		page = p.Pages
	}
	p.Page = page

	start := (page - 1) * size
	end := start + size
	if end > len(rows) {
		end = len(rows)
	}
	p.Rows = append([]Row{}, rows[start:end]...)
	return p
}
