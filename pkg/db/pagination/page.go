package pagination

const (
	DefaultPerPage = 15
	MaxPerPage     = 100
)

// Page is the offset flavour used by record listings.
type Page struct {
	Page    int `form:"page,default=1"`
	PerPage int `form:"per_page,default=15"`
}

// Normalize clamps page and per_page to sane bounds.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage <= 0 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	return p
}

func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.PerPage
}

func (p Page) Limit() int {
	return p.Normalize().PerPage
}

type PageMeta struct {
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
	LastPage    int   `json:"last_page"`
}

func NewPageMeta(p Page, total int64) PageMeta {
	n := p.Normalize()
	last := 1
	if total > 0 {
		last = int((total + int64(n.PerPage) - 1) / int64(n.PerPage))
	}
	return PageMeta{
		CurrentPage: n.Page,
		PerPage:     n.PerPage,
		Total:       total,
		LastPage:    last,
	}
}
