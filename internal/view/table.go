package view

// Query is everything the table endpoint accepts.
type Query struct {
	Filters  Filters
	Sort     SortConfig
	GroupBy  string
	Page     int
	PageSize int
}

type Table struct {
	Groups   []Group `json:"groups"`
	Total    int     `json:"total"`
	Page     int     `json:"page"`
	PageSize int     `json:"pageSize"`
	Pages    int     `json:"pages"`
}

// Build filters and sorts rows, then either pages them into a single group
// or, when grouping, partitions the whole filtered set. Groups are never
// paged so no row is split off from its group.
func Build(rows []Row, q Query) Table {
	rows = Filter(rows, q.Filters)
	Sort(rows, q.Sort)

	if q.GroupBy == "" || q.GroupBy == NoGroup {
		p := Paginate(rows, q.Page, q.PageSize)
		g := newGroup("", p.Rows, len(rows))
		return Table{
			Groups:   []Group{g},
			Total:    p.Total,
			Page:     p.Page,
			PageSize: p.PageSize,
			Pages:    p.Pages,
		}
	}

	return Table{
		Groups:   GroupBy(rows, q.GroupBy),
		Total:    len(rows),
		Page:     1,
		PageSize: len(rows),
		Pages:    1,
	}
}

// Options lists the distinct values the filter controls offer, in first
// appearance order.
type Options struct {
	Centers    []string `json:"centers"`
	Sources    []string `json:"sources"`
	Associates []string `json:"associates"`
	Stages     []string `json:"stages"`
	Statuses   []string `json:"statuses"`
	Presets    []string `json:"presets"`
}

func OptionsOf(rows []Row) Options {
	o := Options{Presets: Presets()}
	o.Centers = distinct(rows, "center")
	o.Sources = distinct(rows, "source")
	o.Associates = distinct(rows, "associate")
	o.Stages = distinct(rows, "stage")
	o.Statuses = distinct(rows, "status")
	return o
}

func distinct(rows []Row, field string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, r := range rows {
		v := r.Lead.Field(field)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
