// Package mapping turns spreadsheet rows into leads.
//
// Header resolution runs in two passes. An exact alias table is consulted
// first; only when no alias matches are the ordered substring rules tried,
// with the follow-up rules ahead of the generic name/date/comments rules so
// that "Follow Up 1 Date" can never be read as the creation date.
package mapping

import (
	"fmt"
	"strings"

	"leadboard-engine/internal/domain"
)

// Priority of a column for the field it maps to. Lower wins.
type Priority int

const (
	PriorityExact Priority = iota
	PrioritySubstring
	PriorityNone
)

// Column is the resolved target of one header.
type Column struct {
	Header   string   // original header text
	Field    string   // lead JSON key, "" when the column is extra
	Priority Priority // how Field was chosen
}

// Extra reports whether the column lands in Lead.Extra.
func (c Column) Extra() bool { return c.Field == "" }

// Plan is the column mapping for one sheet.
type Plan struct {
	Columns []Column
}

// Mode controls whether substring rules are consulted.
type Mode int

const (
	// Fuzzy uses exact aliases, then substring rules, then extras.
	Fuzzy Mode = iota
	// ExactOnly uses the alias table only; everything else is extra.
	ExactOnly
)

var aliases = map[string]string{}

func alias(field string, names ...string) {
	for _, n := range names {
		aliases[NormalizeHeader(n)] = field
	}
}

func init() {
	alias("id", "id", "lead id")
	alias("fullName", "name", "full name", "client name", "lead name", "customer name")
	alias("email", "email", "email address", "email id", "e-mail")
	alias("phone", "phone", "phone number", "contact number", "mobile", "mobile number")
	alias("source", "source", "lead source")
	alias("associate", "associate", "assigned to", "assigned associate", "sales associate")
	alias("status", "status")
	alias("stage", "stage")
	alias("createdAt", "created at", "created", "created date", "date created", "date")
	alias("center", "center", "centre", "location")
	alias("remarks", "remarks", "notes", "comments")
	for i := 0; i < domain.FollowUpSlots; i++ {
		n := i + 1
		alias(domain.FollowUpDateKey(i),
			fmt.Sprintf("follow up %d date", n),
			fmt.Sprintf("followup%ddate", n),
		)
		alias(domain.FollowUpCommentsKey(i),
			fmt.Sprintf("follow up comments (%d)", n),
			fmt.Sprintf("follow up %d comments", n),
			fmt.Sprintf("followup%dcomments", n),
		)
	}
}

type rule struct {
	field string
	any   []string
}

// Checked in order; first hit wins.
var substringRules = func() []rule {
	var rules []rule
	for i := 0; i < domain.FollowUpSlots; i++ {
		n := i + 1
		rules = append(rules,
			rule{domain.FollowUpDateKey(i), []string{fmt.Sprintf("followup%ddate", n)}},
			rule{domain.FollowUpCommentsKey(i), []string{
				fmt.Sprintf("followupcomments(%d)", n),
				fmt.Sprintf("followup%dcomments", n),
			}},
		)
	}
	return append(rules,
		rule{"fullName", []string{"name", "client"}},
		rule{"email", []string{"email"}},
		rule{"phone", []string{"phone", "contact", "mobile"}},
		rule{"source", []string{"source"}},
		rule{"associate", []string{"associate", "assigned"}},
		rule{"createdAt", []string{"created", "date"}},
		rule{"center", []string{"center", "location"}},
		rule{"remarks", []string{"remarks", "notes", "comments"}},
	)
}()

// NormalizeHeader lowercases h, treats '-' and '_' as spaces and collapses
// runs of whitespace.
func NormalizeHeader(h string) string {
	h = strings.ToLower(h)
	h = strings.NewReplacer("-", " ", "_", " ").Replace(h)
	return strings.Join(strings.Fields(h), " ")
}

// ResolveHeader maps one header to a lead field.
func ResolveHeader(header string, mode Mode) Column {
	col := Column{Header: strings.TrimSpace(header), Priority: PriorityNone}
	norm := NormalizeHeader(header)
	if norm == "" {
		return col
	}
	if f, ok := aliases[norm]; ok {
		col.Field, col.Priority = f, PriorityExact
		return col
	}
	if mode == ExactOnly {
		return col
	}
	// Foreign keys such as "Source ID" or "Member ID" are data of their own,
	// not variants of the field their prefix names.
	if strings.HasSuffix(norm, " id") {
		return col
	}
	squashed := strings.ReplaceAll(norm, " ", "")
	for _, r := range substringRules {
		for _, needle := range r.any {
			if strings.Contains(squashed, needle) {
				col.Field, col.Priority = r.field, PrioritySubstring
				return col
			}
		}
	}
	return col
}

// Resolve builds the plan for a header row.
func Resolve(headers []string, mode Mode) Plan {
	p := Plan{Columns: make([]Column, len(headers))}
	for i, h := range headers {
		p.Columns[i] = ResolveHeader(h, mode)
	}
	return p
}

// Unmapped returns the headers that will be stored as extras.
func (p Plan) Unmapped() []string {
	var out []string
	for _, c := range p.Columns {
		if c.Extra() && c.Header != "" {
			out = append(out, c.Header)
		}
	}
	return out
}
