package httpapi

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"leadboard-engine/internal/domain"
	"leadboard-engine/internal/repo"
	"leadboard-engine/internal/view"
)

const maxLeadBody = 1 << 20

type LeadsHandler struct {
	Repo   *repo.Repository
	CfgVal *atomic.Value // stores config.Config
	Now    func() time.Time
}

func (h LeadsHandler) List(w http.ResponseWriter, r *http.Request) {
	now := h.Now()
	q, err := parseQuery(r.URL.Query(), now)
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	rows := deriverFor(h.CfgVal).Rows(h.Repo.List(r.Context()), now)
	w.Header().Set("X-Leads-Origin", string(h.Repo.Origin()))
	writeJSON(w, view.Build(rows, q))
}

func (h LeadsHandler) Options(w http.ResponseWriter, r *http.Request) {
	rows := deriverFor(h.CfgVal).Rows(h.Repo.List(r.Context()), h.Now())
	writeJSON(w, view.OptionsOf(rows))
}

func (h LeadsHandler) GetByPath(w http.ResponseWriter, r *http.Request) {
	id, ok := leadID(w, r)
	if !ok {
		return
	}
	l, err := h.Repo.Get(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, deriverFor(h.CfgVal).Row(l, h.Now()))
}

func (h LeadsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var l domain.Lead
	if !decodeJSON(w, r, maxLeadBody, &l) {
		return
	}
	added, err := h.Repo.Add(r.Context(), l)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, deriverFor(h.CfgVal).Row(added, h.Now()))
}

// UpdateByPath merges the body into the stored lead: keys that are present
// replace the field, absent keys keep their value. The id comes from the
// path.
func (h LeadsHandler) UpdateByPath(w http.ResponseWriter, r *http.Request) {
	id, ok := leadID(w, r)
	if !ok {
		return
	}
	var patch map[string]any
	if !decodeJSON(w, r, maxLeadBody, &patch) {
		return
	}

	l, err := h.Repo.Get(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if err := applyPatch(&l, patch); err != nil {
		WriteError(w, r, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	// cleared core fields fall back to the same defaults as add and fetch
	l.ApplyDefaults(h.Now())

	updated, err := h.Repo.Update(r.Context(), l)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, deriverFor(h.CfgVal).Row(updated, h.Now()))
}

func (h LeadsHandler) DeleteByPath(w http.ResponseWriter, r *http.Request) {
	id, ok := leadID(w, r)
	if !ok {
		return
	}
	if err := h.Repo.Delete(r.Context(), id); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "id": id})
}

func leadID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/leads/"))
	if id == "" || strings.Contains(id, "/") {
		WriteError(w, r, http.StatusBadRequest, "bad_request", "invalid lead id")
		return "", false
	}
	return id, true
}

func applyPatch(l *domain.Lead, patch map[string]any) error {
	for k, v := range patch {
		if k == "id" {
			continue
		}
		switch tv := v.(type) {
		case nil:
			l.SetField(k, "")
		case string:
			l.SetField(k, tv)
		case float64, bool:
			l.SetField(k, fmt.Sprint(tv))
		default:
			return fmt.Errorf("field %q: nested values are not supported", k)
		}
	}
	return nil
}

// parseQuery reads the table query string. List parameters accept repeated
// keys or comma-separated values.
func parseQuery(v url.Values, now time.Time) (view.Query, error) {
	q := view.Query{
		Sort: view.SortConfig{
			Key:       v.Get("sort"),
			Direction: strings.ToLower(v.Get("dir")),
		},
		GroupBy: v.Get("group"),
		Filters: view.Filters{
			Search:     v.Get("q"),
			Statuses:   list(v, "status"),
			Stages:     list(v, "stage"),
			Sources:    list(v, "source"),
			Associates: list(v, "associate"),
			Centers:    list(v, "center"),
		},
	}
	if q.Sort.Direction == "" {
		q.Sort.Direction = view.Asc
	}
	if q.Sort.Direction != view.Asc && q.Sort.Direction != view.Desc {
		return q, fmt.Errorf("dir must be %q or %q", view.Asc, view.Desc)
	}

	var err error
	if q.Page, err = intParam(v, "page"); err != nil {
		return q, err
	}
	if q.PageSize, err = intParam(v, "pageSize"); err != nil {
		return q, err
	}

	if p := v.Get("preset"); p != "" {
		if q.Filters.Created, err = view.DateRange(p, now); err != nil {
			return q, fmt.Errorf("%w: %s", err, p)
		}
	}
	if s := v.Get("from"); s != "" {
		if q.Filters.Created.From, err = time.Parse(domain.DateLayout, s); err != nil {
			return q, fmt.Errorf("from: %w", err)
		}
	}
	if s := v.Get("to"); s != "" {
		if q.Filters.Created.To, err = time.Parse(domain.DateLayout, s); err != nil {
			return q, fmt.Errorf("to: %w", err)
		}
	}
	return q, nil
}

func list(v url.Values, key string) []string {
	var out []string
	for _, raw := range v[key] {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func intParam(v url.Values, key string) (int, error) {
	s := v.Get(key)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}
