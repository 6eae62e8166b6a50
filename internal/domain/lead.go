package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// FollowUpSlots is the number of scheduled contact attempts tracked per lead.
const FollowUpSlots = 4

// Defaults applied to leads that arrive without the field.
const (
	DefaultName   = "Unknown"
	DefaultSource = "Other"
	DefaultStatus = "New"
	DefaultStage  = "Initial Contact"
)

// DateLayout is the canonical format of Lead.CreatedAt.
const DateLayout = "2006-01-02"

type FollowUp struct {
	Date     string
	Comments string
}

// Done reports whether the slot carries a contact date.
// The dashboard writes "-" into skipped slots; those count as empty.
func (f FollowUp) Done() bool {
	d := strings.TrimSpace(f.Date)
	return d != "" && d != "-"
}

type Lead struct {
	ID        string
	FullName  string
	Email     string
	Phone     string
	Source    string
	Associate string
	Status    string
	Stage     string
	CreatedAt string
	Center    string
	Remarks   string
	FollowUps [FollowUpSlots]FollowUp

	// Extra holds spreadsheet columns that do not map to a core field.
	Extra map[string]string
}

// Core JSON keys, in the order the dashboard expects them.
var coreKeys = []string{
	"id", "fullName", "email", "phone", "source", "associate",
	"status", "stage", "createdAt", "center", "remarks",
}

// FollowUpDateKey returns the JSON key of slot i (0-based) date.
func FollowUpDateKey(i int) string { return fmt.Sprintf("followUp%dDate", i+1) }

// FollowUpCommentsKey returns the JSON key of slot i (0-based) comments.
func FollowUpCommentsKey(i int) string { return fmt.Sprintf("followUp%dComments", i+1) }

// IsCoreKey reports whether key names a core field or follow-up slot.
func IsCoreKey(key string) bool {
	for _, k := range coreKeys {
		if k == key {
			return true
		}
	}
	_, _, ok := parseFollowUpKey(key)
	return ok
}

func parseFollowUpKey(key string) (slot int, comments bool, ok bool) {
	rest, found := strings.CutPrefix(key, "followUp")
	if !found || len(rest) < 2 {
		return 0, false, false
	}
	n, err := strconv.Atoi(rest[:1])
	if err != nil || n < 1 || n > FollowUpSlots {
		return 0, false, false
	}
	switch rest[1:] {
	case "Date":
		return n - 1, false, true
	case "Comments":
		return n - 1, true, true
	}
	return 0, false, false
}

// Field returns the value stored under a JSON key, core or extra.
func (l Lead) Field(key string) string {
	switch key {
	case "id":
		return l.ID
	case "fullName":
		return l.FullName
	case "email":
		return l.Email
	case "phone":
		return l.Phone
	case "source":
		return l.Source
	case "associate":
		return l.Associate
	case "status":
		return l.Status
	case "stage":
		return l.Stage
	case "createdAt":
		return l.CreatedAt
	case "center":
		return l.Center
	case "remarks":
		return l.Remarks
	}
	if slot, comments, ok := parseFollowUpKey(key); ok {
		if comments {
			return l.FollowUps[slot].Comments
		}
		return l.FollowUps[slot].Date
	}
	return l.Extra[key]
}

// SetField stores value under a JSON key. Unknown keys go to Extra.
func (l *Lead) SetField(key, value string) {
	switch key {
	case "id":
		l.ID = value
	case "fullName":
		l.FullName = value
	case "email":
		l.Email = value
	case "phone":
		l.Phone = value
	case "source":
		l.Source = value
	case "associate":
		l.Associate = value
	case "status":
		l.Status = value
	case "stage":
		l.Stage = value
	case "createdAt":
		l.CreatedAt = value
	case "center":
		l.Center = value
	case "remarks":
		l.Remarks = value
	default:
		if slot, comments, ok := parseFollowUpKey(key); ok {
			if comments {
				l.FollowUps[slot].Comments = value
			} else {
				l.FollowUps[slot].Date = value
			}
			return
		}
		if l.Extra == nil {
			l.Extra = make(map[string]string)
		}
		l.Extra[key] = value
	}
}

// ApplyDefaults fills the fields the dashboard never shows blank.
func (l *Lead) ApplyDefaults(now time.Time) {
	if strings.TrimSpace(l.FullName) == "" {
		l.FullName = DefaultName
	}
	if strings.TrimSpace(l.Source) == "" {
		l.Source = DefaultSource
	}
	if strings.TrimSpace(l.Status) == "" {
		l.Status = DefaultStatus
	}
	if strings.TrimSpace(l.Stage) == "" {
		l.Stage = DefaultStage
	}
	if strings.TrimSpace(l.CreatedAt) == "" {
		l.CreatedAt = now.Format(DateLayout)
	}
}

// CompletedFollowUps counts slots with a date.
func (l Lead) CompletedFollowUps() int {
	n := 0
	for _, f := range l.FollowUps {
		if f.Done() {
			n++
		}
	}
	return n
}

// Clone returns a deep copy; Extra is not shared.
func (l Lead) Clone() Lead {
	out := l
	if l.Extra != nil {
		out.Extra = make(map[string]string, len(l.Extra))
		for k, v := range l.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// ExtraKeys returns the extra field names in sorted order.
func (l Lead) ExtraKeys() []string {
	keys := make([]string, 0, len(l.Extra))
	for k := range l.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Fields returns every value keyed by its JSON name. Core fields win over
// extras that share a key.
func (l Lead) Fields() map[string]string {
	m := make(map[string]string, len(coreKeys)+2*FollowUpSlots+len(l.Extra))
	for k, v := range l.Extra {
		m[k] = v
	}
	for _, k := range coreKeys {
		m[k] = l.Field(k)
	}
	for i := range l.FollowUps {
		m[FollowUpDateKey(i)] = l.FollowUps[i].Date
		m[FollowUpCommentsKey(i)] = l.FollowUps[i].Comments
	}
	return m
}

// MarshalJSON flattens extras next to the core fields.
func (l Lead) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Fields())
}

func (l *Lead) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*l = Lead{}
	for k, v := range raw {
		switch tv := v.(type) {
		case nil:
			continue
		case string:
			l.SetField(k, tv)
		case float64, bool:
			l.SetField(k, fmt.Sprint(tv))
		default:
			// nested values are not part of the record schema
			continue
		}
	}
	return nil
}
