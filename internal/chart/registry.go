// Package chart holds the fixed chart of accounts and lookup logic over it.
package chart

import "strings"

// Entry is one account in the chart of accounts.
type Entry struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// Registry is an immutable chart-of-accounts lookup table. It is built once
// at startup and safe for concurrent use without locking.
type Registry struct {
	entries []Entry
	byCode  map[string]int
	byName  map[string]int
}

// NewRegistry builds a registry from the built-in subject table.
func NewRegistry() *Registry {
	return NewRegistryFrom(subjectTable)
}

// NewRegistryFrom builds a registry from the given entries, preserving their
// order. Categories are derived from the first digit of each code.
func NewRegistryFrom(entries []Entry) *Registry {
	r := &Registry{
		entries: make([]Entry, 0, len(entries)),
		byCode:  make(map[string]int, len(entries)),
		byName:  make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		if e.Code == "" {
			continue
		}
		if e.Category == "" {
			e.Category = CategoryOf(e.Code)
		}
		if _, dup := r.byCode[e.Code]; dup {
			continue
		}
		r.byCode[e.Code] = len(r.entries)
		if _, dup := r.byName[e.Name]; !dup {
			r.byName[e.Name] = len(r.entries)
		}
		r.entries = append(r.entries, e)
	}
	return r
}

// CategoryOf returns the category for a subject code, or "未知" when the
// leading digit is not a known class.
func CategoryOf(code string) string {
	if code == "" {
		return "未知"
	}
	if name, ok := categoryNames[code[0]]; ok {
		return name
	}
	return "未知"
}

// Len returns the number of entries in the registry.
func (r *Registry) Len() int { return len(r.entries) }

// Entries returns a copy of all entries in registry order.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// LookupByCode returns the entry for an exact subject code.
func (r *Registry) LookupByCode(code string) (Entry, bool) {
	if i, ok := r.byCode[code]; ok {
		return r.entries[i], true
	}
	return Entry{}, false
}

// LookupByName returns the entry whose name exactly matches.
func (r *Registry) LookupByName(name string) (Entry, bool) {
	if i, ok := r.byName[name]; ok {
		return r.entries[i], true
	}
	return Entry{}, false
}

// FuzzyMatch resolves free text against the chart. Text that is itself a
// valid code resolves directly. Otherwise entries are scanned in registry
// order and the first one whose name contains the text, or whose name is
// contained in the text, wins. Returns false when nothing matches.
func (r *Registry) FuzzyMatch(text string) (Entry, bool) {
	if text == "" {
		return Entry{}, false
	}
	if e, ok := r.LookupByCode(text); ok {
		return e, true
	}
	if e, ok := r.LookupByName(text); ok {
		return e, true
	}
	for _, e := range r.entries {
		if strings.Contains(e.Name, text) || strings.Contains(text, e.Name) {
			return e, true
		}
	}
	return Entry{}, false
}
