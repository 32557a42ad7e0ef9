package pipeline

import "github.com/hzhu/voucher-scan/internal/chart"

// ResolveSubject maps a possibly incomplete or misspelled (code, name) pair
// to its canonical chart entry. A valid code is authoritative: the registry
// name overrides whatever name came with it. Otherwise a non-empty name is
// fuzzy-matched. Returns ok=false when nothing resolved; callers then keep
// their original values untouched.
func ResolveSubject(reg *chart.Registry, code, name string) (string, string, bool) {
	if code != "" {
		if entry, found := reg.LookupByCode(code); found {
			return entry.Code, entry.Name, true
		}
	}
	if name != "" {
		if entry, found := reg.FuzzyMatch(name); found {
			return entry.Code, entry.Name, true
		}
	}
	return "", "", false
}

// resolveSubjects fixes up every entry's subject in place. Only the subject
// code and name are touched, and only on a positive match.
func resolveSubjects(reg *chart.Registry, rec *VoucherRecord) {
	for i := range rec.Entries {
		e := &rec.Entries[i]
		if code, name, ok := ResolveSubject(reg, e.SubjectCode, e.SubjectName); ok {
			e.SubjectCode = code
			e.SubjectName = name
		}
	}
}
