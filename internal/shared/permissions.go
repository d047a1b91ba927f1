package shared

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizeCode trims and upper-cases a role or view code so comparisons are
// case-insensitive. A Caser is stateful, so one is built per call.
func NormalizeCode(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	return cases.Upper(language.Und).String(code)
}

// PermissionSet is an immutable set of normalized view codes.
type PermissionSet struct {
	codes map[string]struct{}
}

// NewPermissionSet builds a set from raw codes. Blank codes are dropped.
func NewPermissionSet(codes ...string) PermissionSet {
	set := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		code = NormalizeCode(code)
		if code == "" {
			continue
		}
		set[code] = struct{}{}
	}
	return PermissionSet{codes: set}
}

// Has reports whether code is granted.
func (p PermissionSet) Has(code string) bool {
	_, ok := p.codes[NormalizeCode(code)]
	return ok
}

// Len returns the number of granted codes.
func (p PermissionSet) Len() int {
	return len(p.codes)
}

// Sorted returns the codes in lexical order.
func (p PermissionSet) Sorted() []string {
	out := make([]string, 0, len(p.codes))
	for code := range p.codes {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether both sets hold the same codes.
func (p PermissionSet) Equal(other PermissionSet) bool {
	if len(p.codes) != len(other.codes) {
		return false
	}
	for code := range p.codes {
		if _, ok := other.codes[code]; !ok {
			return false
		}
	}
	return true
}
