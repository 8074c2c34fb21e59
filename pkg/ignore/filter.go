// Package ignore compiles a site's Ignore rows into an O(1) membership
// predicate applied by the tree walker at exactly two points: a listing
// entry's extension, and a directory's full path before descending.
package ignore

import (
	"path"
	"strings"

	"github.com/arkhold/ftpvault/pkg/model"
)

// Filter is a compiled per-site predicate over (attribute, operand) pairs.
type Filter struct {
	byAttribute map[model.IgnoreAttribute]map[string]struct{}
}

// Compile builds a Filter from a site's Ignore rows.
func Compile(rules []model.Ignore) *Filter {
	f := &Filter{byAttribute: make(map[model.IgnoreAttribute]map[string]struct{})}
	for _, r := range rules {
		set, ok := f.byAttribute[r.Attribute]
		if !ok {
			set = make(map[string]struct{})
			f.byAttribute[r.Attribute] = set
		}
		set[r.Operand] = struct{}{}
	}
	return f
}

// Matches reports whether value is ignored under attribute.
func (f *Filter) Matches(attribute model.IgnoreAttribute, value string) bool {
	if f == nil {
		return false
	}
	set, ok := f.byAttribute[attribute]
	if !ok {
		return false
	}
	_, ignored := set[value]
	return ignored
}

// MatchesExt reports whether fullName's extension (the characters after
// its last '.', empty if none) is ignored.
func (f *Filter) MatchesExt(fullName string) bool {
	ext := extensionOf(fullName)
	if ext == "" {
		return false
	}
	return f.Matches(model.IgnoreExt, ext)
}

// MatchesPath reports whether fullPath itself is ignored, applied before
// the walker CWDs into a directory.
func (f *Filter) MatchesPath(fullPath string) bool {
	return f.Matches(model.IgnorePath, fullPath)
}

func extensionOf(fullName string) string {
	base := path.Base(fullName)
	idx := strings.LastIndex(base, ".")
	if idx <= 0 { // no dot, or a dotfile with no extension of its own ("." at position 0)
		return ""
	}
	return base[idx+1:]
}
