package domain

import (
	"path"
	"strings"
)

// CategoryOptions holds per-category overrides. An empty SavePath means the
// category path is derived from the session default save path.
type CategoryOptions struct {
	SavePath string
}

// IsValidCategoryName reports whether a category name is acceptable:
// non-empty, and no empty segments adjacent to the '/' separator
// ("a//b", "/a", "a/" are all invalid).
func IsValidCategoryName(name string) bool {
	if name == "" {
		return false
	}
	for _, segment := range strings.Split(name, "/") {
		if strings.TrimSpace(segment) == "" {
			return false
		}
		if strings.ContainsRune(segment, '\\') {
			return false
		}
	}
	return true
}

// ParentCategoryName returns the parent of a hierarchical category name, or
// "" for a top-level category.
func ParentCategoryName(name string) string {
	idx := strings.LastIndex(name, "/")
	if idx < 0 {
		return ""
	}
	return name[:idx]
}

// SubcategoryName returns the last segment of a hierarchical category name.
func SubcategoryName(name string) string {
	idx := strings.LastIndex(name, "/")
	if idx < 0 {
		return name
	}
	return name[idx+1:]
}

// ExpandCategory returns the category itself plus every ancestor, outermost
// first: ExpandCategory("a/b/c") = ["a", "a/b", "a/b/c"].
func ExpandCategory(name string) []string {
	if name == "" {
		return nil
	}
	segments := strings.Split(name, "/")
	expanded := make([]string, 0, len(segments))
	for i := range segments {
		expanded = append(expanded, strings.Join(segments[:i+1], "/"))
	}
	return expanded
}

// IsSubcategory reports whether candidate is a strict descendant of parent.
func IsSubcategory(parent, candidate string) bool {
	return strings.HasPrefix(candidate, parent+"/")
}

// CategorySavePath resolves the effective save path for a category given the
// session default. An explicit category SavePath wins; otherwise the category
// name (as a relative path) is appended to the default.
func CategorySavePath(defaultSavePath, name string, options CategoryOptions) string {
	if options.SavePath != "" {
		return options.SavePath
	}
	if name == "" {
		return defaultSavePath
	}
	return path.Join(defaultSavePath, name)
}

// Tag is a simple deduplicated torrent label.
type Tag string

func (t Tag) IsValid() bool {
	trimmed := strings.TrimSpace(string(t))
	return trimmed != "" && trimmed == string(t) && !strings.ContainsRune(string(t), ',')
}
