package models

import "fmt"

// Category is the recording source folder a clip was found in.
type Category string

const (
	CategorySaved  Category = "saved"
	CategorySentry Category = "sentry"
	CategoryRecent Category = "recent"
	CategoryCustom Category = "custom" // root folder without TeslaCam layout
	CategoryAll    Category = "all"    // filter value only
)

// Dir returns the on-disk folder name for the category.
func (c Category) Dir() string {
	switch c {
	case CategorySaved:
		return "SavedClips"
	case CategorySentry:
		return "SentryClips"
	case CategoryRecent:
		return "RecentClips"
	default:
		return ""
	}
}

// Expand resolves a filter value into the concrete categories it covers.
func (c Category) Expand() []Category {
	if c == CategoryAll {
		return []Category{CategorySaved, CategorySentry, CategoryRecent}
	}
	return []Category{c}
}

// CategoryValues returns valid filter values.
func CategoryValues() []string {
	return []string{string(CategoryAll), string(CategorySaved), string(CategorySentry), string(CategoryRecent)}
}

// ParseCategory validates a category filter value.
func ParseCategory(s string) (Category, error) {
	for _, v := range CategoryValues() {
		if s == v {
			return Category(s), nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}
