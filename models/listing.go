package models

// Listing is every segment file discovered in one folder.
type Listing struct {
	Folder   string
	Category Category
	Paths    []string
}
