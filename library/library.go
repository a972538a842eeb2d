// Package library discovers segment files on a dashcam drive.
//
// A TeslaCam root holds SavedClips, SentryClips and RecentClips. Saved and
// sentry clips live one folder deeper, grouped per trigger, so every
// category folder is scanned together with its immediate subfolders.
package library

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"teslacam/clipname"
	"teslacam/internal/logging"
	"teslacam/models"
)

// Scan lists segment files under root for the given category filter.
//
// When root contains none of the category folders it is treated as a plain
// folder of clips and scanned as CategoryCustom.
func Scan(root string, category models.Category) ([]models.Listing, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", root)
	}

	log := logging.WithComponent("library")

	var listings []models.Listing
	found := false
	for _, c := range category.Expand() {
		dir := filepath.Join(root, c.Dir())
		if c.Dir() == "" {
			continue
		}
		if st, err := os.Stat(dir); err != nil || !st.IsDir() {
			continue
		}
		found = true
		l, err := scanCategory(dir, c)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l...)
	}

	if !found && !hasAnyCategory(root) {
		l, err := scanCategory(root, models.CategoryCustom)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l...)
	}

	log.Debug().
		Str("root", root).
		Str("category", string(category)).
		Int("folders", len(listings)).
		Msg("scan complete")

	return listings, nil
}

func hasAnyCategory(root string) bool {
	for _, c := range models.CategoryAll.Expand() {
		if st, err := os.Stat(filepath.Join(root, c.Dir())); err == nil && st.IsDir() {
			return true
		}
	}
	return false
}

// scanCategory lists dir itself plus each immediate subfolder.
func scanCategory(dir string, category models.Category) ([]models.Listing, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var listings []models.Listing
	if paths := segmentFiles(dir, entries); len(paths) > 0 {
		listings = append(listings, models.Listing{Folder: dir, Category: category, Paths: paths})
	}

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		sub := filepath.Join(dir, entry.Name())
		subEntries, err := os.ReadDir(sub)
		if err != nil {
			log := logging.WithComponent("library")
			log.Warn().Err(err).Str("folder", sub).Msg("skipping unreadable folder")
			continue
		}
		if paths := segmentFiles(sub, subEntries); len(paths) > 0 {
			listings = append(listings, models.Listing{Folder: sub, Category: category, Paths: paths})
		}
	}
	return listings, nil
}

func segmentFiles(dir string, entries []os.DirEntry) []string {
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.EqualFold(filepath.Ext(name), clipname.Extension) {
			continue
		}
		if _, ok := clipname.CameraFromName(name); !ok {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	sort.Strings(paths)
	return paths
}
