package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/inpaint/internal/utils"
)

// SidecarExtensions are tried in order after "<name>.polygons".
var SidecarExtensions = []string{".yaml", ".yml", ".json"}

// item pairs an image with its polygon file.
type item struct {
	image    string
	polygons string
}

// SidecarPath returns the polygon file for an image, or "" if none exists.
// For photo.png it looks for photo.polygons.yaml, .yml and .json.
func SidecarPath(imagePath string) string {
	base := strings.TrimSuffix(imagePath, filepath.Ext(imagePath))
	for _, ext := range SidecarExtensions {
		candidate := base + ".polygons" + ext
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// discoverItems finds the images under args and pairs each with its sidecar.
// Images without one are returned in skipped.
func discoverItems(args []string, recursive bool, includePatterns, excludePatterns []string) ([]item, []string, error) {
	files, err := discoverImageFiles(args, recursive, includePatterns, excludePatterns)
	if err != nil {
		return nil, nil, err
	}
	var items []item
	var skipped []string
	for _, f := range files {
		sidecar := SidecarPath(f)
		if sidecar == "" {
			skipped = append(skipped, f)
			continue
		}
		items = append(items, item{image: f, polygons: sidecar})
	}
	return items, skipped, nil
}

// discoverImageFiles finds all supported images matching the given patterns.
func discoverImageFiles(args []string, recursive bool, includePatterns, excludePatterns []string) ([]string, error) {
	var imageFiles []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			files, err := discoverInDirectory(arg, recursive, includePatterns, excludePatterns)
			if err != nil {
				return nil, err
			}
			imageFiles = append(imageFiles, files...)
		} else if utils.IsSupportedImage(arg) && shouldIncludeFile(arg, includePatterns, excludePatterns) {
			imageFiles = append(imageFiles, arg)
		}
	}

	return imageFiles, nil
}

func discoverInDirectory(dir string, recursive bool, includePatterns, excludePatterns []string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if utils.IsSupportedImage(path) && shouldIncludeFile(path, includePatterns, excludePatterns) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// shouldIncludeFile applies exclude patterns first, then include patterns.
// No include patterns means everything not excluded.
func shouldIncludeFile(path string, includePatterns, excludePatterns []string) bool {
	if matchesAnyPattern(path, excludePatterns) {
		return false
	}
	if len(includePatterns) == 0 {
		return true
	}
	return matchesAnyPattern(path, includePatterns)
}

// matchesAnyPattern matches the file's base name against glob patterns.
func matchesAnyPattern(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
