package course

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Save writes the courses to path as indented JSON. Rebuilding an unchanged
// graph and saving again produces byte-identical output.
func Save(path string, courses []Course) error {
	data, err := json.MarshalIndent(courses, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal courses: %w", err)
	}
	data = append(data, '\n')

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create courses directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write courses file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace courses file: %w", err)
	}
	return nil
}

// LoadCourses reads a courses file previously written by Save.
func LoadCourses(path string) ([]Course, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read courses file: %w", err)
	}
	var courses []Course
	if err := json.Unmarshal(data, &courses); err != nil {
		return nil, fmt.Errorf("failed to parse courses file %s: %w", path, err)
	}
	return courses, nil
}
