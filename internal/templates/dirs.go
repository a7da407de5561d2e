package templates

import (
	"fmt"
	"os"
	"path/filepath"
)

func CreateHomeDirs(homeDir string) error {
	subdirs := []string{"assets", "temp"}
	if err := os.MkdirAll(homeDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create home directory: %w", err)
	}

	for _, subdir := range subdirs {
		dir := filepath.Join(homeDir, subdir)
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return fmt.Errorf("failed to create %s directory: %w", subdir, err)
		}
	}

	return nil
}
