package plugins

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// PackArchive zips the plugin tree rooted at srcDir into dst so the archive
// can be used as a search root. Members are stored relative to srcDir, so
// srcDir/<namespace>/... becomes <namespace>/... inside the archive.
func PackArchive(srcDir, dst string) (archivePath string, err error) {
	info, err := os.Stat(srcDir)
	if err != nil {
		return "", fmt.Errorf("failed to stat plugin tree: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotDirectory, srcDir)
	}

	absDst, err := filepath.Abs(dst)
	if err != nil {
		return "", fmt.Errorf("failed to resolve output path: %w", err)
	}

	out, err := os.Create(absDst)
	if err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(absDst)
		}
	}()

	zw := zip.NewWriter(out)
	defer func() {
		if closeErr := zw.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	walkErr := filepath.WalkDir(srcDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if abs, _ := filepath.Abs(path); abs == absDst {
			return nil
		}

		rel, relErr := filepath.Rel(srcDir, path)
		if relErr != nil {
			return fmt.Errorf("failed to get relative path: %w", relErr)
		}
		if rel == "." {
			return nil
		}
		name := filepath.ToSlash(rel)

		if d.IsDir() {
			if _, createErr := zw.Create(name + "/"); createErr != nil {
				return fmt.Errorf("failed to create directory entry: %w", createErr)
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		fi, infoErr := d.Info()
		if infoErr != nil {
			return fmt.Errorf("failed to get file info: %w", infoErr)
		}
		header, headerErr := zip.FileInfoHeader(fi)
		if headerErr != nil {
			return fmt.Errorf("failed to create file header: %w", headerErr)
		}
		header.Name = name
		header.Method = zip.Deflate

		w, createErr := zw.CreateHeader(header)
		if createErr != nil {
			return fmt.Errorf("failed to create archive entry: %w", createErr)
		}
		f, openErr := os.Open(path)
		if openErr != nil {
			return fmt.Errorf("failed to open %s: %w", path, openErr)
		}
		defer f.Close()

		if _, copyErr := io.Copy(w, f); copyErr != nil {
			return fmt.Errorf("failed to write %s: %w", path, copyErr)
		}
		return nil
	})
	if walkErr != nil {
		return "", fmt.Errorf("failed to archive plugin tree: %w", walkErr)
	}

	return absDst, nil
}
