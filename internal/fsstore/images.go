package fsstore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mesh-intelligence/seguimientos/pkg/types"
)

// cleanImageName reduces an uploaded file name to its base name. Hidden
// names are refused because the store uses them for temp files.
func cleanImageName(name string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	if base == "" || base == "." || base == ".." || base == "/" || strings.HasPrefix(base, ".") {
		return "", fmt.Errorf("%w: invalid file name %q", types.ErrInvalidInput, name)
	}
	return base, nil
}

// SaveImage implements types.ImageStore. A file with the same name is
// replaced.
func (s *Store) SaveImage(id types.DocumentID, n int, name string, content io.Reader) (string, error) {
	clean, err := cleanImageName(name)
	if err != nil {
		return "", err
	}
	path, err := s.existingFollowUp(id, n)
	if err != nil {
		return "", err
	}
	dir := ImagesPath(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", ioErr("creating "+ImagesDirName, err)
	}
	if err := writeDurableFrom(filepath.Join(dir, clean), content); err != nil {
		return "", err
	}
	return clean, nil
}

// ListImages implements types.ImageStore.
func (s *Store) ListImages(id types.DocumentID, n int) ([]string, error) {
	path, err := s.existingFollowUp(id, n)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(ImagesPath(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, ioErr("listing images", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// OpenImage implements types.ImageStore.
func (s *Store) OpenImage(id types.DocumentID, n int, name string) (io.ReadCloser, error) {
	clean, err := cleanImageName(name)
	if err != nil {
		return nil, err
	}
	path, err := s.existingFollowUp(id, n)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(ImagesPath(path), clean))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: image %s", types.ErrNotFound, clean)
		}
		return nil, ioErr("opening image", err)
	}
	return f, nil
}
