package spill

import (
	"cmp"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// tempPrefix marks files still being written.
const tempPrefix = "spill-"

type spilledFile struct {
	path    string
	size    int64
	modTime time.Time
}

// walkFiles lists the regular files under root. A missing root is empty.
func walkFiles(root string) ([]spilledFile, int64, error) {
	var (
		files []spilledFile
		total int64
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		files = append(files, spilledFile{path: path, size: info.Size(), modTime: info.ModTime()})
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, nil
	}
	return files, total, err
}

func dirSize(root string) (int64, error) {
	_, total, err := walkFiles(root)
	return total, err
}

func pruneDir(root string, targetBytes int64) (freed, remaining int64, err error) {
	files, remaining, err := walkFiles(root)
	if err != nil || remaining <= targetBytes {
		return 0, remaining, err
	}

	slices.SortFunc(files, func(a, b spilledFile) int {
		if c := a.modTime.Compare(b.modTime); c != 0 {
			return c
		}
		return cmp.Compare(a.path, b.path)
	})
	for _, f := range files {
		if remaining <= targetBytes {
			break
		}
		if err := os.Remove(f.path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return freed, remaining, err
		}
		remaining -= f.size
		freed += f.size
	}
	return freed, remaining, nil
}
