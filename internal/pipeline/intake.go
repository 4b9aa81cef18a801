package pipeline

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nao1215/imgshare/internal/model"
)

// ReadURLList reads a newline-delimited target list. Lines that do not start
// with "http" after trimming are ignored. A missing file is logged and
// yields no targets.
func ReadURLList(path string, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := os.Open(path) //nolint:gosec // path is user-provided configuration
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("url list not found", "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrPersistence, err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "http") {
			urls = append(urls, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", model.ErrPersistence, path, err)
	}

	if len(urls) == 0 {
		logger.Warn("no urls in list", "path", path)
	}
	return urls, nil
}

// ListImageFiles returns the absolute paths of the regular files directly
// inside dir, sorted. Dotfiles are ignored. Every file is treated as a
// direct image; the absolute path keeps its folder usable as record folder
// even when dir is ".".
func ListImageFiles(dir string) ([]string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: images folder: %w", model.ErrConfiguration, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: images folder: %w", model.ErrConfiguration, err)
	}

	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
