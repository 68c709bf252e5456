package gallery

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/artinstitute/galleryroom/internal/models"
	"github.com/parquet-go/parquet-go"
)

// FileSource serves works from a local collection file
type FileSource struct {
	path  string
	items []models.CarouselItem
}

// NewFileSource loads the collection at path (JSONL or Parquet)
func NewFileSource(path string) (*FileSource, error) {
	var (
		items []models.CarouselItem
		err   error
	)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".parquet":
		items, err = loadParquet(path)
	case ".jsonl", ".json":
		items, err = loadJSONL(path)
	default:
		return nil, fmt.Errorf("unsupported file format: %s (supported: .parquet, .jsonl)", ext)
	}
	if err != nil {
		return nil, err
	}

	slog.Info("Loaded gallery collection", "path", path, "items", len(items))
	return &FileSource{path: path, items: items}, nil
}

// Fetch returns works whose style matches, in file order
func (s *FileSource) Fetch(ctx context.Context, style string, limit int) ([]models.CarouselItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var matched []models.CarouselItem
	for _, item := range s.items {
		if !sameStyle(item.Style, style) {
			continue
		}
		matched = append(matched, item)
		if limit > 0 && len(matched) == limit {
			break
		}
	}
	return matched, nil
}

// Len returns the collection size
func (s *FileSource) Len() int {
	return len(s.items)
}

func loadJSONL(path string) ([]models.CarouselItem, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open gallery file: %w", err)
	}
	defer file.Close()

	var items []models.CarouselItem
	scanner := bufio.NewScanner(file)
	const maxCapacity = 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		var item models.CarouselItem
		if err := json.Unmarshal(line, &item); err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}
		item.IsUser = false
		items = append(items, item)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading gallery file: %w", err)
	}
	return items, nil
}

func loadParquet(path string) ([]models.CarouselItem, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}
	slog.Debug("Parquet file opened", "num_rows", pf.NumRows(), "num_row_groups", len(pf.RowGroups()))

	reader := parquet.NewGenericReader[models.CarouselItem](pf)
	defer reader.Close()

	var items []models.CarouselItem
	rows := make([]models.CarouselItem, 128)
	for {
		n, err := reader.Read(rows)
		items = append(items, rows[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
		if n == 0 {
			break
		}
	}
	return items, nil
}
