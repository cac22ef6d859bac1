package gtfs

import (
	"archive/zip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

// Open returns the files of a GTFS feed stored either as a zip archive or as a directory of .txt files.
func Open(path string) (fs.FS, io.Closer, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, err
	}
	if info.IsDir() {
		return os.DirFS(path), io.NopCloser(nil), nil
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open zip file: %w", err)
	}
	return zr, zr, nil
}

type record struct {
	fields  []string
	headers map[string]int
}

func (r record) get(name string) string {
	i, ok := r.headers[name]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

func (r record) int(name string, def int) (int, error) {
	s := r.get(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

func (r record) float(name string) (float64, error) {
	v, err := strconv.ParseFloat(r.get(name), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

// parseCSV calls rowHandler for every row of name. a missing optional file is not an error.
func parseCSV(fsys fs.FS, name string, required bool, rowHandler func(r record) error) error {
	f, err := fsys.Open(name)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	headers := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		headers[strings.TrimSpace(h)] = i
	}

	line := 1
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		line++
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if err := rowHandler(record{fields: fields, headers: headers}); err != nil {
			return fmt.Errorf("%s line %d: %w", name, line, err)
		}
	}
}

// parseTime parses a GTFS time of day, hours may exceed 23 for trips running past midnight.
func parseTime(s string) (uint32, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid time %q", s)
		}
		v[i] = n
	}
	if v[1] > 59 || v[2] > 59 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return uint32(v[0]*3600 + v[1]*60 + v[2]), nil
}
