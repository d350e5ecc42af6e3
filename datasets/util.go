package datasets

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func parseFloat32(s string) (float32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty string")
	}
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, err
	}
	return float32(v), nil
}

// readTextArray reads a whitespace (or comma) delimited numeric array.
// Rows are lines, columns are fields. A leading "# shape: d0 d1 ..." comment
// overrides the inferred [rows, cols] shape so higher-rank arrays can be
// stored as text; other comment lines are ignored.
func readTextArray(path string) ([]float32, []int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	var (
		values   []float32
		declared []int
		rows     int
		cols     = -1
	)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, "#") {
			if declared == nil {
				declared, err = parseShapeComment(text)
				if err != nil {
					return nil, nil, fmt.Errorf("%s:%d: %w", path, line, err)
				}
			}
			continue
		}
		fields := strings.FieldsFunc(text, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		if cols == -1 {
			cols = len(fields)
		} else if len(fields) != cols {
			return nil, nil, fmt.Errorf("%s:%d: expected %d columns, got %d", path, line, cols, len(fields))
		}
		for _, f := range fields {
			v, err := parseFloat32(f)
			if err != nil {
				return nil, nil, fmt.Errorf("%s:%d: %w", path, line, err)
			}
			values = append(values, v)
		}
		rows++
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	if rows == 0 {
		return nil, nil, fmt.Errorf("%s: no values", path)
	}

	shape := []int{rows, cols}
	if cols == 1 {
		shape = []int{rows}
	}
	if declared != nil {
		if product(declared) != len(values) {
			return nil, nil, shapeErrorf("%s declares shape %v but holds %d values", path, declared, len(values))
		}
		shape = declared
	}
	return values, shape, nil
}

func parseShapeComment(text string) ([]int, error) {
	body := strings.TrimSpace(strings.TrimPrefix(text, "#"))
	if !strings.HasPrefix(strings.ToLower(body), "shape:") {
		return nil, nil
	}
	fields := strings.Fields(body[len("shape:"):])
	shape := make([]int, len(fields))
	for i, f := range fields {
		d, err := strconv.Atoi(f)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid shape dimension %q", f)
		}
		shape[i] = d
	}
	return shape, nil
}

// SaveTextArray writes values one per line in the plain text format numpy's
// savetxt produces ("%.18e"); NaN marks missing entries. The file is written
// to a temp file in the same directory and renamed into place.
func SaveTextArray(path string, values []float64) error {
	if path == "" {
		return fmt.Errorf("empty output path")
	}
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		_ = os.Remove(tmpName)
	}()

	w := bufio.NewWriter(tmpFile)
	for _, v := range values {
		if math.IsNaN(v) {
			_, err = w.WriteString("nan\n")
		} else {
			_, err = fmt.Fprintf(w, "%.18e\n", v)
		}
		if err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file to %s: %w", path, err)
	}
	return nil
}

// ReadTextArray reads a one-dimensional text array written by SaveTextArray.
func ReadTextArray(path string) ([]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	var out []float64
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		out = append(out, v)
	}
	return out, scanner.Err()
}
