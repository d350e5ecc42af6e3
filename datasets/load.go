package datasets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sbinet/npyio/npy"
)

// LoadArray reads a numeric array from path. NumPy ".npy" files are decoded
// with their stored shape; anything else is read as a delimited text array.
func LoadArray(path string) ([]float32, []int, error) {
	if strings.EqualFold(filepath.Ext(path), ".npy") {
		return readNpy(path)
	}
	return readTextArray(path)
}

// Load reads the signal tensor and its label array and validates them.
func Load(dataPath, labelsPath string) (*Dataset, error) {
	data, shape, err := LoadArray(dataPath)
	if err != nil {
		return nil, fmt.Errorf("load data: %w", err)
	}
	labels, labelShape, err := LoadArray(labelsPath)
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}
	return New(data, shape, labels, labelShape)
}

func readNpy(path string) ([]float32, []int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	r, err := npy.NewReader(file)
	if err != nil {
		return nil, nil, fmt.Errorf("read npy header %s: %w", path, err)
	}
	if r.Header.Descr.Fortran {
		return nil, nil, fmt.Errorf("%s: fortran-ordered arrays are not supported", path)
	}
	shape := append([]int(nil), r.Header.Descr.Shape...)

	// dtype strings carry a byte-order prefix ('<', '>', '|', '=').
	dtype := strings.TrimLeft(r.Header.Descr.Type, "<>|=")
	var out []float32
	switch dtype {
	case "f4":
		err = r.Read(&out)
	case "f8":
		var v []float64
		if err = r.Read(&v); err == nil {
			out = convert(v)
		}
	case "i1":
		var v []int8
		if err = r.Read(&v); err == nil {
			out = convert(v)
		}
	case "u1":
		var v []uint8
		if err = r.Read(&v); err == nil {
			out = convert(v)
		}
	case "i2":
		var v []int16
		if err = r.Read(&v); err == nil {
			out = convert(v)
		}
	case "i4":
		var v []int32
		if err = r.Read(&v); err == nil {
			out = convert(v)
		}
	case "i8":
		var v []int64
		if err = r.Read(&v); err == nil {
			out = convert(v)
		}
	case "b1":
		var v []bool
		if err = r.Read(&v); err == nil {
			out = make([]float32, len(v))
			for i, b := range v {
				if b {
					out[i] = 1
				}
			}
		}
	default:
		return nil, nil, fmt.Errorf("%s: unsupported npy dtype %q", path, r.Header.Descr.Type)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read npy data %s: %w", path, err)
	}
	return out, shape, nil
}

type number interface {
	~float64 | ~int8 | ~uint8 | ~int16 | ~int32 | ~int64
}

func convert[T number](v []T) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
