package index

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var npyMagic = []byte("\x93NUMPY")

var (
	npyDescr   = regexp.MustCompile(`'descr'\s*:\s*'([^']+)'`)
	npyFortran = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	npyShape   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// ReadNPY decodes a 2-D little-endian float32 or float64 C-order array
// written by numpy.save. float64 input is narrowed to float32.
func ReadNPY(r io.Reader) (*Matrix, error) {
	br := bufio.NewReader(r)

	prefix := make([]byte, len(npyMagic)+2)
	if _, err := io.ReadFull(br, prefix); err != nil {
		return nil, fmt.Errorf("read npy magic: %w", err)
	}
	if !bytes.Equal(prefix[:len(npyMagic)], npyMagic) {
		return nil, errors.New("not an npy file")
	}

	var headerLen int
	switch major := prefix[len(npyMagic)]; major {
	case 1:
		var n uint16
		if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("read npy header length: %w", err)
		}
		headerLen = int(n)
	case 2, 3:
		var n uint32
		if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("read npy header length: %w", err)
		}
		headerLen = int(n)
	default:
		return nil, fmt.Errorf("unsupported npy version %d", major)
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, fmt.Errorf("read npy header: %w", err)
	}

	descr, rows, dim, err := parseNPYHeader(string(header))
	if err != nil {
		return nil, err
	}

	m := &Matrix{Rows: rows, Dim: dim, Data: make([]float32, rows*dim)}
	switch descr {
	case "<f4":
		if err := binary.Read(br, binary.LittleEndian, m.Data); err != nil {
			return nil, fmt.Errorf("read npy data: %w", err)
		}
	case "<f8":
		buf := make([]float64, rows*dim)
		if err := binary.Read(br, binary.LittleEndian, buf); err != nil {
			return nil, fmt.Errorf("read npy data: %w", err)
		}
		for i, v := range buf {
			m.Data[i] = float32(v)
		}
	}
	return m, nil
}

func parseNPYHeader(h string) (descr string, rows, dim int, err error) {
	dm := npyDescr.FindStringSubmatch(h)
	if dm == nil {
		return "", 0, 0, errors.New("npy header: missing descr")
	}
	descr = dm[1]
	if descr != "<f4" && descr != "<f8" {
		return "", 0, 0, fmt.Errorf("npy header: unsupported dtype %q", descr)
	}

	if fm := npyFortran.FindStringSubmatch(h); fm != nil && fm[1] == "True" {
		return "", 0, 0, errors.New("npy header: fortran order is not supported")
	}

	sm := npyShape.FindStringSubmatch(h)
	if sm == nil {
		return "", 0, 0, errors.New("npy header: missing shape")
	}
	var dims []int
	for _, part := range strings.Split(sm[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, convErr := strconv.Atoi(strings.TrimSuffix(part, "L"))
		if convErr != nil || n < 0 {
			return "", 0, 0, fmt.Errorf("npy header: bad shape %q", sm[1])
		}
		dims = append(dims, n)
	}
	if len(dims) != 2 {
		return "", 0, 0, fmt.Errorf("npy header: expected 2-D shape, got %d-D", len(dims))
	}
	if dims[0] > 0 && dims[1] > math.MaxInt32/dims[0] {
		return "", 0, 0, fmt.Errorf("npy header: shape too large (%d, %d)", dims[0], dims[1])
	}
	return descr, dims[0], dims[1], nil
}

// WriteNPY encodes m as a version 1.0 '<f4' C-order array.
func WriteNPY(w io.Writer, m *Matrix) error {
	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%d, %d), }", m.Rows, m.Dim)
	// magic(6) + version(2) + length(2) + header + '\n' must be a multiple of 64
	total := len(npyMagic) + 4 + len(header) + 1
	if pad := (64 - total%64) % 64; pad > 0 {
		header += strings.Repeat(" ", pad)
	}
	header += "\n"

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(npyMagic); err != nil {
		return err
	}
	if _, err := bw.Write([]byte{1, 0}); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint16(len(header))); err != nil {
		return err
	}
	if _, err := bw.WriteString(header); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, m.Data); err != nil {
		return err
	}
	return bw.Flush()
}
