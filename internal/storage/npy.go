// ABOUTME: Minimal NumPy .npy codec for the 2-D embedding matrix artifact
// ABOUTME: Writes little-endian float32 C-order arrays and reads float32 or float64
package storage

import (
	"bufio"
	"bytes"
	"encoding/binary"
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

// WriteNPY encodes rows as a (len(rows), dim) float32 array.
// Every row must have length dim.
func WriteNPY(w io.Writer, rows [][]float32, dim int) error {
	for i, row := range rows {
		if len(row) != dim {
			return fmt.Errorf("row %d has length %d, want %d", i, len(row), dim)
		}
	}

	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%d, %d), }", len(rows), dim)
	// magic(6) + version(2) + header length(2) + header, padded to 64 bytes and newline-terminated
	total := len(npyMagic) + 4 + len(header) + 1
	if pad := total % 64; pad != 0 {
		header += strings.Repeat(" ", 64-pad)
	}
	header += "\n"

	bw := bufio.NewWriter(w)
	bw.Write(npyMagic)
	bw.Write([]byte{1, 0})
	if err := binary.Write(bw, binary.LittleEndian, uint16(len(header))); err != nil {
		return err
	}
	bw.WriteString(header)

	buf := make([]byte, 4)
	for _, row := range rows {
		for _, v := range row {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
			if _, err := bw.Write(buf); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// ReadNPY decodes a 2-D little-endian float array of the given shape into
// rows. The header shape must match before any row is allocated. Any
// structural problem is reported as ErrCorruptArtifact.
func ReadNPY(r io.Reader, wantRows, wantCols int) ([][]float32, error) {
	br := bufio.NewReader(r)

	prefix := make([]byte, len(npyMagic)+2)
	if _, err := io.ReadFull(br, prefix); err != nil {
		return nil, fmt.Errorf("%w: short header: %v", ErrCorruptArtifact, err)
	}
	if !bytes.Equal(prefix[:len(npyMagic)], npyMagic) {
		return nil, fmt.Errorf("%w: not an npy file", ErrCorruptArtifact)
	}

	var headerLen int
	switch major := prefix[len(npyMagic)]; major {
	case 1:
		var n uint16
		if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptArtifact, err)
		}
		headerLen = int(n)
	case 2, 3:
		var n uint32
		if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptArtifact, err)
		}
		headerLen = int(n)
	default:
		return nil, fmt.Errorf("%w: unsupported npy version %d", ErrCorruptArtifact, major)
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, fmt.Errorf("%w: truncated header: %v", ErrCorruptArtifact, err)
	}

	descr, rows, cols, err := parseNPYHeader(string(header))
	if err != nil {
		return nil, err
	}
	if rows == 0 && wantRows == 0 {
		return [][]float32{}, nil
	}
	if rows != wantRows || cols != wantCols {
		return nil, fmt.Errorf("%w: shape (%d, %d), want (%d, %d)", ErrCorruptArtifact, rows, cols, wantRows, wantCols)
	}

	var width int
	switch descr {
	case "<f4":
		width = 4
	case "<f8":
		width = 8
	default:
		return nil, fmt.Errorf("%w: unsupported dtype %s", ErrCorruptArtifact, descr)
	}

	out := make([][]float32, rows)
	buf := make([]byte, width*cols)
	for i := 0; i < rows; i++ {
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("%w: truncated data at row %d: %v", ErrCorruptArtifact, i, err)
		}
		row := make([]float32, cols)
		for j := range row {
			if width == 4 {
				row[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4:]))
			} else {
				row[j] = float32(math.Float64frombits(binary.LittleEndian.Uint64(buf[j*8:])))
			}
		}
		out[i] = row
	}
	return out, nil
}

func parseNPYHeader(header string) (descr string, rows, cols int, err error) {
	m := npyDescr.FindStringSubmatch(header)
	if m == nil {
		return "", 0, 0, fmt.Errorf("%w: header missing descr", ErrCorruptArtifact)
	}
	descr = m[1]

	if f := npyFortran.FindStringSubmatch(header); f == nil || f[1] != "False" {
		return "", 0, 0, fmt.Errorf("%w: fortran order not supported", ErrCorruptArtifact)
	}

	s := npyShape.FindStringSubmatch(header)
	if s == nil {
		return "", 0, 0, fmt.Errorf("%w: header missing shape", ErrCorruptArtifact)
	}

	var dims []int
	for _, part := range strings.Split(s[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, convErr := strconv.Atoi(part)
		if convErr != nil || n < 0 {
			return "", 0, 0, fmt.Errorf("%w: bad shape %q", ErrCorruptArtifact, s[1])
		}
		dims = append(dims, n)
	}

	switch {
	case len(dims) == 2:
		return descr, dims[0], dims[1], nil
	case len(dims) == 1 && dims[0] == 0:
		return descr, 0, 0, nil
	default:
		return "", 0, 0, fmt.Errorf("%w: expected 2-D array, got shape (%s)", ErrCorruptArtifact, s[1])
	}
}
