// Package output writes one orientation record per tick.
package output

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"

	"imufusion/internal/ahrs"
)

// Record is the per-tick output row.
type Record struct {
	MedianAccel r3.Vector // raw counts
	Gyro        r3.Vector // deg/s
	Integrated  r3.Vector // degrees
	Fused       r3.Vector // degrees

	// Writers created withW replace the fused angles with the quaternion
	// X, Y, Z and add W as a thirteenth column.
	Quaternion    ahrs.Quaternion
	HasQuaternion bool
}

// Sink receives records in tick order.
type Sink interface {
	Write(r Record) error
	Flush() error
	Close() error
}

var columns = []string{
	"Median Accel X", "Median Accel Y", "Median Accel Z",
	"Raw Gyro X", "Raw Gyro Y", "Raw Gyro Z",
	"Delta Theta X", "Delta Theta Y", "Delta Theta Z",
	"filtered theta X", "filtered theta Y", "filtered theta Z",
}

// Header returns the column-name line, without the newline.
func Header(withW bool) string {
	cols := columns
	if withW {
		cols = append(append([]string(nil), columns...), "filtered theta W")
	}
	return strings.Join(cols, ", ")
}

// CSVWriter writes records as comma-separated lines with nine decimals.
type CSVWriter struct {
	c      io.Closer
	w      *bufio.Writer
	header bool
	withW  bool
	wrote  bool
	closed bool
	buf    []byte
}

// NewCSVWriter writes to w. When header is set the column names are written
// before the first record. withW writes the quaternion (X, Y, Z, W) in place
// of the fused angles. If w is an
// io.Closer, Close closes it.
func NewCSVWriter(w io.Writer, header, withW bool) *CSVWriter {
	cw := &CSVWriter{w: bufio.NewWriterSize(w, 64*1024), header: header, withW: withW}
	if c, ok := w.(io.Closer); ok {
		cw.c = c
	}
	return cw
}

// CreateCSV creates (or truncates) path and returns a writer for it.
func CreateCSV(path string, header, withW bool) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return NewCSVWriter(f, header, withW), nil
}

func (cw *CSVWriter) Write(r Record) error {
	if cw.closed {
		return errors.New("output: writer is closed")
	}
	if !cw.wrote {
		cw.wrote = true
		if cw.header {
			if _, err := cw.w.WriteString(Header(cw.withW) + "\n"); err != nil {
				return err
			}
		}
	}

	b := cw.buf[:0]
	for i, v := range r.values(cw.withW) {
		if i > 0 {
			b = append(b, ',')
		}
		b = strconv.AppendFloat(b, v, 'f', 9, 64)
	}
	b = append(b, '\n')
	cw.buf = b
	_, err := cw.w.Write(b)
	return err
}

func (r Record) values(withW bool) []float64 {
	v := []float64{
		r.MedianAccel.X, r.MedianAccel.Y, r.MedianAccel.Z,
		r.Gyro.X, r.Gyro.Y, r.Gyro.Z,
		r.Integrated.X, r.Integrated.Y, r.Integrated.Z,
	}
	if withW {
		q := r.Quaternion
		return append(v, q.X, q.Y, q.Z, q.W)
	}
	return append(v, r.Fused.X, r.Fused.Y, r.Fused.Z)
}

func (cw *CSVWriter) Flush() error {
	if cw.closed {
		return nil
	}
	return cw.w.Flush()
}

// Close flushes and closes the underlying writer. A header-only file is
// still written when no record was.
func (cw *CSVWriter) Close() error {
	if cw.closed {
		return nil
	}
	if !cw.wrote && cw.header {
		cw.wrote = true
		_, _ = cw.w.WriteString(Header(cw.withW) + "\n")
	}
	cw.closed = true
	err := cw.w.Flush()
	if cw.c != nil {
		if cerr := cw.c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
