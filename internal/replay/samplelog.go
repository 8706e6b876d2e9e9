package replay

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"imufusion/internal/imu"
)

// Log format: line-oriented text.
//
// - Blank lines ignored.
// - Lines starting with '#' ignored.
// - Line "START" resets the origin (next record time is relative to 0 again).
// - Sample lines are: <t_ns>,<ax>,<ay>,<az>,<gx>,<gy>,<gz>
//   with accel in raw counts and gyro in deg/s.
// - Failure lines are: <t_ns>,ERR
//   and stand for a sensor read that failed at that tick.

type Kind int

const (
	KindStart Kind = iota
	KindSample
	KindFailure
)

type Record struct {
	At     time.Duration
	Kind   Kind
	Sample imu.RawSample
}

type Reader struct {
	r io.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadFile opens path and reads every record in it.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewReader(f).ReadAll()
}

func (rr *Reader) ReadAll() ([]Record, error) {
	s := bufio.NewScanner(rr.r)

	recs := make([]Record, 0, 1024)
	lineNo := 0
	for s.Scan() {
		lineNo++
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "START" {
			recs = append(recs, Record{Kind: KindStart})
			continue
		}

		fields := strings.Split(line, ",")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}

		tsNs, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("replay: line %d: invalid timestamp %q: %w", lineNo, fields[0], err)
		}
		if tsNs < 0 {
			return nil, fmt.Errorf("replay: line %d: invalid timestamp (negative): %d", lineNo, tsNs)
		}
		at := time.Duration(tsNs)

		if len(fields) == 2 && fields[1] == "ERR" {
			recs = append(recs, Record{At: at, Kind: KindFailure})
			continue
		}
		if len(fields) != 7 {
			return nil, fmt.Errorf("replay: line %d: want 7 fields, got %d: %q", lineNo, len(fields), line)
		}

		var acc [3]int16
		for i := 0; i < 3; i++ {
			v, err := strconv.ParseInt(fields[1+i], 10, 16)
			if err != nil {
				return nil, fmt.Errorf("replay: line %d: invalid accel count %q: %w", lineNo, fields[1+i], err)
			}
			acc[i] = int16(v)
		}
		var gyr [3]float64
		for i := 0; i < 3; i++ {
			v, err := strconv.ParseFloat(fields[4+i], 64)
			if err != nil {
				return nil, fmt.Errorf("replay: line %d: invalid gyro rate %q: %w", lineNo, fields[4+i], err)
			}
			gyr[i] = v
		}

		recs = append(recs, Record{
			At:   at,
			Kind: KindSample,
			Sample: imu.RawSample{
				Ax: acc[0], Ay: acc[1], Az: acc[2],
				Gx: gyr[0], Gy: gyr[1], Gz: gyr[2],
			},
		})
	}
	if err := s.Err(); err != nil {
		return nil, err
	}

	return recs, nil
}

type Writer struct {
	f      *os.File
	w      *bufio.Writer
	start  time.Time
	closed bool
}

func CreateWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriterSize(f, 64*1024)
	if _, err := bw.WriteString("START\n"); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{f: f, w: bw, start: time.Now()}, nil
}

func (ww *Writer) since(now time.Time) int64 {
	d := now.Sub(ww.start)
	if d < 0 {
		d = 0
	}
	return d.Nanoseconds()
}

func (ww *Writer) WriteSample(now time.Time, s imu.RawSample) error {
	if ww.closed {
		return errors.New("replay writer is closed")
	}
	_, err := fmt.Fprintf(ww.w, "%d,%d,%d,%d,%s,%s,%s\n",
		ww.since(now), s.Ax, s.Ay, s.Az,
		formatRate(s.Gx), formatRate(s.Gy), formatRate(s.Gz))
	return err
}

func (ww *Writer) WriteFailure(now time.Time) error {
	if ww.closed {
		return errors.New("replay writer is closed")
	}
	_, err := fmt.Fprintf(ww.w, "%d,ERR\n", ww.since(now))
	return err
}

// formatRate keeps the shortest representation that parses back exactly.
func formatRate(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (ww *Writer) Flush() error {
	if ww.closed {
		return nil
	}
	return ww.w.Flush()
}

func (ww *Writer) Close() error {
	if ww.closed {
		return nil
	}
	ww.closed = true
	if err := ww.w.Flush(); err != nil {
		_ = ww.f.Close()
		return err
	}
	return ww.f.Close()
}
