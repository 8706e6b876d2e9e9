package replay

import (
	"errors"
	"time"

	"imufusion/internal/imu"
)

// ErrRecordedFailure is returned by a replay source for a recorded ERR line.
var ErrRecordedFailure = errors.New("replay: recorded read failure")

// Source plays records back as an imu.Source, one record per Next call.
// START markers are skipped. Pacing is left to the caller.
type Source struct {
	records []Record
	loop    bool
	pos     int
	played  bool
}

func NewSource(records []Record, loop bool) (*Source, error) {
	n := 0
	for _, r := range records {
		if r.Kind != KindStart {
			n++
		}
	}
	if n == 0 {
		return nil, errors.New("replay: no records")
	}
	return &Source{records: records, loop: loop}, nil
}

func (s *Source) Next() (imu.RawSample, error) {
	for {
		if s.pos >= len(s.records) {
			if !s.loop {
				return imu.RawSample{}, imu.ErrNoSample
			}
			s.pos = 0
		}
		r := s.records[s.pos]
		s.pos++
		switch r.Kind {
		case KindSample:
			return r.Sample, nil
		case KindFailure:
			return imu.RawSample{}, ErrRecordedFailure
		}
	}
}

// Recorder wraps a source and writes every sample and failed read to w.
type Recorder struct {
	src imu.Source
	w   *Writer
	now func() time.Time
}

func NewRecorder(src imu.Source, w *Writer) *Recorder {
	return &Recorder{src: src, w: w, now: time.Now}
}

func (r *Recorder) Next() (imu.RawSample, error) {
	s, err := r.src.Next()
	if errors.Is(err, imu.ErrNoSample) {
		return s, err
	}
	if err != nil {
		if werr := r.w.WriteFailure(r.now()); werr != nil {
			return s, errors.Join(err, werr)
		}
		return s, err
	}
	if werr := r.w.WriteSample(r.now(), s); werr != nil {
		return s, werr
	}
	return s, nil
}

// Summary describes a recorded log.
type Summary struct {
	Segments    int
	Samples     int
	Failed      int
	MaxDuration time.Duration
}

func Summarize(records []Record) Summary {
	var s Summary
	origin := time.Duration(0)
	hasData := false

	for _, r := range records {
		if r.Kind == KindStart {
			s.Segments++
			origin = r.At
			continue
		}
		hasData = true
		switch r.Kind {
		case KindSample:
			s.Samples++
		case KindFailure:
			s.Failed++
		}
		at := r.At - origin
		if at < 0 {
			at = 0
		}
		if at > s.MaxDuration {
			s.MaxDuration = at
		}
	}
	if s.Segments == 0 && hasData {
		s.Segments = 1
	}
	return s
}
