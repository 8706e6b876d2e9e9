package main

import (
	"fmt"
	"io"
	"strings"

	"imufusion/internal/replay"
)

func printLogSummary(w io.Writer, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("path is empty")
	}

	recs, err := replay.ReadFile(path)
	if err != nil {
		return err
	}
	s := replay.Summarize(recs)

	fmt.Fprintf(w, "path: %s\n", path)
	fmt.Fprintf(w, "segments: %d\n", s.Segments)
	fmt.Fprintf(w, "samples: %d\n", s.Samples)
	fmt.Fprintf(w, "failed_reads: %d\n", s.Failed)
	fmt.Fprintf(w, "max_duration: %s\n", s.MaxDuration)
	return nil
}
