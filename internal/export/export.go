// Package export writes motion samples to CSV files.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ayusman/jointtrack/internal/tracker"
)

var (
	// ErrFileInUse is returned when the export target already exists.
	ErrFileInUse = errors.New("export file already exists")
	// ErrInvalidFileName is returned for empty names or names with reserved characters.
	ErrInvalidFileName = errors.New("invalid file name")
)

// Extension is appended to export file names that lack it.
const Extension = ".csv"

// reservedChars may not appear in an export file name.
const reservedChars = `\/:*?"<>|`

var (
	calibratedHeader = []string{"Timestamp", "Adjusted Distance X", "Adjusted Distance Y", "Angle"}
	legacyHeader     = []string{"Timestamp", "Angle Change", "Joint Position"}
)

// Header returns the CSV header row for a calibrated or uncalibrated session.
func Header(calibrated bool) []string {
	if calibrated {
		return append([]string(nil), calibratedHeader...)
	}
	return append([]string(nil), legacyHeader...)
}

// WriteCSV writes the header and one row per sample. Samples are expected to
// be rounded already; the timestamp is written with 2 decimals and the other
// numbers with 1. The uncalibrated layout writes the vertex position as "(x, y)".
func WriteCSV(w io.Writer, samples []tracker.Sample, calibrated bool) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(calibrated)); err != nil {
		return err
	}
	for _, s := range samples {
		if err := cw.Write(row(s, calibrated)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func row(s tracker.Sample, calibrated bool) []string {
	ts := strconv.FormatFloat(s.Timestamp, 'f', 2, 64)
	if calibrated {
		return []string{
			ts,
			strconv.FormatFloat(s.DX, 'f', 1, 64),
			strconv.FormatFloat(s.DY, 'f', 1, 64),
			strconv.FormatFloat(s.Angle, 'f', 1, 64),
		}
	}
	return []string{
		ts,
		strconv.FormatFloat(s.Angle, 'f', 1, 64),
		fmt.Sprintf("(%v, %v)", s.Position.X, s.Position.Y),
	}
}

// ValidateFileName checks an export name chosen by the user.
func ValidateFileName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidFileName)
	}
	if i := strings.IndexAny(name, reservedChars); i >= 0 {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidFileName, name, name[i])
	}
	return nil
}

// WithExtension appends ".csv" unless name already ends with it.
func WithExtension(name string) string {
	if strings.HasSuffix(strings.ToLower(name), Extension) {
		return name
	}
	return name + Extension
}

// AvailablePath returns a path in dir for name that does not exist yet,
// appending _1, _2, ... before the extension on collision.
func AvailablePath(dir, name string) (string, error) {
	if err := ValidateFileName(name); err != nil {
		return "", err
	}
	name = WithExtension(name)
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	path := filepath.Join(dir, name)
	for n := 1; ; n++ {
		_, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			return path, nil
		}
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", path, err)
		}
		path = filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, n, ext))
	}
}

// Create writes samples to a new file at path. It never overwrites: an
// existing file yields ErrFileInUse. A failed write removes the partial file.
func Create(path string, samples []tracker.Sample, calibrated bool) error {
	return create(path, func(w io.Writer) error {
		return WriteCSV(w, samples, calibrated)
	})
}

func create(path string, write func(io.Writer) error) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrFileInUse, path)
		}
		return fmt.Errorf("failed to create export file: %w", err)
	}

	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write samples: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to write samples: %w", err)
	}
	return nil
}

// Save picks a free file name in dir and writes the samples there. It returns
// the path written.
func Save(dir, name string, samples []tracker.Sample, calibrated bool) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	path, err := AvailablePath(dir, name)
	if err != nil {
		return "", err
	}
	if err := Create(path, samples, calibrated); err != nil {
		return "", err
	}
	return path, nil
}
