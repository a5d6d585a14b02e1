// Package history keeps the Try items of past reflections in a YAML file so
// the next run can look back at them.
package history

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Afrawles/weekreflect/internal/report"
)

const defaultMaxEntries = 52

// Entry is the Try list of one reflection period.
type Entry struct {
	Start   string    `yaml:"start"`
	End     string    `yaml:"end"`
	Try     []string  `yaml:"try"`
	SavedAt time.Time `yaml:"saved_at"`
}

type file struct {
	Entries []Entry `yaml:"entries"`
}

// Store reads and writes the history file.
type Store struct {
	path       string
	maxEntries int
	now        func() time.Time
}

func NewStore(path string) *Store {
	return &Store{path: path, maxEntries: defaultMaxEntries, now: time.Now}
}

func (s *Store) Path() string {
	return s.path
}

// Load returns all entries ordered by period start. A missing file is empty
// history, not an error.
func (s *Store) Load() ([]Entry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse history %s: %w", s.path, err)
	}
	sort.SliceStable(f.Entries, func(i, j int) bool {
		return f.Entries[i].Start < f.Entries[j].Start
	})
	return f.Entries, nil
}

// PreviousTry returns the Try items of the latest period that started
// before r.
func (s *Store) PreviousTry(r report.DateRange) ([]string, error) {
	entries, err := s.Load()
	if err != nil {
		return nil, err
	}
	start := r.Start.Format(report.DateLayout)
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Start < start {
			return entries[i].Try, nil
		}
	}
	return nil, nil
}

// Save records the Try items for r, replacing an earlier save of the same
// period and trimming the oldest entries beyond the limit.
func (s *Store) Save(r report.DateRange, try []string) error {
	entries, err := s.Load()
	if err != nil {
		return err
	}

	entry := Entry{
		Start:   r.Start.Format(report.DateLayout),
		End:     r.End.Format(report.DateLayout),
		Try:     try,
		SavedAt: s.now().UTC().Truncate(time.Second),
	}
	replaced := false
	for i := range entries {
		if entries[i].Start == entry.Start && entries[i].End == entry.End {
			entries[i] = entry
			replaced = true
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Start < entries[j].Start
	})
	if len(entries) > s.maxEntries {
		entries = entries[len(entries)-s.maxEntries:]
	}

	data, err := yaml.Marshal(file{Entries: entries})
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	return writeAtomic(s.path, data)
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".history-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace history: %w", err)
	}
	return nil
}
