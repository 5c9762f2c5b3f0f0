package extstate

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// maxFileSize bounds a single read so a corrupt or runaway state file
// cannot stall a poll tick.
const maxFileSize = 1 << 20 // 1 MiB

// FileStore reads and writes REAPER's exported ExtState file, an INI-style
// document of `[Section]` headers and `key=value` lines.
//
// A missing file is an empty store, never an error. Reads parse the whole
// file fresh each call so external writes from the ReaScript bridge are
// always visible. Writes rewrite the file in place under a process-local
// mutex; the bridge and this process never write the same keys.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a FileStore backed by the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}

// Get returns the value for a single key, or "" when the file, section,
// or key is absent.
func (f *FileStore) Get(ctx context.Context, section, key string) (string, error) {
	values, err := f.Section(ctx, section)
	if err != nil {
		return "", err
	}
	return values[key], nil
}

// Section reads and parses the backing file, returning all keys in the
// given section.
func (f *FileStore) Section(ctx context.Context, section string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sections, err := f.parse()
	if err != nil {
		return nil, err
	}

	values := sections[section]
	if values == nil {
		values = map[string]string{}
	}
	return values, nil
}

// Set writes a single key, preserving every other line in the file.
// The containing directory and file are created on first write.
func (f *FileStore) Set(ctx context.Context, section, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	sections, err := f.parse()
	if err != nil {
		return err
	}

	if sections[section] == nil {
		sections[section] = map[string]string{}
	}
	sections[section][key] = value

	return f.write(sections)
}

// parse reads the whole file into section → key → value maps.
func (f *FileStore) parse() (map[string]map[string]string, error) {
	sections := map[string]map[string]string{}

	info, err := os.Stat(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return sections, nil
		}
		return nil, fmt.Errorf("stat state file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("state file too large: %d bytes", info.Size())
	}

	file, err := os.Open(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return sections, nil
		}
		return nil, fmt.Errorf("open state file: %w", err)
	}
	defer file.Close()

	current := ""
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			current = line[1 : len(line)-1]
			if sections[current] == nil {
				sections[current] = map[string]string{}
			}
			continue
		}

		if current == "" {
			continue // key outside any section, skip
		}

		k, v, found := strings.Cut(line, "=")
		if !found {
			continue // malformed line, skip rather than fail the read
		}
		sections[current][strings.TrimSpace(k)] = strings.TrimSpace(v)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	return sections, nil
}

// write serializes the sections back to disk atomically (temp + rename).
func (f *FileStore) write(sections map[string]map[string]string) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	var sb strings.Builder
	for section, values := range sections {
		fmt.Fprintf(&sb, "[%s]\n", section)
		for k, v := range values {
			fmt.Fprintf(&sb, "%s=%s\n", k, v)
		}
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
