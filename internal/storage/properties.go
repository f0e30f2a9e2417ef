package storage

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"
)

// Properties is a process-wide key/value store persisted as a JSON file
type Properties struct {
	mu     sync.RWMutex
	values map[string]string
	file   string
}

// NewProperties creates a new property store backed by filePath
func NewProperties(filePath string) (*Properties, error) {
	p := &Properties{
		values: make(map[string]string),
		file:   filePath,
	}

	// Load existing data if file exists
	if _, err := os.Stat(filePath); err == nil {
		if err := p.Load(); err != nil {
			return nil, fmt.Errorf("failed to load properties: %w", err)
		}
	}

	return p, nil
}

// Get returns the value stored under key
func (p *Properties) Get(key string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	v, ok := p.values[key]
	return v, ok
}

// Set stores value under key and saves the file
func (p *Properties) Set(key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := maps.Clone(p.values)
	if next == nil {
		next = make(map[string]string)
	}
	next[key] = value
	if err := p.save(next); err != nil {
		return err
	}
	p.values = next
	return nil
}

// save writes values to file, caller holds the write lock.
// The in-memory map is swapped only after save succeeds.
func (p *Properties) save(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal properties: %w", err)
	}

	// Ensure directory exists
	dir := filepath.Dir(p.file)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// write to a temp file, then rename over the original
	tmp := p.file + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write properties: %w", err)
	}
	return os.Rename(tmp, p.file)
}

// Load loads properties from file
func (p *Properties) Load() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := os.ReadFile(p.file)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	values := make(map[string]string)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &values); err != nil {
			return fmt.Errorf("failed to unmarshal data: %w", err)
		}
	}
	p.values = values

	return nil
}
