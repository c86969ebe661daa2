package timeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DocumentVersion is written into every project document.
const DocumentVersion = "1.0"

// Document is the on-disk form of a project: the zoom events authored for
// one source video. Without Source it is a reusable template.
type Document struct {
	Version  string  `yaml:"version"`
	Source   string  `yaml:"source,omitempty"`
	Duration float64 `yaml:"duration,omitempty"`
	Events   []Event `yaml:"events"`
}

// WriteDocument writes a document to a YAML file
func WriteDocument(doc *Document, path string) error {
	if doc.Version == "" {
		doc.Version = DocumentVersion
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

// ReadDocument reads a document from a YAML file and validates its events.
// Events without an id get a fresh one.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	for i := range doc.Events {
		e := &doc.Events[i]
		if e.ID == "" {
			e.ID = NewID()
		}
		if e.Animation == "" {
			e.Animation = AnimationSmooth
		}
		if e.TextOverlay.Position == "" {
			e.TextOverlay.Position = PositionCenter
		}
		if e.Tracking.Enabled && e.Tracking.InitialRegion == (Region{}) {
			e.Tracking.InitialRegion = e.Region
		}
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("%s: event %d: %w", path, i, err)
		}
	}
	SortByStart(doc.Events)
	return &doc, nil
}

// DocumentPath creates a timestamped project filename in dir
func DocumentPath(dir string) string {
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(dir, fmt.Sprintf("project_%s.yaml", timestamp))
}

// FindLatestDocument finds the most recently modified project file in dir
func FindLatestDocument(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read project directory: %w", err)
	}

	type candidate struct {
		path string
		mod  time.Time
	}
	var found []candidate
	for _, entry := range entries {
		name := strings.ToLower(entry.Name())
		if entry.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		found = append(found, candidate{filepath.Join(dir, entry.Name()), info.ModTime()})
	}

	if len(found) == 0 {
		return "", fmt.Errorf("no project files found in %s", dir)
	}

	sort.Slice(found, func(i, j int) bool {
		return found[i].mod.After(found[j].mod)
	})
	return found[0].path, nil
}
