package analyzer

import (
	"errors"
	"fmt"
	"sort"
)

var ErrUnknownDetector = errors.New("unknown detector")

var detectors = map[string]func() Detector{
	"contrast": func() Detector { return NewContrastDetector() },
}

// NewDetector creates the named detector. An empty name means "contrast".
func NewDetector(name string) (Detector, error) {
	if name == "" {
		name = "contrast"
	}
	ctor, ok := detectors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownDetector, name, Names())
	}
	return ctor(), nil
}

// Names lists the registered detectors.
func Names() []string {
	names := make([]string, 0, len(detectors))
	for name := range detectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
