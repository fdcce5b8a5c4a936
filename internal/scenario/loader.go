package scenario

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type Format string

const (
	FormatYAML Format = "yaml"
	FormatLua  Format = "lua"
)

// FormatFor picks the loader from a file extension. JSON is parsed as YAML.
func FormatFor(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return FormatYAML, true
	case ".lua":
		return FormatLua, true
	}
	return "", false
}

// Loader reads and validates scenario files. The zero value is usable.
type Loader struct {
	Logger *log.Logger
}

func (l *Loader) logger() *log.Logger {
	if l == nil || l.Logger == nil {
		return log.New(io.Discard, "", 0)
	}
	return l.Logger
}

// Load reads path with the default loader.
func Load(path string) (*Scenario, error) {
	var l Loader
	return l.Load(path)
}

func (l *Loader) Load(path string) (*Scenario, error) {
	format, ok := FormatFor(path)
	if !ok {
		return nil, fmt.Errorf("scenario %s: unsupported extension", path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	s, err := l.Parse(name, b, format)
	if err != nil {
		return nil, err
	}
	s.Path = path
	return s, nil
}

// Parse validates raw scenario bytes. fallbackName is used in error messages
// until the metadata name is known.
func (l *Loader) Parse(fallbackName string, b []byte, format Format) (*Scenario, error) {
	var (
		doc *document
		err error
	)
	switch format {
	case FormatYAML:
		doc, err = parseYAML(b)
	case FormatLua:
		doc, err = parseLua(fallbackName, b)
	default:
		return nil, fmt.Errorf("scenario %s: unknown format %q", fallbackName, format)
	}
	if err != nil {
		return nil, &ValidationError{Scenario: fallbackName, Issues: []Issue{{Rule: RuleParse, Event: -1, Message: err.Error()}}}
	}
	if issues := validateSchema(doc); len(issues) > 0 {
		return nil, &ValidationError{Scenario: docName(doc, fallbackName), Issues: issues}
	}
	s, issues := decode(doc)
	if len(issues) > 0 {
		return nil, &ValidationError{Scenario: docName(doc, fallbackName), Issues: issues}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	for _, w := range s.Warnings {
		l.logger().Printf("scenario %s: warning: %s", s.Name(), w)
	}
	return s, nil
}

func docName(doc *document, fallback string) string {
	if meta, ok := doc.data["metadata"].(map[string]any); ok {
		if n, ok := meta["name"].(string); ok && n != "" {
			return n
		}
	}
	return fallback
}

// DirResult holds every scenario that loaded and the error for every file
// that did not.
type DirResult struct {
	Scenarios []*Scenario
	Errors    map[string]error
}

func (r DirResult) OK() bool { return len(r.Errors) == 0 }

// LoadDir loads every scenario file directly under dir, sorted by file name.
// A bad file never aborts the batch. Only an unreadable directory is an error.
func (l *Loader) LoadDir(dir string) (DirResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return DirResult{}, fmt.Errorf("read scenario dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := FormatFor(e.Name()); ok {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	res := DirResult{Errors: map[string]error{}}
	for _, n := range names {
		path := filepath.Join(dir, n)
		s, err := l.Load(path)
		if err != nil {
			res.Errors[path] = err
			l.logger().Printf("scenario %s: %v", path, err)
			continue
		}
		res.Scenarios = append(res.Scenarios, s)
	}
	return res, nil
}

// LoadDir loads a directory with the default loader.
func LoadDir(dir string) (DirResult, error) {
	var l Loader
	return l.LoadDir(dir)
}
