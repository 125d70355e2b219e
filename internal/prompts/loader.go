// Package prompts holds the model prompt templates. Each JSON file maps a
// key to a text/template source and is embedded at compile time.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"text/template"
)

//go:embed *.json
var promptFiles embed.FS

// file is one prompt file with every template compiled.
type file struct {
	source    map[string]string
	templates map[string]*template.Template
}

var (
	filesMu sync.Mutex
	files   = map[string]*file{}
)

// Get returns the raw template source stored under key in filename
// (e.g. "tasks.json").
func Get(filename, key string) (string, error) {
	f, err := load(filename)
	if err != nil {
		return "", err
	}
	src, ok := f.source[key]
	if !ok {
		return "", fmt.Errorf("prompt key %q not found in %s", key, filename)
	}
	return src, nil
}

// MustGet is Get for prompts that must exist; it panics otherwise.
func MustGet(filename, key string) string {
	src, err := Get(filename, key)
	if err != nil {
		panic(fmt.Sprintf("failed to load prompt: %v", err))
	}
	return src
}

// Render executes the template filename/key with data. Referencing a map
// key missing from data is an error.
func Render(filename, key string, data any) (string, error) {
	f, err := load(filename)
	if err != nil {
		return "", err
	}
	tmpl, ok := f.templates[key]
	if !ok {
		return "", fmt.Errorf("prompt key %q not found in %s", key, filename)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s:%s: %w", filename, key, err)
	}
	return sb.String(), nil
}

// Keys lists the prompt keys of filename in sorted order.
func Keys(filename string) ([]string, error) {
	f, err := load(filename)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(f.source))
	for k := range f.source {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// load reads and compiles filename on first use. A template that does not
// parse fails the whole file.
func load(filename string) (*file, error) {
	filesMu.Lock()
	defer filesMu.Unlock()

	if f, ok := files[filename]; ok {
		return f, nil
	}

	data, err := promptFiles.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", filename, err)
	}

	f := &file{templates: map[string]*template.Template{}}
	if err := json.Unmarshal(data, &f.source); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", filename, err)
	}
	for key, src := range f.source {
		tmpl, err := template.New(key).Option("missingkey=error").Parse(src)
		if err != nil {
			return nil, fmt.Errorf("failed to compile prompt %s:%s: %w", filename, key, err)
		}
		f.templates[key] = tmpl
	}

	files[filename] = f
	return f, nil
}
