package email

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"path/filepath"
	"strings"
	"sync"
)

var ErrTemplateName = errors.New("invalid template name")

// Renderer parses templates from dir on first use and keeps them.
type Renderer struct {
	dir string

	mu    sync.RWMutex
	cache map[string]*template.Template
}

func NewRenderer(dir string) *Renderer {
	return &Renderer{
		dir:   dir,
		cache: make(map[string]*template.Template),
	}
}

// Render executes the template referenced by name (a path relative to dir).
func (r *Renderer) Render(name string, data interface{}) (string, error) {
	tmpl, err := r.lookup(name)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}

func (r *Renderer) lookup(name string) (*template.Template, error) {
	r.mu.RLock()
	tmpl, ok := r.cache[name]
	r.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	clean := filepath.Clean(filepath.FromSlash(name))
	if name == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("%w: %q", ErrTemplateName, name)
	}

	tmpl, err := template.ParseFiles(filepath.Join(r.dir, clean))
	if err != nil {
		return nil, fmt.Errorf("failed to load template %s: %w", name, err)
	}

	r.mu.Lock()
	r.cache[name] = tmpl
	r.mu.Unlock()
	return tmpl, nil
}
