package simulator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"text/template"

	"github.com/lllypuk/dwidmapper/internal/domain/errs"
)

// Content types chosen for rendered templates.
const (
	ContentTypeJSON = "application/json; charset=UTF-8"
	ContentTypeText = "text/plain; charset=UTF-8"
)

// Templates holds parsed response templates keyed by their path relative to
// the template root.
type Templates struct {
	set   *template.Template
	names map[string]struct{}
}

// TemplateFuncs returns the functions available to response templates.
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"json": toJSON,
		"default": func(def, v any) any {
			if v == nil || v == "" {
				return def
			}
			return v
		},
		"has": func(m map[string]any, key string) bool {
			_, ok := m[key]
			return ok
		},
		"lower": strings.ToLower,
		"upper": strings.ToUpper,
	}
}

// LoadTemplates parses every regular file under root in fsys.
func LoadTemplates(fsys fs.FS, root string) (*Templates, error) {
	t := &Templates{
		set:   template.New("").Funcs(TemplateFuncs()),
		names: make(map[string]struct{}),
	}

	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		content, readErr := fs.ReadFile(fsys, p)
		if readErr != nil {
			return readErr
		}

		name := p
		if root != "." {
			name = strings.TrimPrefix(strings.TrimPrefix(p, root), "/")
		}
		if _, parseErr := t.set.New(name).Parse(string(content)); parseErr != nil {
			return fmt.Errorf("parse template %s: %w", name, parseErr)
		}
		t.names[name] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	return t, nil
}

// Has reports whether a template named ref was loaded.
func (t *Templates) Has(ref string) bool {
	_, ok := t.names[normalizeRef(ref)]
	return ok
}

// Names returns the loaded template names, sorted.
func (t *Templates) Names() []string {
	out := make([]string, 0, len(t.names))
	for n := range t.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Render executes template ref with data and returns the body and its content type.
func (t *Templates) Render(ref string, data Request) ([]byte, string, error) {
	name := normalizeRef(ref)
	if _, ok := t.names[name]; !ok {
		return nil, "", fmt.Errorf("%w: template %q", errs.ErrNotFound, ref)
	}

	var buf bytes.Buffer
	if err := t.set.ExecuteTemplate(&buf, name, map[string]any(data)); err != nil {
		return nil, "", fmt.Errorf("render template %s: %w", name, err)
	}

	return buf.Bytes(), contentTypeFor(name, buf.Bytes()), nil
}

// normalizeRef cleans a template reference so "./a.template" and "a.template" match.
func normalizeRef(ref string) string {
	return strings.TrimPrefix(path.Clean("/"+ref), "/")
}

func contentTypeFor(name string, body []byte) string {
	if strings.HasSuffix(name, ".json") {
		return ContentTypeJSON
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') && json.Valid(trimmed) {
		return ContentTypeJSON
	}
	return ContentTypeText
}

func toJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
