package chi

import (
	"fmt"
	"html/template"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/Masterminds/sprig/v3"
	"github.com/spf13/afero"
)

const DefaultViewExtension = ".html"

// ViewEngine renders named views. Template resolution is entirely up to the engine.
type ViewEngine interface {
	Render(w io.Writer, name string, data any) error
}

type TemplateEngineConfig struct {
	Fs afero.Fs
	// Dir is the view root inside Fs.
	Dir       string
	Extension string
	// Cache keeps parsed templates; leave it off while editing views.
	Cache bool
	Funcs template.FuncMap
}

// TemplateEngine renders html/template views from an afero filesystem, with sprig functions available.
type TemplateEngine struct {
	cfg TemplateEngineConfig

	lock      sync.RWMutex
	templates map[string]*template.Template
}

func NewTemplateEngine(cfg TemplateEngineConfig) *TemplateEngine {
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Dir == "" {
		cfg.Dir = "views"
	}
	if cfg.Extension == "" {
		cfg.Extension = DefaultViewExtension
	}
	if !strings.HasPrefix(cfg.Extension, ".") {
		cfg.Extension = "." + cfg.Extension
	}
	return &TemplateEngine{cfg: cfg, templates: map[string]*template.Template{}}
}

func (e *TemplateEngine) Render(w io.Writer, name string, data any) error {
	t, err := e.lookup(name)
	if err != nil {
		return err
	}
	return t.Execute(w, data)
}

func (e *TemplateEngine) lookup(name string) (*template.Template, error) {
	file := e.file(name)
	if e.cfg.Cache {
		e.lock.RLock()
		t, ok := e.templates[file]
		e.lock.RUnlock()
		if ok {
			return t, nil
		}
	}

	data, err := afero.ReadFile(e.cfg.Fs, file)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup view %q: %w", name, err)
	}
	t, err := template.New(path.Base(file)).
		Funcs(sprig.FuncMap()).
		Funcs(e.cfg.Funcs).
		Parse(string(data))
	if err != nil {
		return nil, err
	}

	if e.cfg.Cache {
		e.lock.Lock()
		e.templates[file] = t
		e.lock.Unlock()
	}
	return t, nil
}

func (e *TemplateEngine) file(name string) string {
	clean := strings.TrimPrefix(path.Clean("/"+name), "/")
	if path.Ext(clean) == "" {
		clean += e.cfg.Extension
	}
	return path.Join(e.cfg.Dir, clean)
}
