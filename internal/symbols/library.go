package symbols

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"gopkg.in/yaml.v3"
)

// PatternFile is the optional dash-pattern definition file in the library
// directory.
const PatternFile = "patterns.yaml"

var ErrUnknownSymbol = errors.New("unknown symbol")

// builtin dash arrays, in pixels, keyed by line style.
var builtin = map[string][]float64{
	"SOLID":        nil,
	"DOUBLE_SOLID": nil,
	"DASHED":       {8, 4},
	"DOTTED":       {2, 4},
	"DASH_DOTTED":  {8, 4, 2, 4},
}

// Symbol describes one image in the library.
type Symbol struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type patternDoc struct {
	Patterns map[string][]float64 `yaml:"patterns"`
}

// Library holds marker images and line dash patterns. It answers from the
// built-in patterns until Prewarm has read the directory.
type Library struct {
	dir string
	log *slog.Logger

	mu       sync.RWMutex
	patterns map[string][]float64
	symbols  map[string]Symbol
	ready    chan struct{}
	once     sync.Once
}

func NewLibrary(dir string, log *slog.Logger) *Library {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Error("create symbol dir", "error", err, "dir", dir)
	}
	return &Library{
		dir:      dir,
		log:      log,
		patterns: builtin,
		symbols:  make(map[string]Symbol),
		ready:    make(chan struct{}),
	}
}

// Ready is closed once Prewarm finishes.
func (l *Library) Ready() <-chan struct{} { return l.ready }

// Prewarm loads the pattern file and indexes the images on disk. Startup
// runs it in the background; failures are logged and leave the built-in
// patterns in place.
func (l *Library) Prewarm(ctx context.Context) {
	defer l.once.Do(func() { close(l.ready) })

	patterns, err := loadPatterns(filepath.Join(l.dir, PatternFile))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		l.log.Warn("load line patterns", "error", err)
	default:
		l.mu.Lock()
		l.patterns = patterns
		l.mu.Unlock()
	}

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		l.log.Warn("read symbol dir", "error", err, "dir", l.dir)
		return
	}
	loaded := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		if entry.IsDir() || !isImage(entry.Name()) {
			continue
		}
		sym, err := describe(filepath.Join(l.dir, entry.Name()))
		if err != nil {
			l.log.Warn("skip symbol", "error", err, "file", entry.Name())
			continue
		}
		l.add(sym)
		loaded++
	}
	l.log.Info("symbol library ready", "symbols", loaded, "dir", l.dir)
}

func loadPatterns(path string) (map[string][]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc patternDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	out := make(map[string][]float64, len(builtin)+len(doc.Patterns))
	for k, v := range builtin {
		out[k] = v
	}
	for k, v := range doc.Patterns {
		if slices.ContainsFunc(v, func(f float64) bool { return f < 0 }) {
			return nil, fmt.Errorf("pattern %s: negative dash length", k)
		}
		out[strings.ToUpper(k)] = v
	}
	return out, nil
}

func isImage(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp":
		return true
	}
	return false
}

func describe(path string) (Symbol, error) {
	f, err := os.Open(path)
	if err != nil {
		return Symbol{}, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return Symbol{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	base := filepath.Base(path)
	return Symbol{
		Name:   strings.TrimSuffix(base, filepath.Ext(base)),
		URL:    "/symbols/" + base,
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}

func (l *Library) add(s Symbol) {
	l.mu.Lock()
	l.symbols[s.Name] = s
	l.mu.Unlock()
}

// Dash returns the dash array for a line style; nil draws a solid line.
func (l *Library) Dash(style string) []float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.patterns[strings.ToUpper(style)]
}

func (l *Library) Symbol(name string) (Symbol, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.symbols[name]
	if !ok {
		return Symbol{}, fmt.Errorf("%s: %w", name, ErrUnknownSymbol)
	}
	return s, nil
}

// Symbols lists the indexed images by name.
func (l *Library) Symbols() []Symbol {
	l.mu.RLock()
	out := make([]Symbol, 0, len(l.symbols))
	for _, s := range l.symbols {
		out = append(out, s)
	}
	l.mu.RUnlock()
	slices.SortFunc(out, func(a, b Symbol) int { return strings.Compare(a.Name, b.Name) })
	return out
}
