package render

import (
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	"github.com/gogpu/gg/text"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	// maxFontScanDepth limits recursion when scanning font directories.
	maxFontScanDepth = 3

	// maxFontFileSize skips font files larger than this.
	maxFontFileSize = 20 << 20
)

type faceKey struct {
	family string
	size   float64
}

// familyAliases maps the editor's font families to metric-compatible free
// fonts commonly installed on Linux.
var familyAliases = map[string][]string{
	"arial":           {"liberation sans", "arimo", "nimbus sans"},
	"helvetica":       {"liberation sans", "arimo", "nimbus sans"},
	"verdana":         {"dejavu sans"},
	"times new roman": {"liberation serif", "tinos", "nimbus roman"},
	"georgia":         {"gelasio", "liberation serif"},
	"palatino":        {"p052", "tex gyre pagella"},
	"garamond":        {"eb garamond"},
	"bookman":         {"urw bookman", "tex gyre bonum"},
	"courier new":     {"liberation mono", "cousine", "nimbus mono ps"},
	"comic sans ms":   {"comic neue"},
	"trebuchet ms":    {"dejavu sans"},
	"impact":          {"anton", "oswald"},
}

// monospaceFamilies fall back to Go Mono when no installed font matches.
var monospaceFamilies = map[string]bool{
	"courier new": true,
	"courier":     true,
	"monospace":   true,
}

// heavyFamilies fall back to Go Bold.
var heavyFamilies = map[string]bool{
	"impact": true,
}

// Fonts resolves editor font families to gg text faces. Families are looked
// up in the configured directories and the OS font directories; anything
// not installed falls back to the embedded Go fonts so that measuring and
// drawing never fail.
//
// Fonts is safe for concurrent use. It implements editor.Measurer.
type Fonts struct {
	mu      sync.RWMutex
	dirs    []string
	sources map[string]*text.FontSource
	faces   map[faceKey]text.Face
	scanned bool

	regular *text.FontSource
	mono    *text.FontSource
	bold    *text.FontSource
}

// NewFonts creates a font registry that searches the OS font directories
// plus extraDirs. Pass withSystem=false to use only extraDirs and the
// embedded fallbacks, which keeps rendering reproducible across hosts.
func NewFonts(withSystem bool, extraDirs ...string) (*Fonts, error) {
	var dirs []string
	if withSystem {
		dirs = append(dirs, systemFontDirs()...)
	}
	dirs = append(dirs, extraDirs...)

	f := &Fonts{
		dirs:    dirs,
		sources: make(map[string]*text.FontSource),
		faces:   make(map[faceKey]text.Face),
	}
	var err error
	if f.regular, err = text.NewFontSource(goregular.TTF); err != nil {
		return nil, err
	}
	if f.mono, err = text.NewFontSource(gomono.TTF); err != nil {
		return nil, err
	}
	if f.bold, err = text.NewFontSource(gobold.TTF); err != nil {
		return nil, err
	}
	return f, nil
}

// Face returns a face for family at size pixels.
func (f *Fonts) Face(family string, size float64) text.Face {
	f.ensureScanned()

	key := faceKey{family: strings.ToLower(family), size: size}
	f.mu.RLock()
	if face, ok := f.faces[key]; ok {
		f.mu.RUnlock()
		return face
	}
	f.mu.RUnlock()

	face := f.source(key.family).Face(size)

	f.mu.Lock()
	f.faces[key] = face
	f.mu.Unlock()
	return face
}

// MeasureText returns the advance width of s set in family at size pixels.
func (f *Fonts) MeasureText(family string, size float64, s string) float64 {
	if s == "" {
		return 0
	}
	return f.Face(family, size).Advance(s)
}

// Resolved reports the name of the font that family resolves to.
func (f *Fonts) Resolved(family string) string {
	f.ensureScanned()
	return f.source(strings.ToLower(family)).Name()
}

// LoadFontData registers a TrueType/OpenType font under name. A font
// already registered under name is replaced and closed once nothing else
// refers to it.
func (f *Fonts) LoadFontData(name string, data []byte) error {
	src, err := text.NewFontSource(data)
	if err != nil {
		return err
	}
	key := strings.ToLower(name)

	f.mu.Lock()
	defer f.mu.Unlock()
	old := f.sources[key]
	f.register(key, src)
	f.faces = make(map[faceKey]text.Face)
	if old != nil && !f.referenced(old) {
		_ = old.Close()
	}
	return nil
}

func (f *Fonts) referenced(src *text.FontSource) bool {
	if src == f.regular || src == f.mono || src == f.bold {
		return true
	}
	for _, s := range f.sources {
		if s == src {
			return true
		}
	}
	return false
}

// Close releases every font source. The registry must not be used afterwards.
func (f *Fonts) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[*text.FontSource]bool)
	for _, src := range append([]*text.FontSource{f.regular, f.mono, f.bold}, slices.Collect(maps.Values(f.sources))...) {
		if !seen[src] {
			seen[src] = true
			_ = src.Close()
		}
	}
	f.sources = make(map[string]*text.FontSource)
	f.faces = make(map[faceKey]text.Face)
	return nil
}

func (f *Fonts) source(lower string) *text.FontSource {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if src, ok := f.sources[lower]; ok {
		return src
	}
	for _, alias := range familyAliases[lower] {
		if src, ok := f.sources[alias]; ok {
			return src
		}
	}
	switch {
	case monospaceFamilies[lower]:
		return f.mono
	case heavyFamilies[lower]:
		return f.bold
	}
	return f.regular
}

func (f *Fonts) ensureScanned() {
	f.mu.RLock()
	scanned := f.scanned
	f.mu.RUnlock()
	if scanned {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scanned {
		return
	}
	f.scanned = true

	for _, dir := range f.dirs {
		f.scanDir(dir, 0)
	}
	logrus.WithField("fonts", len(f.sources)).Debug("Font directories scanned")
}

func (f *Fonts) scanDir(dir string, depth int) {
	if depth > maxFontScanDepth {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			f.scanDir(filepath.Join(dir, entry.Name()), depth+1)
			continue
		}
		lower := strings.ToLower(entry.Name())
		if !strings.HasSuffix(lower, ".ttf") && !strings.HasSuffix(lower, ".otf") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.Size() > maxFontFileSize {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		src, err := text.NewFontSource(data)
		if err != nil {
			logrus.WithField("file", entry.Name()).Debugf("Skipping font: %v", err)
			continue
		}
		f.register(strings.TrimSuffix(lower, filepath.Ext(lower)), src)
	}
}

// register adds src under key and under its family name. Callers hold mu.
func (f *Fonts) register(key string, src *text.FontSource) {
	f.sources[key] = src
	if name := strings.ToLower(src.Name()); name != "" {
		if _, exists := f.sources[name]; !exists {
			f.sources[name] = src
		}
	}
}

func systemFontDirs() []string {
	switch runtime.GOOS {
	case "windows":
		windir := os.Getenv("WINDIR")
		if windir == "" {
			windir = `C:\Windows`
		}
		return []string{filepath.Join(windir, "Fonts")}
	case "darwin":
		dirs := []string{"/System/Library/Fonts", "/Library/Fonts"}
		if home, err := os.UserHomeDir(); err == nil {
			dirs = append(dirs, filepath.Join(home, "Library", "Fonts"))
		}
		return dirs
	default:
		dirs := []string{"/usr/share/fonts", "/usr/local/share/fonts"}
		if home, err := os.UserHomeDir(); err == nil {
			dirs = append(dirs, filepath.Join(home, ".local", "share", "fonts"), filepath.Join(home, ".fonts"))
		}
		return dirs
	}
}
