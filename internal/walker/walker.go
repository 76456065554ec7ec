package walker

import (
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/Hekzory/CommentLLM/internal/failure"
)

// DefaultExtensions lists the source suffixes processed when none are configured.
var DefaultExtensions = []string{"c", "cpp", "py", "js", "ts", "java", "rs"}

// DefaultIgnore lists the entry names skipped when none are configured.
var DefaultIgnore = []string{"venv", ".git", "__pycache__"}

// Extension returns the text after the last '.' in name's base.
// A name without a '.' (e.g. "Makefile") or ending in '.' has no extension
// and the empty string is returned.
func Extension(name string) string {
	base := filepath.Base(name)
	i := strings.LastIndexByte(base, '.')
	if i < 0 {
		return ""
	}
	return base[i+1:]
}

// Filter decides which entries take part in a walk.
type Filter struct {
	extensions map[string]struct{}
	ignore     []string
}

// NewFilter creates a Filter. Nil slices fall back to the defaults.
// Extensions may be given with or without a leading dot.
func NewFilter(extensions, ignore []string) *Filter {
	if extensions == nil {
		extensions = DefaultExtensions
	}
	if ignore == nil {
		ignore = DefaultIgnore
	}
	f := &Filter{extensions: make(map[string]struct{}, len(extensions))}
	for _, ext := range extensions {
		ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
		if ext != "" {
			f.extensions[ext] = struct{}{}
		}
	}
	for _, pattern := range ignore {
		if pattern = strings.TrimSpace(pattern); pattern != "" {
			f.ignore = append(f.ignore, pattern)
		}
	}
	return f
}

// Eligible reports whether name's extension is in the allow-list.
func (f *Filter) Eligible(name string) bool {
	ext := Extension(name)
	if ext == "" {
		return false
	}
	_, ok := f.extensions[ext]
	return ok
}

// Ignored reports whether name's base matches an ignore entry. Entries are
// exact names or filepath.Match patterns.
func (f *Filter) Ignored(name string) bool {
	base := filepath.Base(name)
	for _, pattern := range f.ignore {
		if pattern == base {
			return true
		}
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// Walker enumerates eligible files under a root.
type Walker struct {
	Filter *Filter
}

// New creates a Walker using filter, or the default filter when nil.
func New(filter *Filter) *Walker {
	if filter == nil {
		filter = NewFilter(nil, nil)
	}
	return &Walker{Filter: filter}
}

// Walk lazily yields eligible file paths under root, depth-first with
// siblings in sorted name order. Ignored directories are not descended into
// and symlinks are not followed. A directory that cannot be read yields a
// classified ErrIO and the walk continues with its siblings; stopping the
// range loop stops the walk.
func (w *Walker) Walk(root string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		w.walkDir(root, yield)
	}
}

// walkDir returns false once the consumer has stopped.
func (w *Walker) walkDir(dir string, yield func(string, error) bool) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return yield("", failure.IO("walk", dir, err))
	}

	// os.ReadDir returns entries sorted by filename
	for _, entry := range entries {
		name := entry.Name()
		if w.Filter.Ignored(name) {
			continue
		}
		path := filepath.Join(dir, name)

		switch {
		case entry.IsDir():
			if !w.walkDir(path, yield) {
				return false
			}
		case entry.Type().IsRegular():
			if w.Filter.Eligible(name) && !yield(path, nil) {
				return false
			}
		}
	}
	return true
}

// Collect drains Walk into a slice of paths and a slice of per-entry errors.
func (w *Walker) Collect(root string) ([]string, []error) {
	var (
		paths []string
		errs  []error
	)
	for path, err := range w.Walk(root) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		paths = append(paths, path)
	}
	return paths, errs
}
