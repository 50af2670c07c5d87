// Package session owns compiler state across render passes: the main
// markup, a virtual file store, a named input set, the font table, and at
// most one cached compiled artifact. All operations on a Session serialize
// on an internal mutex; callers wanting parallel rendering use one Session
// per pipeline execution.
package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/frankdugan3/typstflow/pkg/diag"
	"github.com/frankdugan3/typstflow/pkg/engine"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("session: closed")

// Options configures session creation.
type Options struct {
	// Root is the directory template imports resolve against.
	Root string

	// FontPaths and IgnoreSystemFonts control one-time font discovery.
	FontPaths         []string
	IgnoreSystemFonts bool

	// Logger receives debug logging. nil means no logging.
	Logger *zap.Logger
}

// CompileResult reports a successful compile.
type CompileResult struct {
	PageCount int
	Warnings  []diag.Diagnostic
}

// Session is the mutable unit of compiler state. The cached artifact, when
// present, is always consistent with the current markup, virtual files,
// and inputs: mutations that change compile input invalidate it, and a
// successful Compile atomically replaces it.
type Session struct {
	mu    sync.Mutex
	world engine.World
	log   *zap.Logger

	markup string
	files  map[string][]byte
	inputs map[string]string

	doc       engine.Document
	pageCount int
	warnings  []diag.Diagnostic

	closed bool
}

// New creates a Session against the engine. Font discovery happens here,
// once; a discovery failure is fatal to creation.
func New(eng engine.Engine, opts Options) (*Session, error) {
	world, err := eng.NewWorld(engine.Options{
		Root:              opts.Root,
		FontPaths:         opts.FontPaths,
		IgnoreSystemFonts: opts.IgnoreSystemFonts,
	})
	if err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Session{
		world:  world,
		log:    log,
		files:  make(map[string][]byte),
		inputs: make(map[string]string),
	}, nil
}

// SetMarkup replaces the main template text and invalidates the cached
// artifact.
func (s *Session) SetMarkup(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.markup = text
	s.invalidate()
	return nil
}

// SetVirtualFile replaces the named buffer and invalidates the cached
// artifact.
func (s *Session) SetVirtualFile(path string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.files[path] = append([]byte(nil), content...)
	s.invalidate()
	return nil
}

// AppendVirtualFile grows the named buffer, creating it if absent. Unlike
// SetVirtualFile it does not invalidate the cached artifact; callers must
// Compile again before relying on it.
func (s *Session) AppendVirtualFile(path string, chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.files[path] = append(s.files[path], chunk...)
	return nil
}

// ClearVirtualFile removes the named buffer and invalidates the cached
// artifact.
func (s *Session) ClearVirtualFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delete(s.files, path)
	s.invalidate()
	return nil
}

// SetInput sets one named input. Inputs are read fresh at compile time, so
// the cached artifact is left alone.
func (s *Session) SetInput(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.inputs[key] = value
	return nil
}

// SetInputs replaces the whole named input set.
func (s *Session) SetInputs(inputs map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.inputs = make(map[string]string, len(inputs))
	for key, value := range inputs {
		s.inputs[key] = value
	}
	return nil
}

// Compile runs the engine against the current markup, virtual files, and
// inputs. On success the new artifact atomically replaces any previous
// one. On failure the previous artifact is left untouched and the
// engine's diagnostics are returned, typically as *diag.CompileError.
func (s *Session) Compile(ctx context.Context) (*CompileResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	doc, warnings, err := s.world.Compile(ctx, s.snapshot())
	if err != nil {
		s.log.Debug("compile failed", zap.Error(err))
		return nil, err
	}

	if s.doc != nil {
		s.doc.Close()
	}
	s.doc = doc
	s.pageCount = doc.PageCount()
	s.warnings = warnings
	s.log.Debug("compile succeeded",
		zap.Int("pages", s.pageCount),
		zap.Int("warnings", len(warnings)))

	return &CompileResult{PageCount: s.pageCount, Warnings: warnings}, nil
}

// RenderSVG renders one zero-based page of the cached artifact. An absent
// artifact or out-of-range page is reported as a *diag.CompileError with a
// synthetic diagnostic; state is never mutated.
func (s *Session) RenderSVG(page int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}
	if s.doc == nil {
		return "", diag.NewError("no compiled document, call Compile first")
	}
	if page < 0 || page >= s.pageCount {
		return "", diag.NewError("page index %d out of bounds (document has %d pages)", page, s.pageCount)
	}
	return s.doc.RenderSVG(page)
}

// ExportPDF serializes the cached artifact as PDF, applying page-range
// filtering, standards compliance, and an optional document id.
func (s *Session) ExportPDF(opts engine.PDFOptions) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.doc == nil {
		return nil, diag.NewError("no compiled document, call Compile first")
	}
	return s.doc.ExportPDF(opts)
}

// ExportHTML runs an independent HTML compilation pass over the current
// state. It neither reads nor invalidates the cached artifact.
func (s *Session) ExportHTML(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}
	return s.world.CompileHTML(ctx, s.snapshot())
}

// FontFamilies lists the session's loaded font families. The order is
// unspecified; empty is valid.
func (s *Session) FontFamilies() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return s.world.FontFamilies()
}

// Close releases the cached artifact, the virtual file store, and the
// engine world. Further operations return ErrClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.invalidate()
	s.files = nil
	s.inputs = nil
	return s.world.Close()
}

// invalidate drops the cached artifact. Caller holds s.mu.
func (s *Session) invalidate() {
	if s.doc != nil {
		s.doc.Close()
		s.doc = nil
		s.pageCount = 0
		s.warnings = nil
	}
}

// snapshot copies current state for the engine. Caller holds s.mu.
func (s *Session) snapshot() engine.Snapshot {
	files := make(map[string][]byte, len(s.files))
	for path, content := range s.files {
		files[path] = append([]byte(nil), content...)
	}
	inputs := make(map[string]string, len(s.inputs))
	for key, value := range s.inputs {
		inputs[key] = value
	}
	return engine.Snapshot{Markup: s.markup, Files: files, Inputs: inputs}
}
