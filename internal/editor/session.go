package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nuetzliches/routedit/internal/routeconfig"
)

const (
	FileFilter = "Ocelot configuration|ocelot.json|JSON files|*.json|All files|*.*"

	StatusReady  = "Ready"
	StatusNew    = "New configuration"
	StatusLoaded = "Configuration loaded"
	StatusSaved  = "Configuration saved"

	TitleError      = "Error"
	TitleValidation = "Validation error"
	TitleConfirm    = "Confirm"

	MsgDiscardChanges = "Discard unsaved changes?"
	MsgDeleteRoute    = "Delete selected route?"
)

// Persistence loads and stores documents. routeconfig.FileStore implements
// it for the local filesystem.
type Persistence interface {
	Load(ctx context.Context, path string) (*routeconfig.Document, routeconfig.Report, error)
	Save(ctx context.Context, path string, doc *routeconfig.Document) error
}

// FilePicker asks the user for a path. ok is false when the user cancels.
type FilePicker interface {
	OpenForRead(filter string) (path string, ok bool)
	OpenForWrite(filter, suggested string) (path string, ok bool)
}

type Dialog interface {
	Notify(message, title string)
	NotifyError(message, title string)
	Confirm(message, title string) bool
}

// Recorder keeps a copy of every saved document.
type Recorder interface {
	Record(ctx context.Context, path string, content []byte, routes int) error
}

type SessionOption func(*Session)

func WithRecorder(r Recorder) SessionOption {
	return func(s *Session) { s.recorder = r }
}

func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// Session ties a model to its file: open, save, save-as, new and the
// confirmations around them. Failures are reported through Dialog and never
// leave the model half-updated.
type Session struct {
	store    Persistence
	picker   FilePicker
	dialog   Dialog
	recorder Recorder
	logger   *slog.Logger

	model   *Model
	tracker *Tracker

	path     string
	status   string
	warnings []string
	baseline []byte
	digest   routeconfig.Digest
}

// NewSession starts on a blank document.
func NewSession(store Persistence, picker FilePicker, dialog Dialog, opts ...SessionOption) *Session {
	s := &Session{
		store:  store,
		picker: picker,
		dialog: dialog,
		logger: slog.Default(),
		model:  NewModel(),
		status: StatusReady,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.tracker = NewTracker(s.model.Bus())
	s.reset()
	return s
}

func (s *Session) Model() *Model        { return s.model }
func (s *Session) Tracker() *Tracker    { return s.tracker }
func (s *Session) Dirty() bool          { return s.tracker.Dirty() }
func (s *Session) Path() string         { return s.path }
func (s *Session) Status() string       { return s.status }
func (s *Session) Warnings() []string   { return append([]string(nil), s.warnings...) }
func (s *Session) SetStatus(msg string) { s.status = msg }

// New replaces the document with a blank one after confirming that unsaved
// changes may be discarded.
func (s *Session) New(ctx context.Context) bool {
	if !s.confirmDiscard() {
		return false
	}
	s.reset()
	s.status = StatusNew
	s.logger.Info("config_new")
	return true
}

func (s *Session) reset() {
	// Hydrating Blank cannot fail and nothing else holds the token here.
	_ = s.model.Hydrate(routeconfig.Blank())
	s.path = ""
	s.warnings = nil
	s.digest = routeconfig.Digest{}
	s.baseline, _ = routeconfig.Format(s.model.Snapshot())
}

// Open asks for a file and loads it.
func (s *Session) Open(ctx context.Context) bool {
	if !s.confirmDiscard() {
		return false
	}
	path, ok := s.picker.OpenForRead(FileFilter)
	if !ok {
		return false
	}
	return s.LoadPath(ctx, path) == nil
}

// LoadPath loads path into the model. On failure the user is told and the
// current model stays as it was.
func (s *Session) LoadPath(ctx context.Context, path string) error {
	doc, rep, err := s.store.Load(ctx, path)
	if err == nil {
		err = s.model.Hydrate(doc)
	}
	if err != nil {
		s.dialog.NotifyError(fmt.Sprintf("Unable to load configuration: %v", err), TitleError)
		return err
	}

	s.path = path
	s.status = StatusLoaded
	s.warnings = rep.Warnings
	s.baseline, _ = routeconfig.Format(s.model.Snapshot())
	s.digest = s.diskDigest(path)
	return nil
}

// Save writes to the current path, or behaves like SaveAs when there is
// none.
func (s *Session) Save(ctx context.Context) bool {
	if s.path == "" {
		return s.SaveAs(ctx)
	}
	return s.SaveTo(ctx, s.path) == nil
}

func (s *Session) SaveAs(ctx context.Context) bool {
	path, ok := s.picker.OpenForWrite(FileFilter, s.path)
	if !ok {
		return false
	}
	return s.SaveTo(ctx, path) == nil
}

// SaveTo runs the save gate and writes the document to path. A failing gate
// or write is reported through Dialog and leaves the dirty flag alone.
func (s *Session) SaveTo(ctx context.Context, path string) error {
	doc, err := s.model.ToDocument()
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			s.dialog.NotifyError(ve.Message, TitleValidation)
		} else {
			s.dialog.NotifyError(err.Error(), TitleValidation)
		}
		return err
	}
	if err := s.store.Save(ctx, path, doc); err != nil {
		s.dialog.NotifyError(fmt.Sprintf("Unable to save configuration: %v", err), TitleError)
		return err
	}

	s.tracker.MarkSaved()
	s.path = path
	s.status = StatusSaved
	s.warnings = nil
	s.digest = s.diskDigest(path)

	content, err := routeconfig.Format(doc)
	if err != nil {
		return nil
	}
	s.baseline = content
	if s.recorder != nil {
		if rerr := s.recorder.Record(ctx, path, content, len(doc.Routes)); rerr != nil {
			s.logger.Warn("history_record_failed", slog.String("path", path), slog.Any("err", rerr))
		}
	}
	return nil
}

// DeleteSelectedRoute removes the selected route after confirmation.
func (s *Session) DeleteSelectedRoute() bool {
	sel := s.model.Selected()
	if sel == nil {
		return false
	}
	if !s.dialog.Confirm(MsgDeleteRoute, TitleConfirm) {
		return false
	}
	return s.model.DeleteRoute(sel) == nil
}

// ConfirmDiscard asks before unsaved changes are thrown away. It returns
// true without asking when nothing is dirty.
func (s *Session) ConfirmDiscard() bool {
	return s.confirmDiscard()
}

func (s *Session) confirmDiscard() bool {
	if !s.tracker.Dirty() {
		return true
	}
	return s.dialog.Confirm(MsgDiscardChanges, TitleConfirm)
}

// PendingDiff renders the unsaved edits as a unified diff of the formatted
// document. It is empty when there are none.
func (s *Session) PendingDiff() (string, error) {
	current, err := routeconfig.Format(s.model.Snapshot())
	if err != nil {
		return "", err
	}
	name := s.path
	if name == "" {
		name = "untitled"
	}
	return routeconfig.DiffText(string(s.baseline), string(current), 3, name+" (saved)", name+" (edited)"), nil
}

// DiskChanged reports whether the file at the current path no longer holds
// the bytes last loaded or saved by this session.
func (s *Session) DiskChanged() (bool, error) {
	if s.path == "" {
		return false, nil
	}
	d, err := routeconfig.DigestFile(s.path)
	if err != nil {
		return false, err
	}
	return d != s.digest, nil
}

func (s *Session) diskDigest(path string) routeconfig.Digest {
	d, err := routeconfig.DigestFile(path)
	if err != nil {
		s.logger.Debug("config_digest_failed", slog.String("path", path), slog.Any("err", err))
		return routeconfig.Digest{}
	}
	return d
}
