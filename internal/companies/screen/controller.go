package screen

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/odyssey-erp/companyadmin/internal/companies"
)

var (
	// ErrClosed is returned when an operation resolves after the screen was torn down.
	ErrClosed = errors.New("screen: closed")
	// ErrDeleteInFlight rejects a confirm while a delete is still running.
	ErrDeleteInFlight = errors.New("screen: delete already in progress")
	// ErrNothingToExport is returned by ExportCSV when the list is empty.
	ErrNothingToExport = errors.New("screen: nothing to export")
)

// Source is the remote collaborator that owns companies.
type Source interface {
	List(ctx context.Context) ([]companies.Company, error)
	Delete(ctx context.Context, id int64) error
}

// Recorder receives screen events for metrics.
type Recorder interface {
	ScreenEvent(event string)
}

// Event names passed to Recorder.
const (
	EventFetchFailed  = "fetch_failed"
	EventDeleted      = "deleted"
	EventDeleteFailed = "delete_failed"
	EventExported     = "exported"
	EventExportFailed = "export_failed"
)

// Controller owns the State of one screen activation.
type Controller struct {
	source   Source
	logger   *slog.Logger
	recorder Recorder

	mu    sync.Mutex
	state State

	life   context.Context
	cancel context.CancelFunc
}

// Option customises a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for failures and edit intents.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRecorder wires a metrics sink.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// New returns a controller in its freshly activated state.
func New(source Source, opts ...Option) *Controller {
	return Restore(source, NewState(), opts...)
}

// Restore returns a controller resuming a previously saved state.
func Restore(source Source, state State, opts ...Option) *Controller {
	life, cancel := context.WithCancel(context.Background())
	c := &Controller{
		source: source,
		logger: slog.Default(),
		state:  state.Clone(),
		life:   life,
		cancel: cancel,
	}
	if c.state.Companies == nil {
		c.state.Companies = []companies.Company{}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close ends the controller lifetime and cancels in-flight calls.
func (c *Controller) Close() {
	c.cancel()
}

func (c *Controller) alive() bool {
	return c.life.Err() == nil
}

// bind derives a context cancelled by either ctx or the controller lifetime.
func (c *Controller) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.life, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}

// Activate fetches the collection. Fetch failures become an error notification;
// the only returned error is ErrClosed.
func (c *Controller) Activate(ctx context.Context) error {
	if !c.alive() {
		return ErrClosed
	}
	c.mu.Lock()
	c.state.Loading = true
	c.mu.Unlock()

	opCtx, done := c.bind(ctx)
	items, err := c.source.List(opCtx)
	done()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.alive() {
		return ErrClosed
	}
	defer func() { c.state.Loading = false }()
	if err != nil {
		c.logger.Error("fetch companies failed", slog.Any("error", err))
		c.notify(MsgFetchFailed, SeverityError)
		c.record(EventFetchFailed)
		return nil
	}
	if items == nil {
		items = []companies.Company{}
	}
	c.state.Companies = append([]companies.Company{}, items...)
	return nil
}

// SetSearch replaces the search text.
func (c *Controller) SetSearch(search string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Search = search
}

// Visible returns the companies matching the current search.
func (c *Controller) Visible() []companies.Company {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Filter(c.state.Companies, c.state.Search)
}

// Find looks a company up by id in the loaded list.
func (c *Controller) Find(id int64) (companies.Company, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range c.state.Companies {
		if item.ID == id {
			return item, true
		}
	}
	return companies.Company{}, false
}

// Edit acknowledges an edit request. There is no edit flow behind it.
func (c *Controller) Edit(company companies.Company) {
	c.logger.Info("edit company requested", slog.Int64("id", company.ID), slog.String("name", company.Name))
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notify(MsgEditing, SeverityInfo)
}

// RequestDelete opens the confirmation dialog for company.
func (c *Controller) RequestDelete(company companies.Company) {
	c.mu.Lock()
	defer c.mu.Unlock()
	target := company
	c.state.Dialog = Dialog{Target: &target, Open: true}
}

// CancelDelete closes the dialog without side effects.
func (c *Controller) CancelDelete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Dialog.Deleting {
		return
	}
	c.state.Dialog = Dialog{}
}

// ConfirmDelete deletes the dialog target. Failures become an error
// notification; returned errors are ErrClosed and ErrDeleteInFlight.
// Without a target it does nothing.
func (c *Controller) ConfirmDelete(ctx context.Context) error {
	if !c.alive() {
		return ErrClosed
	}
	c.mu.Lock()
	if c.state.Dialog.Deleting {
		c.mu.Unlock()
		return ErrDeleteInFlight
	}
	if c.state.Dialog.Target == nil {
		c.mu.Unlock()
		return nil
	}
	target := *c.state.Dialog.Target
	c.state.Dialog.Deleting = true
	c.mu.Unlock()

	opCtx, done := c.bind(ctx)
	err := c.source.Delete(opCtx, target.ID)
	done()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.alive() {
		return ErrClosed
	}
	if err != nil {
		c.logger.Error("delete company failed", slog.Any("error", err), slog.Int64("id", target.ID))
		c.notify(MsgDeleteFailed, SeverityError)
		c.record(EventDeleteFailed)
	} else {
		kept := make([]companies.Company, 0, len(c.state.Companies))
		for _, item := range c.state.Companies {
			if item.ID != target.ID {
				kept = append(kept, item)
			}
		}
		c.state.Companies = kept
		c.notify(MsgDeleted, SeveritySuccess)
		c.record(EventDeleted)
	}
	c.state.Dialog = Dialog{}
	return nil
}

// ExportEnabled reports whether there is anything to export. Search is ignored.
func (c *Controller) ExportEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.state.Companies) > 0
}

// ExportCSV writes the full, unfiltered list to w. A serialisation failure is
// also raised as an error notification.
func (c *Controller) ExportCSV(w io.Writer) error {
	c.mu.Lock()
	items := append([]companies.Company{}, c.state.Companies...)
	c.mu.Unlock()
	if len(items) == 0 {
		return ErrNothingToExport
	}

	var buf bytes.Buffer
	err := WriteCSV(&buf, items)
	if err == nil {
		_, err = w.Write(buf.Bytes())
	}
	if err != nil {
		c.logger.Error("export companies failed", slog.Any("error", err))
		c.mu.Lock()
		c.notify(MsgExportFailed, SeverityError)
		c.mu.Unlock()
		c.record(EventExportFailed)
		return err
	}
	c.record(EventExported)
	return nil
}

// DismissNotification hides the banner. Message and severity are kept.
func (c *Controller) DismissNotification() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Notification.Open = false
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// View returns the render model.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return View{
		State:         c.state.Clone(),
		Visible:       Filter(c.state.Companies, c.state.Search),
		ExportEnabled: len(c.state.Companies) > 0,
	}
}

// notify must be called with mu held.
func (c *Controller) notify(message string, severity Severity) {
	c.state.Notification = Notification{Message: message, Severity: severity, Open: true}
}

func (c *Controller) record(event string) {
	if c.recorder != nil {
		c.recorder.ScreenEvent(event)
	}
}
