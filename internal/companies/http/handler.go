package companieshttp

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/companyadmin/internal/companies/screen"
	"github.com/odyssey-erp/companyadmin/internal/shared"
	"github.com/odyssey-erp/companyadmin/internal/view"
)

const (
	screenPath    = "/companies"
	pageTemplate  = "pages/companies.html"
	pageTitle     = "Empresas"
	deleteLockTTL = 30 * time.Second
)

// StateStore persists screen state between requests of one session.
type StateStore interface {
	Load(ctx context.Context, sessionID string) (screen.State, bool, error)
	Save(ctx context.Context, sessionID string, state screen.State) error
	Lock(ctx context.Context, sessionID string, ttl time.Duration) (func(context.Context) error, error)
}

// Handler serves the company listing screen.
type Handler struct {
	logger    *slog.Logger
	source    screen.Source
	store     StateStore
	templates *view.Engine
	csrf      *shared.CSRFManager
	recorder  screen.Recorder
}

// NewHandler builds a Handler. recorder may be nil.
func NewHandler(logger *slog.Logger, source screen.Source, store StateStore, templates *view.Engine, csrf *shared.CSRFManager, recorder screen.Recorder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, source: source, store: store, templates: templates, csrf: csrf, recorder: recorder}
}

// MountRoutes registers the screen routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.activate)
	r.Get("/search", h.search)
	r.Get("/export.csv", h.export)
	r.Post("/{id}/edit", h.edit)
	r.Post("/{id}/delete", h.requestDelete)
	r.Post("/delete/cancel", h.cancelDelete)
	r.Post("/delete/confirm", h.confirmDelete)
	r.Post("/notification/dismiss", h.dismissNotification)
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.fail(w, shared.ErrSessionMissing)
		return
	}
	ctrl := h.controller(screen.NewState())
	defer ctrl.Close()
	if err := ctrl.Activate(r.Context()); err != nil {
		h.fail(w, err)
		return
	}
	ctrl.SetSearch(r.URL.Query().Get("q"))
	h.saveAndRender(w, r, sess, ctrl)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	ctrl, sess, ok := h.restore(w, r)
	if !ok {
		return
	}
	defer ctrl.Close()
	ctrl.SetSearch(r.URL.Query().Get("q"))
	h.saveAndRender(w, r, sess, ctrl)
}

func (h *Handler) edit(w http.ResponseWriter, r *http.Request) {
	h.withTarget(w, r, func(ctrl *screen.Controller, id int64) bool {
		company, found := ctrl.Find(id)
		if found {
			ctrl.Edit(company)
		}
		return found
	})
}

func (h *Handler) requestDelete(w http.ResponseWriter, r *http.Request) {
	h.withTarget(w, r, func(ctrl *screen.Controller, id int64) bool {
		company, found := ctrl.Find(id)
		if found {
			ctrl.RequestDelete(company)
		}
		return found
	})
}

func (h *Handler) cancelDelete(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, (*screen.Controller).CancelDelete)
}

func (h *Handler) dismissNotification(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, (*screen.Controller).DismissNotification)
}

func (h *Handler) confirmDelete(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.fail(w, shared.ErrSessionMissing)
		return
	}
	unlock, err := h.store.Lock(r.Context(), sess.ID, deleteLockTTL)
	if errors.Is(err, screen.ErrLocked) {
		http.Error(w, "Exclusão já em andamento", http.StatusConflict)
		return
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	defer func() {
		if err := unlock(context.WithoutCancel(r.Context())); err != nil {
			h.logger.Warn("release screen lock", slog.Any("error", err))
		}
	}()

	ctrl, _, ok := h.restore(w, r)
	if !ok {
		return
	}
	defer ctrl.Close()
	if err := ctrl.ConfirmDelete(r.Context()); err != nil {
		if errors.Is(err, screen.ErrDeleteInFlight) {
			http.Error(w, "Exclusão já em andamento", http.StatusConflict)
			return
		}
		h.fail(w, err)
		return
	}
	h.saveAndRedirect(w, r, sess, ctrl)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	ctrl, sess, ok := h.restore(w, r)
	if !ok {
		return
	}
	defer ctrl.Close()

	var buf bytes.Buffer
	err := ctrl.ExportCSV(&buf)
	if errors.Is(err, screen.ErrNothingToExport) {
		http.Redirect(w, r, resumeLocation(ctrl.Snapshot().Search), http.StatusSeeOther)
		return
	}
	if err != nil {
		h.saveAndRedirect(w, r, sess, ctrl)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+screen.ExportFilename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warn("write csv export", slog.Any("error", err))
	}
}

// withTarget resolves {id} against the loaded list before running fn.
func (h *Handler) withTarget(w http.ResponseWriter, r *http.Request, fn func(*screen.Controller, int64) bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "ID de empresa inválido", http.StatusBadRequest)
		return
	}
	ctrl, sess, ok := h.restore(w, r)
	if !ok {
		return
	}
	defer ctrl.Close()
	if !fn(ctrl, id) {
		http.Error(w, "Empresa não encontrada", http.StatusNotFound)
		return
	}
	h.saveAndRedirect(w, r, sess, ctrl)
}

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, fn func(*screen.Controller)) {
	ctrl, sess, ok := h.restore(w, r)
	if !ok {
		return
	}
	defer ctrl.Close()
	fn(ctrl)
	h.saveAndRedirect(w, r, sess, ctrl)
}

// restore rebuilds the session's controller, activating a fresh one when no
// state was saved yet.
func (h *Handler) restore(w http.ResponseWriter, r *http.Request) (*screen.Controller, *shared.Session, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.fail(w, shared.ErrSessionMissing)
		return nil, nil, false
	}
	state, found, err := h.store.Load(r.Context(), sess.ID)
	if err != nil {
		h.fail(w, err)
		return nil, nil, false
	}
	if found {
		return h.controller(state), sess, true
	}
	ctrl := h.controller(screen.NewState())
	if err := ctrl.Activate(r.Context()); err != nil {
		ctrl.Close()
		h.fail(w, err)
		return nil, nil, false
	}
	return ctrl, sess, true
}

func (h *Handler) controller(state screen.State) *screen.Controller {
	return screen.Restore(h.source, state, screen.WithLogger(h.logger), screen.WithRecorder(h.recorder))
}

func (h *Handler) saveAndRender(w http.ResponseWriter, r *http.Request, sess *shared.Session, ctrl *screen.Controller) {
	if err := h.store.Save(r.Context(), sess.ID, ctrl.Snapshot()); err != nil {
		h.fail(w, err)
		return
	}
	csrfToken, err := h.csrf.EnsureToken(sess)
	if err != nil {
		h.fail(w, err)
		return
	}
	data := view.TemplateData{
		Title:       pageTitle,
		CSRFToken:   csrfToken,
		CurrentPath: r.URL.Path,
		Data:        ctrl.View(),
	}
	if err := h.templates.Render(w, http.StatusOK, pageTemplate, data); err != nil {
		h.logger.Error("render template", slog.Any("error", err), slog.String("template", pageTemplate))
	}
}

func (h *Handler) saveAndRedirect(w http.ResponseWriter, r *http.Request, sess *shared.Session, ctrl *screen.Controller) {
	if err := h.store.Save(r.Context(), sess.ID, ctrl.Snapshot()); err != nil {
		h.fail(w, err)
		return
	}
	http.Redirect(w, r, resumeLocation(ctrl.Snapshot().Search), http.StatusSeeOther)
}

// resumeLocation points at the route that renders saved state. GET /companies
// would start a fresh activation and drop the dialog and notification.
func resumeLocation(search string) string {
	return screenPath + "/search?q=" + url.QueryEscape(search)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	h.logger.Error("companies screen", slog.Any("error", err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
