package screen

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/companyadmin/internal/companies"
)

type stubSource struct {
	items     []companies.Company
	listErr   error
	deleteErr error
	deleted   []int64
	// gate, when set, blocks the call until it is closed or ctx ends.
	gate chan struct{}
}

func (s *stubSource) wait(ctx context.Context) error {
	if s.gate == nil {
		return nil
	}
	select {
	case <-s.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *stubSource) List(ctx context.Context) ([]companies.Company, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.items, nil
}

func (s *stubSource) Delete(ctx context.Context, id int64) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, id)
	return nil
}

type countingRecorder struct {
	events []string
}

func (r *countingRecorder) ScreenEvent(event string) {
	r.events = append(r.events, event)
}

var (
	acme   = companies.Company{ID: 1, Name: "Acme", SuperUser: false}
	globex = companies.Company{ID: 2, Name: "Globex Corporation", SuperUser: true}
	acao   = companies.Company{ID: 3, Name: "AÇÃO Logística", SuperUser: false}
)

func activated(t *testing.T, src *stubSource, opts ...Option) *Controller {
	t.Helper()
	ctrl := New(src, opts...)
	t.Cleanup(ctrl.Close)
	require.NoError(t, ctrl.Activate(context.Background()))
	return ctrl
}

func TestNewControllerStartsLoading(t *testing.T) {
	ctrl := New(&stubSource{})
	defer ctrl.Close()

	state := ctrl.Snapshot()
	assert.True(t, state.Loading)
	assert.Empty(t, state.Companies)
	assert.False(t, state.Notification.Open)
	assert.False(t, state.Dialog.Open)
}

func TestActivateLoadsCompanies(t *testing.T) {
	ctrl := activated(t, &stubSource{items: []companies.Company{acme, globex}})

	state := ctrl.Snapshot()
	assert.False(t, state.Loading)
	assert.Equal(t, []companies.Company{acme, globex}, state.Companies)
	assert.False(t, state.Notification.Open)
}

func TestActivateFetchFailure(t *testing.T) {
	rec := &countingRecorder{}
	ctrl := activated(t, &stubSource{listErr: errors.New("503")}, WithRecorder(rec))

	state := ctrl.Snapshot()
	assert.False(t, state.Loading)
	assert.Empty(t, state.Companies)
	assert.Equal(t, Notification{Message: MsgFetchFailed, Severity: SeverityError, Open: true}, state.Notification)
	assert.Equal(t, []string{EventFetchFailed}, rec.events)
}

func TestSearchFiltersByNameIgnoringCase(t *testing.T) {
	ctrl := activated(t, &stubSource{items: []companies.Company{acme}})

	ctrl.SetSearch("ac")
	assert.Equal(t, []companies.Company{acme}, ctrl.Visible())

	ctrl.SetSearch("zz")
	assert.Empty(t, ctrl.Visible())

	ctrl.SetSearch("ACME")
	assert.Equal(t, []companies.Company{acme}, ctrl.Visible())
}

func TestSearchDoesNotRequery(t *testing.T) {
	src := &stubSource{items: []companies.Company{acme, globex}}
	ctrl := activated(t, src)

	src.items = nil
	ctrl.SetSearch("glo")
	assert.Equal(t, []companies.Company{globex}, ctrl.Visible())
	assert.Len(t, ctrl.Snapshot().Companies, 2)
}

func TestEditNotifiesOnly(t *testing.T) {
	src := &stubSource{items: []companies.Company{acme}}
	ctrl := activated(t, src)
	before := ctrl.Snapshot().Companies

	ctrl.Edit(acme)

	state := ctrl.Snapshot()
	assert.Equal(t, before, state.Companies)
	assert.Equal(t, Notification{Message: MsgEditing, Severity: SeverityInfo, Open: true}, state.Notification)
	assert.False(t, state.Dialog.Open)
	assert.Empty(t, src.deleted)
}

func TestRequestAndCancelDelete(t *testing.T) {
	src := &stubSource{items: []companies.Company{acme}}
	ctrl := activated(t, src)

	ctrl.RequestDelete(acme)
	state := ctrl.Snapshot()
	require.NotNil(t, state.Dialog.Target)
	assert.Equal(t, acme, *state.Dialog.Target)
	assert.True(t, state.Dialog.Open)
	assert.False(t, state.Dialog.Deleting)

	ctrl.CancelDelete()
	state = ctrl.Snapshot()
	assert.Equal(t, Dialog{}, state.Dialog)
	assert.Equal(t, []companies.Company{acme}, state.Companies)
	assert.False(t, state.Notification.Open)
	assert.Empty(t, src.deleted)
}

func TestConfirmDeleteSuccess(t *testing.T) {
	rec := &countingRecorder{}
	src := &stubSource{items: []companies.Company{acme, globex, acao}}
	ctrl := activated(t, src, WithRecorder(rec))

	ctrl.RequestDelete(globex)
	require.NoError(t, ctrl.ConfirmDelete(context.Background()))

	state := ctrl.Snapshot()
	assert.Equal(t, []int64{2}, src.deleted)
	assert.Equal(t, []companies.Company{acme, acao}, state.Companies)
	assert.Equal(t, Notification{Message: MsgDeleted, Severity: SeveritySuccess, Open: true}, state.Notification)
	assert.Equal(t, Dialog{}, state.Dialog)
	assert.Equal(t, []string{EventDeleted}, rec.events)
}

func TestConfirmDeleteOnlyCompany(t *testing.T) {
	ctrl := activated(t, &stubSource{items: []companies.Company{acme}})

	ctrl.RequestDelete(acme)
	require.NoError(t, ctrl.ConfirmDelete(context.Background()))

	state := ctrl.Snapshot()
	assert.Empty(t, state.Companies)
	assert.Equal(t, MsgDeleted, state.Notification.Message)
	assert.Equal(t, SeveritySuccess, state.Notification.Severity)
	assert.False(t, ctrl.ExportEnabled())
}

func TestConfirmDeleteFailureLeavesListUntouched(t *testing.T) {
	rec := &countingRecorder{}
	src := &stubSource{items: []companies.Company{acme, globex}, deleteErr: companies.ErrCompanyInUse}
	ctrl := activated(t, src, WithRecorder(rec))
	before := ctrl.Snapshot().Companies

	ctrl.RequestDelete(acme)
	require.NoError(t, ctrl.ConfirmDelete(context.Background()))

	state := ctrl.Snapshot()
	assert.Equal(t, before, state.Companies)
	assert.Equal(t, Notification{Message: MsgDeleteFailed, Severity: SeverityError, Open: true}, state.Notification)
	assert.Equal(t, Dialog{}, state.Dialog)
	assert.Equal(t, []string{EventDeleteFailed}, rec.events)
}

func TestConfirmDeleteWithoutTargetIsNoop(t *testing.T) {
	src := &stubSource{items: []companies.Company{acme}}
	ctrl := activated(t, src)

	require.NoError(t, ctrl.ConfirmDelete(context.Background()))
	assert.Empty(t, src.deleted)
	assert.False(t, ctrl.Snapshot().Notification.Open)
}

func TestConfirmDeleteRejectsSecondConfirm(t *testing.T) {
	src := &stubSource{items: []companies.Company{acme}}
	ctrl := activated(t, src)
	src.gate = make(chan struct{})

	ctrl.RequestDelete(acme)
	done := make(chan error, 1)
	go func() { done <- ctrl.ConfirmDelete(context.Background()) }()

	require.Eventually(t, func() bool { return ctrl.Snapshot().Dialog.Deleting }, time.Second, time.Millisecond)
	assert.ErrorIs(t, ctrl.ConfirmDelete(context.Background()), ErrDeleteInFlight)

	ctrl.CancelDelete()
	assert.True(t, ctrl.Snapshot().Dialog.Open, "cancel is ignored while deleting")

	close(src.gate)
	require.NoError(t, <-done)
	assert.Equal(t, []int64{1}, src.deleted)
	assert.Equal(t, Dialog{}, ctrl.Snapshot().Dialog)
}

func TestCloseDuringFetchDropsResult(t *testing.T) {
	src := &stubSource{items: []companies.Company{acme}, gate: make(chan struct{})}
	ctrl := New(src)

	done := make(chan error, 1)
	go func() { done <- ctrl.Activate(context.Background()) }()
	ctrl.Close()

	assert.ErrorIs(t, <-done, ErrClosed)
	state := ctrl.Snapshot()
	assert.Empty(t, state.Companies)
	assert.False(t, state.Notification.Open)
}

func TestCloseDuringDeleteDropsResult(t *testing.T) {
	src := &stubSource{items: []companies.Company{acme}}
	ctrl := activated(t, src)
	src.gate = make(chan struct{})

	ctrl.RequestDelete(acme)
	done := make(chan error, 1)
	go func() { done <- ctrl.ConfirmDelete(context.Background()) }()
	require.Eventually(t, func() bool { return ctrl.Snapshot().Dialog.Deleting }, time.Second, time.Millisecond)
	ctrl.Close()

	assert.ErrorIs(t, <-done, ErrClosed)
	assert.Equal(t, []companies.Company{acme}, ctrl.Snapshot().Companies)
}

func TestOperationsAfterCloseFail(t *testing.T) {
	ctrl := New(&stubSource{})
	ctrl.Close()

	assert.ErrorIs(t, ctrl.Activate(context.Background()), ErrClosed)
	assert.ErrorIs(t, ctrl.ConfirmDelete(context.Background()), ErrClosed)
}

func TestExportEnabledIgnoresSearch(t *testing.T) {
	ctrl := activated(t, &stubSource{items: []companies.Company{acme}})

	ctrl.SetSearch("zz")
	assert.Empty(t, ctrl.Visible())
	assert.True(t, ctrl.ExportEnabled())
	assert.True(t, ctrl.View().ExportEnabled)

	empty := activated(t, &stubSource{})
	assert.False(t, empty.ExportEnabled())
}

func TestExportCSVUsesFullList(t *testing.T) {
	rec := &countingRecorder{}
	ctrl := activated(t, &stubSource{items: []companies.Company{acme, globex}}, WithRecorder(rec))
	ctrl.SetSearch("acme")

	var buf bytes.Buffer
	require.NoError(t, ctrl.ExportCSV(&buf))
	assert.Equal(t, "ID,Nome,Super Usuário\n1,Acme,\n2,Globex Corporation,1\n", buf.String())
	assert.Equal(t, []string{EventExported}, rec.events)
}

func TestExportCSVEmptyList(t *testing.T) {
	ctrl := activated(t, &stubSource{})
	var buf bytes.Buffer
	assert.ErrorIs(t, ctrl.ExportCSV(&buf), ErrNothingToExport)
	assert.Zero(t, buf.Len())
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("disk full") }

func TestExportCSVFailureNotifies(t *testing.T) {
	rec := &countingRecorder{}
	ctrl := activated(t, &stubSource{items: []companies.Company{acme}}, WithRecorder(rec))

	require.Error(t, ctrl.ExportCSV(failingWriter{}))
	state := ctrl.Snapshot()
	assert.Equal(t, Notification{Message: MsgExportFailed, Severity: SeverityError, Open: true}, state.Notification)
	assert.Equal(t, []string{EventExportFailed}, rec.events)
}

func TestDismissNotificationKeepsMessage(t *testing.T) {
	ctrl := activated(t, &stubSource{listErr: errors.New("down")})

	ctrl.DismissNotification()
	state := ctrl.Snapshot()
	assert.False(t, state.Notification.Open)
	assert.Equal(t, MsgFetchFailed, state.Notification.Message)
	assert.Equal(t, SeverityError, state.Notification.Severity)
}

func TestRestoreResumesState(t *testing.T) {
	target := acme
	saved := State{
		Companies: []companies.Company{acme, globex},
		Search:    "glo",
		Dialog:    Dialog{Target: &target, Open: true},
	}
	ctrl := Restore(&stubSource{}, saved)
	defer ctrl.Close()

	view := ctrl.View()
	assert.Equal(t, []companies.Company{globex}, view.Visible)
	assert.True(t, view.Dialog.Open)

	saved.Dialog.Target.Name = "mutated"
	assert.Equal(t, "Acme", ctrl.Snapshot().Dialog.Target.Name)
}

func TestFindLooksUpLoadedCompany(t *testing.T) {
	ctrl := activated(t, &stubSource{items: []companies.Company{acme, globex}})

	got, ok := ctrl.Find(2)
	assert.True(t, ok)
	assert.Equal(t, globex, got)

	_, ok = ctrl.Find(99)
	assert.False(t, ok)
}
