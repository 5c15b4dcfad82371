// Package screen drives the company listing screen: fetch, search, edit stub,
// confirmed delete and CSV export over a single State value.
package screen

import "github.com/odyssey-erp/companyadmin/internal/companies"

// Severity classifies a notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
)

// User facing copy.
const (
	MsgFetchFailed  = "Erro ao buscar empresas"
	MsgEditing      = "Editando empresa..."
	MsgDeleted      = "Empresa excluída com sucesso"
	MsgDeleteFailed = "Erro ao excluir empresa"
	MsgExportFailed = "Erro ao exportar empresas"
)

// Notification is the transient banner shown to the user.
type Notification struct {
	Message  string   `json:"message,omitempty"`
	Severity Severity `json:"severity"`
	Open     bool     `json:"open"`
}

// Dialog is the delete confirmation modal.
type Dialog struct {
	Target   *companies.Company `json:"target,omitempty"`
	Open     bool               `json:"open"`
	Deleting bool               `json:"deleting"`
}

// State is everything the screen owns. The visible subset is derived, never stored.
type State struct {
	Companies    []companies.Company `json:"companies"`
	Loading      bool                `json:"loading"`
	Search       string              `json:"search"`
	Notification Notification        `json:"notification"`
	Dialog       Dialog              `json:"dialog"`
}

// NewState returns the state of a freshly activated screen.
func NewState() State {
	return State{
		Companies:    []companies.Company{},
		Loading:      true,
		Notification: Notification{Severity: SeveritySuccess},
	}
}

// Clone returns a deep copy so callers cannot alias controller internals.
func (s State) Clone() State {
	out := s
	out.Companies = append([]companies.Company{}, s.Companies...)
	if s.Dialog.Target != nil {
		target := *s.Dialog.Target
		out.Dialog.Target = &target
	}
	return out
}

// View is the render model for templates.
type View struct {
	State
	Visible       []companies.Company
	ExportEnabled bool
}
