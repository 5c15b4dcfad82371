package companies

// Company is the tenant record listed on the admin screen.
type Company struct {
	ID        int64  `json:"id" validate:"required,gt=0"`
	Name      string `json:"name" validate:"required"`
	SuperUser bool   `json:"superUser"`
}
