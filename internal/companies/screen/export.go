package screen

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/odyssey-erp/companyadmin/internal/companies"
)

// ExportFilename is the download name offered to the browser.
const ExportFilename = "companies.csv"

var exportHeader = []string{"ID", "Nome", "Super Usuário"}

// WriteCSV serialises items with a header row, one record per company.
// Booleans are written as "1" for true and an empty field for false.
func WriteCSV(w io.Writer, items []companies.Company) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return err
	}
	for _, c := range items {
		if err := writer.Write([]string{
			strconv.FormatInt(c.ID, 10),
			c.Name,
			formatFlag(c.SuperUser),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFlag(v bool) string {
	if v {
		return "1"
	}
	return ""
}
