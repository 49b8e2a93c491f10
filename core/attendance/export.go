package attendance

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/classboard/core"
)

const (
	DefaultCohortName = "Curso no especificado"
	CSVContentType    = "text/csv; charset=utf-8"

	csvDateLayout = "02/01/2006"
)

var csvHeader = []string{"Cohorte", "Fecha", "Nombre", "Email", "Estado"}

// CSVFilename returns the download name of the export of date.
func CSVFilename(date string) string {
	return "asistencia_" + date + ".csv"
}

func statusLabel(s Status) string {
	if s == StatusPresent {
		return "Presente"
	}
	return "Ausente"
}

// WriteCSV writes rec as CSV. Every field is quoted.
func WriteCSV(w io.Writer, cohortName string, rec Record) error {
	if cohortName == "" {
		cohortName = DefaultCohortName
	}
	date := rec.Date
	if t, err := core.ParseDateKey(rec.Date); err == nil {
		date = t.Format(csvDateLayout)
	}

	bw := bufio.NewWriter(w)
	writeRow(bw, csvHeader...)
	for _, e := range rec.Entries {
		writeRow(bw, cohortName, date, e.Name, e.Email, statusLabel(e.Status))
	}
	return errors.Wrap(bw.Flush(), "writing csv")
}

func writeRow(w *bufio.Writer, fields ...string) {
	for i, f := range fields {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteByte('"')
		w.WriteString(strings.ReplaceAll(f, `"`, `""`))
		w.WriteByte('"')
	}
	w.WriteByte('\n')
}
