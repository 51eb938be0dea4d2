package export

import (
	"bytes"
	"fmt"
	"html/template"
)

const printableTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 24px; }
h1 { font-size: 16px; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #444; padding: 4px 8px; font-size: 12px; text-align: left; }
@media print { body { margin: 0; } }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<table>
<thead><tr>{{range .Headers}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{end}}</tbody>
</table>
</body>
</html>
`

// HTMLExporter renders datasets into a minimal printable HTML table.
type HTMLExporter struct {
	tmpl *template.Template
}

// NewHTMLExporter builds the exporter, parsing the embedded template once.
func NewHTMLExporter() *HTMLExporter {
	return &HTMLExporter{tmpl: template.Must(template.New("printable").Parse(printableTemplate))}
}

// Render produces a self-contained HTML document for the dataset. Cell
// escaping is handled by html/template.
func (e *HTMLExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("html requires at least one header")
	}
	rows := make([][]string, 0, len(data.Rows))
	for _, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for i, header := range data.Headers {
			record[i] = row[header]
		}
		rows = append(rows, record)
	}
	buf := &bytes.Buffer{}
	err := e.tmpl.Execute(buf, struct {
		Title   string
		Headers []string
		Rows    [][]string
	}{Title: title, Headers: data.Headers, Rows: rows})
	if err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}
