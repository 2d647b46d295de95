package report

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/pagewatch/pagewatch/internal/probe"
)

// The report is rendered server-side into a single self-contained page.
// The verdict labels double as CSS class names (lowercased, dashes), which
// is a stable contract for anyone scraping or styling the page.

const layoutTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 0.4em 0.8em; text-align: left; }
td.match { color: #1a7f37; }
td.no-match, td.http-error, td.connection-error { color: #cf222e; font-weight: bold; }
td.not-probed-yet { color: #666; }
</style>
</head>
<body>
{{template "body" .}}
</body>
</html>`

const reportTemplate = `{{define "body"}}<h1>Page watchdog report</h1>
<table>
<tr><th>URL</th><th>Status</th><th>HTTP status</th><th>Request duration</th><th>Last probed</th></tr>
{{range .Rows}}<tr>
	<td><a href="{{.URL}}">{{.URL}}</a></td>
	<td class="{{.StatusClass}}">{{.Status}}</td>
	<td>{{.HTTPStatus}}</td>
	<td>{{.Duration}}</td>
	<td title="{{.ProbedAt}}">{{.SecondsAgo}}</td>
</tr>
{{end}}</table>
{{end}}`

const error404Template = `{{define "body"}}<h1>404 Not Found</h1>
<p>There is no such page here. You probably want the <a href="{{.ReportPath}}">watchdog report</a>.</p>
{{end}}`

var (
	reportPage = template.Must(template.Must(template.New("layout").Parse(layoutTemplate)).Parse(reportTemplate))
	error404   = template.Must(template.Must(template.New("layout").Parse(layoutTemplate)).Parse(error404Template))
)

type reportRow struct {
	URL         string
	Status      string
	StatusClass string
	HTTPStatus  string
	Duration    string
	SecondsAgo  string
	ProbedAt    string
}

// renderReport writes the status table, one row per configured page,
// index-aligned with the result snapshot.
func renderReport(w io.Writer, pages []probe.CompiledPage, results []*probe.Result, now time.Time) error {
	rows := make([]reportRow, len(pages))
	for i := range pages {
		rows[i] = buildRow(pages[i].URL, results[i], now)
	}
	return reportPage.Execute(w, struct {
		Title string
		Rows  []reportRow
	}{Title: "Page watchdog report", Rows: rows})
}

func buildRow(url string, r *probe.Result, now time.Time) reportRow {
	label := r.Verdict.String()
	row := reportRow{
		URL:         url,
		Status:      label,
		StatusClass: strings.ToLower(strings.ReplaceAll(label, " ", "-")),
	}

	if r.Verdict == probe.NotProbedYet {
		row.ProbedAt = label
		return row
	}

	status := ""
	if r.HTTPStatus != nil {
		status = fmt.Sprintf("%d ", *r.HTTPStatus)
	}
	row.HTTPStatus = strings.TrimSpace(status + r.Reason)

	if r.Duration != nil {
		row.Duration = fmt.Sprintf("%.0f ms", float64(r.Duration.Microseconds())/1000)
	}

	row.SecondsAgo = fmt.Sprintf("%d seconds ago", int(now.Sub(r.ObservedAt).Round(time.Second).Seconds()))
	row.ProbedAt = r.ObservedAt.UTC().Format("2006-01-02 15:04:05") + " UTC"
	return row
}

func renderError404(w io.Writer, reportPath string) error {
	return error404.Execute(w, struct {
		Title      string
		ReportPath string
	}{Title: "Page watchdog report", ReportPath: reportPath})
}
