// Package reporting renders evaluation reports for humans and CI: standalone
// HTML pages, zip export archives, and JUnit XML.
package reporting

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"

	"github.com/dialcheck/dialcheck/internal/models"
)

const reportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Report {{.Report.TestCaseName}}</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem auto; max-width: 56rem; color: #1a1a2e; }
h1 { font-size: 1.4rem; }
.meta { color: #555; font-size: 0.9rem; margin-bottom: 1.5rem; }
.scores { display: flex; gap: 1rem; margin: 1rem 0; }
.badge { padding: 0.6rem 1rem; border-radius: 8px; color: #fff; text-align: center; min-width: 7rem; }
.badge .value { font-size: 1.5rem; font-weight: 700; display: block; }
.badge.good { background: #2e7d32; }
.badge.warn { background: #ef6c00; }
.badge.bad { background: #c62828; }
.failed { background: #c62828; color: #fff; padding: 0.5rem 1rem; border-radius: 8px; }
.turn { margin: 0.5rem 0; padding: 0.6rem 0.9rem; border-radius: 8px; }
.turn.evaluator { background: #e3f2fd; }
.turn.agent { background: #f1f8e9; }
.turn .who { font-weight: 700; font-size: 0.8rem; text-transform: uppercase; color: #666; }
.feedback { background: #fafafa; border-left: 4px solid #999; padding: 0.5rem 1rem; margin-top: 1.5rem; }
.reason { color: #555; font-size: 0.85rem; margin: 0.2rem 0 0.8rem; }
audio { display: block; margin-top: 0.3rem; width: 100%; }
</style>
</head>
<body>
<h1>{{.Report.TestCaseName}}</h1>
<div class="meta">
{{.Report.PersonaName}} &middot; {{.Report.BehaviorName}} &middot; {{.Report.Date.Format "2006-01-02 15:04 MST"}} &middot; {{printf "%.1fs" .Report.ExecutionTime}}
</div>
{{if not .Report.Metrics.Successful}}
<p class="failed">Test failed{{with .Report.Metrics.ErrorMessage}}: {{.}}{{end}}</p>
{{end}}
<div class="scores">
<div class="badge {{badgeClass .Report.Metrics.Accuracy}}"><span class="value">{{printf "%.1f" .Report.Metrics.Accuracy}}</span>Accuracy</div>
<div class="badge {{badgeClass .Report.Metrics.Empathy}}"><span class="value">{{printf "%.1f" .Report.Metrics.Empathy}}</span>Empathy</div>
<div class="badge {{badgeClass .Report.Metrics.ResponseTime}}"><span class="value">{{printf "%.1f" .Report.Metrics.ResponseTime}}</span>Response Time</div>
</div>
{{with .Report.Metrics.AccuracyReason}}<p class="reason"><strong>Accuracy:</strong> {{.}}</p>{{end}}
{{with .Report.Metrics.EmpathyReason}}<p class="reason"><strong>Empathy:</strong> {{.}}</p>{{end}}
{{with .Report.Metrics.ResponseTimeReason}}<p class="reason"><strong>Response time:</strong> {{.}}</p>{{end}}
{{if .Report.Conversation}}
<h2>Conversation</h2>
{{range .Report.Conversation}}
<div class="turn {{.Speaker}}">
<span class="who">{{.Speaker}}</span>
<p>{{.Text}}</p>
{{with .AudioURL}}<audio controls src="{{.}}"></audio>{{end}}
</div>
{{end}}
{{end}}
{{if .FeedbackHTML}}
<div class="feedback">{{.FeedbackHTML}}</div>
{{end}}
</body>
</html>
`

var reportPage = template.Must(template.New("report").Funcs(template.FuncMap{
	"badgeClass": badgeClass,
}).Parse(reportTemplate))

// badgeClass buckets a 0-10 score into a display class.
func badgeClass(score float64) string {
	switch {
	case score >= 7:
		return "good"
	case score >= 4:
		return "warn"
	default:
		return "bad"
	}
}

// RenderHTML renders a report as a standalone HTML page. Judge feedback is
// markdown and is rendered through goldmark.
func RenderHTML(report *models.Report) ([]byte, error) {
	var feedbackHTML template.HTML
	if report.Feedback != "" {
		var buf bytes.Buffer
		if err := goldmark.New().Convert([]byte(report.Feedback), &buf); err != nil {
			return nil, fmt.Errorf("rendering feedback markdown: %w", err)
		}
		feedbackHTML = template.HTML(buf.String())
	}

	var out bytes.Buffer
	err := reportPage.Execute(&out, struct {
		Report       *models.Report
		FeedbackHTML template.HTML
	}{report, feedbackHTML})
	if err != nil {
		return nil, fmt.Errorf("rendering report page: %w", err)
	}
	return out.Bytes(), nil
}
