package notification

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/tphakala/wildwatch-go/internal/reporting"
)

// Default templates for sighting alerts.
const (
	DefaultTitleTemplate   = `{{if eq .Urgency "high"}}URGENT: {{end}}{{.CommonName}} sighting reported`
	DefaultMessageTemplate = `{{.CommonName}}{{if .ScientificName}} ({{.ScientificName}}){{end}} reported with {{.ConfidencePercent}}% confidence.
Condition: {{or .Condition "unknown"}} | Urgency: {{.Urgency}} | Animals: {{.AnimalCount}}
{{if .Location}}Location: {{.Location}}
{{end}}{{if .Behavior}}Behavior: {{.Behavior}}
{{end}}Reported {{.Time}} via {{.Source}} (report {{.ReportID}})`
)

// TemplateData is the data available to alert templates.
type TemplateData struct {
	CommonName         string
	ScientificName     string
	ConservationStatus string
	Confidence         float64
	ConfidencePercent  string
	Condition          string
	Urgency            string
	AnimalCount        int
	Location           string
	Behavior           string
	Notes              string
	ReporterID         string
	ReportID           string
	Source             string
	Time               string
}

// NewTemplateData flattens a submitted report for templating.
func NewTemplateData(r *reporting.Report, reportID string) TemplateData {
	td := TemplateData{
		CommonName:        r.Species,
		Confidence:        r.Confidence,
		ConfidencePercent: fmt.Sprintf("%.0f", r.Confidence*100),
		Condition:         r.Condition,
		Urgency:           r.Urgency,
		AnimalCount:       r.AnimalCount,
		Location:          r.Location,
		Behavior:          r.Behavior,
		Notes:             r.Notes,
		ReporterID:        r.ReporterID,
		ReportID:          reportID,
		Source:            string(r.Source),
		Time:              r.Timestamp.Format(time.DateTime),
	}
	if info := r.SpeciesInfo; info != nil {
		if info.CommonName != "" {
			td.CommonName = info.CommonName
		}
		td.ScientificName = info.ScientificName
		td.ConservationStatus = info.ConservationStatus
	}
	return td
}

type templates struct {
	title   *template.Template
	message *template.Template
}

func parseTemplates(title, message string) (*templates, error) {
	if strings.TrimSpace(title) == "" {
		title = DefaultTitleTemplate
	}
	if strings.TrimSpace(message) == "" {
		message = DefaultMessageTemplate
	}
	t, err := template.New("title").Option("missingkey=error").Parse(title)
	if err != nil {
		return nil, fmt.Errorf("invalid title template: %w", err)
	}
	m, err := template.New("message").Option("missingkey=error").Parse(message)
	if err != nil {
		return nil, fmt.Errorf("invalid message template: %w", err)
	}
	return &templates{title: t, message: m}, nil
}

func (t *templates) render(data TemplateData) (title, message string, err error) {
	var buf bytes.Buffer
	if err := t.title.Execute(&buf, data); err != nil {
		return "", "", err
	}
	title = strings.TrimSpace(buf.String())
	buf.Reset()
	if err := t.message.Execute(&buf, data); err != nil {
		return "", "", err
	}
	return title, strings.TrimSpace(buf.String()), nil
}
