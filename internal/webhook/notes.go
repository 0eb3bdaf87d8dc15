package webhook

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
)

// DefaultNotesTemplate is used when a rule has no notes template of its own.
const DefaultNotesTemplate = `Auto-created from {{ .Provider }} appointment: {{ .Title }}`

// NoteData is the data available to a rule's notes template.
type NoteData struct {
	Provider    string
	EventID     string
	Title       string
	Description string
	Location    string
	Attendee    string
	Start       time.Time
}

// RenderNote renders tmpl (or DefaultNotesTemplate when empty) with the
// sprig function map.
func RenderNote(tmpl string, data NoteData) (string, error) {
	if tmpl == "" {
		tmpl = DefaultNotesTemplate
	}
	t, err := template.New("notes").Funcs(sprig.TxtFuncMap()).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("webhook.RenderNote: parse: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("webhook.RenderNote: execute: %w", err)
	}
	return buf.String(), nil
}
