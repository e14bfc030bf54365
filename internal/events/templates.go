package events

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// MessageTemplateEngine renders human-readable messages for event reasons.
// Templates use text/template syntax with the sprig function set and receive
// an EventData value.
type MessageTemplateEngine struct {
	templates map[EventReason]*template.Template
}

// NewMessageTemplateEngine creates a new message template engine with default templates.
func NewMessageTemplateEngine() *MessageTemplateEngine {
	engine := &MessageTemplateEngine{
		templates: make(map[EventReason]*template.Template),
	}
	engine.loadDefaultTemplates()
	return engine
}

func (e *MessageTemplateEngine) loadDefaultTemplates() {
	defaults := map[EventReason]string{
		ReasonIdeStarting:      `Starting IDE for {{ .Name }} (run {{ .RunID }})`,
		ReasonIdeStarted:       `IDE for {{ .Name }} is running with PID {{ .PID }}`,
		ReasonIdeKilling:       `IDE for {{ .Name }} (PID {{ .PID }}) is about to be terminated`,
		ReasonIdeStopped:       `IDE for {{ .Name }} exited with code {{ .ExitCode }}`,
		ReasonIdeFailed:        `IDE for {{ .Name }} failed{{ if .Error }}: {{ .Error }}{{ end }}`,
		ReasonIdeKillRequested: `Terminating PID {{ .PID }} of run {{ .RunID }}: {{ default "unknown" .KillReason }}`,
		ReasonIdeKilled:        `Terminated PID {{ .PID }} of run {{ .RunID }}`,
		ReasonTestInitialized:  `Test {{ .Name }} initialized in {{ default "." .WorkingDir }}`,
		ReasonTestPassed:       `Test {{ .Name }} passed{{ if .Duration }} in {{ .Duration }}{{ end }}`,
		ReasonTestFailed:       `Test {{ .Name }} failed{{ if .Duration }} after {{ .Duration }}{{ end }}{{ if .Error }}: {{ .Error }}{{ end }}`,
		ReasonTestSkipped:      `Test {{ .Name }} skipped`,
	}
	for reason, text := range defaults {
		if err := e.SetTemplate(reason, text); err != nil {
			panic(fmt.Sprintf("invalid default template for %s: %v", reason, err))
		}
	}
}

// Render generates a message for the given event reason and data.
func (e *MessageTemplateEngine) Render(reason EventReason, data EventData) string {
	tmpl, exists := e.templates[reason]
	if !exists {
		// Fallback for unknown event reasons
		return fmt.Sprintf("Event: %s for %s", string(reason), data.Name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Sprintf("Event: %s for %s (render failed: %v)", string(reason), data.Name, err)
	}
	return buf.String()
}

// SetTemplate allows customizing the message template for a specific event reason.
func (e *MessageTemplateEngine) SetTemplate(reason EventReason, text string) error {
	tmpl, err := template.New(string(reason)).Funcs(sprig.TxtFuncMap()).Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse template for %s: %w", reason, err)
	}
	e.templates[reason] = tmpl
	return nil
}
