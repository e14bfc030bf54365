package harness

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// TemplateData is the context scenario arguments and environment values are
// rendered with.
type TemplateData struct {
	RunID      string
	Scenario   string
	WorkingDir string
}

// TemplateProcessor renders scenario arguments with text/template and the
// sprig function set, so `{{ .RunID }}` or `{{ env "HOME" }}` work in YAML.
type TemplateProcessor struct {
	funcs template.FuncMap
}

// NewTemplateProcessor creates a TemplateProcessor.
func NewTemplateProcessor() *TemplateProcessor {
	return &TemplateProcessor{funcs: sprig.TxtFuncMap()}
}

// Render renders a single template string. Strings without actions are
// returned unchanged.
func (tp *TemplateProcessor) Render(text string, data TemplateData) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	tmpl, err := template.New("arg").Funcs(tp.funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %q: %w", text, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %q: %w", text, err)
	}
	return buf.String(), nil
}

// ResolveArgs renders every argument.
func (tp *TemplateProcessor) ResolveArgs(args []string, data TemplateData) ([]string, error) {
	if args == nil {
		return nil, nil
	}
	resolved := make([]string, 0, len(args))
	for _, arg := range args {
		r, err := tp.Render(arg, data)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, r)
	}
	return resolved, nil
}

// ResolveEnv renders every value and returns KEY=VALUE pairs sorted by key.
func (tp *TemplateProcessor) ResolveEnv(env map[string]string, data TemplateData) ([]string, error) {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	resolved := make([]string, 0, len(env))
	for _, k := range keys {
		v, err := tp.Render(env[k], data)
		if err != nil {
			return nil, fmt.Errorf("env %s: %w", k, err)
		}
		resolved = append(resolved, k+"="+v)
	}
	return resolved, nil
}
