// Package prompts composes the critique and task-export prompts.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.tmpl"))

// CritiqueInput is everything the critique prompt depends on.
type CritiqueInput struct {
	Spec           string
	Round          int
	DocType        string
	Press          bool
	Focus          string
	Persona        string
	Context        string
	PreserveIntent bool
}

type critiqueView struct {
	CritiqueInput
	DocTypeName     string
	DocTypeGuidance string
	FocusName       string
}

// Compose renders the critique prompt. It has no side effects.
func Compose(in CritiqueInput) (string, error) {
	view := critiqueView{
		CritiqueInput:   in,
		DocTypeName:     DocTypeName(in.DocType),
		DocTypeGuidance: docTypeGuidance(in.DocType),
	}
	if view.Round < 1 {
		view.Round = 1
	}
	view.Spec = strings.TrimSpace(in.Spec)
	view.Context = strings.TrimSpace(in.Context)

	if focus := strings.TrimSpace(in.Focus); focus != "" {
		view.FocusName = focus
		view.Focus = FocusDescription(focus)
	}
	if persona := strings.TrimSpace(in.Persona); persona != "" {
		view.Persona = PersonaDescription(persona)
	}

	return render("critique.tmpl", view)
}

// ExportTasks renders the prompt asking a model to break a document into tasks.
func ExportTasks(spec string, docType string) (string, error) {
	return render("export_tasks.tmpl", struct {
		Spec        string
		DocTypeName string
	}{
		Spec:        strings.TrimSpace(spec),
		DocTypeName: DocTypeName(docType),
	})
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// LoadContextFiles reads each path and joins the contents under per-file headers.
func LoadContextFiles(paths []string) (string, error) {
	sections := make([]string, 0, len(paths))
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read context file %s: %w", path, err)
		}

		sections = append(sections, fmt.Sprintf("### Context: %s\n\n%s", filepath.Base(path), strings.TrimSpace(string(content))))
	}

	return strings.Join(sections, "\n\n"), nil
}
