package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"specdebate/pkg/config"
	"specdebate/pkg/profile"
	"specdebate/pkg/provider"
	providertypes "specdebate/pkg/provider/types"
)

type stubClient struct {
	mu      sync.Mutex
	replies map[string]string
	errs    map[string]error
	prompts map[string]string
	cfgs    []config.DebateConfig
}

func (s *stubClient) Complete(ctx context.Context, model string, prompt string) (providertypes.PromptResult, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.prompts == nil {
		s.prompts = make(map[string]string)
	}
	s.prompts[model] = prompt

	if err := s.errs[model]; err != nil {
		return providertypes.PromptResult{}, err
	}
	return providertypes.PromptResult{
		Text: s.replies[model],
		Metadata: providertypes.PromptMetadata{
			Model: model,
			Usage: &providertypes.TokenUsage{InputTokens: 1000, OutputTokens: 100},
		},
	}, nil
}

func testEnvironment(t *testing.T, stdin string, client *stubClient) (*environment, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()

	cfg := config.Default()
	cfg.Profiles.Dir = filepath.Join(t.TempDir(), "profiles")

	var stdout, stderr bytes.Buffer
	env := &environment{
		cfg: cfg,
		newClient: func(cfg *config.Config) provider.Client {
			client.mu.Lock()
			client.cfgs = append(client.cfgs, cfg.Debate)
			client.mu.Unlock()
			return client
		},
		stdin:  strings.NewReader(stdin),
		stdout: &stdout,
		stderr: &stderr,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return env, &stdout, &stderr
}

func defaultCritiqueOptions(models string) critiqueOptions {
	return critiqueOptions{models: models, docType: "tech", round: 1, timeout: 30}
}

func TestRunCritiqueTextOutput(t *testing.T) {
	client := &stubClient{
		replies: map[string]string{
			"gpt-4o":     "[AGREE]",
			"xai/grok-3": "Add retries.\n[SPEC]\n# Revised\n[/SPEC]",
		},
	}
	env, stdout, stderr := testEnvironment(t, "# Spec\n", client)

	opts := defaultCritiqueOptions("gpt-4o, xai/grok-3")
	opts.focus = "security"
	if err := runCritique(context.Background(), env, opts); err != nil {
		t.Fatalf("runCritique error: %v", err)
	}

	wantErr := "Calling 2 model(s) (critiquing) (focus: security): gpt-4o, xai/grok-3...\n"
	if stderr.String() != wantErr {
		t.Fatalf("stderr = %q, want %q", stderr.String(), wantErr)
	}

	out := stdout.String()
	for _, want := range []string{
		"=== Round 1 Results (Technical Specification) ===",
		"--- gpt-4o ---\n[AGREE]",
		"--- xai/grok-3 ---\nAdd retries.",
		"Agreed: gpt-4o",
		"Critiqued: xai/grok-3",
		"Total cost:",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("stdout missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatal("expected unstyled output when stdout is not a terminal")
	}
	if !strings.Contains(client.prompts["xai/grok-3"], "# Spec") {
		t.Fatal("expected spec in prompt")
	}
}

func TestRunCritiqueJSONWithFailure(t *testing.T) {
	client := &stubClient{
		replies: map[string]string{"gpt-4o": "Agreed."},
		errs:    map[string]error{"o1": providertypes.NewError(providertypes.KindAuthMissing, "OPENAI_API_KEY is not set")},
	}
	env, stdout, stderr := testEnvironment(t, "spec", client)

	opts := defaultCritiqueOptions("gpt-4o,o1")
	opts.jsonOut = true
	opts.showCost = true
	opts.press = true
	if err := runCritique(context.Background(), env, opts); err != nil {
		t.Fatalf("per-model failures must not fail the command: %v", err)
	}

	if !strings.Contains(stderr.String(), "(pressing for confirmation)") {
		t.Fatalf("stderr missing press mode:\n%s", stderr.String())
	}
	if !strings.Contains(stderr.String(), "Warning: o1 returned error: auth-missing: OPENAI_API_KEY is not set") {
		t.Fatalf("stderr missing warning:\n%s", stderr.String())
	}
	if !strings.Contains(stderr.String(), "Total cost:") {
		t.Fatalf("expected cost summary on stderr with --show-cost:\n%s", stderr.String())
	}

	var doc struct {
		AllAgreed bool    `json:"all_agreed"`
		Focus     *string `json:"focus"`
		Results   []struct {
			Model     string `json:"model"`
			Agreed    bool   `json:"agreed"`
			Error     string `json:"error"`
			ErrorKind string `json:"error_kind"`
		} `json:"results"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &doc); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout.String())
	}
	if doc.AllAgreed {
		t.Fatal("a failed model must prevent all_agreed")
	}
	if doc.Focus != nil {
		t.Fatalf("focus = %q, want null", *doc.Focus)
	}
	if len(doc.Results) != 2 || doc.Results[0].Model != "gpt-4o" || !doc.Results[0].Agreed {
		t.Fatalf("unexpected results: %+v", doc.Results)
	}
	if doc.Results[1].ErrorKind != "auth-missing" {
		t.Fatalf("error_kind = %q, want auth-missing", doc.Results[1].ErrorKind)
	}
}

func TestRunCritiqueInputErrors(t *testing.T) {
	client := &stubClient{}

	env, _, _ := testEnvironment(t, "   \n", client)
	err := runCritique(context.Background(), env, defaultCritiqueOptions("gpt-4o"))
	if exitCode(err) != exitInput || !strings.Contains(err.Error(), "No spec provided via stdin") {
		t.Fatalf("empty stdin: err = %v, code = %d", err, exitCode(err))
	}

	env, _, _ = testEnvironment(t, "spec", client)
	err = runCritique(context.Background(), env, defaultCritiqueOptions(" , "))
	if exitCode(err) != exitInput {
		t.Fatalf("no models: err = %v, code = %d", err, exitCode(err))
	}

	env, _, _ = testEnvironment(t, "spec", client)
	opts := defaultCritiqueOptions("gpt-4o")
	opts.context = []string{filepath.Join(t.TempDir(), "missing.md")}
	err = runCritique(context.Background(), env, opts)
	if exitCode(err) != exitInput {
		t.Fatalf("missing context: err = %v, code = %d", err, exitCode(err))
	}

	env, _, _ = testEnvironment(t, "spec", client)
	opts = defaultCritiqueOptions("gpt-4o")
	opts.notify = "pager"
	err = runCritique(context.Background(), env, opts)
	if exitCode(err) != exitConfig {
		t.Fatalf("unknown channel: err = %v, code = %d", err, exitCode(err))
	}
}

func TestRunCritiqueWritesMetrics(t *testing.T) {
	client := &stubClient{replies: map[string]string{"gpt-4o": "LGTM"}}
	env, _, stderr := testEnvironment(t, "spec", client)

	path := filepath.Join(t.TempDir(), "out", "specdebate.prom")
	opts := defaultCritiqueOptions("gpt-4o")
	opts.metricsFile = path
	if err := runCritique(context.Background(), env, opts); err != nil {
		t.Fatalf("runCritique error: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read metrics: %v (stderr: %s)", err, stderr.String())
	}
	if !strings.Contains(string(content), "specdebate_model_calls_total") {
		t.Fatalf("unexpected metrics file:\n%s", content)
	}
}

func TestResolveCritiqueOptionsProfileLayering(t *testing.T) {
	cfg := config.Default()
	cfg.Profiles.Dir = t.TempDir()

	store, err := profile.NewStore(cfg.Profiles.Dir)
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	if _, err := store.Save(profile.Profile{
		Name:           "security",
		Models:         profile.ModelList{"gpt-4o", "xai/grok-3"},
		DocType:        "prd",
		Focus:          "security",
		Persona:        "security-engineer",
		PreserveIntent: true,
	}); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	opts := defaultCritiqueOptions(defaultModels)
	opts.profile = "security"
	opts.focus = "cost"
	changed := func(name string) bool { return name == "focus" }

	if err := resolveCritiqueOptions(&opts, changed, cfg); err != nil {
		t.Fatalf("resolveCritiqueOptions error: %v", err)
	}
	if opts.models != "gpt-4o,xai/grok-3" {
		t.Fatalf("models = %q", opts.models)
	}
	if opts.docType != "prd" || opts.persona != "security-engineer" || !opts.preserveIntent {
		t.Fatalf("profile values not applied: %+v", opts)
	}
	if opts.focus != "cost" {
		t.Fatalf("explicit flag must win over profile, focus = %q", opts.focus)
	}
}

func TestResolveCritiqueOptionsErrors(t *testing.T) {
	cfg := config.Default()
	cfg.Profiles.Dir = t.TempDir()
	unchanged := func(string) bool { return false }

	opts := defaultCritiqueOptions(defaultModels)
	opts.profile = "missing"
	err := resolveCritiqueOptions(&opts, unchanged, cfg)
	if exitCode(err) != exitConfig || !strings.Contains(err.Error(), "Profile 'missing' not found") {
		t.Fatalf("missing profile: err = %v, code = %d", err, exitCode(err))
	}

	opts = defaultCritiqueOptions(defaultModels)
	opts.docType = "novel"
	err = resolveCritiqueOptions(&opts, func(name string) bool { return name == "doc-type" }, cfg)
	if exitCode(err) != exitConfig {
		t.Fatalf("bad doc type: err = %v, code = %d", err, exitCode(err))
	}

	opts = defaultCritiqueOptions(defaultModels)
	opts.timeout = 0
	err = resolveCritiqueOptions(&opts, func(name string) bool { return name == "timeout" }, cfg)
	if exitCode(err) != exitConfig {
		t.Fatalf("bad timeout: err = %v, code = %d", err, exitCode(err))
	}
}

func TestRunExportTasks(t *testing.T) {
	reply := "Here you go:\n```json\n{\"tasks\": [{\"type\": \"feature\", \"priority\": \"high\", \"title\": \"Add login\", \"description\": \"OAuth flow\", \"acceptance_criteria\": [\"works\"]}]}\n```"
	client := &stubClient{replies: map[string]string{"o1": reply}}
	env, stdout, _ := testEnvironment(t, "spec", client)

	err := runExportTasks(context.Background(), env, exportOptions{models: "o1,gpt-4o", docType: "prd", jsonOut: true, timeout: 30})
	if err != nil {
		t.Fatalf("runExportTasks error: %v", err)
	}

	if _, called := client.prompts["gpt-4o"]; called {
		t.Fatal("only the first model should be called")
	}
	if len(client.cfgs) != 1 || client.cfgs[0].Temperature != exportTemperature || client.cfgs[0].MaxOutputTokens != exportMaxOutputTokens {
		t.Fatalf("unexpected generation settings: %+v", client.cfgs)
	}
	if env.cfg.Debate.Temperature == exportTemperature {
		t.Fatal("export settings must not leak into the shared config")
	}

	var out struct {
		Tasks []struct {
			Title              string   `json:"title"`
			Priority           string   `json:"priority"`
			AcceptanceCriteria []string `json:"acceptance_criteria"`
		} `json:"tasks"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout.String())
	}
	if len(out.Tasks) != 1 || out.Tasks[0].Title != "Add login" || out.Tasks[0].Priority != "high" {
		t.Fatalf("unexpected tasks: %+v", out.Tasks)
	}
}

func TestRunExportTasksTextAndFailure(t *testing.T) {
	client := &stubClient{replies: map[string]string{"gpt-4o": "1. Write schema\n2. Build API"}}
	env, stdout, _ := testEnvironment(t, "spec", client)

	if err := runExportTasks(context.Background(), env, exportOptions{models: "gpt-4o", docType: "tech", timeout: 30}); err != nil {
		t.Fatalf("runExportTasks error: %v", err)
	}
	if !strings.Contains(stdout.String(), "=== Extracted 2 Tasks ===") || !strings.Contains(stdout.String(), "2. [task] [medium] Build API") {
		t.Fatalf("unexpected text output:\n%s", stdout.String())
	}

	failing := &stubClient{errs: map[string]error{"gpt-4o": errors.New("boom")}}
	env, _, _ = testEnvironment(t, "spec", failing)
	err := runExportTasks(context.Background(), env, exportOptions{models: "gpt-4o", docType: "tech", timeout: 30})
	if exitCode(err) != exitInput {
		t.Fatalf("err = %v, code = %d", err, exitCode(err))
	}
}

func TestRunDiff(t *testing.T) {
	dir := t.TempDir()
	previous := filepath.Join(dir, "v1.md")
	current := filepath.Join(dir, "v2.md")
	if err := os.WriteFile(previous, []byte("a\nb\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(current, []byte("a\nc\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	env, stdout, _ := testEnvironment(t, "", &stubClient{})
	if err := runDiff(env, previous, current); err != nil {
		t.Fatalf("runDiff error: %v", err)
	}
	if !strings.Contains(stdout.String(), "-b\n") || !strings.Contains(stdout.String(), "+c\n") {
		t.Fatalf("unexpected diff:\n%s", stdout.String())
	}

	env, stdout, _ = testEnvironment(t, "", &stubClient{})
	if err := runDiff(env, previous, previous); err != nil {
		t.Fatalf("runDiff error: %v", err)
	}
	if stdout.String() != "No differences found.\n" {
		t.Fatalf("stdout = %q", stdout.String())
	}

	if err := runDiff(env, previous, ""); exitCode(err) != exitInput || err.Error() != "--previous and --current required for diff" {
		t.Fatalf("missing flag: err = %v", err)
	}
	if err := runDiff(env, previous, filepath.Join(dir, "missing.md")); exitCode(err) != exitInput {
		t.Fatalf("missing file: err = %v", err)
	}
}

func TestProfileCommands(t *testing.T) {
	env, stdout, _ := testEnvironment(t, "", &stubClient{})

	if err := listProfiles(stdout, env.cfg); err != nil {
		t.Fatalf("listProfiles error: %v", err)
	}
	if !strings.Contains(stdout.String(), "No profiles found.") {
		t.Fatalf("unexpected empty listing:\n%s", stdout.String())
	}

	if err := saveProfile(env, "", critiqueOptions{}); exitCode(err) != exitInput {
		t.Fatalf("missing name: err = %v", err)
	}
	if err := saveProfile(env, "../escape", critiqueOptions{}); exitCode(err) != exitConfig {
		t.Fatalf("invalid name: err = %v", err)
	}
	if err := saveProfile(env, "novel", critiqueOptions{models: "gpt-4o", docType: "novel"}); exitCode(err) != exitConfig {
		t.Fatalf("invalid doc type: err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.cfg.Profiles.Dir, "novel.json")); !os.IsNotExist(err) {
		t.Fatalf("profile with invalid doc type was written: %v", err)
	}

	stdout.Reset()
	opts := critiqueOptions{models: "gpt-4o, o1", docType: "PRD", focus: "security", preserveIntent: true}
	if err := saveProfile(env, "strict", opts); err != nil {
		t.Fatalf("saveProfile error: %v", err)
	}
	if !strings.HasPrefix(stdout.String(), "Profile saved to ") || !strings.Contains(stdout.String(), "strict.json") {
		t.Fatalf("unexpected save output: %q", stdout.String())
	}

	stdout.Reset()
	if err := listProfiles(stdout, env.cfg); err != nil {
		t.Fatalf("listProfiles error: %v", err)
	}
	want := "Saved Profiles:\n\n  strict\n    models: gpt-4o,o1\n    focus: security\n    persona: none\n    preserve-intent: yes\n\n"
	if stdout.String() != want {
		t.Fatalf("listing = %q, want %q", stdout.String(), want)
	}
}

func TestCatalogListings(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("XAI_API_KEY", "")

	var out bytes.Buffer
	printProviders(&out, config.Default())
	text := out.String()
	if !strings.HasPrefix(text, "Supported providers:\n") {
		t.Fatalf("unexpected header:\n%s", text)
	}
	if !strings.Contains(text, "OPENAI_API_KEY") || !strings.Contains(text, "[set]") {
		t.Fatalf("expected OpenAI marked as set:\n%s", text)
	}
	if !strings.Contains(text, "XAI_API_KEY              [not set]") {
		t.Fatalf("expected xAI marked as not set:\n%s", text)
	}

	out.Reset()
	printFocusAreas(&out)
	if !strings.Contains(out.String(), "  security        Threat model") {
		t.Fatalf("unexpected focus listing:\n%s", out.String())
	}

	out.Reset()
	printPersonas(&out)
	if !strings.Contains(out.String(), "  oncall-engineer\n    an on-call engineer") {
		t.Fatalf("unexpected persona listing:\n%s", out.String())
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "input", err: inputError(errors.New("x")), want: exitInput},
		{name: "config", err: configError(errors.New("x")), want: exitConfig},
		{name: "wrapped config", err: errors.Join(errors.New("ctx"), configError(errors.New("x"))), want: exitConfig},
		{name: "plain", err: errors.New("x"), want: exitInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Fatalf("exitCode = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCritiqueInfo(t *testing.T) {
	got := critiqueInfo(critiqueOptions{focus: "ux", persona: "qa-engineer", preserveIntent: true})
	want := " (focus: ux) (persona: qa-engineer) (preserve-intent)"
	if got != want {
		t.Fatalf("critiqueInfo = %q, want %q", got, want)
	}
	if critiqueInfo(critiqueOptions{}) != "" {
		t.Fatal("expected empty info without options")
	}
}
