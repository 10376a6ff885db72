package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	cfgpkg "github.com/KaramelBytes/surveylens/internal/config"
	"github.com/KaramelBytes/surveylens/internal/report"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const testSurvey = `code,group,sleep,screens
moon,teen,8,yes
star,parent,4,no
sun,teen,6,yes
`

// resetFlags clears values and Changed state left over from earlier invocations.
func resetFlags(c *cobra.Command) {
	reset := func(fl *pflag.Flag) {
		_ = fl.Value.Set(fl.DefValue)
		fl.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runCmd executes the root command with args and returns its output.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCmd(t, args...)
	if err != nil {
		t.Fatalf("command %v failed: %v\n%s", args, err, out)
	}
	return out
}

// setupSurvey points a fresh config at a local CSV and returns the config path.
func setupSurvey(t *testing.T) (cfgPath, csvPath string) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	csvPath = filepath.Join(home, "survey.csv")
	if err := os.WriteFile(csvPath, []byte(testSurvey), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	cfgPath = filepath.Join(home, "config.yaml")
	for _, kv := range [][2]string{
		{"source_file", csvPath},
		{"identifier_column", "code"},
		{"classifier_column", "group"},
		{"scale_questions", "sleep"},
		{"category_questions", "screens"},
	} {
		mustRun(t, "--config", cfgPath, "config", "set", kv[0], kv[1])
	}
	return cfgPath, csvPath
}

func TestCLI_LookupMarkdownAndJSON(t *testing.T) {
	cfgPath, _ := setupSurvey(t)

	out := mustRun(t, "--config", cfgPath, "lookup", " Moon ")
	for _, want := range []string{"[RESPONDENT]", "Group: teen", "## sleep", "## screens", "[GLOBAL STATISTICS]", "Participants: 3"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in markdown output:\n%s", want, out)
		}
	}

	out = mustRun(t, "--config", cfgPath, "lookup", "star", "--json")
	var rep report.Report
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("decode json output: %v\n%s", err, out)
	}
	if rep.Group != "parent" || len(rep.Items) != 2 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	// 4 is the lowest of 4, 6, 8
	if rep.Items[0].Scale == nil || rep.Items[0].Scale.AtOrBelow != 1 || rep.Items[0].Scale.Responses != 3 {
		t.Fatalf("unexpected scale item: %+v", rep.Items[0])
	}
}

func TestCLI_LookupUnknownCode(t *testing.T) {
	cfgPath, _ := setupSurvey(t)
	_, err := runCmd(t, "--config", cfgPath, "lookup", "pluto")
	if err == nil || !strings.Contains(err.Error(), "code not found") {
		t.Fatalf("expected code not found error, got %v", err)
	}
}

func TestCLI_LookupFileOverride(t *testing.T) {
	cfgPath, _ := setupSurvey(t)
	other := filepath.Join(t.TempDir(), "other.csv")
	if err := os.WriteFile(other, []byte("code,group,sleep,screens\ncomet,adult,2,no\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := mustRun(t, "--config", cfgPath, "lookup", "comet", "--file", other)
	if !strings.Contains(out, "Group: adult") {
		t.Fatalf("expected report from override file:\n%s", out)
	}
}

func TestCLI_SummaryHidesIdentifiers(t *testing.T) {
	cfgPath, _ := setupSurvey(t)
	out := mustRun(t, "--config", cfgPath, "summary")
	for _, want := range []string{"Participants: 3", "Groups: 2", "[SCHEMA]", "- sleep: numeric"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in summary:\n%s", want, out)
		}
	}
	if strings.Contains(out, "moon") || strings.Contains(out, "- code:") {
		t.Fatalf("summary must not expose secret codes:\n%s", out)
	}
}

func TestCLI_ConfigShowAndSetValidation(t *testing.T) {
	cfgPath, csvPath := setupSurvey(t)
	out := mustRun(t, "--config", cfgPath, "config", "show")
	if !strings.Contains(out, "source_file: "+csvPath) || !strings.Contains(out, "scale_questions: sleep") {
		t.Fatalf("unexpected config show output:\n%s", out)
	}
	if _, err := runCmd(t, "--config", cfgPath, "config", "set", "scale_max", "zero"); err == nil {
		t.Fatalf("expected invalid int error")
	}
	if _, err := runCmd(t, "--config", cfgPath, "config", "set", "decimal_separator", ";"); err == nil {
		t.Fatalf("expected invalid separator error")
	}
	if _, err := runCmd(t, "--config", cfgPath, "config", "set", "nope", "1"); err == nil {
		t.Fatalf("expected unknown key error")
	}
}

func TestCLI_MissingSource(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	_, err := runCmd(t, "lookup", "moon")
	if err == nil || !strings.Contains(err.Error(), "source_url or source_file") {
		t.Fatalf("expected missing source error, got %v", err)
	}
}

func TestApplyOverridesKeepsSourceFlagOnReload(t *testing.T) {
	resetFlags(rootCmd)
	defer resetFlags(rootCmd)
	if err := rootCmd.PersistentFlags().Set("source", "answers.csv"); err != nil {
		t.Fatal(err)
	}
	if err := serveCmd.Flags().Set("addr", ":9000"); err != nil {
		t.Fatal(err)
	}

	// a reloaded file with no source of its own
	c, err := cfgpkg.Load(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	applyOverrides(c)
	applyServeOverrides(serveCmd, c)
	if c.SourceFile != "answers.csv" || c.SourceURL != "" || c.ListenAddr != ":9000" {
		t.Fatalf("overrides not applied: source_file=%q source_url=%q addr=%q", c.SourceFile, c.SourceURL, c.ListenAddr)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected reloaded config to validate, got %v", err)
	}
}
