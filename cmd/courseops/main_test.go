package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// runCommand executes the root command with args and returns stdout.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(out, "courseops version "+Version) {
		t.Errorf("unexpected version output: %q", out)
	}
}

func TestMergeCommand(t *testing.T) {
	template := writeTempFile(t, "template.txt", "Hello {{First_Name}}!")
	data := writeTempFile(t, "grades.csv",
		"Username,First_Name\nauser1,Alice\nbuser2,Bob\n")
	configPath := writeTempFile(t, "courseops.yaml", "render:\n  item_separator: \"|\"\n")

	out, err := runCommand(t, "merge",
		"--config", configPath,
		"--template", template,
		"--data", data,
		"--key", "Username",
		"--kv-sep", ":")
	if err != nil {
		t.Fatalf("merge command failed: %v", err)
	}
	if !strings.Contains(out, "|auser1:Hello Alice!|buser2:Hello Bob!") {
		t.Errorf("unexpected merge output: %q", out)
	}
}

func TestMergeCommand_OutputFile(t *testing.T) {
	template := writeTempFile(t, "template.txt", "{{Score}}")
	data := writeTempFile(t, "grades.csv", "Username,Score\nauser1,95\n")
	configPath := writeTempFile(t, "courseops.yaml", "")
	outPath := filepath.Join(t.TempDir(), "report.txt")

	_, err := runCommand(t, "merge",
		"--config", configPath,
		"--template", template,
		"--data", data,
		"--suppress-keys",
		"--kv-sep", "", "--item-sep", "",
		"--output", outPath)
	if err != nil {
		t.Fatalf("merge command failed: %v", err)
	}

	content, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("failed to read output file: %v", err)
	}
	if string(content) != "95" {
		t.Errorf("unexpected report content: %q", content)
	}
}

func TestCalendarCommand(t *testing.T) {
	data := writeTempFile(t, "schedule.csv",
		"Week,Monday,Tuesday\n1,Introductions,Act A|Act B\n")
	configPath := writeTempFile(t, "courseops.yaml", "")

	out, err := runCommand(t, "calendar",
		"--config", configPath,
		"--data", data,
		"--start", "2018-01-01")
	if err != nil {
		t.Fatalf("calendar command failed: %v", err)
	}
	if !strings.Contains(out, "02JAN2018") {
		t.Errorf("expected Tuesday date in output, got: %q", out)
	}
	if !strings.Contains(out, "Act A") {
		t.Errorf("expected activities in output, got: %q", out)
	}
}

func TestCalendarCommand_BadStartDate(t *testing.T) {
	data := writeTempFile(t, "schedule.csv", "Week,Monday\n1,Intro\n")

	_, err := runCommand(t, "calendar", "--data", data, "--start", "01/01/2018")
	if err == nil {
		t.Fatal("expected error for malformed start date")
	}
}

func TestNotifyCommand_DryRun(t *testing.T) {
	template := writeTempFile(t, "template.txt", "Hi {{First_Name}}, grades are posted.")
	data := writeTempFile(t, "roster.csv",
		"Username,First_Name\nauser1,Alice\n")
	configPath := writeTempFile(t, "courseops.yaml", "")

	out, err := runCommand(t, "notify",
		"--config", configPath,
		"--template", template,
		"--data", data,
		"--key", "Username",
		"--dry-run")
	if err != nil {
		t.Fatalf("notify command failed: %v", err)
	}
	if !strings.Contains(out, "--- auser1 ---") {
		t.Errorf("expected per-user header in dry-run output, got: %q", out)
	}
	if !strings.Contains(out, "Hi Alice, grades are posted.") {
		t.Errorf("expected rendered message in dry-run output, got: %q", out)
	}
}

func TestGradesCommand_RequiresServer(t *testing.T) {
	data := writeTempFile(t, "grades.csv", "Username,Score\nauser1,95\n")
	configPath := writeTempFile(t, "courseops.yaml", "")

	_, err := runCommand(t, "grades",
		"--config", configPath,
		"--data", data,
		"--column", "Quiz 1")
	if err == nil || !strings.Contains(err.Error(), "no gradebook server configured") {
		t.Errorf("expected missing-server error, got: %v", err)
	}
}
