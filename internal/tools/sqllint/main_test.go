package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const (
	markerA = "8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7"
	markerB = "6d4f5660-0f7c-4f73-a1f3-9ab6d5e6c7a3"
)

func writeGo(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("package q\n\n"+body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLintAcceptsMarkedQueries(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "a.go", "const QA = `--sql "+markerA+"\nselect 1;`\n")
	writeGo(t, dir, "b.go", "const QB = `--sql "+markerB+"\nupdate t set x = 1;`\nconst Label = \"selection\"\n")

	vs, err := lint([]string{dir})
	if err != nil {
		t.Fatalf("lint error: %v", err)
	}
	if len(vs) != 0 {
		t.Fatalf("unexpected violations %v", vs)
	}
}

func TestLintReportsMissingAndDuplicateMarkers(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "a.go", "const QA = `--sql "+markerA+"\nselect 1;`\nvar QBad = \"select * from t\"\n")
	writeGo(t, dir, "b.go", "const QDup = `--sql "+markerA+"\ndelete from t;`\n")
	writeGo(t, dir, "c_test.go", "const QTest = \"select 2\"\n")

	vs, err := lint([]string{dir})
	if err != nil {
		t.Fatalf("lint error: %v", err)
	}
	var msgs []string
	for _, v := range vs {
		msgs = append(msgs, v.name+": "+v.message)
	}
	joined := strings.Join(msgs, "\n")
	if len(vs) != 3 {
		t.Fatalf("expected 3 violations, got:\n%s", joined)
	}
	if !strings.Contains(joined, "QBad: missing or invalid") || !strings.Contains(joined, "QDup: marker "+markerA+" is reused") {
		t.Fatalf("unexpected violations:\n%s", joined)
	}
}

func TestRunExitCode(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "a.go", "const Q = \"insert into t values (1)\"\n")
	var stderr bytes.Buffer
	if code := run([]string{dir}, &stderr); code != 1 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr.String(), "a.go:3") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestLintRepositoryQueries(t *testing.T) {
	vs, err := lint([]string{filepath.Join("..", "..", "sqlinline")})
	if err != nil {
		t.Fatalf("lint error: %v", err)
	}
	if len(vs) != 0 {
		t.Fatalf("repository queries have violations: %v", vs)
	}
}
