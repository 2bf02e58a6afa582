package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/promptdock/library"
)

// promptdock runs the command tree against db and returns stdout.
func promptdock(t *testing.T, db string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(append([]string{"--db", db}, args...))
	err := root.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, db string, args ...string) string {
	t.Helper()
	out, err := promptdock(t, db, args...)
	if err != nil {
		t.Fatalf("promptdock %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func tempDB(t *testing.T) string {
	return filepath.Join(t.TempDir(), "lib.db")
}

func TestPrompts_AddListShowDelete(t *testing.T) {
	db := tempDB(t)
	out := mustRun(t, db, "prompts", "add", "--id", "greet", "--name", "greeting", "--content", "Hi {{name:there}}", "--tag", "casual")
	var saved library.Prompt
	if err := json.Unmarshal([]byte(out), &saved); err != nil {
		t.Fatalf("add output: %v\n%s", err, out)
	}
	if saved.ID != "greet" || saved.Name != "greeting" {
		t.Fatalf("saved: got %+v", saved)
	}

	out = mustRun(t, db, "prompts", "list", "-q", "GREET")
	if !strings.Contains(out, "greet") || !strings.Contains(out, "Hi {{name:there}}") {
		t.Fatalf("list:\n%s", out)
	}

	out = mustRun(t, db, "prompts", "show", "greet")
	if !strings.Contains(out, `"variables"`) || !strings.Contains(out, `"there"`) {
		t.Fatalf("show:\n%s", out)
	}

	mustRun(t, db, "prompts", "delete", "greet")
	if _, err := promptdock(t, db, "prompts", "show", "greet"); err == nil {
		t.Fatal("show after delete: expected error")
	}
}

func TestPrompts_AddRejectsEmpty(t *testing.T) {
	if _, err := promptdock(t, tempDB(t), "prompts", "add", "--name", "x"); err == nil {
		t.Fatal("add without content: expected error")
	}
}

func TestPrompts_ExportImport(t *testing.T) {
	src, dst := tempDB(t), tempDB(t)
	mustRun(t, src, "prompts", "add", "--id", "a", "--name", "alpha", "--content", "A")
	mustRun(t, src, "settings", "--mode", "suffix")

	file := filepath.Join(t.TempDir(), "snap.json")
	mustRun(t, src, "prompts", "export", "-o", file)
	mustRun(t, dst, "prompts", "add", "--id", "z", "--name", "zulu", "--content", "Z")
	mustRun(t, dst, "prompts", "import", file)

	out := mustRun(t, dst, "prompts", "list", "--json")
	if !strings.Contains(out, `"alpha"`) || strings.Contains(out, `"zulu"`) {
		t.Fatalf("import did not replace the library:\n%s", out)
	}
	if out := mustRun(t, dst, "settings"); !strings.Contains(out, `"suffix"`) {
		t.Fatalf("settings after import:\n%s", out)
	}
}

func TestPrompts_Capture(t *testing.T) {
	db := tempDB(t)
	page := filepath.Join(t.TempDir(), "composer.html")
	if err := os.WriteFile(page, []byte("<p>Explain <strong>this</strong></p>"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := mustRun(t, db, "prompts", "capture", "--name", "explain", page)
	if !strings.Contains(out, "**this**") {
		t.Fatalf("capture:\n%s", out)
	}
}

func TestSettings(t *testing.T) {
	db := tempDB(t)
	out := mustRun(t, db, "settings")
	if !strings.Contains(out, `"Ctrl+Shift+P"`) || !strings.Contains(out, `"cursor"`) {
		t.Fatalf("defaults:\n%s", out)
	}
	out = mustRun(t, db, "settings", "--mode", "replace", "--recommendations=false")
	if !strings.Contains(out, `"replace"`) || !strings.Contains(out, `"show_recommendations": false`) {
		t.Fatalf("update:\n%s", out)
	}
	if _, err := promptdock(t, db, "settings", "--chord", "Ctrl+Nope+"); err == nil {
		t.Fatal("bad chord: expected error")
	}
}

func TestSites_AddMatch(t *testing.T) {
	db := tempDB(t)
	mustRun(t, db, "sites", "add", "--id", "corp", "--pattern", `chat\.corp\.example`, "--selector", "#editor", "--strategy", "composition")

	out := mustRun(t, db, "sites", "match", "https://chat.corp.example/c/1")
	if !strings.Contains(out, `"corp"`) || !strings.Contains(out, `"composition"`) {
		t.Fatalf("match:\n%s", out)
	}
	if out := mustRun(t, db, "sites", "list"); !strings.Contains(out, "corp") {
		t.Fatalf("list:\n%s", out)
	}
	if _, err := promptdock(t, db, "sites", "add", "--pattern", "(", "--selector", "textarea"); err == nil {
		t.Fatal("bad pattern: expected error")
	}

	mustRun(t, db, "sites", "remove", "corp")
	if _, err := promptdock(t, db, "sites", "match", "https://chat.corp.example/c/1"); err == nil {
		t.Fatal("match after remove: expected error")
	}
}

func TestDryRun(t *testing.T) {
	db := tempDB(t)
	page := filepath.Join(t.TempDir(), "page.html")
	if err := os.WriteFile(page, []byte(`<html><body><form><textarea id="prompt-textarea"></textarea></form></body></html>`), 0o644); err != nil {
		t.Fatal(err)
	}

	var rep dryRunReport
	out := mustRun(t, db, "dry-run", page, "--url", "https://chatgpt.com/")
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("report: %v\n%s", err, out)
	}
	if len(rep.Composers) != 1 || rep.Composers[0].Tag != "textarea" {
		t.Fatalf("composers: got %+v", rep.Composers)
	}

	mustRun(t, db, "prompts", "add", "--id", "greet", "--name", "greeting", "--content", "Hi {{name:there}}")
	out = mustRun(t, db, "dry-run", page, "--url", "https://chatgpt.com/", "--prompt", "greet", "--var", "name=Bob")
	rep = dryRunReport{}
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("report: %v\n%s", err, out)
	}
	if rep.Result != "Hi Bob" {
		t.Fatalf("result: got %q, want %q", rep.Result, "Hi Bob")
	}
	if rep.Inserted == nil || !rep.Inserted.Active {
		t.Fatalf("inserted view: got %+v", rep.Inserted)
	}

	out = mustRun(t, db, "prompts", "list", "--json")
	if !strings.Contains(out, `"usage_count": 1`) {
		t.Fatalf("usage not recorded:\n%s", out)
	}
}

func TestDryRun_NoComposer(t *testing.T) {
	page := filepath.Join(t.TempDir(), "page.html")
	if err := os.WriteFile(page, []byte(`<html><body><p>nothing here</p></body></html>`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := promptdock(t, tempDB(t), "dry-run", page, "--text", "x"); err == nil {
		t.Fatal("no composer: expected error")
	}
}
