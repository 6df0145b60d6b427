package wake

import (
	"os"
	"path/filepath"
	"testing"
)

// These tests exercise New's pre-flight validation only; they never reach
// pv_porcupine_init because they fail before that call. Actual keyword
// spotting requires the native SDK and a licensed .ppn file and is not
// covered by unit tests.

func TestNewRejectsRelativeModelPath(t *testing.T) {
	_, err := New("key", Config{ModelPath: "relative/model.pv", PPNPath: "/abs/hey.ppn"})
	if err == nil {
		t.Fatal("expected error for relative model_path")
	}
}

func TestNewRejectsMissingModelFile(t *testing.T) {
	dir := t.TempDir()
	_, err := New("key", Config{
		ModelPath: filepath.Join(dir, "does-not-exist.pv"),
		PPNPath:   "/abs/hey.ppn",
	})
	if err == nil {
		t.Fatal("expected error for missing model file")
	}
}

func TestNewRejectsRelativePPNPath(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "model.pv")
	if err := os.WriteFile(model, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := New("key", Config{ModelPath: model, PPNPath: "relative/hey.ppn"})
	if err == nil {
		t.Fatal("expected error for relative ppn_path")
	}
}

func TestNewRejectsMissingPPNFile(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "model.pv")
	if err := os.WriteFile(model, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := New("key", Config{
		ModelPath: model,
		PPNPath:   filepath.Join(dir, "missing.ppn"),
	})
	if err == nil {
		t.Fatal("expected error for missing ppn file")
	}
}

func TestNewRejectsEmptyAccessKey(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "model.pv")
	ppn := filepath.Join(dir, "hey.ppn")
	if err := os.WriteFile(model, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ppn, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := New("", Config{ModelPath: model, PPNPath: ppn})
	if err == nil {
		t.Fatal("expected error for empty access key")
	}
}
