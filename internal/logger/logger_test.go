package logger

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRotator_RotatesAndKeepsBackups(t *testing.T) {
	name := filepath.Join(t.TempDir(), "wheel.log")
	r := &Rotator{Filename: name, MaxSize: 10, MaxBackups: 2}

	for _, line := range []string{"aaaaaaaa\n", "bbbbbbbb\n", "cccccccc\n", "dddddddd\n"} {
		if _, err := r.Write([]byte(line)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	current, _ := os.ReadFile(name)
	if string(current) != "dddddddd\n" {
		t.Errorf("Expected newest line in current file, got %q", current)
	}
	first, _ := os.ReadFile(name + ".1")
	if string(first) != "cccccccc\n" {
		t.Errorf("Expected previous line in .1, got %q", first)
	}
	if _, err := os.Stat(name + ".3"); !os.IsNotExist(err) {
		t.Errorf("Expected at most 2 backups")
	}
}

func TestRotator_NoBackupsTruncates(t *testing.T) {
	name := filepath.Join(t.TempDir(), "wheel.log")
	r := &Rotator{Filename: name, MaxSize: 10, MaxBackups: 0}

	r.Write([]byte("aaaaaaaa\n"))
	r.Write([]byte("bbbbbbbb\n"))

	current, _ := os.ReadFile(name)
	if string(current) != "bbbbbbbb\n" {
		t.Errorf("Expected only the newest line, got %q", current)
	}
	if _, err := os.Stat(name + ".1"); !os.IsNotExist(err) {
		t.Errorf("Expected no backup file")
	}
}

func TestLevelGate(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)
	defer SetLevel("INFO")

	SetLevel("INFO")
	Debugf("hidden %d", 1)
	Warnf("shown %d", 2)
	if strings.Contains(buf.String(), "hidden") {
		t.Errorf("Debug line emitted at INFO level")
	}
	if !strings.Contains(buf.String(), "WARN: shown 2") {
		t.Errorf("Expected warn line, got %q", buf.String())
	}

	buf.Reset()
	SetLevel("debug")
	Debugf("visible")
	if !strings.Contains(buf.String(), "DEBUG: visible") {
		t.Errorf("Expected debug line at DEBUG level, got %q", buf.String())
	}
}
