package main

import (
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
)

func TestColorize(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	if got := colorize(colorGreen, "hi"); got != "hi" {
		t.Errorf("colorize with noColor=true = %q", got)
	}

	noColor = false
	if got := colorize(colorGreen, "hi"); !strings.Contains(got, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", got)
	}
}

func TestRenderTable(t *testing.T) {
	out := renderTable(
		[]string{"Name", "Role"},
		[][]string{{"Jane Doe", "CEO"}, {"John Roe"}},
	)
	for _, want := range []string{"Name", "Role", "Jane Doe", "CEO", "John Roe"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if renderTable(nil, nil) != "" {
		t.Error("empty headers should render nothing")
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", "(not set)"},
		{"short", "******"},
		{"sk-abcdefgh", "sk-...gh"},
	}
	for _, tt := range tests {
		if got := maskSecret(tt.in); got != tt.want {
			t.Errorf("maskSecret(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("0123456789abcdef"); got != "01234567" {
		t.Errorf("shortID = %q", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Errorf("short input = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello", 10); got != "hello" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("hello world", 5); got != "hello..." {
		t.Errorf("truncate = %q", got)
	}
}

func TestNewLoggerLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "junk", ""} {
		if newLogger(level) == nil {
			t.Errorf("newLogger(%q) = nil", level)
		}
	}
	logger := newLogger("error")
	if logger.Enabled(nil, slog.LevelWarn) {
		t.Error("error-level logger should not enable warn")
	}
}

func TestCompanyAddAndList(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SCOUT_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("XDG_CONFIG_HOME", dir)

	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"company", "add", "Acme", "https://acme.example"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("company add: %v", err)
	}

	rootCmd.SetArgs([]string{"companies"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("companies: %v", err)
	}
}
