package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootListsCommands(t *testing.T) {
	out, err := runCLI(t, "--help")
	if err != nil {
		t.Fatalf("help: %v", err)
	}
	for _, name := range []string{"generate", "analyze", "publish", "serve", "migrate", "token"} {
		if !strings.Contains(out, name) {
			t.Fatalf("help output lacks %q:\n%s", name, out)
		}
	}
}

func TestTokenCommandSignsWithConfiguredSecret(t *testing.T) {
	t.Setenv("VID2NEWS_JWT_SECRET", "cli-secret")

	out, err := runCLI(t, "token", "--subject", "editor")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	parsed, err := jwt.Parse(strings.TrimSpace(out), func(*jwt.Token) (interface{}, error) {
		return []byte("cli-secret"), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("token does not verify: %v", err)
	}
	if sub, _ := parsed.Claims.GetSubject(); sub != "editor" {
		t.Fatalf("subject = %q", sub)
	}
}

func TestMigrateRejectsUnknownDirection(t *testing.T) {
	if _, err := runCLI(t, "migrate", "sideways"); err == nil {
		t.Fatalf("expected argument error")
	}
}

func TestGenerateRequiresValidConfig(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("VID2NEWS_CONFIG", "")

	_, err := runCLI(t, "generate")
	if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
