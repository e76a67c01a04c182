package bridge

import (
	"bytes"
	"errors"
	"testing"

	"github.com/OpenGG/spacetime-token/internal/tokens/domain"
)

const tokenKey = "spacetimedb_token"

func mustParse(t *testing.T, content string) *Document {
	t.Helper()
	doc, err := Parse([]byte(content))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return doc
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("key = = nope")); !errors.Is(err, domain.ErrCLIConfigParse) {
		t.Fatalf("expected ErrCLIConfigParse, got %v", err)
	}
}

func TestActiveToken(t *testing.T) {
	doc := mustParse(t, "spacetimedb_token = \"abc\"\n")
	token, ok, err := doc.ActiveToken(tokenKey)
	if err != nil || !ok || token != "abc" {
		t.Fatalf("expected abc, got %q ok=%v err=%v", token, ok, err)
	}
}

func TestActiveToken_Absent(t *testing.T) {
	doc := mustParse(t, "default_server = \"local\"\n")
	token, ok, err := doc.ActiveToken(tokenKey)
	if err != nil || ok || token != "" {
		t.Fatalf("expected absent token, got %q ok=%v err=%v", token, ok, err)
	}
}

func TestActiveToken_WrongType(t *testing.T) {
	doc := mustParse(t, "spacetimedb_token = 42\n")
	_, ok, err := doc.ActiveToken(tokenKey)
	if ok || !errors.Is(err, domain.ErrTokenWrongType) {
		t.Fatalf("expected ErrTokenWrongType, got ok=%v err=%v", ok, err)
	}
}

func TestSetActiveToken_ReplacesInPlace(t *testing.T) {
	input := `# spacetime cli config
default_server = "local"
spacetimedb_token = "old-token"   # managed

[[server_configs]]
nickname = "local"
host = "127.0.0.1:3000"
`
	want := `# spacetime cli config
default_server = "local"
spacetimedb_token = 'new-token'   # managed

[[server_configs]]
nickname = "local"
host = "127.0.0.1:3000"
`
	doc := mustParse(t, input)
	if err := doc.SetActiveToken(tokenKey, "new-token"); err != nil {
		t.Fatalf("SetActiveToken: %v", err)
	}
	if got := string(doc.Bytes()); got != want {
		t.Fatalf("unexpected document:\n%s\nwant:\n%s", got, want)
	}
	token, ok, err := doc.ActiveToken(tokenKey)
	if err != nil || !ok || token != "new-token" {
		t.Fatalf("expected new-token, got %q ok=%v err=%v", token, ok, err)
	}
}

func TestSetActiveToken_InsertsBeforeFirstTable(t *testing.T) {
	input := "default_server = \"local\"\n\n[[server_configs]]\nnickname = \"local\"\n"
	want := "default_server = \"local\"\nspacetimedb_token = 'tok'\n\n[[server_configs]]\nnickname = \"local\"\n"

	doc := mustParse(t, input)
	if err := doc.SetActiveToken(tokenKey, "tok"); err != nil {
		t.Fatalf("SetActiveToken: %v", err)
	}
	if got := string(doc.Bytes()); got != want {
		t.Fatalf("unexpected document:\n%q\nwant:\n%q", got, want)
	}
}

func TestSetActiveToken_KeyInsideTableIsNotTopLevel(t *testing.T) {
	input := "[other]\nspacetimedb_token = \"nested\"\n"
	want := "spacetimedb_token = 'top'\n[other]\nspacetimedb_token = \"nested\"\n"

	doc := mustParse(t, input)
	if err := doc.SetActiveToken(tokenKey, "top"); err != nil {
		t.Fatalf("SetActiveToken: %v", err)
	}
	if got := string(doc.Bytes()); got != want {
		t.Fatalf("unexpected document:\n%q\nwant:\n%q", got, want)
	}
}

func TestSetActiveToken_AppendsWithoutTables(t *testing.T) {
	doc := mustParse(t, "a = 1")
	if err := doc.SetActiveToken(tokenKey, "tok"); err != nil {
		t.Fatalf("SetActiveToken: %v", err)
	}
	if got, want := string(doc.Bytes()), "a = 1\nspacetimedb_token = 'tok'\n"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestSetActiveToken_KeepsCRLFLineEndings(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "before first table",
			input: "a = 1\r\n\r\n# lead\r\n[t]\r\nx = 2\r\n",
			want:  "a = 1\r\nspacetimedb_token = 'tok'\r\n\r\n# lead\r\n[t]\r\nx = 2\r\n",
		},
		{
			name:  "appended",
			input: "a = 1\r\n",
			want:  "a = 1\r\nspacetimedb_token = 'tok'\r\n",
		},
		{
			name:  "appended without trailing newline",
			input: "a = 1\r\nb = 2",
			want:  "a = 1\r\nb = 2\r\nspacetimedb_token = 'tok'\r\n",
		},
	}
	for _, tt := range tests {
		doc := mustParse(t, tt.input)
		if err := doc.SetActiveToken(tokenKey, "tok"); err != nil {
			t.Fatalf("%s: SetActiveToken: %v", tt.name, err)
		}
		if got := string(doc.Bytes()); got != tt.want {
			t.Fatalf("%s: expected %q, got %q", tt.name, tt.want, got)
		}
	}
}

func TestSetActiveToken_EmptyDocument(t *testing.T) {
	doc := NewDocument()
	if err := doc.SetActiveToken(tokenKey, "tok"); err != nil {
		t.Fatalf("SetActiveToken: %v", err)
	}
	if got, want := string(doc.Bytes()), "spacetimedb_token = 'tok'\n"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestSetActiveToken_OverwritesWrongType(t *testing.T) {
	doc := mustParse(t, "spacetimedb_token = 42\nother = 'x'\n")
	if err := doc.SetActiveToken(tokenKey, "tok"); err != nil {
		t.Fatalf("SetActiveToken: %v", err)
	}
	token, ok, err := doc.ActiveToken(tokenKey)
	if err != nil || !ok || token != "tok" {
		t.Fatalf("expected tok, got %q ok=%v err=%v", token, ok, err)
	}
	reparsed := mustParse(t, string(doc.Bytes()))
	if reparsed.values["other"] != "x" {
		t.Fatalf("expected other key to survive, got %v", reparsed.values)
	}
}

func TestSetActiveToken_QuotesSpecialCharacters(t *testing.T) {
	doc := mustParse(t, "spacetimedb_token = 'plain'\n")
	special := "it's a \"token\""
	if err := doc.SetActiveToken(tokenKey, special); err != nil {
		t.Fatalf("SetActiveToken: %v", err)
	}
	reparsed := mustParse(t, string(doc.Bytes()))
	token, ok, err := reparsed.ActiveToken(tokenKey)
	if err != nil || !ok || token != special {
		t.Fatalf("expected %q, got %q ok=%v err=%v", special, token, ok, err)
	}
}

func TestSetActiveToken_Idempotent(t *testing.T) {
	doc := mustParse(t, "default_server = \"local\"\n")
	if err := doc.SetActiveToken(tokenKey, "tok"); err != nil {
		t.Fatalf("first SetActiveToken: %v", err)
	}
	first := append([]byte{}, doc.Bytes()...)
	if err := doc.SetActiveToken(tokenKey, "tok"); err != nil {
		t.Fatalf("second SetActiveToken: %v", err)
	}
	if !bytes.Equal(first, doc.Bytes()) {
		t.Fatalf("expected identical documents:\n%s\n%s", first, doc.Bytes())
	}
}
