package utils_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/KaramelBytes/surveylens/internal/utils"
)

func TestTruncate(t *testing.T) {
	cases := []struct {
		in    string
		limit int
		want  string
	}{
		{"", 5, ""},
		{"short", 10, "short"},
		{"réveil matin", 6, "révei…"},
		{"abc", 1, "…"},
		{"abc", 0, ""},
	}
	for _, c := range cases {
		if got := utils.Truncate(c.in, c.limit); got != c.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", c.in, c.limit, got, c.want)
		}
	}
	long := strings.Repeat("é", 500)
	if n := utf8.RuneCountInString(utils.Truncate(long, 40)); n != 40 {
		t.Fatalf("expected 40 runes, got %d", n)
	}
}

func TestSafeWriteFileReplacesContent(t *testing.T) {
	p := filepath.Join(t.TempDir(), "out.yaml")
	if err := utils.SafeWriteFile(p, []byte("a: 1\n")); err != nil {
		t.Fatal(err)
	}
	if err := utils.SafeWriteFile(p, []byte("a: 2\n")); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(p)
	if err != nil || string(b) != "a: 2\n" {
		t.Fatalf("unexpected content %q %v", b, err)
	}
	if _, err := os.Stat(p + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file should be gone, stat err=%v", err)
	}
}

func TestPrettyJSON(t *testing.T) {
	b, err := utils.PrettyJSON(map[string]int{"participants": 3})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "{\n  \"participants\": 3\n}" {
		t.Fatalf("unexpected json %q", b)
	}
}
