package skill

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCatalog(t *testing.T) {
	names := Names()
	if len(names) != 2 {
		t.Fatalf("Names() = %v, want 2 skills", names)
	}
	for _, sk := range All() {
		if !strings.HasPrefix(sk.Content, "---\nname: "+sk.Name+"\n") {
			t.Errorf("skill %s content does not start with its front matter", sk.Name)
		}
	}
	if _, ok := Get(" reportctl-mcp "); !ok {
		t.Errorf("Get did not trim the name")
	}
	if _, ok := Get("nope"); ok {
		t.Errorf("Get found an unknown skill")
	}
}

func TestInstall(t *testing.T) {
	dir := t.TempDir()
	sk, _ := Get("reportctl-cli")

	path, err := Install(dir, sk, false)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if want := filepath.Join(dir, "reportctl-cli", SkillFileName); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != sk.Content {
		t.Errorf("installed content differs")
	}

	if _, err := Install(dir, sk, false); err == nil {
		t.Errorf("expected an error when the skill already exists")
	}
	if _, err := Install(dir, sk, true); err != nil {
		t.Errorf("Install with force: %v", err)
	}
}
