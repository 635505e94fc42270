package fleet

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
)

func writeFleet(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fleet.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fleet file: %v", err)
	}
	return path
}

func seed(t *testing.T) string {
	t.Helper()
	return base64.StdEncoding.EncodeToString(
		[]byte(`{"me":{"id":"254700000001@s.whatsapp.net"},"deviceId":"dev-1"}`))
}

func TestLoad(t *testing.T) {
	path := writeFleet(t, `
bots:
  - botName: alice
    ownerNumber: "+254735342808"
    sessionId: `+seed(t)+`
  - botName: bob
    ownerNumber: "+14155550100"
    sessionId: `+seed(t)+`
`)

	bots, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(bots) != 2 {
		t.Fatalf("len = %d, want 2", len(bots))
	}
	if bots[0].BotName != "alice" || bots[1].BotName != "bob" {
		t.Errorf("names = %q, %q", bots[0].BotName, bots[1].BotName)
	}
	if bots[0].OwnerNumber != "+254735342808" {
		t.Errorf("ownerNumber = %q", bots[0].OwnerNumber)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing field", `
bots:
  - botName: alice
    ownerNumber: "+254735342808"
`},
		{"bad seed", `
bots:
  - botName: alice
    ownerNumber: "+254735342808"
    sessionId: "!!!not base64"
`},
		{"duplicate name", `
bots:
  - botName: alice
    ownerNumber: "+254735342808"
    sessionId: ` + seed(t) + `
  - botName: alice
    ownerNumber: "+14155550100"
    sessionId: ` + seed(t) + `
`},
		{"not yaml", `{{{{`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeFleet(t, tc.content)); err == nil {
				t.Fatal("Load accepted invalid fleet file")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load accepted missing file")
	}
}
