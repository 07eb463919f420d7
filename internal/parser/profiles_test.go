package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/insightdelivered/recurring-detector/internal/models"
)

func TestDefaultRegistryProfiles(t *testing.T) {
	r := DefaultRegistry()
	names := map[string]bool{}
	for _, p := range r.Profiles() {
		names[p.Name] = true
	}
	for _, want := range []string{"monzo", "starling", "revolut", "barclays", "chase", "nubank", "privatbank"} {
		if !names[want] {
			t.Errorf("missing built-in profile %q", want)
		}
	}

	p, ok := r.Get("Monzo")
	if !ok || p.Currency != "GBP" {
		t.Errorf("Get(Monzo): got %+v, %v", p, ok)
	}
	if _, ok := r.Get("nope"); ok {
		t.Error("expected unknown profile lookup to fail")
	}
}

func TestRegistryDetect(t *testing.T) {
	r := DefaultRegistry()
	tests := []struct {
		name     string
		filename string
		header   string
		content  string
		want     string
	}{
		{name: "filename glob", filename: "/tmp/Monzo_Export_2024.csv", want: "monzo"},
		{name: "windows path", filename: `C:\Users\me\privat_2024.csv`, want: "privatbank"},
		{name: "header keywords", header: "Date,Counter Party,Reference,Type,Amount (GBP),Balance (GBP),Spending Category", want: "starling"},
		{name: "header needs every keyword", header: "Started Date,Description,Amount", want: ""},
		{name: "content pattern", content: "Account activity from chase.com", want: "chase"},
		{name: "purchase is not chase", content: "card purchase at tesco", want: ""},
		{name: "nothing", filename: "statement.csv", header: "Date,Description,Amount", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Detect(tt.filename, tt.header, tt.content)
			name := ""
			if got != nil {
				name = got.Name
			}
			if name != tt.want {
				t.Errorf("got %q, want %q", name, tt.want)
			}
		})
	}

	var nilRegistry *Registry
	if nilRegistry.Detect("monzo.csv", "", "") != nil {
		t.Error("nil registry should detect nothing")
	}
}

func TestNewRegistryOverrides(t *testing.T) {
	custom := models.BankProfile{Name: "Monzo", Currency: "EUR"}
	extra := models.BankProfile{
		Name:      "mybank",
		Detection: models.Detection{ContentPatterns: []string{`(?i)my bank plc`}},
	}
	r, err := NewRegistry(custom, extra)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, _ := r.Get("monzo")
	if p.Currency != "EUR" {
		t.Errorf("override not applied: %+v", p)
	}
	if got := r.Detect("", "", "Welcome to My Bank PLC"); got == nil || got.Name != "mybank" {
		t.Errorf("expected mybank, got %+v", got)
	}

	if _, err := NewRegistry(models.BankProfile{Name: "bad", Detection: models.Detection{ContentPatterns: []string{"("}}}); err == nil {
		t.Error("expected error for invalid content pattern")
	}
}

func TestLoadProfiles(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "profiles.yaml")
	yamlText := `
- name: localbank
  currency: GBP
  delimiter: ";"
  date_format: "%d/%m/%Y"
  columns:
    date: [booked]
    amount: [value]
`
	if err := os.WriteFile(good, []byte(yamlText), 0o644); err != nil {
		t.Fatal(err)
	}
	profiles, err := LoadProfiles(good)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(profiles) != 1 || profiles[0].Delimiter != ";" || profiles[0].Columns.Date[0] != "booked" {
		t.Errorf("got %+v", profiles)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("- currency: GBP\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadProfiles(bad); err == nil {
		t.Error("expected error for profile without name")
	}
	if _, err := LoadProfiles(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
