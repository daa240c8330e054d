package lexicon_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/baristabuddy/baristabuddy/internal/lexicon"
)

func TestNew_NormalizesCaseAndWhitespace(t *testing.T) {
	t.Parallel()

	lex, err := lexicon.New([]lexicon.Entry{
		{Canonical: "  Espresso ", Variants: []string{"Expresso", " EXSPRESSO "}},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	entries := lex.Entries()
	if len(entries) != 1 {
		t.Fatalf("Entries: got %d, want 1", len(entries))
	}
	if entries[0].Canonical != "espresso" {
		t.Errorf("Canonical=%q, want %q", entries[0].Canonical, "espresso")
	}
	want := []string{"expresso", "exspresso"}
	if len(entries[0].Variants) != len(want) {
		t.Fatalf("Variants=%v, want %v", entries[0].Variants, want)
	}
	for i, v := range want {
		if entries[0].Variants[i] != v {
			t.Errorf("Variants[%d]=%q, want %q", i, entries[0].Variants[i], v)
		}
	}
}

func TestNew_DuplicateCanonical(t *testing.T) {
	t.Parallel()

	_, err := lexicon.New([]lexicon.Entry{
		{Canonical: "latte", Variants: []string{"lattay"}},
		{Canonical: "Latte", Variants: []string{"latay"}},
	})
	if err == nil {
		t.Fatal("expected error for duplicate canonical terms, got nil")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("error should mention duplicate, got: %v", err)
	}
}

func TestNew_EmptyCanonical(t *testing.T) {
	t.Parallel()

	_, err := lexicon.New([]lexicon.Entry{{Canonical: "  ", Variants: []string{"x"}}})
	if err == nil {
		t.Fatal("expected error for empty canonical term, got nil")
	}
}

func TestNew_EmptyVariant(t *testing.T) {
	t.Parallel()

	_, err := lexicon.New([]lexicon.Entry{{Canonical: "latte", Variants: []string{""}}})
	if err == nil {
		t.Fatal("expected error for empty variant, got nil")
	}
}

func TestNew_VariantShadowsOtherCanonical(t *testing.T) {
	t.Parallel()

	_, err := lexicon.New([]lexicon.Entry{
		{Canonical: "espresso", Variants: []string{"expresso"}},
		{Canonical: "latte", Variants: []string{"espresso"}},
	})
	if err == nil {
		t.Fatal("expected error for variant shadowing a canonical term, got nil")
	}
	if !strings.Contains(err.Error(), "canonical") {
		t.Errorf("error should mention the canonical collision, got: %v", err)
	}
}

func TestNew_VariantContainedInCanonical(t *testing.T) {
	t.Parallel()

	// "french pres" inside "french press" would turn every correct mention
	// into "french presss" on substitution.
	_, err := lexicon.New([]lexicon.Entry{
		{Canonical: "french press", Variants: []string{"french pres"}},
	})
	if err == nil {
		t.Fatal("expected error for a variant contained in a canonical term, got nil")
	}
	if !strings.Contains(err.Error(), "substring") {
		t.Errorf("error should mention the substring hazard, got: %v", err)
	}
}

func TestNew_VariantSharedAcrossEntries(t *testing.T) {
	t.Parallel()

	_, err := lexicon.New([]lexicon.Entry{
		{Canonical: "mocha", Variants: []string{"moca"}},
		{Canonical: "macchiato", Variants: []string{"moca"}},
	})
	if err == nil {
		t.Fatal("expected error for a variant mapped under two canonicals, got nil")
	}
	if !strings.Contains(err.Error(), "mapped to both") {
		t.Errorf("error should mention the double mapping, got: %v", err)
	}
}

func TestNew_VariantEqualToOwnCanonicalDropped(t *testing.T) {
	t.Parallel()

	lex, err := lexicon.New([]lexicon.Entry{
		{Canonical: "espresso", Variants: []string{"Espresso", "expresso"}},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	entries := lex.Entries()
	if len(entries[0].Variants) != 1 || entries[0].Variants[0] != "expresso" {
		t.Errorf("Variants=%v, want only %q (self-variant dropped)", entries[0].Variants, "expresso")
	}
}

func TestParseJSON_StringAndListValues(t *testing.T) {
	t.Parallel()

	const doc = `{
		"espresso": ["expresso", "exspresso"],
		"latte": "lattay"
	}`
	lex, err := lexicon.ParseJSON(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ParseJSON returned error: %v", err)
	}
	entries := lex.Entries()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Canonical != "espresso" || len(entries[0].Variants) != 2 {
		t.Errorf("entry 0 = %+v, want espresso with 2 variants", entries[0])
	}
	if entries[1].Canonical != "latte" || len(entries[1].Variants) != 1 || entries[1].Variants[0] != "lattay" {
		t.Errorf("entry 1 = %+v, want latte with variant lattay", entries[1])
	}
}

func TestParseJSON_PreservesDocumentOrder(t *testing.T) {
	t.Parallel()

	const doc = `{"mocha": "moca", "latte": "latay", "espresso": "expresso"}`
	lex, err := lexicon.ParseJSON(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ParseJSON returned error: %v", err)
	}
	got := lex.Canonicals()
	want := []string{"mocha", "latte", "espresso"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Canonicals=%v, want document order %v", got, want)
		}
	}
}

func TestParseJSON_RejectsNonObject(t *testing.T) {
	t.Parallel()

	if _, err := lexicon.ParseJSON(strings.NewReader(`["espresso"]`)); err == nil {
		t.Fatal("expected error for a non-object document, got nil")
	}
}

func TestParseJSON_RejectsBadValueType(t *testing.T) {
	t.Parallel()

	_, err := lexicon.ParseJSON(strings.NewReader(`{"espresso": 7}`))
	if err == nil {
		t.Fatal("expected error for a numeric value, got nil")
	}
	if !strings.Contains(err.Error(), "espresso") {
		t.Errorf("error should name the offending key, got: %v", err)
	}
}

func TestParseYAML_StringAndListValues(t *testing.T) {
	t.Parallel()

	const doc = `
espresso:
  - expresso
  - exspresso
latte: lattay
`
	lex, err := lexicon.ParseYAML(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ParseYAML returned error: %v", err)
	}
	if lex.Len() != 2 {
		t.Fatalf("Len=%d, want 2", lex.Len())
	}
	got := lex.Canonicals()
	if got[0] != "espresso" || got[1] != "latte" {
		t.Errorf("Canonicals=%v, want [espresso latte]", got)
	}
}

func TestLoad_JSONFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "lexicon.json")
	if err := os.WriteFile(path, []byte(`{"espresso": "expresso"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	lex, err := lexicon.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if lex.Len() != 1 {
		t.Errorf("Len=%d, want 1", lex.Len())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := lexicon.Load(filepath.Join(t.TempDir(), "absent.json"))
	if err == nil {
		t.Fatal("expected error for a missing file, got nil")
	}
}

func TestDefault_EmbeddedTableIsValid(t *testing.T) {
	t.Parallel()

	lex := lexicon.Default()
	if lex.Len() == 0 {
		t.Fatal("Default lexicon is empty")
	}
	// The scenario vocabulary must be present.
	canonicals := lex.Canonicals()
	for _, want := range []string{"espresso", "cappuccino", "macchiato", "latte"} {
		found := false
		for _, c := range canonicals {
			if c == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Default lexicon missing canonical %q", want)
		}
	}
}
