package assistant

import "testing"

func TestParseRegistryResolvesNames(t *testing.T) {
	reg, err := ParseRegistry(`[{"name":"support","id":"asst_1"},{"name":"sales","id":"asst_2"}]`)
	if err != nil {
		t.Fatalf("expected config to parse, got error: %v", err)
	}

	id, err := reg.ID("sales")
	if err != nil {
		t.Fatalf("expected sales to resolve, got error: %v", err)
	}
	if id != "asst_2" {
		t.Fatalf("expected asst_2 for sales, got %q", id)
	}

	if reg.Default() != "asst_1" {
		t.Fatalf("expected the first entry as default, got %q", reg.Default())
	}
}

func TestParseRegistryUnknownName(t *testing.T) {
	reg, err := ParseRegistry(`[{"name":"support","id":"asst_1"}]`)
	if err != nil {
		t.Fatalf("expected config to parse, got error: %v", err)
	}
	if _, err := reg.ID("billing"); err == nil {
		t.Fatal("expected unknown name to fail")
	}
}

func TestParseRegistryRejectsBadConfig(t *testing.T) {
	cases := map[string]string{
		"not json":     `{"name":`,
		"empty list":   `[]`,
		"missing id":   `[{"name":"support"}]`,
		"missing name": `[{"id":"asst_1"}]`,
	}
	for name, raw := range cases {
		if _, err := ParseRegistry(raw); err == nil {
			t.Fatalf("expected %s config to fail", name)
		}
	}
}
