package planner

import (
	"testing"
)

func TestParseBacklog_StrictArray(t *testing.T) {
	raw := `[
		{"title": "Alta de usuarios", "description": "Registro con correo.", "priority": "Alta", "estimate": "3d"},
		{"title": "Exportar reportes"}
	]`
	items, err := ParseBacklog(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items", len(items))
	}
	if items[0].Title != "Alta de usuarios" || items[0].Priority != "alta" || items[0].Estimate != "3d" {
		t.Errorf("first item = %+v", items[0])
	}
	if items[1].Description != "" || items[1].Priority != "" {
		t.Errorf("optional fields should default empty: %+v", items[1])
	}
}

func TestParseBacklog_FencedBlock(t *testing.T) {
	raw := "```json\n[{\"title\": \"Login\"}]\n```"
	items, err := ParseBacklog(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Title != "Login" {
		t.Errorf("items = %+v", items)
	}
}

func TestParseBacklog_EmbeddedInProse(t *testing.T) {
	raw := "Claro, aquí está el backlog:\n[{\"title\": \"Pasarela de pagos\"}]\nEspero que sirva."
	items, err := ParseBacklog(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Title != "Pasarela de pagos" {
		t.Errorf("items = %+v", items)
	}
}

func TestParseBacklog_UntitledItemsDropped(t *testing.T) {
	items, err := ParseBacklog(`[{"title": "  "}, {"title": "Real"}, {"description": "sin título"}]`)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Title != "Real" {
		t.Errorf("items = %+v", items)
	}
}

func TestParseBacklog_Errors(t *testing.T) {
	for _, raw := range []string{
		"",
		"no hay backlog",
		`{"title": "object, not array"}`,
		`[{"description": "only untitled"}]`,
		`[]`,
	} {
		if _, err := ParseBacklog(raw); err == nil {
			t.Errorf("ParseBacklog(%q) should fail", raw)
		}
	}
}
