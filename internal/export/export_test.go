package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/keikaku/internal/models"
)

func sampleItems() []models.BacklogItem {
	created := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	return []models.BacklogItem{
		{ID: "b1", ProjectID: "p1", Title: "Alta de usuarios", Description: "Registro, con correo", Priority: "alta", Estimate: "3d", CreatedAt: created},
		{ID: "b2", ProjectID: "p1", Title: "Exportar reportes", CreatedAt: created},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleItems()); err != nil {
		t.Fatal(err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d", len(rows))
	}
	if rows[0][1] != "title" {
		t.Errorf("header = %v", rows[0])
	}
	// Fields containing commas survive the round trip.
	if rows[1][2] != "Registro, con correo" {
		t.Errorf("description = %q", rows[1][2])
	}
	if rows[2][0] != "b2" || rows[2][3] != "" {
		t.Errorf("row = %v", rows[2])
	}
	if rows[1][5] != "2025-03-10 09:30:00" {
		t.Errorf("created_at = %q", rows[1][5])
	}
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatal(err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Errorf("empty backlog should still produce the header, got %v", rows)
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, sampleItems()); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := f.GetRows("Backlog")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d", len(rows))
	}
	if rows[1][1] != "Alta de usuarios" || rows[1][3] != "alta" {
		t.Errorf("row = %v", rows[1])
	}
	if rows[2][0] != "b2" {
		t.Errorf("row = %v", rows[2])
	}
}
