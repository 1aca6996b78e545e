package xlsx

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/document-verifier/internal/core/domain"
)

func TestWriteProducesOrderedRows(t *testing.T) {
	records := []domain.FieldRecord{
		{Field: "surname", Value: "DOE", Confidence: "96%"},
		{Field: "given_names", Value: "JANE", Confidence: "88%"},
	}

	var buf bytes.Buffer
	if err := NewExporter().Write(&buf, records); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	want := [][]string{
		{"Field", "Value", "Confidence"},
		{"surname", "DOE", "96%"},
		{"given_names", "JANE", "88%"},
	}
	if len(rows) != len(want) {
		t.Fatalf("expected %d rows, got %d: %v", len(want), len(rows), rows)
	}
	for i := range want {
		for j := range want[i] {
			if rows[i][j] != want[i][j] {
				t.Fatalf("cell (%d,%d) = %q, want %q", i, j, rows[i][j], want[i][j])
			}
		}
	}
}

func TestWriteEmptyRecordsKeepsHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := NewExporter().Write(&buf, nil); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, _ := f.GetRows(SheetName)
	if len(rows) != 1 {
		t.Fatalf("expected header only, got %v", rows)
	}
}
