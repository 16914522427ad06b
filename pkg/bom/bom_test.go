package bom

import (
	"errors"
	"strings"
	"testing"
)

func TestParseCSVAliases(t *testing.T) {
	csvData := `PN,Desc,Qty
LM358N,Dual op-amp DIP-8,10
,Unnamed capacitor 100nF,5
NE555P,,
,,
`
	got, err := ParseCSV(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d rows, want 3 (empty row dropped)", len(got))
	}
	if got[0].PartNumber != "LM358N" || got[0].Quantity != 10 {
		t.Errorf("row 0 = %+v", got[0])
	}
	if got[1].PartNumber != "" || got[1].Description != "Unnamed capacitor 100nF" {
		t.Errorf("row 1 = %+v", got[1])
	}
	if got[2].PartNumber != "NE555P" || got[2].Quantity != 0 {
		t.Errorf("row 2 = %+v", got[2])
	}
}

func TestParseCSVHeaderVariants(t *testing.T) {
	variants := []string{
		"Part Number,Description,Quantity\nR1,res,1\n",
		"Manufacturer Part Number,Part Description,QTY\nR1,res,1\n",
		"mpn,name,pcs\nR1,res,1\n",
	}
	for _, v := range variants {
		got, err := ParseCSV(strings.NewReader(v))
		if err != nil {
			t.Errorf("header %q: %v", strings.SplitN(v, "\n", 2)[0], err)
			continue
		}
		if len(got) != 1 || got[0].PartNumber != "R1" {
			t.Errorf("header %q: rows = %+v", strings.SplitN(v, "\n", 2)[0], got)
		}
	}
}

func TestParseCSVNoHeader(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("foo,bar\n1,2\n"))
	if !errors.Is(err, ErrNoHeader) {
		t.Errorf("expected ErrNoHeader, got %v", err)
	}

	_, err = ParseCSV(strings.NewReader(""))
	if !errors.Is(err, ErrNoHeader) {
		t.Errorf("empty file: expected ErrNoHeader, got %v", err)
	}
}

func TestParseCSVRaggedRows(t *testing.T) {
	csvData := "PN,Desc,Qty\nLM358N,op-amp\nNE555P,timer,3,extra\n"
	got, err := ParseCSV(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}
	if got[1].Quantity != 3 {
		t.Errorf("row 1 quantity = %d, want 3", got[1].Quantity)
	}
}

func TestParseUnsupportedExtension(t *testing.T) {
	if _, err := Parse("bom.pdf"); err == nil {
		t.Error("expected an error for unsupported extension")
	}
}
