package parser

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/recurring-detector/internal/models"
)

func TestQIFParse(t *testing.T) {
	data := "!Type:Bank\r\n" +
		"D01/15/2024\r\nT-15.99\r\nPNETFLIX\r\nMMonthly\r\nN101\r\nLEntertainment\r\n^\r\n" +
		"D2/1'24\r\nU1,500.00\r\nPEmployer Ltd\r\n^\r\n" +
		"D13/45/2024\r\nT-1.00\r\nPBad date\r\n^\r\n" +
		"D03-01-99\r\nT-9.99\r\nMNo payee\r\n"

	p, _ := New(models.FormatQIF, nil, nil)
	sd, err := p.Parse(Source{Data: []byte(data)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sd.Transactions) != 3 {
		t.Fatalf("got %d transactions, want 3", len(sd.Transactions))
	}

	old := sd.Transactions[0]
	if old.Date.Format("2006-01-02") != "1999-03-01" || old.Description != "No payee" {
		t.Errorf("unterminated last record: got %s %q", old.Date, old.Description)
	}
	netflix := sd.Transactions[1]
	if netflix.Description != "NETFLIX" || netflix.Reference != "101" || netflix.Category != "Entertainment" {
		t.Errorf("got %+v", netflix)
	}
	if !netflix.Amount.Equal(decimal.RequireFromString("-15.99")) || netflix.Type != models.TransactionDebit {
		t.Errorf("amount: got %s %s", netflix.Amount, netflix.Type)
	}
	salary := sd.Transactions[2]
	if salary.Date.Format("2006-01-02") != "2024-02-01" || !salary.Amount.Equal(decimal.RequireFromString("1500")) {
		t.Errorf("got %s %s", salary.Date, salary.Amount)
	}
}

func TestQIFParseRecordWithoutDescription(t *testing.T) {
	data := "!Type:Bank\n" +
		"D01/15/2025\nT-42.00\n^\n" +
		"D01/20/2025\nT-7.50\nN2002\n^\n" +
		"D02/15/2025\nT-15.99\nPNETFLIX\n^\n"

	p, _ := New(models.FormatQIF, nil, nil)
	sd, err := p.Parse(Source{Data: []byte(data)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sd.Transactions) != 3 {
		t.Fatalf("got %d transactions, want 3", len(sd.Transactions))
	}
	want := []string{unnamedTransaction, "2002", "NETFLIX"}
	for i, w := range want {
		if sd.Transactions[i].Description != w {
			t.Errorf("transaction %d: got %q, want %q", i, sd.Transactions[i].Description, w)
		}
	}
}

func TestParseQIFDate(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "01/15/2024", want: "2024-01-15"},
		{in: "1/5/24", want: "2024-01-05"},
		{in: "12/31/49", want: "2049-12-31"},
		{in: "12/31/50", want: "1950-12-31"},
		{in: "6/ 1'98", want: "1998-06-01"},
		{in: "02/30/2024", wantErr: true},
		{in: "2024-01-15-01", wantErr: true},
		{in: "Jan 1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseQIFDate(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Format("2006-01-02") != tt.want {
				t.Errorf("got %s, want %s", got.Format("2006-01-02"), tt.want)
			}
		})
	}
}

func TestQIFParseEmpty(t *testing.T) {
	p, _ := New(models.FormatQIF, nil, nil)
	_, err := p.Parse(Source{Data: []byte("!Type:Bank\n")})
	var empty *models.EmptyStatementError
	if !errors.As(err, &empty) {
		t.Errorf("expected EmptyStatementError, got %v", err)
	}
}
