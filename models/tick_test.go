package models

import (
	"errors"
	"testing"
)

func TestParseTickNumericFields(t *testing.T) {
	payload := []byte(`{"symbol":"VN30F1M","matchPrice":1295.5,"matchQtty":"12","time":"09:15:01","side":"B"}`)
	tick, err := ParseTick(payload)
	if err != nil {
		t.Fatalf("ParseTick failed: %v", err)
	}
	if tick.Symbol != "VN30F1M" {
		t.Errorf("unexpected symbol: %s", tick.Symbol)
	}
	if tick.MatchPrice != 1295.5 {
		t.Errorf("unexpected price: %v", tick.MatchPrice)
	}
	if tick.MatchQtty != 12 {
		t.Errorf("string quantity not coerced: %v", tick.MatchQtty)
	}
	if tick.Side != "B" {
		t.Errorf("auxiliary field lost: %q", tick.Side)
	}
}

func TestParseTickMissingField(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		field   string
	}{
		{"no price", `{"symbol":"AAA","matchQtty":100}`, "matchPrice"},
		{"no quantity", `{"symbol":"AAA","matchPrice":10.1}`, "matchQtty"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ParseTick([]byte(c.payload))
			var fe *FieldError
			if !errors.As(err, &fe) {
				t.Fatalf("expected FieldError, got %v", err)
			}
			if fe.Field != c.field || fe.Reason != "missing" {
				t.Errorf("unexpected error detail: %+v", fe)
			}
		})
	}
}

func TestParseTickNonNumeric(t *testing.T) {
	cases := []string{
		`{"symbol":"AAA","matchPrice":"N/A","matchQtty":100}`,
		`{"symbol":"AAA","matchPrice":10.1,"matchQtty":"N/A"}`,
		`{"symbol":"AAA","matchPrice":null,"matchQtty":100}`,
	}
	for _, payload := range cases {
		_, err := ParseTick([]byte(payload))
		var fe *FieldError
		if !errors.As(err, &fe) {
			t.Fatalf("expected FieldError for %s, got %v", payload, err)
		}
		if fe.Reason != "not numeric" {
			t.Errorf("unexpected reason for %s: %+v", payload, fe)
		}
	}
}

func TestParseTickInvalidJSON(t *testing.T) {
	if _, err := ParseTick([]byte("not json")); err == nil {
		t.Fatal("expected error for invalid payload")
	}
}

func TestRowOrderMatchesColumns(t *testing.T) {
	tick := Tick{
		Symbol:     "VIC",
		MatchPrice: 42.5,
		MatchQtty:  300,
		Time:       "10:00:00",
		Volume:     "123400",
	}
	row := tick.Row()
	if len(row) != len(ColumnNames) {
		t.Fatalf("row has %d columns, header has %d", len(row), len(ColumnNames))
	}
	if row[0] != "VIC" || row[1] != "42.5" || row[2] != "300" {
		t.Errorf("unexpected leading columns: %v", row[:3])
	}
	if row[9] != "123400" {
		t.Errorf("volume column misplaced: %v", row)
	}
}
