package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Tick represents a single normalized trade/quote event pushed by the
// datafeed broker. MatchPrice and MatchQtty are coerced to float64 during
// parsing; every other field is kept as the provider-supplied string.
type Tick struct {
	Symbol      string  `json:"symbol"`
	MatchPrice  float64 `json:"matchPrice"`
	MatchQtty   float64 `json:"matchQtty"`
	Time        string  `json:"time"`
	Side        string  `json:"side"`
	Session     string  `json:"session"`
	Low         string  `json:"low"`
	Open        string  `json:"open"`
	LastUpdated string  `json:"lastUpdated"`
	Volume      string  `json:"volume"`
	Close       string  `json:"close"`
	Type        string  `json:"type"`
	High        string  `json:"high"`
}

// ColumnNames is the fixed sink header, in row order.
var ColumnNames = []string{
	"symbol", "matchPrice", "matchQtty", "time", "side", "session",
	"low", "open", "lastUpdated", "volume", "close", "type", "high",
}

// FieldError reports a required tick field that is missing or cannot be
// coerced to a number. Callers match it with errors.As and drop the record.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("tick field %q %s", e.Field, e.Reason)
}

// ParseTick decodes a broker payload into a Tick. The payload is expected to
// be a flat JSON object. matchPrice and matchQtty must be present and numeric
// (JSON number or numeric string); any violation returns a *FieldError and
// the record must not reach the sink.
func ParseTick(payload []byte) (Tick, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Tick{}, fmt.Errorf("decode tick payload: %w", err)
	}

	price, err := requireFloat(raw, "matchPrice")
	if err != nil {
		return Tick{}, err
	}
	qty, err := requireFloat(raw, "matchQtty")
	if err != nil {
		return Tick{}, err
	}

	return Tick{
		Symbol:      asString(raw["symbol"]),
		MatchPrice:  price,
		MatchQtty:   qty,
		Time:        asString(raw["time"]),
		Side:        asString(raw["side"]),
		Session:     asString(raw["session"]),
		Low:         asString(raw["low"]),
		Open:        asString(raw["open"]),
		LastUpdated: asString(raw["lastUpdated"]),
		Volume:      asString(raw["volume"]),
		Close:       asString(raw["close"]),
		Type:        asString(raw["type"]),
		High:        asString(raw["high"]),
	}, nil
}

// Row returns the tick as sink columns in ColumnNames order.
func (t Tick) Row() []string {
	return []string{
		t.Symbol,
		strconv.FormatFloat(t.MatchPrice, 'f', -1, 64),
		strconv.FormatFloat(t.MatchQtty, 'f', -1, 64),
		t.Time,
		t.Side,
		t.Session,
		t.Low,
		t.Open,
		t.LastUpdated,
		t.Volume,
		t.Close,
		t.Type,
		t.High,
	}
}

func requireFloat(raw map[string]interface{}, field string) (float64, error) {
	v, ok := raw[field]
	if !ok {
		return 0, &FieldError{Field: field, Reason: "missing"}
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, &FieldError{Field: field, Reason: "not numeric"}
		}
		return f, nil
	default:
		return 0, &FieldError{Field: field, Reason: "not numeric"}
	}
}

func asString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		b, _ := json.Marshal(s)
		return string(b)
	}
}
