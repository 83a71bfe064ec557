package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/pamperito/internal/domain"
)

// timeLayout is fixed-width so stored timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func marshalParsed(p domain.Parsed) (string, error) {
	if p.Items == nil {
		p.Items = []domain.CartItem{}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal parsed: %w", err)
	}
	return string(b), nil
}

func unmarshalParsed(s string) (domain.Parsed, error) {
	var p domain.Parsed
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return domain.Parsed{}, fmt.Errorf("unmarshal parsed: %w", err)
	}
	return p, nil
}

func marshalMeta(m domain.Meta) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal meta: %w", err)
	}
	return string(b), nil
}

func unmarshalMeta(s string) (domain.Meta, error) {
	m := domain.Meta{}
	if s == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("unmarshal meta: %w", err)
	}
	return m, nil
}
