package database

import (
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
)

func TestContainsPattern(t *testing.T) {
	tests := []struct {
		name string
		in   pgtype.Text
		want pgtype.Text
	}{
		{"null", pgtype.Text{}, pgtype.Text{}},
		{"plain", pgtype.Text{String: "roti", Valid: true}, pgtype.Text{String: "%roti%", Valid: true}},
		{"percent", pgtype.Text{String: "50%", Valid: true}, pgtype.Text{String: `%50\%%`, Valid: true}},
		{"underscore", pgtype.Text{String: "ORD_2026", Valid: true}, pgtype.Text{String: `%ORD\_2026%`, Valid: true}},
		{"backslash", pgtype.Text{String: `a\b`, Valid: true}, pgtype.Text{String: `%a\\b%`, Valid: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := containsPattern(tt.in); got != tt.want {
				t.Errorf("containsPattern(%q) = %q, want %q", tt.in.String, got.String, tt.want.String)
			}
		})
	}
}
