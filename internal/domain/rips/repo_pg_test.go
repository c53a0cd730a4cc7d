package rips

import (
	"strings"
	"testing"
)

func TestRepoQueries_TrashedRowsIncluded(t *testing.T) {
	for name, q := range map[string]string{
		"patients":     patientsQuery,
		"appointments": appointmentsQuery,
	} {
		if strings.Contains(q, "NOT is_deleted") {
			t.Errorf("%s query must not filter trashed rows", name)
		}
	}
	if !strings.Contains(patientsQuery, "is_deleted") {
		t.Error("patients query must select is_deleted into Trashed")
	}
}

func TestRepoQueries_Ordering(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"appointments", appointmentsQuery, "ORDER BY fecha ASC, hora ASC, created_at ASC, id ASC"},
		{"procedures", proceduresQuery, "ORDER BY created_at ASC, id ASC"},
	}
	for _, tt := range tests {
		if !strings.Contains(tt.query, tt.want) {
			t.Errorf("%s: expected %q in query:\n%s", tt.name, tt.want, tt.query)
		}
	}
}
