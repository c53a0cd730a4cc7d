package rips

import (
	"errors"
	"testing"
)

func sampleFiles() []File {
	return []File{
		{Code: FileInvoices, Lines: []string{"af1", "af2"}},
		{Code: FileUsers, Lines: []string{"us1"}},
		{Code: FileConsultations},
		{Code: FileProcedures, Lines: []string{"ap1", "ap2", "ap3"}},
	}
}

func TestBuildManifest(t *testing.T) {
	files := NonEmpty(sampleFiles())
	ct := BuildManifest("050012362501", testNow, files)

	want := []string{
		"050012362501,03/02/2025,AF,2",
		"050012362501,03/02/2025,US,1",
		"050012362501,03/02/2025,AP,3",
	}
	if len(ct.Lines) != len(want) {
		t.Fatalf("expected %d CT lines, got %d: %v", len(want), len(ct.Lines), ct.Lines)
	}
	for i := range want {
		if ct.Lines[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, ct.Lines[i], want[i])
		}
	}
	if ct.Code != FileControl {
		t.Errorf("expected CT code, got %s", ct.Code)
	}
	if err := VerifyManifest(ct, files); err != nil {
		t.Errorf("freshly built manifest must verify: %v", err)
	}
}

func TestNonEmpty(t *testing.T) {
	files := NonEmpty(sampleFiles())
	if len(files) != 3 {
		t.Fatalf("expected 3 non-empty files, got %d", len(files))
	}
	for _, f := range files {
		if f.Code == FileConsultations {
			t.Error("empty AC must be dropped")
		}
	}
}

func TestVerifyManifest_Mismatch(t *testing.T) {
	files := NonEmpty(sampleFiles())

	tests := []struct {
		name  string
		lines []string
		files []File
	}{
		{
			name:  "count differs",
			lines: []string{"P,03/02/2025,AF,3", "P,03/02/2025,US,1", "P,03/02/2025,AP,3"},
			files: files,
		},
		{
			name:  "file not listed",
			lines: []string{"P,03/02/2025,AF,2", "P,03/02/2025,US,1"},
			files: files,
		},
		{
			name:  "listed file missing",
			lines: []string{"P,03/02/2025,AF,2", "P,03/02/2025,US,1", "P,03/02/2025,AP,3", "P,03/02/2025,AC,1"},
			files: files,
		},
		{
			name:  "duplicate entry",
			lines: []string{"P,03/02/2025,AF,2", "P,03/02/2025,AF,2"},
			files: files[:1],
		},
		{
			name:  "bad column count",
			lines: []string{"P,03/02/2025,AF"},
			files: files[:1],
		},
		{
			name:  "non numeric count",
			lines: []string{"P,03/02/2025,AF,two"},
			files: files[:1],
		},
		{
			name:  "file content grew after build",
			lines: []string{"P,03/02/2025,AF,2"},
			files: []File{{Code: FileInvoices, Lines: []string{"af1", "af2\naf3"}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyManifest(File{Code: FileControl, Lines: tt.lines}, tt.files)
			if !errors.Is(err, ErrManifestMismatch) {
				t.Errorf("expected ErrManifestMismatch, got %v", err)
			}
		})
	}
}

func TestCountLines(t *testing.T) {
	tests := map[string]int{
		"":        0,
		"a":       1,
		"a\nb":    2,
		"a\nb\nc": 3,
	}
	for in, want := range tests {
		if got := countLines(in); got != want {
			t.Errorf("countLines(%q) = %d, want %d", in, got, want)
		}
	}
}
