package rips

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
)

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	out := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		out[f.Name] = string(b)
	}
	return out
}

func zipNames(t *testing.T, data []byte) []string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

func TestNames(t *testing.T) {
	w, err := ResolveWindow("01/01/2025", "31/01/2025", cot)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := MemberName(FileUsers, w); got != "US2501.txt" {
		t.Errorf("expected US2501.txt, got %s", got)
	}
	if got := ArchiveName(w); got != "RIPS_01-01-2025_a_31-01-2025.zip" {
		t.Errorf("unexpected archive name %s", got)
	}
}

func TestPack(t *testing.T) {
	w, _ := ResolveWindow("01/12/2024", "15/01/2025", cot)
	files := NonEmpty(sampleFiles())
	ct := BuildManifest("P", testNow, files)
	modified := time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)

	a, err := Pack(w, files, ct, modified)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantOrder := []string{"AF2412.txt", "US2412.txt", "AP2412.txt", "CT2412.txt"}
	names := zipNames(t, a.Data)
	if len(names) != len(wantOrder) {
		t.Fatalf("expected members %v, got %v", wantOrder, names)
	}
	for i := range wantOrder {
		if names[i] != wantOrder[i] || a.Members[i] != wantOrder[i] {
			t.Errorf("member %d: zip %s, archive %s, want %s", i, names[i], a.Members[i], wantOrder[i])
		}
	}

	contents := readZip(t, a.Data)
	if contents["AF2412.txt"] != "af1\naf2" {
		t.Errorf("unexpected AF content %q", contents["AF2412.txt"])
	}
	if contents["AP2412.txt"] != "ap1\nap2\nap3" {
		t.Errorf("AP must have no trailing newline, got %q", contents["AP2412.txt"])
	}
	if a.Counts[FileControl] != 3 || a.Counts[FileInvoices] != 2 {
		t.Errorf("unexpected counts %v", a.Counts)
	}
	if _, ok := a.Counts[FileConsultations]; ok {
		t.Error("empty AC must not be counted")
	}

	zr, _ := zip.NewReader(bytes.NewReader(a.Data), int64(len(a.Data)))
	for _, f := range zr.File {
		if f.Method != zip.Deflate {
			t.Errorf("%s: expected deflate, got method %d", f.Name, f.Method)
		}
		if !f.Modified.Equal(modified) {
			t.Errorf("%s: expected modified %v, got %v", f.Name, modified, f.Modified)
		}
	}
}

func TestPack_Deterministic(t *testing.T) {
	w, _ := ResolveWindow("01/01/2025", "31/01/2025", cot)
	files := NonEmpty(sampleFiles())
	ct := BuildManifest("P", testNow, files)
	modified := time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)

	a1, err := Pack(w, files, ct, modified)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a2, err := Pack(w, files, ct, modified)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(a1.Data, a2.Data) {
		t.Error("identical input must produce identical archives")
	}
}
