package rips

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
)

// MemberName returns "<Code><YY><MM>.txt" for the window start month.
func MemberName(code FileCode, w ExportWindow) string {
	return string(code) + w.PeriodSuffix() + ".txt"
}

var archiveNameReplacer = strings.NewReplacer("/", "-", "\\", "-", " ", "")

// ArchiveName is derived from the caller's date strings.
func ArchiveName(w ExportWindow) string {
	return fmt.Sprintf("RIPS_%s_a_%s.zip", archiveNameReplacer.Replace(w.StartInput), archiveNameReplacer.Replace(w.EndInput))
}

// Pack writes the data files followed by the manifest into a deflate zip.
// Every member carries the same modification time so identical input gives
// identical bytes. files must already be filtered with NonEmpty.
func Pack(w ExportWindow, files []File, ct File, modified time.Time) (*Archive, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	archive := &Archive{
		Name:   ArchiveName(w),
		Counts: make(map[FileCode]int, len(files)+1),
		Window: w,
	}

	members := make([]File, 0, len(files)+1)
	members = append(members, files...)
	if len(ct.Lines) > 0 {
		members = append(members, ct)
	}

	for _, f := range members {
		name := MemberName(f.Code, w)
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: modified.UTC(),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: create %s: %v", ErrPackaging, name, err)
		}
		if _, err := fw.Write([]byte(f.Content())); err != nil {
			return nil, fmt.Errorf("%w: write %s: %v", ErrPackaging, name, err)
		}
		archive.Members = append(archive.Members, name)
		archive.Files = append(archive.Files, f)
		archive.Counts[f.Code] = len(f.Lines)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: close archive: %v", ErrPackaging, err)
	}
	archive.Data = buf.Bytes()
	return archive, nil
}
