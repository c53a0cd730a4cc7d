package rips

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NonEmpty drops files without lines. A file type with no records is
// neither packaged nor listed in the manifest.
func NonEmpty(files []File) []File {
	out := make([]File, 0, len(files))
	for _, f := range files {
		if len(f.Lines) > 0 {
			out = append(out, f)
		}
	}
	return out
}

// BuildManifest renders the CT file: one "provider,date,code,count" line per
// non-empty file, in the order given.
func BuildManifest(providerCode string, submitted time.Time, files []File) File {
	ct := File{Code: FileControl}
	date := submitted.Format(DateLayout)
	for _, f := range files {
		if len(f.Lines) == 0 {
			continue
		}
		ct.Lines = append(ct.Lines, SerializeLine(controlRow{
			ProviderCode: providerCode,
			Date:         date,
			Code:         f.Code,
			Count:        countLines(f.Content()),
		}))
	}
	return ct
}

type controlRow struct {
	ProviderCode string
	Date         string
	Code         FileCode
	Count        int
}

func (controlRow) FileCode() FileCode { return FileControl }

func (r controlRow) Fields() []string {
	return []string{r.ProviderCode, r.Date, string(r.Code), strconv.Itoa(r.Count)}
}

// VerifyManifest re-reads the CT lines and checks each stated count against
// the rendered content of its file. Any disagreement, a listed file that is
// not packaged or a packaged file that is not listed yields
// ErrManifestMismatch.
func VerifyManifest(ct File, files []File) error {
	stated := make(map[FileCode]int, len(ct.Lines))
	for i, line := range ct.Lines {
		cols := strings.Split(line, ",")
		if len(cols) != 4 {
			return fmt.Errorf("%w: CT line %d has %d columns", ErrManifestMismatch, i+1, len(cols))
		}
		code := FileCode(cols[2])
		if _, dup := stated[code]; dup {
			return fmt.Errorf("%w: %s listed twice", ErrManifestMismatch, code)
		}
		n, err := strconv.Atoi(cols[3])
		if err != nil {
			return fmt.Errorf("%w: CT line %d count %q", ErrManifestMismatch, i+1, cols[3])
		}
		stated[code] = n
	}

	packaged := 0
	for _, f := range files {
		actual := countLines(f.Content())
		if actual == 0 {
			continue
		}
		packaged++
		n, ok := stated[f.Code]
		if !ok {
			return fmt.Errorf("%w: %s has %d lines but is not listed", ErrManifestMismatch, f.Code, actual)
		}
		if n != actual {
			return fmt.Errorf("%w: %s states %d, file has %d", ErrManifestMismatch, f.Code, n, actual)
		}
	}
	if packaged != len(stated) {
		return fmt.Errorf("%w: manifest lists %d files, bundle has %d", ErrManifestMismatch, len(stated), packaged)
	}
	return nil
}

// countLines counts "\n"-separated lines; empty content has none.
func countLines(content string) int {
	if content == "" {
		return 0
	}
	return strings.Count(content, "\n") + 1
}
