package rips

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rueisp/odontologia/internal/platform/blobstore"
	"github.com/rueisp/odontologia/internal/platform/db"
	"github.com/rueisp/odontologia/internal/platform/events"
)

// EventExportGenerated is the routing key of the event published after a
// bundle is built.
const EventExportGenerated = "rips.export.generated"

// ArchivePrefix is the object key prefix for retained bundles.
const ArchivePrefix = "rips/"

// Service runs the export pipeline. It holds no per-run state and may be
// shared between goroutines.
type Service struct {
	repo     Repository
	provider Provider
	loc      *time.Location
	logger   zerolog.Logger
	now      func() time.Time
	store    blobstore.Store
	events   events.Publisher
	tenantID string
}

func NewService(repo Repository, provider Provider, loc *time.Location, logger zerolog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:     repo,
		provider: provider,
		loc:      loc,
		logger:   logger,
		now:      time.Now,
		events:   events.NopPublisher{},
	}
}

// SetArchiveStore enables retention of every generated bundle.
func (s *Service) SetArchiveStore(store blobstore.Store) {
	s.store = store
}

// SetPublisher attaches the publisher used for export events. tenantID is
// used when the request context carries no tenant.
func (s *Service) SetPublisher(p events.Publisher, tenantID string) {
	if p == nil {
		p = events.NopPublisher{}
	}
	s.events = p
	s.tenantID = tenantID
}

// SetClock overrides the wall clock. Tests use it to pin the submission date.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Generate builds the RIPS bundle for invoices issued between start and end
// (DD/MM/YYYY, inclusive, in the service location). It returns
// ErrEmptyResult when nothing in the window can be exported. On any error no
// archive is returned.
func (s *Service) Generate(ctx context.Context, start, end string) (*Archive, error) {
	w, err := ResolveWindow(start, end, s.loc)
	if err != nil {
		return nil, err
	}

	invoices, err := s.repo.ListInvoices(ctx, w.From, w.To)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	if len(invoices) == 0 {
		return nil, ErrEmptyResult
	}

	patients, err := s.repo.GetPatients(ctx, patientIDs(invoices))
	if err != nil {
		return nil, fmt.Errorf("get patients: %w", err)
	}

	now := s.now().In(s.loc)
	x := &Extractor{
		Provider: s.provider,
		Location: s.loc,
		Today:    now,
		Logger:   s.logger,
	}
	rows := x.Extract(invoices, patients)
	if len(rows.Invoices) == 0 {
		return nil, ErrEmptyResult
	}

	files := NonEmpty(rows.Files())
	ct := BuildManifest(s.provider.Code, now, files)
	if err := VerifyManifest(ct, files); err != nil {
		s.logger.Error().Err(err).Str("window_start", start).Str("window_end", end).Msg("rips: manifest verification failed")
		return nil, err
	}

	// Pin member timestamps to the submission date so reruns on the same day
	// produce identical bytes.
	modified := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	archive, err := Pack(w, files, ct, modified)
	if err != nil {
		return nil, err
	}
	archive.Skipped = rows.Skipped

	if err := s.retain(ctx, archive); err != nil {
		return nil, err
	}
	s.publish(ctx, archive)

	s.logger.Info().
		Str("archive", archive.Name).
		Int("bytes", len(archive.Data)).
		Int("invoices", archive.Counts[FileInvoices]).
		Int("users", archive.Counts[FileUsers]).
		Int("skipped", len(archive.Skipped)).
		Msg("rips: export generated")

	return archive, nil
}

// ArchiveKey is the object key a bundle is retained under.
func ArchiveKey(a *Archive) string {
	return fmt.Sprintf("%s%04d/%s", ArchivePrefix, a.Window.StartDate.Year(), a.Name)
}

func (s *Service) retain(ctx context.Context, a *Archive) error {
	if s.store == nil {
		return nil
	}
	tags := map[string]string{
		"window-start": a.Window.StartDate.Format("2006-01-02"),
		"window-end":   a.Window.EndDate.Format("2006-01-02"),
	}
	if _, err := s.store.Put(ctx, ArchiveKey(a), "application/zip", a.Data, tags); err != nil {
		return fmt.Errorf("%w: retain %s: %v", ErrPackaging, a.Name, err)
	}
	return nil
}

// ExportGenerated is the payload of EventExportGenerated.
type ExportGenerated struct {
	Archive     string         `json:"archive"`
	WindowStart string         `json:"window_start"`
	WindowEnd   string         `json:"window_end"`
	Counts      map[string]int `json:"counts"`
	Skipped     []string       `json:"skipped,omitempty"`
	Bytes       int            `json:"bytes"`
}

func (s *Service) publish(ctx context.Context, a *Archive) {
	counts := make(map[string]int, len(a.Counts))
	for code, n := range a.Counts {
		counts[string(code)] = n
	}
	tenant := db.TenantFromContext(ctx)
	if tenant == "" {
		tenant = s.tenantID
	}
	evt, err := events.NewEvent(EventExportGenerated, tenant, ExportGenerated{
		Archive:     a.Name,
		WindowStart: a.Window.StartDate.Format(DateLayout),
		WindowEnd:   a.Window.EndDate.Format(DateLayout),
		Counts:      counts,
		Skipped:     a.Skipped,
		Bytes:       len(a.Data),
	})
	if err == nil {
		err = s.events.Publish(ctx, evt)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("archive", a.Name).Msg("rips: export event not published")
	}
}

// patientIDs returns the distinct patient IDs in first-seen order.
func patientIDs(invoices []*Invoice) []uuid.UUID {
	set := NewPatientSet()
	for _, inv := range invoices {
		set.Observe(inv.PatientID)
	}
	return set.Order()
}

// IsEmpty reports whether err is the informational empty-window result.
func IsEmpty(err error) bool {
	return errors.Is(err, ErrEmptyResult)
}
