package rips

import (
	"bytes"
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var cot = time.FixedZone("COT", -5*60*60)

var testProvider = Provider{
	Code:        "050012362501",
	Name:        "CONSULTORIO ODONTOLOGICO",
	IDType:      "NI",
	ID:          "900123456-7",
	InsurerName: "NOMBRE EPS",
	Contract:    "CONTRATO123",
	BenefitPlan: "PLANBENEFICIOS",
}

// testNow is the submission date stamped on CT lines.
var testNow = time.Date(2025, 2, 3, 12, 0, 0, 0, cot)

// mockRepo filters its invoices by the half-open window like the SQL does.
// GetPatients returns trashed patients too, as the SQL does.
type mockRepo struct {
	invoices     []*Invoice
	patients     map[uuid.UUID]*Patient
	listErr      error
	patientsErr  error
	listCalls    int
	patientCalls int
}

func newMockRepo() *mockRepo {
	return &mockRepo{patients: make(map[uuid.UUID]*Patient)}
}

func (m *mockRepo) ListInvoices(_ context.Context, from, to time.Time) ([]*Invoice, error) {
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*Invoice
	for _, inv := range m.invoices {
		if !inv.IssuedAt.Before(from) && inv.IssuedAt.Before(to) {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (m *mockRepo) GetPatients(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*Patient, error) {
	m.patientCalls++
	if m.patientsErr != nil {
		return nil, m.patientsErr
	}
	out := make(map[uuid.UUID]*Patient)
	for _, id := range ids {
		if p, ok := m.patients[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *mockRepo) addPatient(p *Patient) *Patient {
	m.patients[p.ID] = p
	return p
}

func (m *mockRepo) addInvoice(inv *Invoice) *Invoice {
	m.invoices = append(m.invoices, inv)
	return inv
}

func strp(s string) *string { return &s }

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func moneyp(s string) *decimal.Decimal {
	d := money(s)
	return &d
}

func datep(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func samplePatient() *Patient {
	return &Patient{
		ID:             uuid.New(),
		DocumentType:   strp("Cédula"),
		DocumentNumber: strp("1020304050"),
		FirstName:      strp("Ana"),
		FirstSurname:   strp("Gómez"),
		SecondSurname:  strp("Ruiz"),
		BirthDate:      datep(1990, time.May, 20),
		Sex:            strp("Mujer"),
		Affiliation:    strp("Contributivo"),
	}
}

// sampleInvoice is issued at 10:00 local on the given day with one
// appointment that carries one procedure.
func sampleInvoice(number string, patientID uuid.UUID, day int, month time.Month) *Invoice {
	inv := &Invoice{
		ID:        uuid.New(),
		Number:    number,
		PatientID: patientID,
		IssuedAt:  time.Date(2025, month, day, 10, 0, 0, 0, cot).UTC(),
		Total:     money("120000.50"),
	}
	appt := &Appointment{
		ID:        uuid.New(),
		InvoiceID: inv.ID,
		Date:      time.Date(2025, month, day, 0, 0, 0, 0, time.UTC),
	}
	appt.Procedures = []*Procedure{{
		ID:            uuid.New(),
		AppointmentID: appt.ID,
		Code:          strp("890203"),
		Diagnosis:     strp("K021"),
		Value:         moneyp("50000.75"),
	}}
	inv.Appointments = []*Appointment{appt}
	return inv
}

func newTestService(repo Repository, logBuf *bytes.Buffer) *Service {
	logger := zerolog.Nop()
	if logBuf != nil {
		logger = zerolog.New(logBuf)
	}
	svc := NewService(repo, testProvider, cot, logger)
	svc.SetClock(func() time.Time { return testNow })
	return svc
}
