package rips

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func newTestExtractor(buf *bytes.Buffer) *Extractor {
	logger := zerolog.Nop()
	if buf != nil {
		logger = zerolog.New(buf)
	}
	return &Extractor{Provider: testProvider, Location: cot, Today: testNow, Logger: logger}
}

func TestExtract_SingleInvoice(t *testing.T) {
	p := samplePatient()
	inv := sampleInvoice("FV-0001", p.ID, 15, 1)

	rows := newTestExtractor(nil).Extract([]*Invoice{inv}, map[uuid.UUID]*Patient{p.ID: p})
	files := rows.Files()

	want := map[FileCode]string{
		FileInvoices:      "050012362501,CONSULTORIO ODONTOLOGICO,NI,900123456-7,FV-0001,15/01/2025,15/01/2025,EPS001,NOMBRE EPS,CONTRATO123,PLANBENEFICIOS,,0,0,0,120000",
		FileUsers:         "CC,1020304050,EPS001,1,Gómez,Ruiz,Ana,,34,2,05,05001,U",
		FileConsultations: "FV-0001,050012362501,CC,1020304050,15/01/2025,,890201,10,13,K029,,,,1,120000,0,120000",
		FileProcedures:    "FV-0001,050012362501,CC,1020304050,15/01/2025,,890203,1,1,,K021,,,1,50000",
	}
	for _, f := range files {
		if len(f.Lines) != 1 {
			t.Fatalf("%s: expected 1 line, got %d", f.Code, len(f.Lines))
		}
		if f.Lines[0] != want[f.Code] {
			t.Errorf("%s:\n got  %q\n want %q", f.Code, f.Lines[0], want[f.Code])
		}
	}
}

func TestExtract_FileOrder(t *testing.T) {
	files := (&Rows{}).Files()
	if len(files) != len(DataFiles) {
		t.Fatalf("expected %d files, got %d", len(DataFiles), len(files))
	}
	for i, code := range DataFiles {
		if files[i].Code != code {
			t.Errorf("position %d: expected %s, got %s", i, code, files[i].Code)
		}
	}
}

func TestExtract_PatientDeduplicated(t *testing.T) {
	p := samplePatient()
	invoices := []*Invoice{
		sampleInvoice("FV-0001", p.ID, 10, 1),
		sampleInvoice("FV-0002", p.ID, 20, 1),
	}
	rows := newTestExtractor(nil).Extract(invoices, map[uuid.UUID]*Patient{p.ID: p})
	if len(rows.Users) != 1 {
		t.Errorf("expected 1 US row, got %d", len(rows.Users))
	}
	if len(rows.Invoices) != 2 {
		t.Errorf("expected 2 AF rows, got %d", len(rows.Invoices))
	}
	if len(rows.Consultations) != 2 || len(rows.Procedures) != 2 {
		t.Errorf("expected 2 AC and 2 AP rows, got %d and %d", len(rows.Consultations), len(rows.Procedures))
	}
}

func TestExtract_UsersInFirstSeenOrder(t *testing.T) {
	a, b := samplePatient(), samplePatient()
	a.DocumentNumber, b.DocumentNumber = strp("111"), strp("222")
	invoices := []*Invoice{
		sampleInvoice("1", b.ID, 2, 1),
		sampleInvoice("2", a.ID, 3, 1),
		sampleInvoice("3", b.ID, 4, 1),
	}
	rows := newTestExtractor(nil).Extract(invoices, map[uuid.UUID]*Patient{a.ID: a, b.ID: b})
	if len(rows.Users) != 2 || rows.Users[0].DocumentNumber != "222" || rows.Users[1].DocumentNumber != "111" {
		t.Errorf("unexpected user order %+v", rows.Users)
	}
}

func TestExtract_NoAppointments(t *testing.T) {
	p := samplePatient()
	inv := sampleInvoice("FV-0001", p.ID, 15, 1)
	inv.Appointments = nil

	rows := newTestExtractor(nil).Extract([]*Invoice{inv}, map[uuid.UUID]*Patient{p.ID: p})
	if len(rows.Invoices) != 1 || len(rows.Users) != 1 {
		t.Fatalf("expected AF and US rows, got %d and %d", len(rows.Invoices), len(rows.Users))
	}
	if len(rows.Consultations) != 0 || len(rows.Procedures) != 0 {
		t.Errorf("expected no AC or AP rows, got %d and %d", len(rows.Consultations), len(rows.Procedures))
	}
}

func TestExtract_OrphanSkipped(t *testing.T) {
	p := samplePatient()
	good := sampleInvoice("FV-0001", p.ID, 10, 1)
	orphan := sampleInvoice("FV-0002", uuid.New(), 11, 1)

	var buf bytes.Buffer
	rows := newTestExtractor(&buf).Extract([]*Invoice{orphan, good}, map[uuid.UUID]*Patient{p.ID: p})

	if len(rows.Invoices) != 1 || rows.Invoices[0].InvoiceNumber != "FV-0001" {
		t.Fatalf("expected only FV-0001, got %+v", rows.Invoices)
	}
	if len(rows.Consultations) != 1 || len(rows.Procedures) != 1 {
		t.Errorf("orphan invoice rows leaked: AC=%d AP=%d", len(rows.Consultations), len(rows.Procedures))
	}
	if len(rows.Skipped) != 1 || rows.Skipped[0] != "FV-0002" {
		t.Errorf("expected FV-0002 skipped, got %v", rows.Skipped)
	}
	if !strings.Contains(buf.String(), "patient not found") || !strings.Contains(buf.String(), "FV-0002") {
		t.Errorf("expected a structured warning, got %s", buf.String())
	}
}

func TestExtract_PeriodAndDefaults(t *testing.T) {
	p := &Patient{ID: uuid.New(), InsurerCode: strp("eps037"), DepartmentCode: strp("11"), MunicipalityCode: strp("11001"), Zone: strp("rural")}
	inv := sampleInvoice("FV-9", p.ID, 15, 1)
	inv.PeriodStart = datep(2025, 1, 1)
	inv.PeriodEnd = datep(2025, 1, 31)
	inv.Appointments[0].ConsultationCode = strp("890203")
	inv.Appointments[0].PrincipalDiagnosis = strp("k021")
	inv.Appointments[0].RelatedDiagnoses[1] = strp("K003")
	inv.Appointments[0].Procedures[0].Value = nil

	rows := newTestExtractor(nil).Extract([]*Invoice{inv}, map[uuid.UUID]*Patient{p.ID: p})

	af := rows.Invoices[0].Fields()
	if af[5] != "01/01/2025" || af[6] != "31/01/2025" || af[7] != "EPS037" {
		t.Errorf("unexpected AF period/insurer: %v", af[5:8])
	}
	us := rows.Users[0].Fields()
	if us[0] != "CC" || us[3] != "4" || us[8] != "0" || us[9] != "1" || us[10] != "11" || us[11] != "11001" || us[12] != "R" {
		t.Errorf("unexpected US defaults: %v", us)
	}
	ac := rows.Consultations[0].Fields()
	if ac[6] != "890203" || ac[9] != "K021" || ac[10] != "" || ac[11] != "K003" {
		t.Errorf("unexpected AC codes: %v", ac)
	}
	ap := rows.Procedures[0].Fields()
	if ap[14] != "0" {
		t.Errorf("missing procedure value must render 0, got %q", ap[14])
	}
}
