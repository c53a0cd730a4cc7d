package rips

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Rows holds the typed rows of one export run, in emission order.
type Rows struct {
	Invoices      []InvoiceRow
	Users         []UserRow
	Consultations []ConsultationRow
	Procedures    []ProcedureRow
	// Skipped lists invoice numbers dropped because their patient did not
	// resolve.
	Skipped []string
}

// Extractor walks invoice → appointment → procedure and produces rows.
type Extractor struct {
	Provider Provider
	Location *time.Location
	Today    time.Time
	Logger   zerolog.Logger
}

// Extract emits, per invoice in the given order: the patient's US row on
// first sight, one AF row, one AC row per appointment and one AP row per
// procedure. Invoices whose patient is missing from patients are skipped
// whole.
func (x *Extractor) Extract(invoices []*Invoice, patients map[uuid.UUID]*Patient) *Rows {
	rows := &Rows{}
	seen := NewPatientSet()
	loc := x.Location
	if loc == nil {
		loc = time.UTC
	}

	for _, inv := range invoices {
		p, ok := patients[inv.PatientID]
		if !ok || p == nil {
			x.Logger.Warn().
				Str("invoice_number", inv.Number).
				Str("invoice_id", inv.ID.String()).
				Str("patient_id", inv.PatientID.String()).
				Msg("rips: invoice skipped, patient not found")
			rows.Skipped = append(rows.Skipped, inv.Number)
			continue
		}

		docType := NormalizeDocumentType(p.DocumentType)
		docNumber := text(p.DocumentNumber)
		insurer := codeOr(p.InsurerCode, DefaultInsurerCode)

		if seen.Observe(p.ID) {
			rows.Users = append(rows.Users, x.userRow(p, docType, docNumber, insurer))
		}

		rows.Invoices = append(rows.Invoices, x.invoiceRow(inv, insurer, loc))

		for _, appt := range inv.Appointments {
			if appt == nil {
				continue
			}
			rows.Consultations = append(rows.Consultations, x.consultationRow(inv, appt, docType, docNumber))

			for _, proc := range appt.Procedures {
				if proc == nil {
					continue
				}
				rows.Procedures = append(rows.Procedures, x.procedureRow(inv, appt, proc, docType, docNumber))
			}
		}
	}

	x.Logger.Debug().
		Int("invoices", len(rows.Invoices)).
		Int("users", len(rows.Users)).
		Int("consultations", len(rows.Consultations)).
		Int("procedures", len(rows.Procedures)).
		Int("skipped", len(rows.Skipped)).
		Msg("rips: rows extracted")

	return rows
}

func (x *Extractor) userRow(p *Patient, docType DocumentType, docNumber, insurer string) UserRow {
	names := SplitNames(p)
	return UserRow{
		DocumentType:     docType,
		DocumentNumber:   docNumber,
		InsurerCode:      insurer,
		Affiliation:      NormalizeAffiliation(p.Affiliation),
		FirstSurname:     names.FirstSurname,
		SecondSurname:    names.SecondSurname,
		FirstName:        names.FirstName,
		SecondName:       names.SecondName,
		Age:              AgeYears(p.BirthDate, x.Today),
		Sex:              NormalizeSex(p.Sex),
		DepartmentCode:   codeOr(p.DepartmentCode, DefaultDepartmentCode),
		MunicipalityCode: codeOr(p.MunicipalityCode, DefaultMunicipalityCode),
		Zone:             NormalizeZone(p.Zone),
	}
}

func (x *Extractor) invoiceRow(inv *Invoice, insurer string, loc *time.Location) InvoiceRow {
	issued := inv.IssuedAt.In(loc)
	start, end := issued, issued
	if inv.PeriodStart != nil {
		start = *inv.PeriodStart
	}
	if inv.PeriodEnd != nil {
		end = *inv.PeriodEnd
	}
	return InvoiceRow{
		ProviderCode:   x.Provider.Code,
		ProviderName:   x.Provider.Name,
		ProviderIDType: x.Provider.IDType,
		ProviderID:     x.Provider.ID,
		InvoiceNumber:  inv.Number,
		PeriodStart:    start,
		PeriodEnd:      end,
		InsurerCode:    insurer,
		InsurerName:    x.Provider.InsurerName,
		Contract:       x.Provider.Contract,
		BenefitPlan:    x.Provider.BenefitPlan,
		Copayment:      inv.Copayment,
		Commission:     inv.Commission,
		Discounts:      inv.Discounts,
		Total:          inv.Total,
	}
}

// consultationRow bills each consultation at the invoice total, as the
// historical export did; appointments carry no value of their own.
func (x *Extractor) consultationRow(inv *Invoice, a *Appointment, docType DocumentType, docNumber string) ConsultationRow {
	return ConsultationRow{
		InvoiceNumber:      inv.Number,
		ProviderCode:       x.Provider.Code,
		DocumentType:       docType,
		DocumentNumber:     docNumber,
		Date:               a.Date,
		ConsultationCode:   codeOr(a.ConsultationCode, DefaultConsultationCode),
		Purpose:            codeOr(a.Purpose, DefaultConsultPurpose),
		ExternalCause:      codeOr(a.ExternalCause, DefaultExternalCause),
		PrincipalDiagnosis: codeOr(a.PrincipalDiagnosis, DefaultPrincipalDiagnosis),
		RelatedDiagnoses: [3]string{
			codeOr(a.RelatedDiagnoses[0], ""),
			codeOr(a.RelatedDiagnoses[1], ""),
			codeOr(a.RelatedDiagnoses[2], ""),
		},
		DiagnosisType: NormalizeDiagnosisType(a.DiagnosisType),
		Value:         inv.Total,
		ModeratingFee: inv.ModeratingFee,
		NetValue:      inv.Total,
	}
}

func (x *Extractor) procedureRow(inv *Invoice, a *Appointment, p *Procedure, docType DocumentType, docNumber string) ProcedureRow {
	value := decimal.Zero
	if p.Value != nil {
		value = *p.Value
	}
	return ProcedureRow{
		InvoiceNumber:  inv.Number,
		ProviderCode:   x.Provider.Code,
		DocumentType:   docType,
		DocumentNumber: docNumber,
		Date:           a.Date,
		ProcedureCode:  codeOr(p.Code, ""),
		Setting:        ProcedureSetting,
		Purpose:        ProcedurePurpose,
		Diagnosis:      codeOr(p.Diagnosis, ""),
		Modality:       ProcedureModality,
		Value:          value,
	}
}

// Files serializes the rows into the four data files in manifest order.
// Empty files are included; the manifest step drops them.
func (r *Rows) Files() []File {
	lines := map[FileCode][]string{
		FileInvoices:      SerializeRows(r.Invoices),
		FileUsers:         SerializeRows(r.Users),
		FileConsultations: SerializeRows(r.Consultations),
		FileProcedures:    SerializeRows(r.Procedures),
	}
	files := make([]File, 0, len(DataFiles))
	for _, code := range DataFiles {
		files = append(files, File{Code: code, Lines: lines[code]})
	}
	return files
}
