package rips

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Row is one typed line of a RIPS data file.
type Row interface {
	FileCode() FileCode
	Fields() []string
}

// InvoiceRow is one AF line.
type InvoiceRow struct {
	ProviderCode   string
	ProviderName   string
	ProviderIDType string
	ProviderID     string
	InvoiceNumber  string
	PeriodStart    time.Time
	PeriodEnd      time.Time
	InsurerCode    string
	InsurerName    string
	Contract       string
	BenefitPlan    string
	PolicyNumber   string
	Copayment      decimal.Decimal
	Commission     decimal.Decimal
	Discounts      decimal.Decimal
	Total          decimal.Decimal
}

func (InvoiceRow) FileCode() FileCode { return FileInvoices }

func (r InvoiceRow) Fields() []string {
	return []string{
		r.ProviderCode,
		r.ProviderName,
		r.ProviderIDType,
		r.ProviderID,
		r.InvoiceNumber,
		formatDate(r.PeriodStart),
		formatDate(r.PeriodEnd),
		r.InsurerCode,
		r.InsurerName,
		r.Contract,
		r.BenefitPlan,
		r.PolicyNumber,
		formatMoney(r.Copayment),
		formatMoney(r.Commission),
		formatMoney(r.Discounts),
		formatMoney(r.Total),
	}
}

// UserRow is one US line.
type UserRow struct {
	DocumentType     DocumentType
	DocumentNumber   string
	InsurerCode      string
	Affiliation      AffiliationCode
	FirstSurname     string
	SecondSurname    string
	FirstName        string
	SecondName       string
	Age              int
	Sex              SexCode
	DepartmentCode   string
	MunicipalityCode string
	Zone             ZoneCode
}

func (UserRow) FileCode() FileCode { return FileUsers }

func (r UserRow) Fields() []string {
	return []string{
		string(r.DocumentType),
		r.DocumentNumber,
		r.InsurerCode,
		string(r.Affiliation),
		r.FirstSurname,
		r.SecondSurname,
		r.FirstName,
		r.SecondName,
		strconv.Itoa(r.Age),
		string(r.Sex),
		r.DepartmentCode,
		r.MunicipalityCode,
		string(r.Zone),
	}
}

// ConsultationRow is one AC line.
type ConsultationRow struct {
	InvoiceNumber      string
	ProviderCode       string
	DocumentType       DocumentType
	DocumentNumber     string
	Date               time.Time
	Authorization      string
	ConsultationCode   string
	Purpose            string
	ExternalCause      string
	PrincipalDiagnosis string
	RelatedDiagnoses   [3]string
	DiagnosisType      string
	Value              decimal.Decimal
	ModeratingFee      decimal.Decimal
	NetValue           decimal.Decimal
}

func (ConsultationRow) FileCode() FileCode { return FileConsultations }

func (r ConsultationRow) Fields() []string {
	return []string{
		r.InvoiceNumber,
		r.ProviderCode,
		string(r.DocumentType),
		r.DocumentNumber,
		formatDate(r.Date),
		r.Authorization,
		r.ConsultationCode,
		r.Purpose,
		r.ExternalCause,
		r.PrincipalDiagnosis,
		r.RelatedDiagnoses[0],
		r.RelatedDiagnoses[1],
		r.RelatedDiagnoses[2],
		r.DiagnosisType,
		formatMoney(r.Value),
		formatMoney(r.ModeratingFee),
		formatMoney(r.NetValue),
	}
}

// ProcedureRow is one AP line.
type ProcedureRow struct {
	InvoiceNumber    string
	ProviderCode     string
	DocumentType     DocumentType
	DocumentNumber   string
	Date             time.Time
	Authorization    string
	ProcedureCode    string
	Setting          string
	Purpose          string
	Staff            string
	Diagnosis        string
	RelatedDiagnosis string
	Complication     string
	Modality         string
	Value            decimal.Decimal
}

func (ProcedureRow) FileCode() FileCode { return FileProcedures }

func (r ProcedureRow) Fields() []string {
	return []string{
		r.InvoiceNumber,
		r.ProviderCode,
		string(r.DocumentType),
		r.DocumentNumber,
		formatDate(r.Date),
		r.Authorization,
		r.ProcedureCode,
		r.Setting,
		r.Purpose,
		r.Staff,
		r.Diagnosis,
		r.RelatedDiagnosis,
		r.Complication,
		r.Modality,
		formatMoney(r.Value),
	}
}

// SerializeLine renders one row as a comma-delimited line. Every column is
// always present.
func SerializeLine(r Row) string {
	fields := r.Fields()
	for i, f := range fields {
		fields[i] = sanitize(f)
	}
	return strings.Join(fields, ",")
}

// SerializeRows renders rows in order.
func SerializeRows[T Row](rows []T) []string {
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, SerializeLine(r))
	}
	return lines
}

var fieldReplacer = strings.NewReplacer(",", " ", "\r\n", " ", "\r", " ", "\n", " ")

// sanitize keeps free text from breaking the column layout.
func sanitize(s string) string {
	if !strings.ContainsAny(s, ",\r\n") {
		return s
	}
	return strings.Join(strings.Fields(fieldReplacer.Replace(s)), " ")
}

// formatMoney truncates toward zero; the authority expects unscaled integers
// and truncation matches the historical submissions.
func formatMoney(d decimal.Decimal) string {
	return d.Truncate(0).String()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// text dereferences an optional string, trimming surrounding space.
func text(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
