package rips

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Patient maps to the paciente table. Only the columns the export reads are
// loaded.
type Patient struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	DocumentType     *string    `db:"tipo_documento" json:"document_type,omitempty"`
	DocumentNumber   *string    `db:"documento" json:"document_number,omitempty"`
	FirstName        *string    `db:"primer_nombre" json:"first_name,omitempty"`
	SecondName       *string    `db:"segundo_nombre" json:"second_name,omitempty"`
	FirstSurname     *string    `db:"primer_apellido" json:"first_surname,omitempty"`
	SecondSurname    *string    `db:"segundo_apellido" json:"second_surname,omitempty"`
	GivenNames       *string    `db:"nombres" json:"given_names,omitempty"`
	FamilyNames      *string    `db:"apellidos" json:"family_names,omitempty"`
	BirthDate        *time.Time `db:"fecha_nacimiento" json:"birth_date,omitempty"`
	Sex              *string    `db:"genero" json:"sex,omitempty"`
	Affiliation      *string    `db:"tipo_vinculacion" json:"affiliation,omitempty"`
	InsurerCode      *string    `db:"aseguradora" json:"insurer_code,omitempty"`
	DepartmentCode   *string    `db:"codigo_departamento" json:"department_code,omitempty"`
	MunicipalityCode *string    `db:"codigo_municipio" json:"municipality_code,omitempty"`
	Zone             *string    `db:"zona" json:"zone,omitempty"`
	// Trashed patients are restorable and still exported.
	Trashed          bool       `db:"is_deleted" json:"trashed,omitempty"`
}

// Invoice maps to the factura table. Appointments are attached by the
// repository in appointment order.
type Invoice struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	Number        string          `db:"numero_factura" json:"number"`
	PatientID     uuid.UUID       `db:"paciente_id" json:"patient_id"`
	IssuedAt      time.Time       `db:"fecha_factura" json:"issued_at"`
	PeriodStart   *time.Time      `db:"fecha_inicio_periodo" json:"period_start,omitempty"`
	PeriodEnd     *time.Time      `db:"fecha_final_periodo" json:"period_end,omitempty"`
	Total         decimal.Decimal `db:"valor_total" json:"total"`
	Copayment     decimal.Decimal `db:"valor_copago" json:"copayment"`
	Commission    decimal.Decimal `db:"valor_comision" json:"commission"`
	Discounts     decimal.Decimal `db:"valor_descuentos" json:"discounts"`
	ModeratingFee decimal.Decimal `db:"valor_cuota_moderadora" json:"moderating_fee"`
	Appointments  []*Appointment  `json:"appointments,omitempty"`
}

// Appointment maps to the cita table. Only invoiced appointments reach the
// export.
type Appointment struct {
	ID                 uuid.UUID    `db:"id" json:"id"`
	InvoiceID          uuid.UUID    `db:"factura_id" json:"invoice_id"`
	Date               time.Time    `db:"fecha" json:"date"`
	ConsultationCode   *string      `db:"codigo_consulta_cups" json:"consultation_code,omitempty"`
	Purpose            *string      `db:"finalidad" json:"purpose,omitempty"`
	ExternalCause      *string      `db:"causa_externa" json:"external_cause,omitempty"`
	PrincipalDiagnosis *string      `db:"diagnostico_principal" json:"principal_diagnosis,omitempty"`
	RelatedDiagnoses   [3]*string   `json:"related_diagnoses"`
	DiagnosisType      *string      `db:"tipo_diagnostico" json:"diagnosis_type,omitempty"`
	Procedures         []*Procedure `json:"procedures,omitempty"`
}

// Procedure maps to the procedimiento table.
type Procedure struct {
	ID            uuid.UUID        `db:"id" json:"id"`
	AppointmentID uuid.UUID        `db:"cita_id" json:"appointment_id"`
	Code          *string          `db:"codigo_cups" json:"code,omitempty"`
	Diagnosis     *string          `db:"diagnostico_cie10" json:"diagnosis,omitempty"`
	Value         *decimal.Decimal `db:"valor" json:"value,omitempty"`
}

// ExportWindow is the resolved query range for one export run. From and To
// are UTC and half-open: From <= issued_at < To.
type ExportWindow struct {
	StartDate time.Time
	EndDate   time.Time
	From      time.Time
	To        time.Time
	// Raw caller input, used verbatim for the archive name.
	StartInput string
	EndInput   string
}

// Provider identifies the reporting institution in AF, AC, AP and CT lines.
type Provider struct {
	Code        string
	Name        string
	IDType      string
	ID          string
	InsurerName string
	Contract    string
	BenefitPlan string
}

// FileCode is the two-letter RIPS file type.
type FileCode string

const (
	FileInvoices      FileCode = "AF"
	FileUsers         FileCode = "US"
	FileConsultations FileCode = "AC"
	FileProcedures    FileCode = "AP"
	FileControl       FileCode = "CT"
)

// DataFiles lists the data file types in bundle and manifest order.
var DataFiles = []FileCode{FileInvoices, FileUsers, FileConsultations, FileProcedures}

// File is one serialized bundle member before packaging.
type File struct {
	Code  FileCode
	Lines []string
}

// Content joins the lines with "\n" and no trailing newline.
func (f File) Content() string {
	return strings.Join(f.Lines, "\n")
}

// Archive is the packaged bundle returned to the caller.
type Archive struct {
	Name    string
	Data    []byte
	Members []string
	Files   []File
	Counts  map[FileCode]int
	Skipped []string
	Window  ExportWindow
}
