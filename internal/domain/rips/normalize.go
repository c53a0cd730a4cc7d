package rips

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DocumentType is a RIPS identification document code.
type DocumentType string

const (
	DocCitizenID        DocumentType = "CC"
	DocForeignerID      DocumentType = "CE"
	DocIdentityCard     DocumentType = "TI"
	DocCivilRegistry    DocumentType = "RC"
	DocPassport         DocumentType = "PA"
	DocAdultNoID        DocumentType = "AS"
	DocMinorNoID        DocumentType = "MS"
	DocUniqueNumber     DocumentType = "NU"
	DocSpecialPermit    DocumentType = "PE"
	DefaultDocumentType              = DocCitizenID
)

var documentTypeSynonyms = map[string]DocumentType{
	"CC":                        DocCitizenID,
	"CEDULA":                    DocCitizenID,
	"CEDULA DE CIUDADANIA":      DocCitizenID,
	"CEDULA CIUDADANIA":         DocCitizenID,
	"CE":                        DocForeignerID,
	"CEDULA DE EXTRANJERIA":     DocForeignerID,
	"CEDULA EXTRANJERIA":        DocForeignerID,
	"TI":                        DocIdentityCard,
	"TARJETA DE IDENTIDAD":      DocIdentityCard,
	"RC":                        DocCivilRegistry,
	"REGISTRO CIVIL":            DocCivilRegistry,
	"PA":                        DocPassport,
	"PASAPORTE":                 DocPassport,
	"AS":                        DocAdultNoID,
	"ADULTO SIN IDENTIFICACION": DocAdultNoID,
	"MS":                        DocMinorNoID,
	"MENOR SIN IDENTIFICACION":  DocMinorNoID,
	"NU":                        DocUniqueNumber,
	"NUMERO UNICO":              DocUniqueNumber,
	"PE":                        DocSpecialPermit,
	"PERMISO ESPECIAL":          DocSpecialPermit,
}

// SexCode is the RIPS sex column value.
type SexCode string

const (
	SexMale   SexCode = "1"
	SexFemale SexCode = "2"
	// DefaultSex applies to missing or unknown input. Masculine matches the
	// historical export and still needs confirmation from domain owners.
	DefaultSex = SexMale
)

var sexSynonyms = map[string]SexCode{
	"1":         SexMale,
	"M":         SexMale,
	"H":         SexMale,
	"MASCULINO": SexMale,
	"HOMBRE":    SexMale,
	"MALE":      SexMale,
	"2":         SexFemale,
	"F":         SexFemale,
	"FEMENINO":  SexFemale,
	"MUJER":     SexFemale,
	"FEMALE":    SexFemale,
}

// AffiliationCode is the RIPS user type (health regime).
type AffiliationCode string

const (
	AffiliationContributory AffiliationCode = "1"
	AffiliationSubsidized   AffiliationCode = "2"
	AffiliationLinked       AffiliationCode = "3"
	AffiliationPrivate      AffiliationCode = "4"
	DefaultAffiliation                      = AffiliationPrivate
)

var affiliationSynonyms = map[string]AffiliationCode{
	"1":            AffiliationContributory,
	"CONTRIBUTIVO": AffiliationContributory,
	"2":            AffiliationSubsidized,
	"SUBSIDIADO":   AffiliationSubsidized,
	"3":            AffiliationLinked,
	"VINCULADO":    AffiliationLinked,
	"4":            AffiliationPrivate,
	"PARTICULAR":   AffiliationPrivate,
}

// ZoneCode is the residence zone.
type ZoneCode string

const (
	ZoneUrban   ZoneCode = "U"
	ZoneRural   ZoneCode = "R"
	DefaultZone          = ZoneUrban
)

var zoneSynonyms = map[string]ZoneCode{
	"U":      ZoneUrban,
	"URBANA": ZoneUrban,
	"URBANO": ZoneUrban,
	"R":      ZoneRural,
	"RURAL":  ZoneRural,
}

// Defaults used when the record carries no value.
const (
	DefaultInsurerCode        = "EPS001"
	DefaultDepartmentCode     = "05"
	DefaultMunicipalityCode   = "05001"
	DefaultConsultationCode   = "890201"
	DefaultConsultPurpose     = "10"
	DefaultExternalCause      = "13"
	DefaultPrincipalDiagnosis = "K029"
	DefaultDiagnosisType      = "1"
	ProcedureSetting          = "1"
	ProcedurePurpose          = "1"
	ProcedureModality         = "1"
)

var foldAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// canonical trims, removes accents, collapses inner whitespace and
// upper-cases. nil and blank input yield "".
func canonical(s *string) string {
	if s == nil {
		return ""
	}
	folded, _, err := transform.String(foldAccents, *s)
	if err != nil {
		folded = *s
	}
	return strings.ToUpper(strings.Join(strings.Fields(folded), " "))
}

// NormalizeDocumentType maps free text to a document code, CC by default.
func NormalizeDocumentType(s *string) DocumentType {
	if code, ok := documentTypeSynonyms[canonical(s)]; ok {
		return code
	}
	return DefaultDocumentType
}

// NormalizeSex maps free text to the sex code, DefaultSex otherwise.
func NormalizeSex(s *string) SexCode {
	if code, ok := sexSynonyms[canonical(s)]; ok {
		return code
	}
	return DefaultSex
}

// NormalizeAffiliation maps free text to a regime code. Unknown and missing
// values are reported as Particular.
func NormalizeAffiliation(s *string) AffiliationCode {
	if code, ok := affiliationSynonyms[canonical(s)]; ok {
		return code
	}
	return DefaultAffiliation
}

// NormalizeZone maps free text to U or R, urban by default.
func NormalizeZone(s *string) ZoneCode {
	if code, ok := zoneSynonyms[canonical(s)]; ok {
		return code
	}
	return DefaultZone
}

// NormalizeDiagnosisType accepts 1 (impresión diagnóstica), 2 (confirmado
// nuevo) and 3 (confirmado repetido).
func NormalizeDiagnosisType(s *string) string {
	switch c := canonical(s); c {
	case "1", "2", "3":
		return c
	case "IMPRESION DIAGNOSTICA":
		return "1"
	case "CONFIRMADO NUEVO":
		return "2"
	case "CONFIRMADO REPETIDO":
		return "3"
	}
	return DefaultDiagnosisType
}

// codeOr returns the trimmed, upper-cased value or def when blank. Used for
// catalogue codes (CUPS, CIE-10, DIVIPOLA) that are stored already coded.
func codeOr(s *string, def string) string {
	if c := canonical(s); c != "" {
		return c
	}
	return def
}

// NameSlots holds the four RIPS name columns.
type NameSlots struct {
	FirstSurname  string
	SecondSurname string
	FirstName     string
	SecondName    string
}

// SplitNames returns the patient's name slots. Records created before the
// names were split only carry the concatenated fields; for those the first
// word fills slot one and the remainder slot two.
func SplitNames(p *Patient) NameSlots {
	slots := NameSlots{
		FirstSurname:  text(p.FirstSurname),
		SecondSurname: text(p.SecondSurname),
		FirstName:     text(p.FirstName),
		SecondName:    text(p.SecondName),
	}
	if slots.FirstName == "" && slots.SecondName == "" {
		slots.FirstName, slots.SecondName = splitFirstWord(text(p.GivenNames))
	}
	if slots.FirstSurname == "" && slots.SecondSurname == "" {
		slots.FirstSurname, slots.SecondSurname = splitFirstWord(text(p.FamilyNames))
	}
	return slots
}

func splitFirstWord(s string) (string, string) {
	parts := strings.Fields(s)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

// AgeYears returns whole years between birth and today counted as
// elapsed days / 365. A missing birth date yields 0.
func AgeYears(birth *time.Time, today time.Time) int {
	if birth == nil {
		return 0
	}
	b := time.Date(birth.Year(), birth.Month(), birth.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	days := int(t.Sub(b).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days / 365
}
