package rips

import (
	"testing"
	"time"
)

func TestNormalizeDocumentType(t *testing.T) {
	tests := []struct {
		in   *string
		want DocumentType
	}{
		{nil, DocCitizenID},
		{strp(""), DocCitizenID},
		{strp("CC"), DocCitizenID},
		{strp("cédula"), DocCitizenID},
		{strp("  Cedula  de   Ciudadanía "), DocCitizenID},
		{strp("Tarjeta de Identidad"), DocIdentityCard},
		{strp("ti"), DocIdentityCard},
		{strp("Registro Civil"), DocCivilRegistry},
		{strp("Cédula de Extranjería"), DocForeignerID},
		{strp("Pasaporte"), DocPassport},
		{strp("Menor sin identificación"), DocMinorNoID},
		{strp("PE"), DocSpecialPermit},
		{strp("licencia de conducción"), DocCitizenID},
	}
	for _, tt := range tests {
		if got := NormalizeDocumentType(tt.in); got != tt.want {
			t.Errorf("NormalizeDocumentType(%v) = %s, want %s", deref(tt.in), got, tt.want)
		}
	}
}

func TestNormalizeSex(t *testing.T) {
	tests := []struct {
		in   *string
		want SexCode
	}{
		{strp("Hombre"), SexMale},
		{strp("masculino"), SexMale},
		{strp("M"), SexMale},
		{strp("Mujer"), SexFemale},
		{strp("FEMENINO"), SexFemale},
		{strp("f"), SexFemale},
		{strp("2"), SexFemale},
		{nil, DefaultSex},
		{strp("otro"), DefaultSex},
	}
	for _, tt := range tests {
		if got := NormalizeSex(tt.in); got != tt.want {
			t.Errorf("NormalizeSex(%v) = %s, want %s", deref(tt.in), got, tt.want)
		}
	}
	if DefaultSex != "1" {
		t.Errorf("documented default sex is 1, got %s", DefaultSex)
	}
}

func TestNormalizeAffiliation(t *testing.T) {
	tests := []struct {
		in   *string
		want AffiliationCode
	}{
		{strp("Contributivo"), AffiliationContributory},
		{strp("SUBSIDIADO"), AffiliationSubsidized},
		{strp("vinculado"), AffiliationLinked},
		{strp("Particular"), AffiliationPrivate},
		{strp("3"), AffiliationLinked},
		{nil, AffiliationPrivate},
		{strp("prepagada"), AffiliationPrivate},
	}
	for _, tt := range tests {
		if got := NormalizeAffiliation(tt.in); got != tt.want {
			t.Errorf("NormalizeAffiliation(%v) = %s, want %s", deref(tt.in), got, tt.want)
		}
	}
}

func TestNormalizeZoneAndDiagnosisType(t *testing.T) {
	if got := NormalizeZone(strp("Rural")); got != ZoneRural {
		t.Errorf("expected R, got %s", got)
	}
	if got := NormalizeZone(nil); got != ZoneUrban {
		t.Errorf("expected U, got %s", got)
	}
	for in, want := range map[string]string{
		"2":                     "2",
		"Confirmado Repetido":   "3",
		"impresión diagnóstica": "1",
		"x":                     "1",
	} {
		if got := NormalizeDiagnosisType(strp(in)); got != want {
			t.Errorf("NormalizeDiagnosisType(%q) = %s, want %s", in, got, want)
		}
	}
	if got := NormalizeDiagnosisType(nil); got != DefaultDiagnosisType {
		t.Errorf("expected default diagnosis type, got %s", got)
	}
}

func TestCodeOr(t *testing.T) {
	if got := codeOr(strp(" k021 "), "K029"); got != "K021" {
		t.Errorf("expected K021, got %s", got)
	}
	if got := codeOr(strp("  "), "K029"); got != "K029" {
		t.Errorf("expected default K029, got %s", got)
	}
	if got := codeOr(nil, ""); got != "" {
		t.Errorf("expected empty, got %s", got)
	}
}

func TestSplitNames(t *testing.T) {
	p := &Patient{
		FirstName:     strp("Ana"),
		SecondName:    strp("María"),
		FirstSurname:  strp("Gómez"),
		SecondSurname: strp("Ruiz"),
		GivenNames:    strp("ignored"),
	}
	got := SplitNames(p)
	want := NameSlots{FirstSurname: "Gómez", SecondSurname: "Ruiz", FirstName: "Ana", SecondName: "María"}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}

	legacy := &Patient{
		GivenNames:  strp("  Juan  Carlos Andrés "),
		FamilyNames: strp("Pérez"),
	}
	got = SplitNames(legacy)
	want = NameSlots{FirstSurname: "Pérez", FirstName: "Juan", SecondName: "Carlos Andrés"}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}

	if got := SplitNames(&Patient{}); got != (NameSlots{}) {
		t.Errorf("expected empty slots, got %+v", got)
	}
}

func TestAgeYears(t *testing.T) {
	today := time.Date(2025, 2, 3, 12, 0, 0, 0, cot)
	tests := []struct {
		name  string
		birth *time.Time
		want  int
	}{
		{"missing", nil, 0},
		{"adult", datep(1990, time.May, 20), 34},
		{"newborn", datep(2025, time.January, 1), 0},
		{"future", datep(2026, time.January, 1), 0},
	}
	for _, tt := range tests {
		if got := AgeYears(tt.birth, today); got != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.name, tt.want, got)
		}
	}
}

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}
