package rips

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/rueisp/odontologia/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

// Money columns are read as text so no precision is lost on the way to
// decimal.Decimal.
const invoiceCols = `id, numero_factura, paciente_id, fecha_factura,
	fecha_inicio_periodo, fecha_final_periodo,
	valor_total::text, valor_copago::text, valor_comision::text,
	valor_descuentos::text, valor_cuota_moderadora::text`

// Appointments and patients are read whatever their trash state. A trashed
// patient or appointment is still billed on its invoice; only a permanent
// delete removes it, and that removes the invoice with it. Rows without a
// meaningful key order follow insertion (created_at) with id as the last
// tiebreak.
const (
	appointmentsQuery = `
		SELECT id, factura_id, fecha, codigo_consulta_cups, finalidad, causa_externa,
			diagnostico_principal, diagnostico_relacionado1, diagnostico_relacionado2,
			diagnostico_relacionado3, tipo_diagnostico
		FROM cita
		WHERE factura_id = ANY($1)
		ORDER BY fecha ASC, hora ASC, created_at ASC, id ASC`

	proceduresQuery = `
		SELECT id, cita_id, codigo_cups, diagnostico_cie10, valor::text
		FROM procedimiento
		WHERE cita_id = ANY($1)
		ORDER BY created_at ASC, id ASC`

	patientsQuery = `
		SELECT id, tipo_documento, documento, primer_nombre, segundo_nombre,
			primer_apellido, segundo_apellido, nombres, apellidos, fecha_nacimiento,
			genero, tipo_vinculacion, aseguradora, codigo_departamento, codigo_municipio, zona,
			is_deleted
		FROM paciente
		WHERE id = ANY($1)`
)

func (r *repoPG) ListInvoices(ctx context.Context, from, to time.Time) ([]*Invoice, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+invoiceCols+`
		FROM factura
		WHERE fecha_factura >= $1 AND fecha_factura < $2 AND NOT is_deleted
		ORDER BY fecha_factura ASC, numero_factura ASC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*Invoice
	byID := make(map[uuid.UUID]*Invoice)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
		byID[inv.ID] = inv
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoices: %w", err)
	}
	if len(invoices) == 0 {
		return nil, nil
	}

	if err := r.attachAppointments(ctx, byID); err != nil {
		return nil, err
	}
	return invoices, nil
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	var total, copay, commission, discounts, fee *string
	if err := row.Scan(&inv.ID, &inv.Number, &inv.PatientID, &inv.IssuedAt,
		&inv.PeriodStart, &inv.PeriodEnd,
		&total, &copay, &commission, &discounts, &fee); err != nil {
		return nil, fmt.Errorf("scan invoice: %w", err)
	}
	inv.IssuedAt = inv.IssuedAt.UTC()

	for _, m := range []struct {
		dst *decimal.Decimal
		src *string
	}{
		{&inv.Total, total},
		{&inv.Copayment, copay},
		{&inv.Commission, commission},
		{&inv.Discounts, discounts},
		{&inv.ModeratingFee, fee},
	} {
		d, err := parseMoney(m.src)
		if err != nil {
			return nil, fmt.Errorf("invoice %s: %w", inv.Number, err)
		}
		if d != nil {
			*m.dst = *d
		}
	}
	return &inv, nil
}

func (r *repoPG) attachAppointments(ctx context.Context, invoices map[uuid.UUID]*Invoice) error {
	ids := make([]uuid.UUID, 0, len(invoices))
	for id := range invoices {
		ids = append(ids, id)
	}

	rows, err := r.conn(ctx).Query(ctx, appointmentsQuery, ids)
	if err != nil {
		return fmt.Errorf("query appointments: %w", err)
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]*Appointment)
	var apptIDs []uuid.UUID
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(&a.ID, &a.InvoiceID, &a.Date, &a.ConsultationCode, &a.Purpose, &a.ExternalCause,
			&a.PrincipalDiagnosis, &a.RelatedDiagnoses[0], &a.RelatedDiagnoses[1],
			&a.RelatedDiagnoses[2], &a.DiagnosisType); err != nil {
			return fmt.Errorf("scan appointment: %w", err)
		}
		inv := invoices[a.InvoiceID]
		inv.Appointments = append(inv.Appointments, &a)
		byID[a.ID] = &a
		apptIDs = append(apptIDs, a.ID)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate appointments: %w", err)
	}
	if len(apptIDs) == 0 {
		return nil
	}

	return r.attachProcedures(ctx, byID, apptIDs)
}

func (r *repoPG) attachProcedures(ctx context.Context, appts map[uuid.UUID]*Appointment, ids []uuid.UUID) error {
	rows, err := r.conn(ctx).Query(ctx, proceduresQuery, ids)
	if err != nil {
		return fmt.Errorf("query procedures: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p Procedure
		var value *string
		if err := rows.Scan(&p.ID, &p.AppointmentID, &p.Code, &p.Diagnosis, &value); err != nil {
			return fmt.Errorf("scan procedure: %w", err)
		}
		if p.Value, err = parseMoney(value); err != nil {
			return fmt.Errorf("procedure %s: %w", p.ID, err)
		}
		a := appts[p.AppointmentID]
		a.Procedures = append(a.Procedures, &p)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate procedures: %w", err)
	}
	return nil
}

func (r *repoPG) GetPatients(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Patient, error) {
	out := make(map[uuid.UUID]*Patient, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.conn(ctx).Query(ctx, patientsQuery, ids)
	if err != nil {
		return nil, fmt.Errorf("query patients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p Patient
		if err := rows.Scan(&p.ID, &p.DocumentType, &p.DocumentNumber, &p.FirstName, &p.SecondName,
			&p.FirstSurname, &p.SecondSurname, &p.GivenNames, &p.FamilyNames, &p.BirthDate,
			&p.Sex, &p.Affiliation, &p.InsurerCode, &p.DepartmentCode, &p.MunicipalityCode, &p.Zone,
			&p.Trashed); err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		out[p.ID] = &p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patients: %w", err)
	}
	return out, nil
}

func parseMoney(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", *s, err)
	}
	return &d, nil
}
