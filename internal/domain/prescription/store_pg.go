package prescription

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/apperror"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/domain/inventory"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/events"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/infrastructure/postgres"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/listing"
)

var listQuery = postgres.ListQuery{
	Table: "prescriptions",
	Columns: postgres.Cols("id", "patient_id", "doctor_id", "medicine_id", "medicine_name",
		"dosage", "frequency", "quantity", "instructions", "status", "version",
		"dispensed_by", "dispensed_at", "created_at", "updated_at"),
	SearchColumns: []string{"medicine_name"},
	SortColumns: map[string]exp.Orderable{
		"created_at": goqu.C("created_at"),
		"updated_at": goqu.C("updated_at"),
		"status":     goqu.C("status"),
	},
	Tiebreak: "id",
}

func scanPrescription(row pgx.CollectableRow) (Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.PatientID, &p.DoctorID, &p.MedicineID, &p.MedicineName,
		&p.Dosage, &p.Frequency, &p.Quantity, &p.Instructions, &p.Status, &p.Version,
		&p.DispensedBy, &p.DispensedAt, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// PGStore keeps the event stream in prescription_events and the current
// state in the prescriptions table.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Save(ctx context.Context, agg *Aggregate, stock *StockWithdrawal) error {
	changes := agg.Changes()
	if len(changes) == 0 {
		return nil
	}
	err := postgres.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if stock != nil {
			if err := withdraw(ctx, tx, stock); err != nil {
				return err
			}
		}

		base := agg.Version() - len(changes)
		for i, evt := range changes {
			_, err := tx.Exec(ctx, `
				INSERT INTO prescription_events (prescription_id, version, event_id, event_type, data, actor, occurred_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				agg.ID(), base+i+1, evt.ID, string(evt.Type), evt.Data, evt.Actor, evt.OccurredAt)
			if postgres.IsUniqueViolation(err) {
				return apperror.Conflict("prescription was modified concurrently")
			}
			if err != nil {
				return fmt.Errorf("append prescription event: %w", err)
			}
			if err := postgres.AppendEvent(ctx, tx, evt); err != nil {
				return err
			}
		}
		return upsertReadModel(ctx, tx, agg.Snapshot())
	})
	if err != nil {
		return err
	}
	agg.ClearChanges()
	return nil
}

func withdraw(ctx context.Context, tx pgx.Tx, w *StockWithdrawal) error {
	it, err := inventory.LockItem(ctx, tx, w.ItemID)
	if err != nil {
		return err
	}
	if it.Quantity < w.Quantity {
		return apperror.InvalidState(fmt.Sprintf("insufficient stock: %d %s available, %d required",
			it.Quantity, it.Unit, w.Quantity))
	}
	before := it.Quantity
	it.Quantity -= w.Quantity
	if err := inventory.SaveItem(ctx, tx, it); err != nil {
		return err
	}
	if !inventory.CrossedReorderLevel(before, it.Quantity, it.ReorderLevel) {
		return nil
	}
	evt, err := inventory.LowStockEvent(ctx, it)
	if err != nil {
		return err
	}
	return postgres.AppendEvent(ctx, tx, evt)
}

func upsertReadModel(ctx context.Context, tx pgx.Tx, p *Prescription) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO prescriptions (id, patient_id, doctor_id, medicine_id, medicine_name, dosage,
			frequency, quantity, instructions, status, version, dispensed_by, dispensed_at,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			version = EXCLUDED.version,
			dispensed_by = EXCLUDED.dispensed_by,
			dispensed_at = EXCLUDED.dispensed_at,
			updated_at = EXCLUDED.updated_at`,
		p.ID, p.PatientID, p.DoctorID, p.MedicineID, p.MedicineName, p.Dosage,
		p.Frequency, p.Quantity, p.Instructions, string(p.Status), p.Version, p.DispensedBy,
		p.DispensedAt, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update prescription read model: %w", err)
	}
	return nil
}

func (s *PGStore) History(ctx context.Context, id uuid.UUID) ([]HistoryEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT version, event_id, event_type, data, actor, occurred_at
		FROM prescription_events
		WHERE prescription_id = $1
		ORDER BY version`, id)
	if err != nil {
		return nil, fmt.Errorf("query prescription events: %w", err)
	}
	history, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (HistoryEntry, error) {
		evt := &events.Event{AggregateID: id.String(), AggregateType: AggregateType}
		var h HistoryEntry
		err := row.Scan(&h.Version, &evt.ID, &evt.Type, &evt.Data, &evt.Actor, &evt.OccurredAt)
		h.Event = evt
		return h, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan prescription events: %w", err)
	}
	if len(history) == 0 {
		return nil, apperror.NotFound("prescription", id.String())
	}
	return history, nil
}

func (s *PGStore) Load(ctx context.Context, id uuid.UUID) (*Aggregate, error) {
	history, err := s.History(ctx, id)
	if err != nil {
		return nil, err
	}
	evts := make([]*events.Event, len(history))
	for i, h := range history {
		evts[i] = h.Event
	}
	agg := NewAggregate(id)
	if err := agg.LoadFromHistory(evts); err != nil {
		return nil, fmt.Errorf("rebuild prescription %s: %w", id, err)
	}
	return agg, nil
}

func (s *PGStore) Get(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, patient_id, doctor_id, medicine_id, medicine_name, dosage, frequency, quantity,
		       instructions, status, version, dispensed_by, dispensed_at, created_at, updated_at
		FROM prescriptions WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get prescription: %w", err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPrescription)
	if postgres.IsNoRows(err) {
		return nil, apperror.NotFound("prescription", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("scan prescription: %w", err)
	}
	return &p, nil
}

func (s *PGStore) List(ctx context.Context, params listing.Params, f Filter) (*listing.Page[Prescription], error) {
	var where []exp.Expression
	if f.PatientID != uuid.Nil {
		where = append(where, goqu.C("patient_id").Eq(f.PatientID.String()))
	}
	if f.DoctorID != uuid.Nil {
		where = append(where, goqu.C("doctor_id").Eq(f.DoctorID.String()))
	}
	if f.Status != "" {
		where = append(where, goqu.C("status").Eq(string(f.Status)))
	}
	return postgres.SelectPage(ctx, s.pool, listQuery, params, scanPrescription, where...)
}
