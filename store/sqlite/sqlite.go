/*
Package sqlite provides a SQLite-backed implementation of the storage interface.

PURPOSE:
  Implements claim.Store using SQLite. In production, the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

ATOMIC REPLACEMENT:
  ApplyReplacement wraps the calculation diff (delete stale, insert fresh,
  with detail lines) in one database transaction, honoring the contract
  that a failure partway through must never leave a mix of stale and fresh
  "calculated" indemnifications visible.

SUB-STATUS INJECTION:
  SaveClaim re-derives the claim sub-status before writing, so the stored
  value is never independently authoritative.

KEY TABLES:
  claims:                   Claim headers
  losses:                   Declared losses, with relapse links
  delivered_services:       Loss x benefit pairings
  indemnifications:         Compensation records
  indemnification_details:  Itemized detail lines (ON DELETE CASCADE)

RULE CHAINS:
  Rule providers are configuration, not data: GetClaim returns services
  without their chains. Callers reattach chains from the benefit catalog
  before calculating.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  st, err := sqlite.New("./data/claims.db", docsService)
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - claim/store.go: Interface definition and atomicity contract
  - claim/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/claims-engine/claim"
)

// Store implements claim.Store using SQLite.
type Store struct {
	db   *sql.DB
	mu   sync.RWMutex
	docs claim.DocumentRequestService
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string, docs claim.DocumentRequestService) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps writes serialized and makes ":memory:"
	// databases share one schema across the pool.
	db.SetMaxOpenConns(1)
	if docs == nil {
		docs = claim.NoPendingDocuments{}
	}

	store := &Store{db: db, docs: docs}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS claims (
		id TEXT PRIMARY KEY,
		number TEXT NOT NULL,
		status TEXT NOT NULL,
		sub_status TEXT NOT NULL DEFAULT '',
		reopened_reason TEXT NOT NULL DEFAULT '',
		declaration_date TEXT NOT NULL,
		end_date TEXT,
		claimant_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS losses (
		id TEXT PRIMARY KEY,
		claim_id TEXT NOT NULL REFERENCES claims(id) ON DELETE CASCADE,
		start_date TEXT NOT NULL,
		end_date TEXT,
		descriptor_json TEXT NOT NULL,
		event_json TEXT NOT NULL,
		main_loss_id TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_losses_claim ON losses(claim_id);

	CREATE TABLE IF NOT EXISTS delivered_services (
		id TEXT PRIMARY KEY,
		loss_id TEXT NOT NULL REFERENCES losses(id) ON DELETE CASCADE,
		status TEXT NOT NULL,
		option_json TEXT NOT NULL,
		benefit_json TEXT NOT NULL,
		complementary_json TEXT NOT NULL DEFAULT '{}',
		expenses_json TEXT NOT NULL DEFAULT '[]'
	);

	CREATE INDEX IF NOT EXISTS idx_services_loss ON delivered_services(loss_id);

	CREATE TABLE IF NOT EXISTS indemnifications (
		id TEXT PRIMARY KEY,
		service_id TEXT NOT NULL REFERENCES delivered_services(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		start_date TEXT,
		end_date TEXT,
		status TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		local_amount TEXT,
		local_currency TEXT,
		beneficiary_json TEXT NOT NULL,
		customer_json TEXT NOT NULL,
		manual INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_indemnifications_service
		ON indemnifications(service_id);

	-- Hot path for the batch selector working set
	CREATE INDEX IF NOT EXISTS idx_indemnifications_status_start
		ON indemnifications(status, start_date);

	CREATE TABLE IF NOT EXISTS indemnification_details (
		id TEXT PRIMARY KEY,
		indemnification_id TEXT NOT NULL
			REFERENCES indemnifications(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		start_date TEXT,
		end_date TEXT,
		amount_per_unit TEXT NOT NULL,
		unit_count TEXT NOT NULL,
		amount TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_details_indemnification
		ON indemnification_details(indemnification_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// DATE AND JSON HELPERS
// =============================================================================

func dateOrNil(d *claim.Date) any {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.String()
}

func dateOrEmpty(d claim.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func scanDate(v sql.NullString) claim.Date {
	if !v.Valid || v.String == "" {
		return claim.Date{}
	}
	d, err := claim.ParseDate(v.String)
	if err != nil {
		return claim.Date{}
	}
	return d
}

func scanDatePtr(v sql.NullString) *claim.Date {
	d := scanDate(v)
	if d.IsZero() {
		return nil
	}
	return d.Ptr()
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func scanDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// CLAIM GRAPH PERSISTENCE
// =============================================================================

// SaveClaim writes the full claim graph, re-deriving the sub-status first.
// The graph is replaced wholesale within one transaction.
func (s *Store) SaveClaim(ctx context.Context, c *claim.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	claim.UpdateSubStatus(c, s.docs)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM claims WHERE id = ?`, string(c.ID)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO claims (id, number, status, sub_status, reopened_reason,
			declaration_date, end_date, claimant_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(c.ID), c.Number, string(c.Status), string(c.SubStatus),
		string(c.ReopenedReason), c.DeclarationDate.String(),
		dateOrNil(c.EndDate), mustJSON(c.Claimant),
		time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}

	for _, loss := range c.Losses {
		var mainID any
		if loss.MainLoss != nil {
			mainID = string(loss.MainLoss.ID)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO losses (id, claim_id, start_date, end_date,
				descriptor_json, event_json, main_loss_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			string(loss.ID), string(c.ID), loss.StartDate.String(),
			dateOrNil(loss.EndDate), mustJSON(loss.Descriptor),
			mustJSON(loss.Event), mainID); err != nil {
			return err
		}
		for _, svc := range loss.Services {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO delivered_services (id, loss_id, status,
					option_json, benefit_json, complementary_json, expenses_json)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				string(svc.ID), string(loss.ID), string(svc.Status),
				mustJSON(svc.Option), mustJSON(svc.Benefit),
				mustJSON(svc.ComplementaryData), mustJSON(svc.Expenses)); err != nil {
				return err
			}
			for _, ind := range svc.Indemnifications {
				if err := insertIndemnification(ctx, tx, ind); err != nil {
					return err
				}
			}
		}
	}
	return tx.Commit()
}

func insertIndemnification(ctx context.Context, tx *sql.Tx, ind *claim.Indemnification) error {
	var localAmount, localCurrency any
	if ind.LocalAmount != nil {
		localAmount = ind.LocalAmount.Amount.String()
		localCurrency = string(ind.LocalAmount.Currency)
	}
	manual := 0
	if ind.Manual {
		manual = 1
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO indemnifications (id, service_id, kind, start_date,
			end_date, status, amount, currency, local_amount, local_currency,
			beneficiary_json, customer_json, manual)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(ind.ID), string(ind.Service.ID), string(ind.Kind),
		dateOrEmpty(ind.StartDate), dateOrEmpty(ind.EndDate),
		string(ind.Status), ind.Amount.Amount.String(),
		string(ind.Amount.Currency), localAmount, localCurrency,
		mustJSON(ind.Beneficiary), mustJSON(ind.Customer), manual); err != nil {
		return err
	}
	for _, det := range ind.Details {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO indemnification_details (id, indemnification_id,
				kind, start_date, end_date, amount_per_unit, unit_count, amount)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			string(det.ID), string(ind.ID), string(det.Kind),
			dateOrNil(det.StartDate), dateOrNil(det.EndDate),
			det.AmountPerUnit.String(), det.UnitCount.String(),
			det.Amount.String()); err != nil {
			return err
		}
	}
	return nil
}

// GetClaim loads the full claim graph. Rule chains are configuration and
// are not restored; reattach them from the benefit catalog.
func (s *Store) GetClaim(ctx context.Context, id claim.ClaimID) (*claim.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadClaim(ctx, id)
}

func (s *Store) loadClaim(ctx context.Context, id claim.ClaimID) (*claim.Claim, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, number, status, sub_status, reopened_reason,
			declaration_date, end_date, claimant_json
		FROM claims WHERE id = ?`, string(id))

	var c claim.Claim
	var cid, status, subStatus, reopened, declDate, claimantJSON string
	var endDate sql.NullString
	if err := row.Scan(&cid, &c.Number, &status, &subStatus, &reopened,
		&declDate, &endDate, &claimantJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, claim.ErrClaimNotFound
		}
		return nil, err
	}
	c.ID = claim.ClaimID(cid)
	c.Status = claim.ClaimStatus(status)
	c.SubStatus = claim.SubStatus(subStatus)
	c.ReopenedReason = claim.ReopenedReason(reopened)
	c.DeclarationDate = scanDate(sql.NullString{String: declDate, Valid: true})
	c.EndDate = scanDatePtr(endDate)
	if err := json.Unmarshal([]byte(claimantJSON), &c.Claimant); err != nil {
		return nil, err
	}

	if err := s.loadLosses(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) loadLosses(ctx context.Context, c *claim.Claim) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, start_date, end_date, descriptor_json, event_json, main_loss_id
		FROM losses WHERE claim_id = ? ORDER BY start_date`, string(c.ID))
	if err != nil {
		return err
	}
	defer rows.Close()

	mainRefs := make(map[claim.LossID]claim.LossID)
	byID := make(map[claim.LossID]*claim.Loss)
	for rows.Next() {
		var loss claim.Loss
		var lid, startDate, descJSON, eventJSON string
		var endDate, mainID sql.NullString
		if err := rows.Scan(&lid, &startDate, &endDate, &descJSON, &eventJSON, &mainID); err != nil {
			return err
		}
		loss.ID = claim.LossID(lid)
		loss.Claim = c
		loss.StartDate = scanDate(sql.NullString{String: startDate, Valid: true})
		loss.EndDate = scanDatePtr(endDate)
		if err := json.Unmarshal([]byte(descJSON), &loss.Descriptor); err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(eventJSON), &loss.Event); err != nil {
			return err
		}
		if mainID.Valid {
			mainRefs[loss.ID] = claim.LossID(mainID.String)
		}
		c.Losses = append(c.Losses, &loss)
		byID[loss.ID] = &loss
	}
	if err := rows.Err(); err != nil {
		return err
	}

	// Relapse links always resolve within the claim.
	for lossID, mainID := range mainRefs {
		if main, ok := byID[mainID]; ok {
			byID[lossID].MainLoss = main
			main.SubLosses = append(main.SubLosses, byID[lossID])
		}
	}

	for _, loss := range c.Losses {
		if err := s.loadServices(ctx, loss); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadServices(ctx context.Context, loss *claim.Loss) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, option_json, benefit_json, complementary_json, expenses_json
		FROM delivered_services WHERE loss_id = ?`, string(loss.ID))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var svc claim.DeliveredService
		var sid, status, optionJSON, benefitJSON, compJSON, expensesJSON string
		if err := rows.Scan(&sid, &status, &optionJSON, &benefitJSON, &compJSON, &expensesJSON); err != nil {
			return err
		}
		svc.ID = claim.ServiceID(sid)
		svc.Loss = loss
		svc.Status = claim.ServiceStatus(status)
		if err := json.Unmarshal([]byte(optionJSON), &svc.Option); err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(benefitJSON), &svc.Benefit); err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(compJSON), &svc.ComplementaryData); err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(expensesJSON), &svc.Expenses); err != nil {
			return err
		}
		loss.Services = append(loss.Services, &svc)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, svc := range loss.Services {
		if err := s.loadIndemnifications(ctx, svc); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadIndemnifications(ctx context.Context, svc *claim.DeliveredService) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, start_date, end_date, status, amount, currency,
			local_amount, local_currency, beneficiary_json, customer_json, manual
		FROM indemnifications WHERE service_id = ? ORDER BY start_date`, string(svc.ID))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var ind claim.Indemnification
		var iid, kind, status, amount, currency, benJSON, custJSON string
		var startDate, endDate, localAmount, localCurrency sql.NullString
		var manual int
		if err := rows.Scan(&iid, &kind, &startDate, &endDate, &status,
			&amount, &currency, &localAmount, &localCurrency,
			&benJSON, &custJSON, &manual); err != nil {
			return err
		}
		ind.ID = claim.IndemnificationID(iid)
		ind.Service = svc
		ind.Kind = claim.IndemnificationKind(kind)
		ind.StartDate = scanDate(startDate)
		ind.EndDate = scanDate(endDate)
		ind.Status = claim.IndemnificationStatus(status)
		ind.Amount = claim.Money{Amount: scanDecimal(amount), Currency: claim.Currency(currency)}
		if localAmount.Valid && localCurrency.Valid {
			ind.LocalAmount = &claim.Money{
				Amount:   scanDecimal(localAmount.String),
				Currency: claim.Currency(localCurrency.String),
			}
		}
		if err := json.Unmarshal([]byte(benJSON), &ind.Beneficiary); err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(custJSON), &ind.Customer); err != nil {
			return err
		}
		ind.Manual = manual != 0
		svc.Indemnifications = append(svc.Indemnifications, &ind)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, ind := range svc.Indemnifications {
		if err := s.loadDetails(ctx, ind); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadDetails(ctx context.Context, ind *claim.Indemnification) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, start_date, end_date, amount_per_unit, unit_count, amount
		FROM indemnification_details WHERE indemnification_id = ?`, string(ind.ID))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var det claim.DetailLine
		var did, kind, perUnit, unitCount, amount string
		var startDate, endDate sql.NullString
		if err := rows.Scan(&did, &kind, &startDate, &endDate, &perUnit, &unitCount, &amount); err != nil {
			return err
		}
		det.ID = claim.DetailLineID(did)
		det.Indemnification = ind
		det.Kind = claim.DetailKind(kind)
		det.StartDate = scanDatePtr(startDate)
		det.EndDate = scanDatePtr(endDate)
		det.AmountPerUnit = scanDecimal(perUnit)
		det.UnitCount = scanDecimal(unitCount)
		det.Amount = scanDecimal(amount)
		ind.Details = append(ind.Details, &det)
	}
	return rows.Err()
}

// =============================================================================
// SERVICE LOOKUP
// =============================================================================

// FindService loads the claim owning the service and returns the service
// from the loaded graph, parent links intact.
func (s *Store) FindService(ctx context.Context, id claim.ServiceID) (*claim.DeliveredService, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT l.claim_id FROM delivered_services ds
		JOIN losses l ON l.id = ds.loss_id
		WHERE ds.id = ?`, string(id))
	var claimID string
	if err := row.Scan(&claimID); err != nil {
		if err == sql.ErrNoRows {
			return nil, claim.ErrServiceNotFound
		}
		return nil, err
	}
	c, err := s.loadClaim(ctx, claim.ClaimID(claimID))
	if err != nil {
		return nil, err
	}
	for _, loss := range c.Losses {
		for _, svc := range loss.Services {
			if svc.ID == id {
				return svc, nil
			}
		}
	}
	return nil, claim.ErrServiceNotFound
}

// =============================================================================
// ATOMIC REPLACEMENT
// =============================================================================

// ApplyReplacement applies a calculation diff in one transaction.
func (s *Store) ApplyReplacement(ctx context.Context, serviceID claim.ServiceID, repl claim.Replacement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM delivered_services WHERE id = ?`,
		string(serviceID)).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return claim.ErrServiceNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, ind := range repl.Delete {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM indemnifications WHERE id = ?`, string(ind.ID)); err != nil {
			return err
		}
	}
	for _, ind := range repl.Create {
		if err := insertIndemnification(ctx, tx, ind); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// =============================================================================
// SELECTOR SEARCH
// =============================================================================

var clauseColumns = map[string]string{
	"status":     "i.status",
	"kind":       "i.kind",
	"start_date": "i.start_date",
	"end_date":   "i.end_date",
	"amount":     "CAST(i.amount AS NUMERIC)",
}

// SearchIndemnifications builds the bounded working set for the batch
// selector. Each clause is null-tolerant: (col IS NULL OR col op value).
func (s *Store) SearchIndemnifications(ctx context.Context, clauses []claim.Clause, limit int) ([]*claim.Indemnification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT i.id, l.claim_id FROM indemnifications i
		JOIN delivered_services ds ON ds.id = i.service_id
		JOIN losses l ON l.id = ds.loss_id`
	var args []any
	for idx, cl := range clauses {
		col, ok := clauseColumns[cl.Field]
		if !ok {
			return nil, &claim.SelectorError{Input: cl.Field, Reason: "unknown field"}
		}
		if idx == 0 {
			query += " WHERE "
		} else {
			query += " AND "
		}
		placeholder := "?"
		switch {
		case cl.Date != nil:
			args = append(args, cl.Date.String())
		case cl.Amount != nil:
			// Amounts stay decimal strings end to end; the cast makes
			// the comparison numeric instead of lexicographic.
			placeholder = "CAST(? AS NUMERIC)"
			args = append(args, cl.Amount.String())
		default:
			args = append(args, cl.Value)
		}
		query += fmt.Sprintf("(%s IS NULL OR %s %s %s)", col, col, cl.Operator, placeholder)
	}
	query += " ORDER BY i.start_date ASC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type hit struct {
		indID   claim.IndemnificationID
		claimID claim.ClaimID
	}
	var hits []hit
	for rows.Next() {
		var iid, cid string
		if err := rows.Scan(&iid, &cid); err != nil {
			return nil, err
		}
		hits = append(hits, hit{claim.IndemnificationID(iid), claim.ClaimID(cid)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Load each touched claim graph once so results keep their parent
	// links (service, loss, claim) for the review step.
	graphs := make(map[claim.ClaimID]*claim.Claim)
	var result []*claim.Indemnification
	for _, h := range hits {
		c, ok := graphs[h.claimID]
		if !ok {
			loaded, err := s.loadClaim(ctx, h.claimID)
			if err != nil {
				return nil, err
			}
			c = loaded
			graphs[h.claimID] = c
		}
		if ind := findIndemnification(c, h.indID); ind != nil {
			result = append(result, ind)
		}
	}
	return result, nil
}

func findIndemnification(c *claim.Claim, id claim.IndemnificationID) *claim.Indemnification {
	for _, loss := range c.Losses {
		for _, svc := range loss.Services {
			for _, ind := range svc.Indemnifications {
				if ind.ID == id {
					return ind
				}
			}
		}
	}
	return nil
}
