package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/Skund404/WAWI-Claude-sub001/internal/core/domain"
	"github.com/Skund404/WAWI-Claude-sub001/internal/port"
)

const mysqlDuplicateEntry = 1062

// MySQLAdapter persists the ledger, journal and lists in MySQL. The
// version check rides on the UPDATE's WHERE clause; the journal append and
// the stock write share one transaction so an idempotency race can never
// apply a quantity change twice.
type MySQLAdapter struct {
	db *sql.DB
}

var (
	_ port.InventoryRepository   = (*MySQLAdapter)(nil)
	_ port.AdjustmentLog         = (*MySQLAdapter)(nil)
	_ port.PickingListRepository = (*MySQLAdapter)(nil)
	_ port.ToolListRepository    = (*MySQLAdapter)(nil)
)

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func isDuplicateKey(err error) bool {
	var merr *mysql.MySQLError
	return errors.As(err, &merr) && merr.Number == mysqlDuplicateEntry
}

func (m *MySQLAdapter) Get(ctx context.Context, key domain.InventoryKey) (*domain.InventoryRecord, error) {
	var (
		rec      domain.InventoryRecord
		unitCost string
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT item_id, item_type, quantity, status, location, unit_cost, version, created_at, updated_at
		FROM inventory WHERE item_id = ? AND item_type = ?`,
		key.ItemID, key.ItemType,
	).Scan(&rec.ItemID, &rec.ItemType, &rec.Quantity, &rec.Status, &rec.Location,
		&unitCost, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}

	rec.UnitCost, err = decimal.NewFromString(unitCost)
	if err != nil {
		return nil, fmt.Errorf("parse unit cost for %s: %w", key, err)
	}
	return &rec, nil
}

func (m *MySQLAdapter) Create(ctx context.Context, rec domain.InventoryRecord, entry domain.AdjustmentEntry) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO inventory (item_id, item_type, quantity, status, location, unit_cost, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ItemID, rec.ItemType, rec.Quantity, rec.Status, rec.Location,
		rec.UnitCost.String(), rec.Version, rec.CreatedAt, rec.UpdatedAt,
	)
	if isDuplicateKey(err) {
		return port.ErrRecordExists
	}
	if err != nil {
		return fmt.Errorf("insert inventory: %w", err)
	}

	if err := insertAdjustment(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

func (m *MySQLAdapter) ApplyAdjustment(ctx context.Context, rec domain.InventoryRecord, entry domain.AdjustmentEntry) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE inventory
		SET quantity = ?, status = ?, location = ?, unit_cost = ?, version = version + 1, updated_at = ?
		WHERE item_id = ? AND item_type = ? AND version = ?`,
		rec.Quantity, rec.Status, rec.Location, rec.UnitCost.String(), rec.UpdatedAt,
		rec.ItemID, rec.ItemType, rec.Version,
	)
	if err != nil {
		return fmt.Errorf("update inventory: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrVersionConflict
	}

	if err := insertAdjustment(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

func (m *MySQLAdapter) UpdateVersioned(ctx context.Context, rec domain.InventoryRecord) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE inventory
		SET quantity = ?, status = ?, location = ?, unit_cost = ?, version = version + 1, updated_at = ?
		WHERE item_id = ? AND item_type = ? AND version = ?`,
		rec.Quantity, rec.Status, rec.Location, rec.UnitCost.String(), rec.UpdatedAt,
		rec.ItemID, rec.ItemType, rec.Version,
	)
	if err != nil {
		return fmt.Errorf("update inventory: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrVersionConflict
	}
	return nil
}

func (m *MySQLAdapter) List(ctx context.Context, filter port.InventoryFilter) ([]domain.InventoryRecord, error) {
	query := `
		SELECT item_id, item_type, quantity, status, location, unit_cost, version, created_at, updated_at
		FROM inventory`
	var (
		conds []string
		args  []any
	)
	if filter.ItemType != nil {
		conds = append(conds, "item_type = ?")
		args = append(args, *filter.ItemType)
	}
	if filter.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, *filter.Status)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY item_type, item_id"

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	defer rows.Close()

	var out []domain.InventoryRecord
	for rows.Next() {
		var (
			rec      domain.InventoryRecord
			unitCost string
		)
		if err := rows.Scan(&rec.ItemID, &rec.ItemType, &rec.Quantity, &rec.Status,
			&rec.Location, &unitCost, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan inventory: %w", err)
		}
		rec.UnitCost, err = decimal.NewFromString(unitCost)
		if err != nil {
			return nil, fmt.Errorf("parse unit cost: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func insertAdjustment(ctx context.Context, tx *sql.Tx, entry domain.AdjustmentEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO adjustments (id, item_id, item_type, delta, type, reason, operation_id, resulting_quantity, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.ItemID, entry.ItemType, entry.Delta, entry.Type,
		entry.Reason, entry.OperationID, entry.ResultingQuantity, entry.RecordedAt,
	)
	if isDuplicateKey(err) {
		return port.ErrDuplicateOperation
	}
	if err != nil {
		return fmt.Errorf("insert adjustment: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) FindByOperation(ctx context.Context, operationID string) (*domain.AdjustmentEntry, error) {
	var e domain.AdjustmentEntry
	err := m.db.QueryRowContext(ctx, `
		SELECT id, item_id, item_type, delta, type, reason, operation_id, resulting_quantity, recorded_at
		FROM adjustments WHERE operation_id = ?`, operationID,
	).Scan(&e.ID, &e.ItemID, &e.ItemType, &e.Delta, &e.Type, &e.Reason,
		&e.OperationID, &e.ResultingQuantity, &e.RecordedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query adjustment: %w", err)
	}
	return &e, nil
}

func (m *MySQLAdapter) Query(ctx context.Context, q port.AdjustmentQuery) ([]domain.AdjustmentEntry, error) {
	query := `
		SELECT id, item_id, item_type, delta, type, reason, operation_id, resulting_quantity, recorded_at
		FROM adjustments`
	var (
		conds []string
		args  []any
	)
	if q.ItemID != "" {
		conds = append(conds, "item_id = ?")
		args = append(args, q.ItemID)
	}
	if q.ItemType != "" {
		conds = append(conds, "item_type = ?")
		args = append(args, q.ItemType)
	}
	if !q.From.IsZero() {
		conds = append(conds, "recorded_at >= ?")
		args = append(args, q.From)
	}
	if !q.To.IsZero() {
		conds = append(conds, "recorded_at < ?")
		args = append(args, q.To)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if q.Descending {
		query += " ORDER BY recorded_at DESC, id DESC"
	} else {
		query += " ORDER BY recorded_at, id"
	}
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
		if q.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", q.Offset)
		}
	} else if q.Offset > 0 {
		// MySQL has no OFFSET without LIMIT.
		query += fmt.Sprintf(" LIMIT 18446744073709551615 OFFSET %d", q.Offset)
	}

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query adjustments: %w", err)
	}
	defer rows.Close()

	var out []domain.AdjustmentEntry
	for rows.Next() {
		var e domain.AdjustmentEntry
		if err := rows.Scan(&e.ID, &e.ItemID, &e.ItemType, &e.Delta, &e.Type,
			&e.Reason, &e.OperationID, &e.ResultingQuantity, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan adjustment: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) CreatePickingList(ctx context.Context, list domain.PickingList) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO picking_lists (id, project_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		list.ID, list.ProjectID, list.Status, list.CreatedAt, list.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert picking list: %w", err)
	}
	if err := insertPickingItems(ctx, tx, list); err != nil {
		return err
	}
	return tx.Commit()
}

func (m *MySQLAdapter) GetPickingList(ctx context.Context, id string) (*domain.PickingList, error) {
	var list domain.PickingList
	err := m.db.QueryRowContext(ctx, `
		SELECT id, project_id, status, created_at, updated_at
		FROM picking_lists WHERE id = ?`, id,
	).Scan(&list.ID, &list.ProjectID, &list.Status, &list.CreatedAt, &list.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query picking list: %w", err)
	}

	list.Items, err = m.pickingItems(ctx, id)
	if err != nil {
		return nil, err
	}
	return &list, nil
}

func (m *MySQLAdapter) UpdatePickingList(ctx context.Context, list domain.PickingList) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE picking_lists SET status = ?, updated_at = ? WHERE id = ?`,
		list.Status, list.UpdatedAt, list.ID,
	)
	if err != nil {
		return fmt.Errorf("update picking list: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		// The row may match with unchanged values; verify existence.
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM picking_lists WHERE id = ?`, list.ID).Scan(&n); err != nil {
			return fmt.Errorf("verify picking list: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("picking list %s does not exist", list.ID)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM picking_list_items WHERE list_id = ?`, list.ID); err != nil {
		return fmt.Errorf("clear picking list items: %w", err)
	}
	if err := insertPickingItems(ctx, tx, list); err != nil {
		return err
	}
	return tx.Commit()
}

func (m *MySQLAdapter) ListActivePickingLists(ctx context.Context) ([]domain.PickingList, error) {
	return m.queryPickingLists(ctx, `SELECT id, project_id, status, created_at, updated_at
		FROM picking_lists WHERE status = ? ORDER BY created_at`, domain.ListStatusInProgress)
}

func (m *MySQLAdapter) ListPickingListsByProject(ctx context.Context, projectID string) ([]domain.PickingList, error) {
	return m.queryPickingLists(ctx, `SELECT id, project_id, status, created_at, updated_at
		FROM picking_lists WHERE project_id = ? ORDER BY created_at`, projectID)
}

func (m *MySQLAdapter) queryPickingLists(ctx context.Context, query string, arg any) ([]domain.PickingList, error) {
	rows, err := m.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query picking lists: %w", err)
	}
	defer rows.Close()

	var out []domain.PickingList
	for rows.Next() {
		var list domain.PickingList
		if err := rows.Scan(&list.ID, &list.ProjectID, &list.Status, &list.CreatedAt, &list.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan picking list: %w", err)
		}
		out = append(out, list)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		out[i].Items, err = m.pickingItems(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (m *MySQLAdapter) pickingItems(ctx context.Context, listID string) ([]domain.PickingListItem, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT item_id, item_type, quantity_required, quantity_picked, quantity_reserved, short, short_by
		FROM picking_list_items WHERE list_id = ? ORDER BY item_type, item_id`, listID)
	if err != nil {
		return nil, fmt.Errorf("query picking list items: %w", err)
	}
	defer rows.Close()

	var items []domain.PickingListItem
	for rows.Next() {
		var item domain.PickingListItem
		if err := rows.Scan(&item.ItemID, &item.ItemType, &item.QuantityRequired,
			&item.QuantityPicked, &item.QuantityReserved, &item.Short, &item.ShortBy); err != nil {
			return nil, fmt.Errorf("scan picking list item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func insertPickingItems(ctx context.Context, tx *sql.Tx, list domain.PickingList) error {
	for _, item := range list.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO picking_list_items (list_id, item_id, item_type, quantity_required, quantity_picked, quantity_reserved, short, short_by)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			list.ID, item.ItemID, item.ItemType, item.QuantityRequired,
			item.QuantityPicked, item.QuantityReserved, item.Short, item.ShortBy,
		)
		if err != nil {
			return fmt.Errorf("insert picking list item: %w", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) CreateToolList(ctx context.Context, list domain.ToolList) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tool_lists (id, project_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		list.ID, list.ProjectID, list.Status, list.CreatedAt, list.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert tool list: %w", err)
	}
	if err := insertToolItems(ctx, tx, list); err != nil {
		return err
	}
	return tx.Commit()
}

func (m *MySQLAdapter) GetToolList(ctx context.Context, id string) (*domain.ToolList, error) {
	var list domain.ToolList
	err := m.db.QueryRowContext(ctx, `
		SELECT id, project_id, status, created_at, updated_at
		FROM tool_lists WHERE id = ?`, id,
	).Scan(&list.ID, &list.ProjectID, &list.Status, &list.CreatedAt, &list.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query tool list: %w", err)
	}

	list.Items, err = m.toolItems(ctx, id)
	if err != nil {
		return nil, err
	}
	return &list, nil
}

func (m *MySQLAdapter) UpdateToolList(ctx context.Context, list domain.ToolList) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE tool_lists SET status = ?, updated_at = ? WHERE id = ?`,
		list.Status, list.UpdatedAt, list.ID,
	)
	if err != nil {
		return fmt.Errorf("update tool list: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		// The row may match with unchanged values; verify existence.
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tool_lists WHERE id = ?`, list.ID).Scan(&n); err != nil {
			return fmt.Errorf("verify tool list: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("tool list %s does not exist", list.ID)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tool_list_items WHERE list_id = ?`, list.ID); err != nil {
		return fmt.Errorf("clear tool list items: %w", err)
	}
	if err := insertToolItems(ctx, tx, list); err != nil {
		return err
	}
	return tx.Commit()
}

func (m *MySQLAdapter) ActiveAssignments(ctx context.Context, key domain.InventoryKey) (int64, error) {
	var total int64
	err := m.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(i.quantity_assigned), 0)
		FROM tool_list_items i
		JOIN tool_lists l ON l.id = i.list_id
		WHERE l.status = ? AND i.item_id = ? AND i.item_type = ?`,
		domain.ListStatusInProgress, key.ItemID, key.ItemType,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum active assignments: %w", err)
	}
	return total, nil
}

func (m *MySQLAdapter) ListToolListsByProject(ctx context.Context, projectID string) ([]domain.ToolList, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, project_id, status, created_at, updated_at
		FROM tool_lists WHERE project_id = ? ORDER BY created_at`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query tool lists: %w", err)
	}
	defer rows.Close()

	var out []domain.ToolList
	for rows.Next() {
		var list domain.ToolList
		if err := rows.Scan(&list.ID, &list.ProjectID, &list.Status, &list.CreatedAt, &list.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan tool list: %w", err)
		}
		out = append(out, list)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		out[i].Items, err = m.toolItems(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (m *MySQLAdapter) toolItems(ctx context.Context, listID string) ([]domain.ToolListItem, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT item_id, item_type, quantity_required, quantity_assigned
		FROM tool_list_items WHERE list_id = ? ORDER BY item_id`, listID)
	if err != nil {
		return nil, fmt.Errorf("query tool list items: %w", err)
	}
	defer rows.Close()

	var items []domain.ToolListItem
	for rows.Next() {
		var item domain.ToolListItem
		if err := rows.Scan(&item.ItemID, &item.ItemType, &item.QuantityRequired, &item.QuantityAssigned); err != nil {
			return nil, fmt.Errorf("scan tool list item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func insertToolItems(ctx context.Context, tx *sql.Tx, list domain.ToolList) error {
	for _, item := range list.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tool_list_items (list_id, item_id, item_type, quantity_required, quantity_assigned)
			VALUES (?, ?, ?, ?, ?)`,
			list.ID, item.ItemID, item.ItemType, item.QuantityRequired, item.QuantityAssigned,
		)
		if err != nil {
			return fmt.Errorf("insert tool list item: %w", err)
		}
	}
	return nil
}
