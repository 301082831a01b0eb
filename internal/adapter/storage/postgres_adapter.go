package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Skund404/WAWI-Claude-sub001/internal/core/domain"
	"github.com/Skund404/WAWI-Claude-sub001/internal/port"
)

// PostgresAdapter persists the same state as the MySQL adapter through gorm.
// Same contract: versioned writes, journal append in the same transaction.
type PostgresAdapter struct {
	db *gorm.DB
}

var (
	_ port.InventoryRepository   = (*PostgresAdapter)(nil)
	_ port.AdjustmentLog         = (*PostgresAdapter)(nil)
	_ port.PickingListRepository = (*PostgresAdapter)(nil)
	_ port.ToolListRepository    = (*PostgresAdapter)(nil)
)

type inventoryRow struct {
	ItemID    string `gorm:"primaryKey;size:120"`
	ItemType  string `gorm:"primaryKey;size:20"`
	Quantity  int64  `gorm:"not null"`
	Status    string `gorm:"size:20;not null"`
	Location  string `gorm:"size:200"`
	UnitCost  string `gorm:"size:64;not null;default:'0'"`
	Version   int    `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (inventoryRow) TableName() string { return "inventory" }

type adjustmentRow struct {
	ID                string    `gorm:"primaryKey;size:36"`
	ItemID            string    `gorm:"index:idx_adjustments_item;size:120;not null"`
	ItemType          string    `gorm:"index:idx_adjustments_item;size:20;not null"`
	Delta             int64     `gorm:"not null"`
	Type              string    `gorm:"size:20;not null"`
	Reason            string    `gorm:"size:255"`
	OperationID       string    `gorm:"uniqueIndex;size:120;not null"`
	ResultingQuantity int64     `gorm:"not null"`
	RecordedAt        time.Time `gorm:"index;not null"`
}

func (adjustmentRow) TableName() string { return "adjustments" }

type pickingListRow struct {
	ID        string `gorm:"primaryKey;size:36"`
	ProjectID string `gorm:"index;size:120;not null"`
	Status    string `gorm:"index;size:20;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (pickingListRow) TableName() string { return "picking_lists" }

type pickingItemRow struct {
	ListID           string `gorm:"primaryKey;size:36"`
	ItemID           string `gorm:"primaryKey;size:120"`
	ItemType         string `gorm:"primaryKey;size:20"`
	QuantityRequired int64  `gorm:"not null"`
	QuantityPicked   int64  `gorm:"not null"`
	QuantityReserved int64  `gorm:"not null"`
	Short            bool   `gorm:"not null"`
	ShortBy          int64  `gorm:"not null"`
}

func (pickingItemRow) TableName() string { return "picking_list_items" }

type toolListRow struct {
	ID        string `gorm:"primaryKey;size:36"`
	ProjectID string `gorm:"index;size:120;not null"`
	Status    string `gorm:"index;size:20;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (toolListRow) TableName() string { return "tool_lists" }

type toolItemRow struct {
	ListID           string `gorm:"primaryKey;size:36"`
	ItemID           string `gorm:"primaryKey;size:120"`
	ItemType         string `gorm:"primaryKey;size:20"`
	QuantityRequired int64  `gorm:"not null"`
	QuantityAssigned int64  `gorm:"not null"`
}

func (toolItemRow) TableName() string { return "tool_list_items" }

// OpenPostgres connects and migrates the schema.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := db.AutoMigrate(&inventoryRow{}, &adjustmentRow{}, &pickingListRow{},
		&pickingItemRow{}, &toolListRow{}, &toolItemRow{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return db, nil
}

func NewPostgresAdapter(db *gorm.DB) *PostgresAdapter {
	return &PostgresAdapter{db: db}
}

func toInventoryRow(rec domain.InventoryRecord) inventoryRow {
	return inventoryRow{
		ItemID:    rec.ItemID,
		ItemType:  string(rec.ItemType),
		Quantity:  rec.Quantity,
		Status:    string(rec.Status),
		Location:  rec.Location,
		UnitCost:  rec.UnitCost.String(),
		Version:   rec.Version,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

func fromInventoryRow(row inventoryRow) (domain.InventoryRecord, error) {
	cost, err := decimal.NewFromString(row.UnitCost)
	if err != nil {
		return domain.InventoryRecord{}, fmt.Errorf("parse unit cost: %w", err)
	}
	return domain.InventoryRecord{
		ItemID:    row.ItemID,
		ItemType:  domain.ItemType(row.ItemType),
		Quantity:  row.Quantity,
		Status:    domain.InventoryStatus(row.Status),
		Location:  row.Location,
		UnitCost:  cost,
		Version:   row.Version,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func toAdjustmentRow(e domain.AdjustmentEntry) adjustmentRow {
	return adjustmentRow{
		ID:                e.ID,
		ItemID:            e.ItemID,
		ItemType:          string(e.ItemType),
		Delta:             e.Delta,
		Type:              string(e.Type),
		Reason:            e.Reason,
		OperationID:       e.OperationID,
		ResultingQuantity: e.ResultingQuantity,
		RecordedAt:        e.RecordedAt,
	}
}

func fromAdjustmentRow(row adjustmentRow) domain.AdjustmentEntry {
	return domain.AdjustmentEntry{
		ID:                row.ID,
		ItemID:            row.ItemID,
		ItemType:          domain.ItemType(row.ItemType),
		Delta:             row.Delta,
		Type:              domain.AdjustmentType(row.Type),
		Reason:            row.Reason,
		OperationID:       row.OperationID,
		ResultingQuantity: row.ResultingQuantity,
		RecordedAt:        row.RecordedAt,
	}
}

func (p *PostgresAdapter) Get(ctx context.Context, key domain.InventoryKey) (*domain.InventoryRecord, error) {
	var row inventoryRow
	err := p.db.WithContext(ctx).
		First(&row, "item_id = ? AND item_type = ?", key.ItemID, key.ItemType).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	rec, err := fromInventoryRow(row)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (p *PostgresAdapter) Create(ctx context.Context, rec domain.InventoryRecord, entry domain.AdjustmentEntry) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := toInventoryRow(rec)
		if err := tx.Create(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return port.ErrRecordExists
			}
			return fmt.Errorf("insert inventory: %w", err)
		}
		return createAdjustmentRow(tx, entry)
	})
}

func (p *PostgresAdapter) ApplyAdjustment(ctx context.Context, rec domain.InventoryRecord, entry domain.AdjustmentEntry) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := p.updateVersioned(tx, rec); err != nil {
			return err
		}
		return createAdjustmentRow(tx, entry)
	})
}

func (p *PostgresAdapter) UpdateVersioned(ctx context.Context, rec domain.InventoryRecord) error {
	return p.updateVersioned(p.db.WithContext(ctx), rec)
}

func (p *PostgresAdapter) updateVersioned(tx *gorm.DB, rec domain.InventoryRecord) error {
	result := tx.Model(&inventoryRow{}).
		Where("item_id = ? AND item_type = ? AND version = ?", rec.ItemID, rec.ItemType, rec.Version).
		Updates(map[string]interface{}{
			"quantity":   rec.Quantity,
			"status":     string(rec.Status),
			"location":   rec.Location,
			"unit_cost":  rec.UnitCost.String(),
			"version":    gorm.Expr("version + 1"),
			"updated_at": rec.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("update inventory: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return port.ErrVersionConflict
	}
	return nil
}

func createAdjustmentRow(tx *gorm.DB, entry domain.AdjustmentEntry) error {
	row := toAdjustmentRow(entry)
	if err := tx.Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return port.ErrDuplicateOperation
		}
		return fmt.Errorf("insert adjustment: %w", err)
	}
	return nil
}

func (p *PostgresAdapter) List(ctx context.Context, filter port.InventoryFilter) ([]domain.InventoryRecord, error) {
	q := p.db.WithContext(ctx).Model(&inventoryRow{}).Order("item_type, item_id")
	if filter.ItemType != nil {
		q = q.Where("item_type = ?", string(*filter.ItemType))
	}
	if filter.Status != nil {
		q = q.Where("status = ?", string(*filter.Status))
	}

	var rows []inventoryRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}

	out := make([]domain.InventoryRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := fromInventoryRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (p *PostgresAdapter) FindByOperation(ctx context.Context, operationID string) (*domain.AdjustmentEntry, error) {
	var row adjustmentRow
	err := p.db.WithContext(ctx).First(&row, "operation_id = ?", operationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query adjustment: %w", err)
	}
	entry := fromAdjustmentRow(row)
	return &entry, nil
}

func (p *PostgresAdapter) Query(ctx context.Context, q port.AdjustmentQuery) ([]domain.AdjustmentEntry, error) {
	tx := p.db.WithContext(ctx).Model(&adjustmentRow{})
	if q.ItemID != "" {
		tx = tx.Where("item_id = ?", q.ItemID)
	}
	if q.ItemType != "" {
		tx = tx.Where("item_type = ?", string(q.ItemType))
	}
	if !q.From.IsZero() {
		tx = tx.Where("recorded_at >= ?", q.From)
	}
	if !q.To.IsZero() {
		tx = tx.Where("recorded_at < ?", q.To)
	}
	if q.Descending {
		tx = tx.Order("recorded_at DESC, id DESC")
	} else {
		tx = tx.Order("recorded_at, id")
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}

	var rows []adjustmentRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query adjustments: %w", err)
	}
	out := make([]domain.AdjustmentEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromAdjustmentRow(row))
	}
	return out, nil
}

func (p *PostgresAdapter) CreatePickingList(ctx context.Context, list domain.PickingList) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := pickingListRow{
			ID: list.ID, ProjectID: list.ProjectID, Status: string(list.Status),
			CreatedAt: list.CreatedAt, UpdatedAt: list.UpdatedAt,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert picking list: %w", err)
		}
		return insertPickingItemRows(tx, list)
	})
}

func (p *PostgresAdapter) GetPickingList(ctx context.Context, id string) (*domain.PickingList, error) {
	var row pickingListRow
	err := p.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query picking list: %w", err)
	}
	return p.assemblePickingList(ctx, row)
}

func (p *PostgresAdapter) UpdatePickingList(ctx context.Context, list domain.PickingList) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&pickingListRow{}).Where("id = ?", list.ID).
			Updates(map[string]interface{}{"status": string(list.Status), "updated_at": list.UpdatedAt})
		if result.Error != nil {
			return fmt.Errorf("update picking list: %w", result.Error)
		}
		if err := tx.Where("list_id = ?", list.ID).Delete(&pickingItemRow{}).Error; err != nil {
			return fmt.Errorf("clear picking list items: %w", err)
		}
		return insertPickingItemRows(tx, list)
	})
}

func (p *PostgresAdapter) ListActivePickingLists(ctx context.Context) ([]domain.PickingList, error) {
	return p.queryPickingLists(ctx, "status = ?", string(domain.ListStatusInProgress))
}

func (p *PostgresAdapter) ListPickingListsByProject(ctx context.Context, projectID string) ([]domain.PickingList, error) {
	return p.queryPickingLists(ctx, "project_id = ?", projectID)
}

func (p *PostgresAdapter) queryPickingLists(ctx context.Context, cond string, arg any) ([]domain.PickingList, error) {
	var rows []pickingListRow
	if err := p.db.WithContext(ctx).Where(cond, arg).Order("created_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query picking lists: %w", err)
	}
	out := make([]domain.PickingList, 0, len(rows))
	for _, row := range rows {
		list, err := p.assemblePickingList(ctx, row)
		if err != nil {
			return nil, err
		}
		out = append(out, *list)
	}
	return out, nil
}

func (p *PostgresAdapter) assemblePickingList(ctx context.Context, row pickingListRow) (*domain.PickingList, error) {
	var itemRows []pickingItemRow
	if err := p.db.WithContext(ctx).Where("list_id = ?", row.ID).
		Order("item_type, item_id").Find(&itemRows).Error; err != nil {
		return nil, fmt.Errorf("query picking list items: %w", err)
	}

	list := domain.PickingList{
		ID: row.ID, ProjectID: row.ProjectID, Status: domain.ListStatus(row.Status),
		CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
	}
	for _, ir := range itemRows {
		list.Items = append(list.Items, domain.PickingListItem{
			ItemID:           ir.ItemID,
			ItemType:         domain.ItemType(ir.ItemType),
			QuantityRequired: ir.QuantityRequired,
			QuantityPicked:   ir.QuantityPicked,
			QuantityReserved: ir.QuantityReserved,
			Short:            ir.Short,
			ShortBy:          ir.ShortBy,
		})
	}
	return &list, nil
}

func insertPickingItemRows(tx *gorm.DB, list domain.PickingList) error {
	for _, item := range list.Items {
		row := pickingItemRow{
			ListID:           list.ID,
			ItemID:           item.ItemID,
			ItemType:         string(item.ItemType),
			QuantityRequired: item.QuantityRequired,
			QuantityPicked:   item.QuantityPicked,
			QuantityReserved: item.QuantityReserved,
			Short:            item.Short,
			ShortBy:          item.ShortBy,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert picking list item: %w", err)
		}
	}
	return nil
}

func (p *PostgresAdapter) CreateToolList(ctx context.Context, list domain.ToolList) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := toolListRow{
			ID: list.ID, ProjectID: list.ProjectID, Status: string(list.Status),
			CreatedAt: list.CreatedAt, UpdatedAt: list.UpdatedAt,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert tool list: %w", err)
		}
		return insertToolItemRows(tx, list)
	})
}

func (p *PostgresAdapter) GetToolList(ctx context.Context, id string) (*domain.ToolList, error) {
	var row toolListRow
	err := p.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query tool list: %w", err)
	}
	return p.assembleToolList(ctx, row)
}

func (p *PostgresAdapter) UpdateToolList(ctx context.Context, list domain.ToolList) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&toolListRow{}).Where("id = ?", list.ID).
			Updates(map[string]interface{}{"status": string(list.Status), "updated_at": list.UpdatedAt})
		if result.Error != nil {
			return fmt.Errorf("update tool list: %w", result.Error)
		}
		if err := tx.Where("list_id = ?", list.ID).Delete(&toolItemRow{}).Error; err != nil {
			return fmt.Errorf("clear tool list items: %w", err)
		}
		return insertToolItemRows(tx, list)
	})
}

func (p *PostgresAdapter) ActiveAssignments(ctx context.Context, key domain.InventoryKey) (int64, error) {
	var total int64
	err := p.db.WithContext(ctx).Model(&toolItemRow{}).
		Select("COALESCE(SUM(tool_list_items.quantity_assigned), 0)").
		Joins("JOIN tool_lists ON tool_lists.id = tool_list_items.list_id").
		Where("tool_lists.status = ? AND tool_list_items.item_id = ? AND tool_list_items.item_type = ?",
			string(domain.ListStatusInProgress), key.ItemID, string(key.ItemType)).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("sum active assignments: %w", err)
	}
	return total, nil
}

func (p *PostgresAdapter) ListToolListsByProject(ctx context.Context, projectID string) ([]domain.ToolList, error) {
	var rows []toolListRow
	if err := p.db.WithContext(ctx).Where("project_id = ?", projectID).
		Order("created_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query tool lists: %w", err)
	}
	out := make([]domain.ToolList, 0, len(rows))
	for _, row := range rows {
		list, err := p.assembleToolList(ctx, row)
		if err != nil {
			return nil, err
		}
		out = append(out, *list)
	}
	return out, nil
}

func (p *PostgresAdapter) assembleToolList(ctx context.Context, row toolListRow) (*domain.ToolList, error) {
	var itemRows []toolItemRow
	if err := p.db.WithContext(ctx).Where("list_id = ?", row.ID).
		Order("item_id").Find(&itemRows).Error; err != nil {
		return nil, fmt.Errorf("query tool list items: %w", err)
	}

	list := domain.ToolList{
		ID: row.ID, ProjectID: row.ProjectID, Status: domain.ListStatus(row.Status),
		CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
	}
	for _, ir := range itemRows {
		list.Items = append(list.Items, domain.ToolListItem{
			ItemID:           ir.ItemID,
			ItemType:         domain.ItemType(ir.ItemType),
			QuantityRequired: ir.QuantityRequired,
			QuantityAssigned: ir.QuantityAssigned,
		})
	}
	return &list, nil
}

func insertToolItemRows(tx *gorm.DB, list domain.ToolList) error {
	for _, item := range list.Items {
		row := toolItemRow{
			ListID:           list.ID,
			ItemID:           item.ItemID,
			ItemType:         string(item.ItemType),
			QuantityRequired: item.QuantityRequired,
			QuantityAssigned: item.QuantityAssigned,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert tool list item: %w", err)
		}
	}
	return nil
}
