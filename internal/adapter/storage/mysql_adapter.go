package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/asset-custody/internal/core/domain"
	"github.com/rl1809/asset-custody/internal/port"
)

const mysqlDuplicateEntry = 1062

// MySQLAdapter is the durable Store implementation. Composite mutations run
// inside one transaction so the entry, its custody balance, and its index
// membership always change together.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) CreateIndex(ctx context.Context, authority string) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO inventory_index (id, authority) VALUES (1, ?)`, authority)
	if isDuplicate(err) {
		return domain.ErrAlreadyInitialized
	}
	if err != nil {
		return fmt.Errorf("insert index: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) Index(ctx context.Context) (*domain.Inventory, error) {
	var inv domain.Inventory
	err := m.db.QueryRowContext(ctx, `
		SELECT authority FROM inventory_index WHERE id = 1`,
	).Scan(&inv.Authority)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT mint FROM inventory_assets ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var mint string
		if err := rows.Scan(&mint); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		inv.Assets = append(inv.Assets, mint)
	}
	return &inv, rows.Err()
}

func (m *MySQLAdapter) Asset(ctx context.Context, mint string) (*domain.AssetInfo, error) {
	var info domain.AssetInfo
	err := m.db.QueryRowContext(ctx, `
		SELECT mint, price, amount, owner, version, created_at, updated_at
		FROM inventory_assets WHERE mint = ?`, mint,
	).Scan(&info.Mint, &info.Price, &info.Amount, &info.Owner, &info.Version,
		&info.CreatedAt, &info.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query asset: %w", err)
	}
	return &info, nil
}

func (m *MySQLAdapter) ListAssets(ctx context.Context) ([]domain.AssetInfo, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT mint, price, amount, owner, version, created_at, updated_at
		FROM inventory_assets ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query assets: %w", err)
	}
	defer rows.Close()

	var out []domain.AssetInfo
	for rows.Next() {
		var info domain.AssetInfo
		if err := rows.Scan(&info.Mint, &info.Price, &info.Amount, &info.Owner,
			&info.Version, &info.CreatedAt, &info.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) CustodyBalance(ctx context.Context, mint, depositor string) (uint64, error) {
	var balance uint64
	err := m.db.QueryRowContext(ctx, `
		SELECT balance FROM custody_balances WHERE mint = ? AND depositor = ?`,
		mint, depositor,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query custody: %w", err)
	}
	return balance, nil
}

func (m *MySQLAdapter) CreateAsset(ctx context.Context, info *domain.AssetInfo) error {
	var exists int
	err := m.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM inventory_index WHERE id = 1`,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("query index: %w", err)
	}
	if exists == 0 {
		return domain.ErrNotFound
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO inventory_assets (mint, price, amount, owner, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		info.Mint, info.Price, info.Amount, info.Owner, info.Version,
		info.CreatedAt, info.UpdatedAt,
	)
	if isDuplicate(err) {
		return domain.ErrDuplicateAsset
	}
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) UpdateAsset(ctx context.Context, prevOwner string, info *domain.AssetInfo, custody uint64) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE inventory_assets
		SET price = ?, amount = ?, owner = ?, version = version + 1, updated_at = NOW()
		WHERE mint = ? AND version = ?`,
		info.Price, info.Amount, info.Owner, info.Mint, info.Version,
	)
	if err != nil {
		return fmt.Errorf("update asset: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		if _, assetErr := m.Asset(ctx, info.Mint); errors.Is(assetErr, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return port.ErrOptimisticLock
	}

	if prevOwner != info.Owner {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM custody_balances WHERE mint = ? AND depositor = ?`,
			info.Mint, prevOwner); err != nil {
			return fmt.Errorf("delete custody: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO custody_balances (mint, depositor, balance)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE balance = VALUES(balance)`,
		info.Mint, info.Owner, custody); err != nil {
		return fmt.Errorf("upsert custody: %w", err)
	}

	return tx.Commit()
}

func (m *MySQLAdapter) RemoveAsset(ctx context.Context, mint string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		DELETE FROM inventory_assets WHERE mint = ?`, mint)
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM custody_balances WHERE mint = ?`, mint); err != nil {
		return fmt.Errorf("delete custody: %w", err)
	}

	return tx.Commit()
}

// SaveReceipt persists a committed purchase for audit.
func (m *MySQLAdapter) SaveReceipt(ctx context.Context, r domain.Receipt) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO purchase_receipts (id, buyer, mint, quantity, unit_price, total_cost, fee, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Buyer, r.Mint, r.Quantity, r.UnitPrice, r.TotalCost, r.Fee, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

func isDuplicate(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry
}
