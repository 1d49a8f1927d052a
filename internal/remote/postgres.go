package remote

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/nexypass/nexypass-backend/internal/models"
)

// Column allow-list per collection. Queries are built from these names only;
// anything else is rejected before touching the database.
var collectionColumns = map[string][]string{
	models.CollectionUsers:            {"id", "username", "email", "role", "wallet_balance", "is_approved", "created_at"},
	models.CollectionProducts:         {"id", "name", "price", "image_url", "category", "is_active", "created_at"},
	models.CollectionStockItems:       {"id", "product_id", "credentials", "is_sold", "sold_to", "order_id", "sold_at", "created_at"},
	models.CollectionOrders:           {"id", "code", "product_name", "price_at_purchase", "credentials_delivered", "purchase_url", "profile_info", "supplier", "customer_name", "customer_phone", "user_id", "product_id", "status", "created_at", "expires_at"},
	models.CollectionTransactions:     {"id", "type", "amount", "description", "user_id", "product_id", "status", "created_at"},
	models.CollectionRechargeRequests: {"id", "user_id", "username", "amount", "method", "status", "created_at", "processed_at"},
}

// Postgres implements Backend over database/sql with lib/pq.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func validate(collection string, fields Row) ([]string, error) {
	allowed, ok := collectionColumns[collection]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", collection)
	}
	cols := make([]string, 0, len(fields))
	for col := range fields {
		found := false
		for _, a := range allowed {
			if a == col {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown column %q in collection %q", col, collection)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols, nil
}

func (p *Postgres) Insert(ctx context.Context, collection string, fields Row) (Row, error) {
	cols, err := validate(collection, fields)
	if err != nil {
		return nil, err
	}
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = fields[col]
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		collection, strings.Join(cols, ", "), strings.Join(placeholders, ", "),
	)
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", collection, err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", collection, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("insert into %s: no row returned", collection)
	}
	return out[0], nil
}

func (p *Postgres) Select(ctx context.Context, collection string, filters Row) ([]Row, error) {
	cols, err := validate(collection, filters)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT * FROM %s", collection)
	args := make([]any, 0, len(cols))
	if len(cols) > 0 {
		conds := make([]string, len(cols))
		for i, col := range cols {
			conds[i] = fmt.Sprintf("%s = $%d", col, i+1)
			args = append(args, filters[col])
		}
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select from %s: %w", collection, err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func (p *Postgres) Update(ctx context.Context, collection string, id string, fields Row) error {
	cols, err := validate(collection, fields)
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		return nil
	}
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", col, i+1)
		args = append(args, fields[col])
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", collection, strings.Join(sets, ", "), len(cols)+1)
	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update %s: %w", collection, err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, collection string, id string) error {
	if _, ok := collectionColumns[collection]; !ok {
		return fmt.Errorf("unknown collection %q", collection)
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", collection)
	if _, err := p.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete from %s: %w", collection, err)
	}
	return nil
}

func (p *Postgres) DeleteWhere(ctx context.Context, collection string, filters Row) error {
	cols, err := validate(collection, filters)
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		return fmt.Errorf("delete from %s: empty filter", collection)
	}
	conds := make([]string, len(cols))
	args := make([]any, 0, len(cols))
	for i, col := range cols {
		conds[i] = fmt.Sprintf("%s = $%d", col, i+1)
		args = append(args, filters[col])
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", collection, strings.Join(conds, " AND "))
	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete from %s: %w", collection, err)
	}
	return nil
}

func (p *Postgres) Probe(ctx context.Context) error {
	var one int
	if err := p.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("probe: %w", err)
	}
	return nil
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []Row{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := Row{}
		for i, col := range cols {
			switch v := values[i].(type) {
			case []byte:
				row[col] = string(v)
			default:
				row[col] = v
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
