package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/meridianpress/draftsync/internal/common"
	"github.com/meridianpress/draftsync/models"
	"github.com/meridianpress/draftsync/remote/migrations"
	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresClient implements Client on a single documents table. Update uses
// a JSONB merge so partial field maps never clobber omitted fields, and all
// timestamps come from now() on the server.
type PostgresClient struct {
	db *sql.DB
}

func NewPostgresClient(db *sql.DB) *PostgresClient {
	return &PostgresClient{db: db}
}

// Open connects to the document store and applies the embedded migrations.
func Open(ctx context.Context, dsn string) (*PostgresClient, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open document store: %w", err)
	}

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return nil, fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return nil, fmt.Errorf("failed to migrate document store: %w", err)
	}

	return NewPostgresClient(db), nil
}

func (c *PostgresClient) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	payload, err := json.Marshal(fields)
	if err != nil {
		return "", &common.PersistenceError{Op: "create", Collection: collection, Err: err}
	}

	query := `INSERT INTO documents (collection, fields) VALUES ($1, $2) RETURNING id::text`
	var id string
	if err := c.db.QueryRowContext(ctx, query, collection, payload).Scan(&id); err != nil {
		return "", &common.PersistenceError{Op: "create", Collection: collection, Err: classify(err)}
	}
	return id, nil
}

func (c *PostgresClient) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return &common.PersistenceError{Op: "update", Collection: collection, Err: err}
	}

	query := `UPDATE documents SET fields = fields || $3::jsonb, updated_at = now()
		WHERE collection = $1 AND id = $2::uuid`
	res, err := c.db.ExecContext(ctx, query, collection, id, payload)
	if err != nil {
		return &common.PersistenceError{Op: "update", Collection: collection, Err: classify(err)}
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return &common.PersistenceError{Op: "update", Collection: collection, Err: err}
	}
	if ra == 0 {
		return &common.PersistenceError{Op: "update", Collection: collection, Err: common.ErrNotFound}
	}
	return nil
}

func (c *PostgresClient) Delete(ctx context.Context, collection, id string) error {
	query := `DELETE FROM documents WHERE collection = $1 AND id = $2::uuid`
	res, err := c.db.ExecContext(ctx, query, collection, id)
	if err != nil {
		return &common.PersistenceError{Op: "delete", Collection: collection, Err: classify(err)}
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return &common.PersistenceError{Op: "delete", Collection: collection, Err: err}
	}
	if ra == 0 {
		return &common.PersistenceError{Op: "delete", Collection: collection, Err: common.ErrNotFound}
	}
	return nil
}

func (c *PostgresClient) Get(ctx context.Context, collection, id string) (*models.RemoteEntity, error) {
	query := `SELECT id::text, fields, created_at, updated_at FROM documents
		WHERE collection = $1 AND id = $2::uuid`
	row := c.db.QueryRowContext(ctx, query, collection, id)

	e, err := scanEntity(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &common.PersistenceError{Op: "get", Collection: collection, Err: common.ErrNotFound}
	}
	if err != nil {
		return nil, &common.PersistenceError{Op: "get", Collection: collection, Err: classify(err)}
	}
	return e, nil
}

func (c *PostgresClient) List(ctx context.Context, collection string, f Filter) ([]models.RemoteEntity, error) {
	query, args := buildListQuery(collection, f)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &common.PersistenceError{Op: "list", Collection: collection, Err: classify(err)}
	}
	defer rows.Close()

	var result []models.RemoteEntity
	for rows.Next() {
		e, err := scanEntity(rows.Scan)
		if err != nil {
			return nil, &common.PersistenceError{Op: "list", Collection: collection, Err: err}
		}
		result = append(result, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, &common.PersistenceError{Op: "list", Collection: collection, Err: classify(err)}
	}
	return result, nil
}

// Close closes the underlying connection pool.
func (c *PostgresClient) Close() error {
	return c.db.Close()
}

func buildListQuery(collection string, f Filter) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`SELECT id::text, fields, created_at, updated_at FROM documents WHERE collection = $1`)
	args := []any{collection}

	if f.Field != "" {
		sb.WriteString(fmt.Sprintf(` AND fields->>$%d = $%d`, len(args)+1, len(args)+2))
		args = append(args, f.Field, f.Equals)
	}

	if f.OrderBy != "" {
		sb.WriteString(fmt.Sprintf(` ORDER BY fields->>$%d`, len(args)+1))
		args = append(args, f.OrderBy)
	} else {
		sb.WriteString(` ORDER BY created_at`)
	}
	if f.Descending {
		sb.WriteString(` DESC`)
	}

	return sb.String(), args
}

func scanEntity(scan func(dest ...any) error) (*models.RemoteEntity, error) {
	var e models.RemoteEntity
	var payload []byte
	if err := scan(&e.ID, &payload, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &e.Fields); err != nil {
		return nil, err
	}
	return &e, nil
}

// classify maps driver-level failures onto the cause sentinels so callers
// can react with errors.Is.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// insufficient_privilege or any authorization-class failure
		if pgErr.Code == "42501" || strings.HasPrefix(pgErr.Code, "28") {
			return fmt.Errorf("%w: %s", common.ErrPermission, pgErr.Message)
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	return err
}
