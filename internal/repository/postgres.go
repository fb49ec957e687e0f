// Package repository содержит реализации хранилища программы лояльности: PostgreSQL и in-memory.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/loyalty-system/internal/loyalty"
	"github.com/mmeshcher/loyalty-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	clientsDNIKey        = "clients_dni_key"
	productsCodeKey      = "products_code_key"
	campaignProductsKey  = "campaign_products_campaign_id_product_id_key"
	winnersCodeKey       = "winners_code_key"
	winnersClientCampKey = "winners_client_id_campaign_id_key"
)

// querier покрывает общие методы pgxpool.Pool и pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	delays []time.Duration
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{
		pool:   pool,
		delays: []time.Duration{100 * time.Millisecond, 300 * time.Millisecond, 1 * time.Second},
	}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет fn при конфликтах сериализации, взаимоблокировках и обрывах соединения.
// После исчерпания попыток конфликт возвращается как loyalty.ErrConflict.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error

	for i := 0; i <= len(r.delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isRetryable(err) {
			return err
		}

		if i < len(r.delays) {
			timer := time.NewTimer(r.delays[i])
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	return fmt.Errorf("%w: %v", loyalty.ErrConflict, err)
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// pgError возвращает ошибку PostgreSQL с указанным кодом.
func pgError(err error, code string) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == code {
		return pgErr, true
	}
	return nil, false
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateStaffUser создаёт сотрудника, если сотрудника с таким именем ещё нет.
func (r *PostgresRepository) CreateStaffUser(ctx context.Context, u *model.StaffUser) (bool, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO staff_users (name, pin_hash, role, active)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (name) DO NOTHING
		 RETURNING id, created_at`,
		u.Name, u.PinHash, string(u.Role), u.Active,
	).Scan(&u.ID, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create staff user: %w", err)
	}
	return true, nil
}

// GetStaffUserByName возвращает сотрудника по имени.
func (r *PostgresRepository) GetStaffUserByName(ctx context.Context, name string) (*model.StaffUser, error) {
	var (
		u    model.StaffUser
		role string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, pin_hash, role, active, created_at FROM staff_users WHERE name = $1`,
		name,
	).Scan(&u.ID, &u.Name, &u.PinHash, &role, &u.Active, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, loyalty.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("get staff user: %w", err)
	}
	u.Role = model.Role(role)
	return &u, nil
}

const clientColumns = `id, dni, first_name, last_name, phone, email, created_at`

func scanClient(row pgx.Row) (*model.Client, error) {
	var c model.Client
	if err := row.Scan(&c.ID, &c.DNI, &c.FirstName, &c.LastName, &c.Phone, &c.Email, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateClient создаёт клиента. DNI уникален.
func (r *PostgresRepository) CreateClient(ctx context.Context, c *model.Client) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO clients (dni, first_name, last_name, phone, email)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		c.DNI, c.FirstName, c.LastName, c.Phone, c.Email,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if _, ok := pgError(err, pgerrcode.UniqueViolation); ok {
			return fmt.Errorf("%w: %s", loyalty.ErrClientExists, c.DNI)
		}
		return fmt.Errorf("create client: %w", err)
	}
	return nil
}

// UpdateClient обновляет данные клиента.
func (r *PostgresRepository) UpdateClient(ctx context.Context, c *model.Client) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE clients SET dni = $2, first_name = $3, last_name = $4, phone = $5, email = $6
		 WHERE id = $1`,
		c.ID, c.DNI, c.FirstName, c.LastName, c.Phone, c.Email,
	)
	if err != nil {
		if pgErr, ok := pgError(err, pgerrcode.UniqueViolation); ok && pgErr.ConstraintName == clientsDNIKey {
			return fmt.Errorf("%w: %s", loyalty.ErrClientExists, c.DNI)
		}
		return fmt.Errorf("update client: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return loyalty.ErrClientNotFound
	}
	return nil
}

// GetClient возвращает клиента по идентификатору.
func (r *PostgresRepository) GetClient(ctx context.Context, id int64) (*model.Client, error) {
	c, err := scanClient(r.pool.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", loyalty.ErrClientNotFound, id)
		}
		return nil, fmt.Errorf("get client: %w", err)
	}
	return c, nil
}

// GetClientByDNI возвращает клиента по DNI.
func (r *PostgresRepository) GetClientByDNI(ctx context.Context, dni string) (*model.Client, error) {
	c, err := scanClient(r.pool.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE dni = $1`, dni))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", loyalty.ErrClientNotFound, dni)
		}
		return nil, fmt.Errorf("get client by dni: %w", err)
	}
	return c, nil
}

// ListClients возвращает страницу клиентов, новые первыми, и общее количество клиентов.
func (r *PostgresRepository) ListClients(ctx context.Context, limit, offset int) ([]model.Client, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM clients`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count clients: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+clientColumns+`
		 FROM clients
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("select clients: %w", err)
	}
	defer rows.Close()

	var res []model.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan client: %w", err)
		}
		res = append(res, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return res, total, nil
}

// ClientPointEntries возвращает все начисления клиента в порядке добавления.
func (r *PostgresRepository) ClientPointEntries(ctx context.Context, clientID int64) ([]model.PointEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT client_id, campaign_id, amount, granted_at, expires_at
		 FROM point_entries
		 WHERE client_id = $1
		 ORDER BY id`,
		clientID,
	)
	if err != nil {
		return nil, fmt.Errorf("select point entries: %w", err)
	}
	defer rows.Close()

	var res []model.PointEntry
	for rows.Next() {
		var e model.PointEntry
		if err := rows.Scan(&e.ClientID, &e.CampaignID, &e.Amount, &e.GrantedAt, &e.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan point entry: %w", err)
		}
		res = append(res, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

const productColumns = `id, code, name, description, active, created_at`

func scanProduct(row pgx.Row) (*model.Product, error) {
	var p model.Product
	if err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Description, &p.Active, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProduct создаёт товар. Код товара уникален.
func (r *PostgresRepository) CreateProduct(ctx context.Context, p *model.Product) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO products (code, name, description, active)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		p.Code, p.Name, p.Description, p.Active,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if pgErr, ok := pgError(err, pgerrcode.UniqueViolation); ok && pgErr.ConstraintName == productsCodeKey {
			return fmt.Errorf("%w: %s", loyalty.ErrProductExists, p.Code)
		}
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

// GetProduct возвращает товар по идентификатору.
func (r *PostgresRepository) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", loyalty.ErrProductNotFound, id)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// GetProductByCode возвращает товар по коду.
func (r *PostgresRepository) GetProductByCode(ctx context.Context, code string) (*model.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE code = $1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", loyalty.ErrProductNotFound, code)
		}
		return nil, fmt.Errorf("get product by code: %w", err)
	}
	return p, nil
}

// ListActiveProducts возвращает активные товары, упорядоченные по названию.
func (r *PostgresRepository) ListActiveProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE active ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var res []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
