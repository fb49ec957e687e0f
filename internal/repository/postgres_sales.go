package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/loyalty-system/internal/loyalty"
	"github.com/mmeshcher/loyalty-system/internal/model"
)

// InSaleTx выполняет fn в транзакции, заблокировав строку клиента.
// Транзакции одного клиента сериализуются, транзакции разных клиентов идут параллельно.
func (r *PostgresRepository) InSaleTx(ctx context.Context, clientID int64, fn func(tx loyalty.SaleTx) error) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var dummy int
		err = tx.QueryRow(ctx, `SELECT 1 FROM clients WHERE id = $1 FOR UPDATE`, clientID).Scan(&dummy)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: %d", loyalty.ErrClientNotFound, clientID)
			}
			return fmt.Errorf("lock client for update: %w", err)
		}

		if err := fn(&pgSaleTx{tx: tx}); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// pgSaleTx реализует loyalty.SaleTx поверх pgx.Tx.
type pgSaleTx struct {
	tx pgx.Tx
}

func (t *pgSaleTx) Campaign(ctx context.Context, id int64) (*model.Campaign, error) {
	return getCampaign(ctx, t.tx, id)
}

func (t *pgSaleTx) InsertSale(ctx context.Context, s *model.Sale) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO sales (client_id, campaign_id, product_id, points, qr_token)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		s.ClientID, s.CampaignID, s.ProductID, s.Points, s.QRToken,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	return nil
}

func (t *pgSaleTx) AppendPoints(ctx context.Context, e model.PointEntry) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO point_entries (client_id, campaign_id, amount, granted_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		e.ClientID, e.CampaignID, e.Amount, e.GrantedAt, e.ExpiresAt,
	)
	if err != nil {
		if pgErr, ok := pgError(err, pgerrcode.ForeignKeyViolation); ok && pgErr.ConstraintName == "point_entries_client_id_fkey" {
			return fmt.Errorf("%w: %d", loyalty.ErrClientNotFound, e.ClientID)
		}
		return fmt.Errorf("insert point entry: %w", err)
	}
	return nil
}

func (t *pgSaleTx) SumValidPoints(ctx context.Context, clientID, campaignID int64, asOf time.Time) (int64, error) {
	var total int64
	err := t.tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0)
		 FROM point_entries
		 WHERE client_id = $1 AND campaign_id = $2 AND expires_at > $3`,
		clientID, campaignID, asOf,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum point entries: %w", err)
	}
	return total, nil
}

func (t *pgSaleTx) WinnerExists(ctx context.Context, clientID, campaignID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM winners WHERE client_id = $1 AND campaign_id = $2)`,
		clientID, campaignID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("select winner: %w", err)
	}
	return exists, nil
}

func (t *pgSaleTx) WinnerCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM winners WHERE code = $1)`, code,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("select winner code: %w", err)
	}
	return exists, nil
}

func (t *pgSaleTx) TakeRewardStock(ctx context.Context, rewardID int64) (bool, error) {
	cmdTag, err := t.tx.Exec(ctx,
		`UPDATE campaign_rewards SET stock_remaining = stock_remaining - 1
		 WHERE id = $1 AND stock_remaining IS NOT NULL AND stock_remaining > 0`,
		rewardID,
	)
	if err != nil {
		return false, fmt.Errorf("decrement reward stock: %w", err)
	}
	if cmdTag.RowsAffected() == 1 {
		return true, nil
	}

	// Остаток не уменьшился: приз либо без ограничения, либо закончился, либо удалён.
	var unlimited bool
	err = t.tx.QueryRow(ctx,
		`SELECT stock_remaining IS NULL FROM campaign_rewards WHERE id = $1`, rewardID,
	).Scan(&unlimited)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("select reward stock: %w", err)
	}
	return unlimited, nil
}

func (t *pgSaleTx) InsertWinner(ctx context.Context, w *model.Winner) error {
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin savepoint: %w", err)
	}
	defer sp.Rollback(ctx)

	err = sp.QueryRow(ctx,
		`INSERT INTO winners (client_id, campaign_id, reward_id, code, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		w.ClientID, w.CampaignID, w.RewardID, w.Code, string(w.Status),
	).Scan(&w.ID, &w.CreatedAt)
	if err != nil {
		if pgErr, ok := pgError(err, pgerrcode.UniqueViolation); ok {
			switch pgErr.ConstraintName {
			case winnersCodeKey:
				return fmt.Errorf("%w: %s", loyalty.ErrWinnerCodeTaken, w.Code)
			case winnersClientCampKey:
				return loyalty.ErrWinnerExists
			}
		}
		return fmt.Errorf("insert winner: %w", err)
	}

	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

func (t *pgSaleTx) Savepoint(ctx context.Context, fn func(tx loyalty.SaleTx) error) error {
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin savepoint: %w", err)
	}
	defer sp.Rollback(ctx)

	if err := fn(&pgSaleTx{tx: sp}); err != nil {
		return err
	}

	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

const winnerColumns = `w.id, w.client_id, w.campaign_id, w.reward_id, w.code, w.status, w.redeemed_at, w.notification_sent, w.created_at`

func scanWinner(row pgx.Row) (*model.Winner, error) {
	var (
		w      model.Winner
		status string
	)
	err := row.Scan(&w.ID, &w.ClientID, &w.CampaignID, &w.RewardID, &w.Code, &status,
		&w.RedeemedAt, &w.NotificationSent, &w.CreatedAt)
	if err != nil {
		return nil, err
	}
	w.Status = model.WinnerStatus(status)
	return &w, nil
}

// RedeemWinner атомарно переводит выигрыш в redeemed условным обновлением.
func (r *PostgresRepository) RedeemWinner(ctx context.Context, code string, at time.Time) (*model.Winner, error) {
	w, err := scanWinner(r.pool.QueryRow(ctx,
		`UPDATE winners AS w SET status = $3, redeemed_at = $2
		 WHERE w.code = $1 AND w.status = $4
		 RETURNING `+winnerColumns,
		code, at, string(model.WinnerStatusRedeemed), string(model.WinnerStatusPending),
	))
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("redeem winner: %w", err)
	}

	var exists bool
	err = r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM winners WHERE code = $1)`, code,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("select winner code: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", loyalty.ErrWinnerCodeNotFound, code)
	}
	return nil, fmt.Errorf("%w: %s", loyalty.ErrWinnerCodeAlreadyClaimed, code)
}

// ListWinners возвращает победителей по фильтру, новые первыми.
func (r *PostgresRepository) ListWinners(ctx context.Context, f model.WinnerFilter) ([]model.Winner, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+winnerColumns+`
		 FROM winners w
		 JOIN clients c ON c.id = w.client_id
		 WHERE ($1 = '' OR w.status = $1)
		   AND ($2 = '' OR c.dni = $2)
		   AND ($3::bigint = 0 OR w.campaign_id = $3::bigint)
		 ORDER BY w.created_at DESC, w.id DESC`,
		string(f.Status), f.DNI, f.CampaignID,
	)
	if err != nil {
		return nil, fmt.Errorf("select winners: %w", err)
	}
	return collectWinners(rows)
}

// ListUnnotifiedWinners возвращает победителей, которым ещё не отправлено уведомление.
func (r *PostgresRepository) ListUnnotifiedWinners(ctx context.Context, limit int) ([]model.Winner, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+winnerColumns+`
		 FROM winners w
		 WHERE NOT w.notification_sent
		 ORDER BY w.id
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select unnotified winners: %w", err)
	}
	return collectWinners(rows)
}

// MarkWinnerNotified отмечает, что уведомление победителю отправлено.
func (r *PostgresRepository) MarkWinnerNotified(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE winners SET notification_sent = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark winner notified: %w", err)
	}
	return nil
}

func collectWinners(rows pgx.Rows) ([]model.Winner, error) {
	defer rows.Close()

	var res []model.Winner
	for rows.Next() {
		w, err := scanWinner(rows)
		if err != nil {
			return nil, fmt.Errorf("scan winner: %w", err)
		}
		res = append(res, *w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetSaleReceipt возвращает квитанцию продажи по QR-токену.
func (r *PostgresRepository) GetSaleReceipt(ctx context.Context, qrToken string) (*model.SaleReceipt, error) {
	var rc model.SaleReceipt
	err := r.pool.QueryRow(ctx,
		`SELECT c.first_name, c.last_name, p.name, s.points, cp.name, s.created_at
		 FROM sales s
		 JOIN clients c ON c.id = s.client_id
		 JOIN products p ON p.id = s.product_id
		 JOIN campaigns cp ON cp.id = s.campaign_id
		 WHERE s.qr_token = $1`,
		qrToken,
	).Scan(&rc.ClientFirstName, &rc.ClientLastName, &rc.ProductName, &rc.Points, &rc.CampaignName, &rc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, loyalty.ErrQRTokenNotFound
		}
		return nil, fmt.Errorf("get sale receipt: %w", err)
	}
	return &rc, nil
}
