package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgerrcode"

	"github.com/mmeshcher/loyalty-system/internal/loyalty"
	"github.com/mmeshcher/loyalty-system/internal/model"
)

// loadCampaigns читает кампании вместе с товарами и призами. Нулевой campaignID означает все кампании.
func loadCampaigns(ctx context.Context, q querier, campaignID int64) ([]model.Campaign, error) {
	rows, err := q.Query(ctx,
		`SELECT id, name, description, starts_at, ends_at, created_at
		 FROM campaigns
		 WHERE $1::bigint = 0 OR id = $1::bigint
		 ORDER BY id`,
		campaignID,
	)
	if err != nil {
		return nil, fmt.Errorf("select campaigns: %w", err)
	}

	var campaigns []model.Campaign
	index := make(map[int64]int)
	for rows.Next() {
		var c model.Campaign
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.StartsAt, &c.EndsAt, &c.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		index[c.ID] = len(campaigns)
		campaigns = append(campaigns, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if len(campaigns) == 0 {
		return nil, nil
	}

	rows, err = q.Query(ctx,
		`SELECT campaign_id, product_id, points
		 FROM campaign_products
		 WHERE $1::bigint = 0 OR campaign_id = $1::bigint
		 ORDER BY id`,
		campaignID,
	)
	if err != nil {
		return nil, fmt.Errorf("select campaign products: %w", err)
	}
	for rows.Next() {
		var (
			id int64
			p  model.CampaignProduct
		)
		if err := rows.Scan(&id, &p.ProductID, &p.Points); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan campaign product: %w", err)
		}
		if i, ok := index[id]; ok {
			campaigns[i].Products = append(campaigns[i].Products, p)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	rows, err = q.Query(ctx,
		`SELECT campaign_id, id, description, points_required, stock_remaining
		 FROM campaign_rewards
		 WHERE $1::bigint = 0 OR campaign_id = $1::bigint
		 ORDER BY id`,
		campaignID,
	)
	if err != nil {
		return nil, fmt.Errorf("select campaign rewards: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id int64
			rw model.Reward
		)
		if err := rows.Scan(&id, &rw.ID, &rw.Description, &rw.PointsRequired, &rw.StockRemaining); err != nil {
			return nil, fmt.Errorf("scan campaign reward: %w", err)
		}
		if i, ok := index[id]; ok {
			campaigns[i].Rewards = append(campaigns[i].Rewards, rw)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return campaigns, nil
}

func getCampaign(ctx context.Context, q querier, id int64) (*model.Campaign, error) {
	campaigns, err := loadCampaigns(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if len(campaigns) == 0 {
		return nil, fmt.Errorf("%w: %d", loyalty.ErrCampaignNotFound, id)
	}
	return &campaigns[0], nil
}

// ListCampaigns возвращает все кампании в порядке создания.
func (r *PostgresRepository) ListCampaigns(ctx context.Context) ([]model.Campaign, error) {
	return loadCampaigns(ctx, r.pool, 0)
}

// GetCampaign возвращает кампанию с товарами и призами.
func (r *PostgresRepository) GetCampaign(ctx context.Context, id int64) (*model.Campaign, error) {
	return getCampaign(ctx, r.pool, id)
}

// CreateCampaign создаёт кампанию вместе с товарами и призами в одной транзакции.
func (r *PostgresRepository) CreateCampaign(ctx context.Context, c *model.Campaign) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO campaigns (name, description, starts_at, ends_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		c.Name, c.Description, c.StartsAt, c.EndsAt,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if _, ok := pgError(err, pgerrcode.CheckViolation); ok {
			return loyalty.ErrInvalidCampaignDates
		}
		return fmt.Errorf("insert campaign: %w", err)
	}

	for _, p := range c.Products {
		if err := insertCampaignProduct(ctx, tx, c.ID, p); err != nil {
			return err
		}
	}

	for i := range c.Rewards {
		if err := insertCampaignReward(ctx, tx, c.ID, &c.Rewards[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// UpdateCampaign сохраняет название, описание и окно кампании.
func (r *PostgresRepository) UpdateCampaign(ctx context.Context, c *model.Campaign) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE campaigns SET name = $2, description = $3, starts_at = $4, ends_at = $5
		 WHERE id = $1`,
		c.ID, c.Name, c.Description, c.StartsAt, c.EndsAt,
	)
	if err != nil {
		if _, ok := pgError(err, pgerrcode.CheckViolation); ok {
			return loyalty.ErrInvalidCampaignDates
		}
		return fmt.Errorf("update campaign: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", loyalty.ErrCampaignNotFound, c.ID)
	}
	return nil
}

// DeleteCampaign удаляет кампанию, по которой ещё не было продаж.
func (r *PostgresRepository) DeleteCampaign(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		if _, ok := pgError(err, pgerrcode.ForeignKeyViolation); ok {
			return fmt.Errorf("%w: %d", loyalty.ErrCampaignInUse, id)
		}
		return fmt.Errorf("delete campaign: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", loyalty.ErrCampaignNotFound, id)
	}
	return nil
}

// AddCampaignProduct добавляет товар в кампанию.
func (r *PostgresRepository) AddCampaignProduct(ctx context.Context, campaignID int64, p model.CampaignProduct) error {
	return insertCampaignProduct(ctx, r.pool, campaignID, p)
}

// AddCampaignReward добавляет приз в конец списка призов кампании.
func (r *PostgresRepository) AddCampaignReward(ctx context.Context, campaignID int64, rw *model.Reward) error {
	return insertCampaignReward(ctx, r.pool, campaignID, rw)
}

// RemoveCampaignReward удаляет приз кампании. Выданные выигрыши сохраняют ссылку на его идентификатор.
func (r *PostgresRepository) RemoveCampaignReward(ctx context.Context, campaignID, rewardID int64) error {
	cmdTag, err := r.pool.Exec(ctx,
		`DELETE FROM campaign_rewards WHERE campaign_id = $1 AND id = $2`,
		campaignID, rewardID,
	)
	if err != nil {
		return fmt.Errorf("delete campaign reward: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", loyalty.ErrRewardNotFound, rewardID)
	}
	return nil
}

func insertCampaignProduct(ctx context.Context, q querier, campaignID int64, p model.CampaignProduct) error {
	_, err := q.Exec(ctx,
		`INSERT INTO campaign_products (campaign_id, product_id, points) VALUES ($1, $2, $3)`,
		campaignID, p.ProductID, p.Points,
	)
	if err == nil {
		return nil
	}

	if pgErr, ok := pgError(err, pgerrcode.UniqueViolation); ok && pgErr.ConstraintName == campaignProductsKey {
		return fmt.Errorf("%w: %d", loyalty.ErrProductInCampaign, p.ProductID)
	}
	if pgErr, ok := pgError(err, pgerrcode.ForeignKeyViolation); ok {
		if pgErr.ConstraintName == "campaign_products_campaign_id_fkey" {
			return fmt.Errorf("%w: %d", loyalty.ErrCampaignNotFound, campaignID)
		}
		return fmt.Errorf("%w: %d", loyalty.ErrProductNotFound, p.ProductID)
	}
	return fmt.Errorf("insert campaign product: %w", err)
}

func insertCampaignReward(ctx context.Context, q querier, campaignID int64, rw *model.Reward) error {
	err := q.QueryRow(ctx,
		`INSERT INTO campaign_rewards (campaign_id, description, points_required, stock_remaining)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		campaignID, rw.Description, rw.PointsRequired, rw.StockRemaining,
	).Scan(&rw.ID)
	if err != nil {
		if _, ok := pgError(err, pgerrcode.ForeignKeyViolation); ok {
			return fmt.Errorf("%w: %d", loyalty.ErrCampaignNotFound, campaignID)
		}
		return fmt.Errorf("insert campaign reward: %w", err)
	}
	return nil
}
