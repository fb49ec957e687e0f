package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mmeshcher/loyalty-system/internal/loyalty"
	"github.com/mmeshcher/loyalty-system/internal/model"
)

type winnerKey struct {
	clientID   int64
	campaignID int64
}

// MemoryRepository хранит данные в памяти процесса.
// Используется, когда адрес БД не задан, и в тестах.
type MemoryRepository struct {
	mu  sync.RWMutex
	now func() time.Time

	// locks сериализует транзакции продажи одного клиента: int64 -> *sync.Mutex.
	locks sync.Map

	nextID int64

	staff map[string]*model.StaffUser

	clients     map[int64]*model.Client
	clientByDNI map[string]int64
	points      map[int64][]model.PointEntry

	products      map[int64]*model.Product
	productByCode map[string]int64

	campaigns      map[int64]*model.Campaign
	rewardCampaign map[int64]int64

	sales map[string]*model.Sale

	winners      map[int64]*model.Winner
	winnerByCode map[string]int64
	winnerByPair map[winnerKey]int64

	// reservedCodes и reservedStock держат резервы незавершённых транзакций продажи.
	reservedCodes map[string]struct{}
	reservedStock map[int64]int64
}

// NewMemoryRepository создаёт пустое хранилище в памяти.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		now:            time.Now,
		staff:          make(map[string]*model.StaffUser),
		clients:        make(map[int64]*model.Client),
		clientByDNI:    make(map[string]int64),
		points:         make(map[int64][]model.PointEntry),
		products:       make(map[int64]*model.Product),
		productByCode:  make(map[string]int64),
		campaigns:      make(map[int64]*model.Campaign),
		rewardCampaign: make(map[int64]int64),
		sales:          make(map[string]*model.Sale),
		winners:        make(map[int64]*model.Winner),
		winnerByCode:   make(map[string]int64),
		winnerByPair:   make(map[winnerKey]int64),
		reservedCodes:  make(map[string]struct{}),
		reservedStock:  make(map[int64]int64),
	}
}

// Close ничего не делает и нужен для совместимости с PostgresRepository.
func (r *MemoryRepository) Close() error {
	return nil
}

// id выдаёт следующий идентификатор. Вызывается под r.mu.
func (r *MemoryRepository) id() int64 {
	r.nextID++
	return r.nextID
}

// CreateStaffUser создаёт сотрудника, если сотрудника с таким именем ещё нет.
func (r *MemoryRepository) CreateStaffUser(_ context.Context, u *model.StaffUser) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.staff[u.Name]; ok {
		return false, nil
	}
	u.ID = r.id()
	u.CreatedAt = r.now()
	cp := *u
	r.staff[u.Name] = &cp
	return true, nil
}

// GetStaffUserByName возвращает сотрудника по имени.
func (r *MemoryRepository) GetStaffUserByName(_ context.Context, name string) (*model.StaffUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.staff[name]
	if !ok {
		return nil, loyalty.ErrInvalidCredentials
	}
	cp := *u
	return &cp, nil
}

// CreateClient создаёт клиента. DNI уникален.
func (r *MemoryRepository) CreateClient(_ context.Context, c *model.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clientByDNI[c.DNI]; ok {
		return fmt.Errorf("%w: %s", loyalty.ErrClientExists, c.DNI)
	}
	c.ID = r.id()
	c.CreatedAt = r.now()
	cp := *c
	r.clients[c.ID] = &cp
	r.clientByDNI[c.DNI] = c.ID
	return nil
}

// UpdateClient обновляет данные клиента.
func (r *MemoryRepository) UpdateClient(_ context.Context, c *model.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.clients[c.ID]
	if !ok {
		return loyalty.ErrClientNotFound
	}
	if id, ok := r.clientByDNI[c.DNI]; ok && id != c.ID {
		return fmt.Errorf("%w: %s", loyalty.ErrClientExists, c.DNI)
	}

	delete(r.clientByDNI, old.DNI)
	cp := *c
	cp.CreatedAt = old.CreatedAt
	r.clients[c.ID] = &cp
	r.clientByDNI[c.DNI] = c.ID
	return nil
}

// GetClient возвращает клиента по идентификатору.
func (r *MemoryRepository) GetClient(_ context.Context, id int64) (*model.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", loyalty.ErrClientNotFound, id)
	}
	cp := *c
	return &cp, nil
}

// GetClientByDNI возвращает клиента по DNI.
func (r *MemoryRepository) GetClientByDNI(_ context.Context, dni string) (*model.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.clientByDNI[dni]
	if !ok {
		return nil, fmt.Errorf("%w: %s", loyalty.ErrClientNotFound, dni)
	}
	cp := *r.clients[id]
	return &cp, nil
}

// ListClients возвращает страницу клиентов, новые первыми, и общее количество клиентов.
func (r *MemoryRepository) ListClients(_ context.Context, limit, offset int) ([]model.Client, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]model.Client, 0, len(r.clients))
	for _, c := range r.clients {
		all = append(all, *c)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

// ClientPointEntries возвращает все начисления клиента в порядке добавления.
func (r *MemoryRepository) ClientPointEntries(_ context.Context, clientID int64) ([]model.PointEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]model.PointEntry(nil), r.points[clientID]...), nil
}

// CreateProduct создаёт товар. Код товара уникален.
func (r *MemoryRepository) CreateProduct(_ context.Context, p *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.productByCode[p.Code]; ok {
		return fmt.Errorf("%w: %s", loyalty.ErrProductExists, p.Code)
	}
	p.ID = r.id()
	p.CreatedAt = r.now()
	cp := *p
	r.products[p.ID] = &cp
	r.productByCode[p.Code] = p.ID
	return nil
}

// GetProduct возвращает товар по идентификатору.
func (r *MemoryRepository) GetProduct(_ context.Context, id int64) (*model.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", loyalty.ErrProductNotFound, id)
	}
	cp := *p
	return &cp, nil
}

// GetProductByCode возвращает товар по коду.
func (r *MemoryRepository) GetProductByCode(_ context.Context, code string) (*model.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.productByCode[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", loyalty.ErrProductNotFound, code)
	}
	cp := *r.products[id]
	return &cp, nil
}

// ListActiveProducts возвращает активные товары, упорядоченные по названию.
func (r *MemoryRepository) ListActiveProducts(_ context.Context) ([]model.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var res []model.Product
	for _, p := range r.products {
		if p.Active {
			res = append(res, *p)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Name != res[j].Name {
			return res[i].Name < res[j].Name
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

func copyCampaign(c *model.Campaign) *model.Campaign {
	cp := *c
	cp.Products = append([]model.CampaignProduct(nil), c.Products...)
	cp.Rewards = make([]model.Reward, len(c.Rewards))
	for i, rw := range c.Rewards {
		if rw.StockRemaining != nil {
			stock := *rw.StockRemaining
			rw.StockRemaining = &stock
		}
		cp.Rewards[i] = rw
	}
	return &cp
}

// ListCampaigns возвращает все кампании в порядке создания.
func (r *MemoryRepository) ListCampaigns(_ context.Context) ([]model.Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]model.Campaign, 0, len(r.campaigns))
	for _, c := range r.campaigns {
		res = append(res, *copyCampaign(c))
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// GetCampaign возвращает кампанию с товарами и призами.
func (r *MemoryRepository) GetCampaign(_ context.Context, id int64) (*model.Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.campaigns[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", loyalty.ErrCampaignNotFound, id)
	}
	return copyCampaign(c), nil
}

// CreateCampaign создаёт кампанию вместе с товарами и призами.
func (r *MemoryRepository) CreateCampaign(_ context.Context, c *model.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !c.StartsAt.Before(c.EndsAt) {
		return loyalty.ErrInvalidCampaignDates
	}
	seen := make(map[int64]bool, len(c.Products))
	for _, p := range c.Products {
		if _, ok := r.products[p.ProductID]; !ok {
			return fmt.Errorf("%w: %d", loyalty.ErrProductNotFound, p.ProductID)
		}
		if seen[p.ProductID] {
			return fmt.Errorf("%w: %d", loyalty.ErrProductInCampaign, p.ProductID)
		}
		seen[p.ProductID] = true
	}

	c.ID = r.id()
	c.CreatedAt = r.now()
	for i := range c.Rewards {
		c.Rewards[i].ID = r.id()
		r.rewardCampaign[c.Rewards[i].ID] = c.ID
	}
	r.campaigns[c.ID] = copyCampaign(c)
	return nil
}

// UpdateCampaign сохраняет название, описание и окно кампании.
func (r *MemoryRepository) UpdateCampaign(_ context.Context, c *model.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.campaigns[c.ID]
	if !ok {
		return fmt.Errorf("%w: %d", loyalty.ErrCampaignNotFound, c.ID)
	}
	if !c.StartsAt.Before(c.EndsAt) {
		return loyalty.ErrInvalidCampaignDates
	}
	stored.Name = c.Name
	stored.Description = c.Description
	stored.StartsAt = c.StartsAt
	stored.EndsAt = c.EndsAt
	return nil
}

// DeleteCampaign удаляет кампанию, по которой ещё не было продаж.
func (r *MemoryRepository) DeleteCampaign(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.campaigns[id]
	if !ok {
		return fmt.Errorf("%w: %d", loyalty.ErrCampaignNotFound, id)
	}
	for _, s := range r.sales {
		if s.CampaignID == id {
			return fmt.Errorf("%w: %d", loyalty.ErrCampaignInUse, id)
		}
	}
	for _, w := range r.winners {
		if w.CampaignID == id {
			return fmt.Errorf("%w: %d", loyalty.ErrCampaignInUse, id)
		}
	}

	for _, rw := range c.Rewards {
		delete(r.rewardCampaign, rw.ID)
	}
	delete(r.campaigns, id)
	return nil
}

// AddCampaignProduct добавляет товар в кампанию.
func (r *MemoryRepository) AddCampaignProduct(_ context.Context, campaignID int64, p model.CampaignProduct) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.campaigns[campaignID]
	if !ok {
		return fmt.Errorf("%w: %d", loyalty.ErrCampaignNotFound, campaignID)
	}
	if _, ok := r.products[p.ProductID]; !ok {
		return fmt.Errorf("%w: %d", loyalty.ErrProductNotFound, p.ProductID)
	}
	if _, ok := c.ProductPoints(p.ProductID); ok {
		return fmt.Errorf("%w: %d", loyalty.ErrProductInCampaign, p.ProductID)
	}
	c.Products = append(c.Products, p)
	return nil
}

// AddCampaignReward добавляет приз в конец списка призов кампании.
func (r *MemoryRepository) AddCampaignReward(_ context.Context, campaignID int64, rw *model.Reward) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.campaigns[campaignID]
	if !ok {
		return fmt.Errorf("%w: %d", loyalty.ErrCampaignNotFound, campaignID)
	}
	rw.ID = r.id()
	stored := *rw
	if rw.StockRemaining != nil {
		stock := *rw.StockRemaining
		stored.StockRemaining = &stock
	}
	c.Rewards = append(c.Rewards, stored)
	r.rewardCampaign[rw.ID] = campaignID
	return nil
}

// RemoveCampaignReward удаляет приз кампании. Выданные выигрыши сохраняют ссылку на его идентификатор.
func (r *MemoryRepository) RemoveCampaignReward(_ context.Context, campaignID, rewardID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.campaigns[campaignID]
	if !ok {
		return fmt.Errorf("%w: %d", loyalty.ErrRewardNotFound, rewardID)
	}
	for i, rw := range c.Rewards {
		if rw.ID == rewardID {
			c.Rewards = append(c.Rewards[:i], c.Rewards[i+1:]...)
			delete(r.rewardCampaign, rewardID)
			return nil
		}
	}
	return fmt.Errorf("%w: %d", loyalty.ErrRewardNotFound, rewardID)
}

// findReward возвращает указатель на хранимый приз. Вызывается под r.mu.
func (r *MemoryRepository) findReward(rewardID int64) *model.Reward {
	campaignID, ok := r.rewardCampaign[rewardID]
	if !ok {
		return nil
	}
	c := r.campaigns[campaignID]
	for i := range c.Rewards {
		if c.Rewards[i].ID == rewardID {
			return &c.Rewards[i]
		}
	}
	return nil
}

func (r *MemoryRepository) clientLock(clientID int64) *sync.Mutex {
	mu, _ := r.locks.LoadOrStore(clientID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// InSaleTx выполняет fn, удерживая блокировку клиента. Изменения fn копятся в транзакции
// и становятся видны другим читателям только после успешного завершения fn.
func (r *MemoryRepository) InSaleTx(ctx context.Context, clientID int64, fn func(tx loyalty.SaleTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	mu := r.clientLock(clientID)
	mu.Lock()
	defer mu.Unlock()

	r.mu.RLock()
	_, ok := r.clients[clientID]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %d", loyalty.ErrClientNotFound, clientID)
	}

	tx := &memSaleTx{repo: r}
	if err := fn(tx); err != nil {
		tx.rollbackTo(txMark{})
		return err
	}
	if err := ctx.Err(); err != nil {
		tx.rollbackTo(txMark{})
		return err
	}
	return tx.commit()
}

// memSaleTx копит изменения до commit. Коды выигрышей и остатки призов резервируются
// в хранилище сразу, чтобы параллельные транзакции других клиентов их не заняли.
type memSaleTx struct {
	repo *MemoryRepository

	sales   []*model.Sale
	points  []model.PointEntry
	stock   []int64
	winners []*model.Winner
}

// txMark запоминает длины буферов транзакции для отката к точке сохранения.
type txMark struct {
	sales, points, stock, winners int
}

func (t *memSaleTx) mark() txMark {
	return txMark{len(t.sales), len(t.points), len(t.stock), len(t.winners)}
}

// rollbackTo отбрасывает изменения, сделанные после m, и снимает их резервы.
func (t *memSaleTx) rollbackTo(m txMark) {
	r := t.repo
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rewardID := range t.stock[m.stock:] {
		r.releaseStock(rewardID)
	}
	for _, w := range t.winners[m.winners:] {
		delete(r.reservedCodes, w.Code)
	}

	t.sales = t.sales[:m.sales]
	t.points = t.points[:m.points]
	t.stock = t.stock[:m.stock]
	t.winners = t.winners[:m.winners]
}

// commit переносит накопленные изменения в хранилище одним шагом.
func (t *memSaleTx) commit() error {
	r := t.repo
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range t.sales {
		if _, ok := r.sales[s.QRToken]; ok {
			t.release()
			return fmt.Errorf("insert sale: duplicate qr token %s", s.QRToken)
		}
	}

	for _, s := range t.sales {
		r.sales[s.QRToken] = s
	}
	for _, e := range t.points {
		r.points[e.ClientID] = append(r.points[e.ClientID], e)
	}
	for _, rewardID := range t.stock {
		if rw := r.findReward(rewardID); rw != nil && rw.StockRemaining != nil {
			*rw.StockRemaining--
		}
	}
	for _, w := range t.winners {
		r.winners[w.ID] = w
		r.winnerByCode[w.Code] = w.ID
		r.winnerByPair[winnerKey{w.ClientID, w.CampaignID}] = w.ID
	}
	t.release()
	return nil
}

// release снимает все резервы транзакции. Вызывается под r.mu.
func (t *memSaleTx) release() {
	r := t.repo
	for _, rewardID := range t.stock {
		r.releaseStock(rewardID)
	}
	for _, w := range t.winners {
		delete(r.reservedCodes, w.Code)
	}
}

// releaseStock снимает один резерв приза. Вызывается под r.mu.
func (r *MemoryRepository) releaseStock(rewardID int64) {
	if r.reservedStock[rewardID] <= 1 {
		delete(r.reservedStock, rewardID)
		return
	}
	r.reservedStock[rewardID]--
}

func (t *memSaleTx) Campaign(ctx context.Context, id int64) (*model.Campaign, error) {
	return t.repo.GetCampaign(ctx, id)
}

func (t *memSaleTx) InsertSale(_ context.Context, s *model.Sale) error {
	r := t.repo
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sales[s.QRToken]; ok {
		return fmt.Errorf("insert sale: duplicate qr token %s", s.QRToken)
	}
	for _, staged := range t.sales {
		if staged.QRToken == s.QRToken {
			return fmt.Errorf("insert sale: duplicate qr token %s", s.QRToken)
		}
	}
	s.ID = r.id()
	s.CreatedAt = r.now()
	cp := *s
	t.sales = append(t.sales, &cp)
	return nil
}

func (t *memSaleTx) AppendPoints(_ context.Context, e model.PointEntry) error {
	r := t.repo
	r.mu.RLock()
	_, ok := r.clients[e.ClientID]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %d", loyalty.ErrClientNotFound, e.ClientID)
	}
	if e.Amount <= 0 {
		return fmt.Errorf("insert point entry: non-positive amount %d", e.Amount)
	}
	t.points = append(t.points, e)
	return nil
}

func (t *memSaleTx) SumValidPoints(_ context.Context, clientID, campaignID int64, asOf time.Time) (int64, error) {
	r := t.repo
	r.mu.RLock()
	entries := append([]model.PointEntry(nil), r.points[clientID]...)
	r.mu.RUnlock()

	for _, e := range t.points {
		if e.ClientID == clientID {
			entries = append(entries, e)
		}
	}
	return loyalty.SumValid(entries, campaignID, asOf), nil
}

func (t *memSaleTx) WinnerExists(_ context.Context, clientID, campaignID int64) (bool, error) {
	for _, w := range t.winners {
		if w.ClientID == clientID && w.CampaignID == campaignID {
			return true, nil
		}
	}

	r := t.repo
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.winnerByPair[winnerKey{clientID, campaignID}]
	return ok, nil
}

func (t *memSaleTx) WinnerCodeExists(_ context.Context, code string) (bool, error) {
	r := t.repo
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.reservedCodes[code]; ok {
		return true, nil
	}
	_, ok := r.winnerByCode[code]
	return ok, nil
}

func (t *memSaleTx) TakeRewardStock(_ context.Context, rewardID int64) (bool, error) {
	r := t.repo
	r.mu.Lock()
	defer r.mu.Unlock()

	rw := r.findReward(rewardID)
	switch {
	case rw == nil:
		return false, nil
	case rw.StockRemaining == nil:
		return true, nil
	case *rw.StockRemaining-r.reservedStock[rewardID] <= 0:
		return false, nil
	}

	r.reservedStock[rewardID]++
	t.stock = append(t.stock, rewardID)
	return true, nil
}

func (t *memSaleTx) InsertWinner(ctx context.Context, w *model.Winner) error {
	if exists, _ := t.WinnerExists(ctx, w.ClientID, w.CampaignID); exists {
		return loyalty.ErrWinnerExists
	}

	r := t.repo
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.winnerByCode[w.Code]; ok {
		return fmt.Errorf("%w: %s", loyalty.ErrWinnerCodeTaken, w.Code)
	}
	if _, ok := r.reservedCodes[w.Code]; ok {
		return fmt.Errorf("%w: %s", loyalty.ErrWinnerCodeTaken, w.Code)
	}

	w.ID = r.id()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = r.now()
	}
	cp := *w
	r.reservedCodes[w.Code] = struct{}{}
	t.winners = append(t.winners, &cp)
	return nil
}

func (t *memSaleTx) Savepoint(_ context.Context, fn func(tx loyalty.SaleTx) error) error {
	m := t.mark()
	if err := fn(t); err != nil {
		t.rollbackTo(m)
		return err
	}
	return nil
}

// RedeemWinner атомарно переводит выигрыш из pending в redeemed.
func (r *MemoryRepository) RedeemWinner(_ context.Context, code string, at time.Time) (*model.Winner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.winnerByCode[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", loyalty.ErrWinnerCodeNotFound, code)
	}
	w := r.winners[id]
	if err := loyalty.Redeem(w, at); err != nil {
		return nil, fmt.Errorf("%w: %s", err, code)
	}
	cp := *w
	return &cp, nil
}

// ListWinners возвращает победителей по фильтру, новые первыми.
func (r *MemoryRepository) ListWinners(_ context.Context, f model.WinnerFilter) ([]model.Winner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var res []model.Winner
	for _, w := range r.winners {
		if f.Status != "" && w.Status != f.Status {
			continue
		}
		if f.CampaignID != 0 && w.CampaignID != f.CampaignID {
			continue
		}
		if f.DNI != "" && r.clients[w.ClientID].DNI != f.DNI {
			continue
		}
		res = append(res, *w)
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.After(res[j].CreatedAt)
		}
		return res[i].ID > res[j].ID
	})
	return res, nil
}

// ListUnnotifiedWinners возвращает победителей, которым ещё не отправлено уведомление.
func (r *MemoryRepository) ListUnnotifiedWinners(_ context.Context, limit int) ([]model.Winner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var res []model.Winner
	for _, w := range r.winners {
		if !w.NotificationSent {
			res = append(res, *w)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

// MarkWinnerNotified отмечает, что уведомление победителю отправлено.
func (r *MemoryRepository) MarkWinnerNotified(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if w, ok := r.winners[id]; ok {
		w.NotificationSent = true
	}
	return nil
}

// GetSaleReceipt возвращает квитанцию продажи по QR-токену.
func (r *MemoryRepository) GetSaleReceipt(_ context.Context, qrToken string) (*model.SaleReceipt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sales[qrToken]
	if !ok {
		return nil, loyalty.ErrQRTokenNotFound
	}

	rc := &model.SaleReceipt{
		Points:    s.Points,
		CreatedAt: s.CreatedAt,
	}
	if c, ok := r.clients[s.ClientID]; ok {
		rc.ClientFirstName = c.FirstName
		rc.ClientLastName = c.LastName
	}
	if p, ok := r.products[s.ProductID]; ok {
		rc.ProductName = p.Name
	}
	if c, ok := r.campaigns[s.CampaignID]; ok {
		rc.CampaignName = c.Name
	}
	return rc, nil
}
