package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/asset-custody/internal/core/domain"
	"github.com/rl1809/asset-custody/internal/infra"
	"github.com/rl1809/asset-custody/internal/port"
)

var ErrDuplicateRequest = errors.New("duplicate request")

const lockStripes = 64

// Config tunes the settlement engine. Zero values fall back to defaults in
// NewSettlementService.
type Config struct {
	// QuoteAsset is the asset identifier prices are denominated in.
	QuoteAsset string

	// CustodyAccount is the token-ledger holder that escrows listed units.
	CustodyAccount string

	// FeeRecipient receives FeeBps basis points of every purchase. Empty
	// recipient or zero bps pays the owner in full.
	FeeRecipient string
	FeeBps       uint32

	// QueueSize bounds the receipt queue.
	QueueSize int
}

// SettlementService executes every marketplace operation as a single
// all-or-nothing step: listing, deposit, withdrawal, repricing, purchase,
// teardown. Operations on the same mint are serialized by striped locks;
// a failed precondition leaves no observable change.
type SettlementService struct {
	store   port.Store
	tokens  port.TokenLedger
	cache   port.CacheRepository
	cfg     Config
	logger  *slog.Logger
	metrics *infra.Metrics

	receipts chan domain.Receipt
	locks    [lockStripes]sync.Mutex
	closed   atomic.Bool
}

func NewSettlementService(store port.Store, tokens port.TokenLedger, cache port.CacheRepository, cfg Config, logger *slog.Logger, metrics *infra.Metrics) *SettlementService {
	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = "USDC"
	}
	if cfg.CustodyAccount == "" {
		cfg.CustodyAccount = "custody-vault"
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SettlementService{
		store:    store,
		tokens:   tokens,
		cache:    cache,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		receipts: make(chan domain.Receipt, cfg.QueueSize),
	}
}

// Initialize creates the singleton inventory index with caller as authority.
func (s *SettlementService) Initialize(ctx context.Context, caller string) (err error) {
	defer s.observe("initialize", time.Now(), &err)
	if s.closed.Load() {
		return domain.ErrAlreadyClosed
	}

	if err := s.store.CreateIndex(ctx, caller); err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	s.logger.Info("inventory initialized", "authority", caller)
	return nil
}

// CreateInventory lists mint at the given unit price with nothing escrowed yet.
func (s *SettlementService) CreateInventory(ctx context.Context, caller, mint string, price uint64) (err error) {
	defer s.observe("create_inventory", time.Now(), &err)
	if s.closed.Load() {
		return domain.ErrAlreadyClosed
	}
	if price == 0 {
		return domain.ErrInvalidPrice
	}

	lock := s.mintLock(mint)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.store.Index(ctx); err != nil {
		return fmt.Errorf("load index: %w", err)
	}
	if _, err := s.store.Asset(ctx, mint); err == nil {
		return domain.ErrDuplicateAsset
	} else if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("load asset: %w", err)
	}

	// Provision holding accounts up front so later transfers cannot fail on
	// a missing destination.
	if err := s.tokens.EnsureAccount(ctx, mint, s.cfg.CustodyAccount); err != nil {
		return fmt.Errorf("ensure custody account: %w", err)
	}
	if err := s.tokens.EnsureAccount(ctx, s.cfg.QuoteAsset, caller); err != nil {
		return fmt.Errorf("ensure quote account: %w", err)
	}

	if err := s.store.CreateAsset(ctx, domain.NewAssetInfo(mint, price, caller)); err != nil {
		return fmt.Errorf("create asset: %w", err)
	}
	s.refreshListed(ctx, mint, 0)

	s.logger.Info("asset listed", "mint", mint, "price", price, "owner", caller)
	return nil
}

// AddAsset escrows amount units of mint from the caller's holdings.
func (s *SettlementService) AddAsset(ctx context.Context, caller, mint string, amount uint64) (err error) {
	defer s.observe("add_asset", time.Now(), &err)
	if s.closed.Load() {
		return domain.ErrAlreadyClosed
	}
	if amount == 0 {
		return domain.ErrInvalidAmount
	}

	lock := s.mintLock(mint)
	lock.Lock()
	defer lock.Unlock()

	entry, err := s.store.Asset(ctx, mint)
	if err != nil {
		return fmt.Errorf("load asset: %w", err)
	}
	if entry.Amount > math.MaxUint64-amount {
		return domain.ErrOverflow
	}

	balance, err := s.tokens.Balance(ctx, mint, caller)
	if err != nil {
		return fmt.Errorf("depositor balance: %w", err)
	}
	if balance < amount {
		return domain.ErrInsufficientAsset
	}

	custody, err := s.store.CustodyBalance(ctx, mint, entry.Owner)
	if err != nil {
		return fmt.Errorf("custody balance: %w", err)
	}

	if err := s.tokens.Transfer(ctx, mint, caller, s.cfg.CustodyAccount, amount); err != nil {
		return fmt.Errorf("escrow transfer: %w", err)
	}

	entry.Amount += amount
	if err := s.store.UpdateAsset(ctx, entry.Owner, entry, custody+amount); err != nil {
		s.compensate(ctx, mint, s.cfg.CustodyAccount, caller, amount)
		return fmt.Errorf("update asset: %w", err)
	}
	s.refreshListed(ctx, mint, entry.Amount)

	s.logger.Info("asset escrowed", "mint", mint, "amount", amount, "depositor", caller)
	return nil
}

// WithdrawAsset returns the full escrowed balance to the owner and delists mint.
func (s *SettlementService) WithdrawAsset(ctx context.Context, caller, mint string) (err error) {
	defer s.observe("withdraw_asset", time.Now(), &err)
	if s.closed.Load() {
		return domain.ErrAlreadyClosed
	}
	return s.teardown(ctx, caller, mint, "asset withdrawn")
}

// CloseInventory delists mint and returns any residual custody to the owner.
// Unlike WithdrawAsset it is named for administrative teardown of a listing
// that still holds escrowed units.
func (s *SettlementService) CloseInventory(ctx context.Context, caller, mint string) (err error) {
	defer s.observe("close_inventory", time.Now(), &err)
	if s.closed.Load() {
		return domain.ErrAlreadyClosed
	}
	return s.teardown(ctx, caller, mint, "inventory closed")
}

func (s *SettlementService) teardown(ctx context.Context, caller, mint, event string) error {
	lock := s.mintLock(mint)
	lock.Lock()
	defer lock.Unlock()

	entry, err := s.store.Asset(ctx, mint)
	if err != nil {
		return fmt.Errorf("load asset: %w", err)
	}
	if entry.Owner != caller {
		return domain.ErrUnauthorized
	}

	custody, err := s.store.CustodyBalance(ctx, mint, entry.Owner)
	if err != nil {
		return fmt.Errorf("custody balance: %w", err)
	}

	if custody > 0 {
		if err := s.tokens.EnsureAccount(ctx, mint, caller); err != nil {
			return fmt.Errorf("ensure owner account: %w", err)
		}
		if err := s.tokens.Transfer(ctx, mint, s.cfg.CustodyAccount, caller, custody); err != nil {
			return fmt.Errorf("release transfer: %w", err)
		}
	}

	if err := s.store.RemoveAsset(ctx, mint); err != nil {
		s.compensate(ctx, mint, caller, s.cfg.CustodyAccount, custody)
		return fmt.Errorf("remove asset: %w", err)
	}
	if err := s.cache.RemoveListed(ctx, mint); err != nil {
		s.logger.Warn("cache remove failed", "mint", mint, "error", err)
	}

	s.logger.Info(event, "mint", mint, "owner", caller, "released", custody)
	return nil
}

// UpdateAssetInfo applies a partial update of the listed amount and/or owner.
// A new amount may not exceed what is actually escrowed.
func (s *SettlementService) UpdateAssetInfo(ctx context.Context, caller, mint string, update domain.AssetUpdate) (err error) {
	defer s.observe("update_asset_info", time.Now(), &err)
	if s.closed.Load() {
		return domain.ErrAlreadyClosed
	}

	lock := s.mintLock(mint)
	lock.Lock()
	defer lock.Unlock()

	entry, err := s.store.Asset(ctx, mint)
	if err != nil {
		return fmt.Errorf("load asset: %w", err)
	}
	if entry.Owner != caller {
		return domain.ErrUnauthorized
	}

	custody, err := s.store.CustodyBalance(ctx, mint, entry.Owner)
	if err != nil {
		return fmt.Errorf("custody balance: %w", err)
	}

	prevOwner := entry.Owner
	released := uint64(0)
	if update.Amount != nil {
		if *update.Amount > custody {
			return domain.ErrInsufficientCustody
		}
		// Reducing the listed amount releases the excess escrow back to the
		// owner, keeping the listed amount equal to the custody balance.
		released = custody - *update.Amount
		entry.Amount = *update.Amount
	}
	if update.Owner != nil && *update.Owner != entry.Owner {
		if err := s.tokens.EnsureAccount(ctx, s.cfg.QuoteAsset, *update.Owner); err != nil {
			return fmt.Errorf("ensure quote account: %w", err)
		}
		entry.Owner = *update.Owner
	}

	if released > 0 {
		if err := s.tokens.EnsureAccount(ctx, mint, caller); err != nil {
			return fmt.Errorf("ensure owner account: %w", err)
		}
		if err := s.tokens.Transfer(ctx, mint, s.cfg.CustodyAccount, caller, released); err != nil {
			return fmt.Errorf("release transfer: %w", err)
		}
	}

	if err := s.store.UpdateAsset(ctx, prevOwner, entry, custody-released); err != nil {
		s.compensate(ctx, mint, caller, s.cfg.CustodyAccount, released)
		return fmt.Errorf("update asset: %w", err)
	}
	s.refreshListed(ctx, mint, entry.Amount)

	s.logger.Info("asset updated", "mint", mint, "amount", entry.Amount, "owner", entry.Owner)
	return nil
}

// BuyAsset settles a purchase of quantity units of mint: quote currency moves
// from the buyer to the owner (minus the configured fee split), escrowed units
// move to the buyer, and the listing is torn down when it reaches zero.
// requestID deduplicates retried submissions.
func (s *SettlementService) BuyAsset(ctx context.Context, requestID, buyer, mint string, quantity uint64) (receipt *domain.Receipt, err error) {
	defer s.observe("buy_asset", time.Now(), &err)
	if s.closed.Load() {
		return nil, domain.ErrAlreadyClosed
	}
	if quantity == 0 {
		return nil, domain.ErrInvalidAmount
	}

	idempotencyKey := fmt.Sprintf("purchase:%s", requestID)
	ok, err := s.cache.SetIdempotency(ctx, idempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return nil, ErrDuplicateRequest
	}

	// Fast-path rejection against the cached availability; the store is
	// re-validated under the mint lock below.
	ok, err = s.cache.DecrementListed(ctx, mint, quantity)
	if err != nil {
		return nil, fmt.Errorf("availability check failed: %w", err)
	}
	if !ok {
		return nil, domain.ErrInsufficientSupply
	}

	receipt, err = s.settlePurchase(ctx, buyer, mint, quantity)
	if err != nil {
		if rollbackErr := s.cache.IncrementListed(ctx, mint, quantity); rollbackErr != nil {
			s.logger.Error("CRITICAL: availability rollback failed", "mint", mint, "quantity", quantity, "error", rollbackErr)
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ObservePurchase(receipt.Quantity, receipt.TotalCost)
	}
	select {
	case s.receipts <- *receipt:
	default:
		s.logger.Warn("receipt queue full, dropping receipt", "receipt_id", receipt.ID)
	}

	return receipt, nil
}

func (s *SettlementService) settlePurchase(ctx context.Context, buyer, mint string, quantity uint64) (*domain.Receipt, error) {
	lock := s.mintLock(mint)
	lock.Lock()
	defer lock.Unlock()

	entry, err := s.store.Asset(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("load asset: %w", err)
	}
	if quantity > entry.Amount {
		return nil, domain.ErrInsufficientSupply
	}
	if entry.Price == 0 {
		return nil, domain.ErrInvalidPrice
	}

	totalCost, err := domain.TotalCost(entry.Price, quantity)
	if err != nil {
		return nil, err
	}

	quoteBalance, err := s.tokens.Balance(ctx, s.cfg.QuoteAsset, buyer)
	if err != nil {
		return nil, fmt.Errorf("buyer quote balance: %w", err)
	}
	if quoteBalance < totalCost {
		return nil, domain.ErrInsufficientFunds
	}

	custody, err := s.store.CustodyBalance(ctx, mint, entry.Owner)
	if err != nil {
		return nil, fmt.Errorf("custody balance: %w", err)
	}

	if err := s.tokens.EnsureAccount(ctx, mint, buyer); err != nil {
		return nil, fmt.Errorf("ensure buyer account: %w", err)
	}
	if err := s.tokens.EnsureAccount(ctx, s.cfg.QuoteAsset, entry.Owner); err != nil {
		return nil, fmt.Errorf("ensure owner account: %w", err)
	}

	fee, proceeds := uint64(0), totalCost
	if s.cfg.FeeRecipient != "" && s.cfg.FeeBps > 0 {
		if err := s.tokens.EnsureAccount(ctx, s.cfg.QuoteAsset, s.cfg.FeeRecipient); err != nil {
			return nil, fmt.Errorf("ensure fee account: %w", err)
		}
		fee, proceeds = domain.SplitFee(totalCost, s.cfg.FeeBps)
	}

	// Every transfer already performed is reversed if a later step fails, so
	// an aborted purchase leaves no balance moved.
	var undo []func()
	transfer := func(asset, from, to string, amount uint64) error {
		if amount == 0 {
			return nil
		}
		if err := s.tokens.Transfer(ctx, asset, from, to, amount); err != nil {
			return err
		}
		undo = append(undo, func() { s.compensate(ctx, asset, to, from, amount) })
		return nil
	}
	revert := func() {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
	}

	if err := transfer(s.cfg.QuoteAsset, buyer, entry.Owner, proceeds); err != nil {
		return nil, fmt.Errorf("quote transfer: %w", err)
	}
	if err := transfer(s.cfg.QuoteAsset, buyer, s.cfg.FeeRecipient, fee); err != nil {
		revert()
		return nil, fmt.Errorf("fee transfer: %w", err)
	}
	if err := transfer(mint, s.cfg.CustodyAccount, buyer, quantity); err != nil {
		revert()
		return nil, fmt.Errorf("release transfer: %w", err)
	}

	entry.Amount -= quantity
	if entry.Amount == 0 {
		err = s.store.RemoveAsset(ctx, mint)
	} else {
		err = s.store.UpdateAsset(ctx, entry.Owner, entry, custody-quantity)
	}
	if err != nil {
		revert()
		return nil, fmt.Errorf("commit purchase: %w", err)
	}

	if entry.Amount == 0 {
		if err := s.cache.RemoveListed(ctx, mint); err != nil {
			s.logger.Warn("cache remove failed", "mint", mint, "error", err)
		}
	} else {
		s.refreshListed(ctx, mint, entry.Amount)
	}

	s.logger.Info("purchase settled",
		"mint", mint, "buyer", buyer, "quantity", quantity,
		"total_cost", totalCost, "fee", fee, "remaining", entry.Amount)

	return &domain.Receipt{
		ID:        uuid.New().String(),
		Buyer:     buyer,
		Mint:      mint,
		Quantity:  quantity,
		UnitPrice: entry.Price,
		TotalCost: totalCost,
		Fee:       fee,
		CreatedAt: time.Now(),
	}, nil
}

// ListAssets returns every current listing in listing order. Availability is
// overlaid from the cache where present, so in-flight purchases that have
// taken the fast-path decrement are already reflected.
func (s *SettlementService) ListAssets(ctx context.Context) ([]domain.AssetInfo, error) {
	if s.closed.Load() {
		return nil, domain.ErrAlreadyClosed
	}
	assets, err := s.store.ListAssets(ctx)
	if err != nil {
		return nil, err
	}
	for i := range assets {
		if amount, ok, err := s.cache.Listed(ctx, assets[i].Mint); err == nil && ok {
			assets[i].Amount = amount
		}
	}
	return assets, nil
}

// GetReceiptQueue exposes committed purchase receipts for async persistence.
func (s *SettlementService) GetReceiptQueue() <-chan domain.Receipt {
	return s.receipts
}

// Close stops accepting operations and closes the receipt queue.
func (s *SettlementService) Close() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.receipts)
	}
}

func (s *SettlementService) mintLock(mint string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(mint))
	return &s.locks[h.Sum32()%lockStripes]
}

func (s *SettlementService) refreshListed(ctx context.Context, mint string, amount uint64) {
	if err := s.cache.SetListed(ctx, mint, amount); err != nil {
		s.logger.Warn("cache refresh failed", "mint", mint, "error", err)
	}
}

// compensate reverses a committed transfer after a failed settlement step.
func (s *SettlementService) compensate(ctx context.Context, asset, from, to string, amount uint64) {
	if amount == 0 {
		return
	}
	if err := s.tokens.Transfer(ctx, asset, from, to, amount); err != nil {
		s.logger.Error("CRITICAL: compensating transfer failed",
			"asset", asset, "from", from, "to", to, "amount", amount, "error", err)
	}
}

func (s *SettlementService) observe(op string, started time.Time, err *error) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(op, *err, started)
	}
}
