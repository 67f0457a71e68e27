package transfer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/refractlabs/refract-core/internal/domain"
	"github.com/refractlabs/refract-core/internal/metrics"
	"github.com/refractlabs/refract-core/internal/usecase/book"
	"github.com/refractlabs/refract-core/internal/usecase/reflection"
	"github.com/refractlabs/refract-core/internal/usecase/registry"
	"github.com/refractlabs/refract-core/internal/usecase/splitter"
	"github.com/refractlabs/refract-core/internal/usecase/trigger"
)

// recentWindow is how many settled transfers feed the effective-rate stat
const recentWindow = 32

// TransferStat is one settled transfer's contribution to the rolling stats
type TransferStat struct {
	Gross *uint256.Int
	Tax   *uint256.Int
}

// AccountBalance is one row of the ledger's balance sheet
type AccountBalance struct {
	Account domain.Address
	Balance *uint256.Int
}

// Params wires a Service. Book, Registry, Reflections, and Triggers are
// required; Journal, Logger, Metrics, and Clock may be left nil.
type Params struct {
	Book        *book.Book
	Registry    *registry.Registry
	Reflections *reflection.Engine
	Triggers    *trigger.Engine
	Journal     domain.Journal
	Logger      *zap.Logger
	Metrics     *metrics.Recorder
	Pool        domain.Address
	Clock       func() time.Time
}

// Service is the ledger facade and its single serialization point: every
// mutating call holds the mutex for its whole settlement, so concurrent
// callers observe transfers as atomic. Sub-movements of a transfer run
// against the settlement token instead of re-entering Transfer, which makes
// double taxation structurally impossible.
type Service struct {
	mu sync.Mutex

	book        *book.Book
	registry    *registry.Registry
	reflections *reflection.Engine
	triggers    *trigger.Engine
	journal     domain.Journal
	logger      *zap.Logger
	metrics     *metrics.Recorder
	pool        domain.Address
	clock       func() time.Time

	policy        domain.TaxPolicy
	cumulativeTax map[string]*uint256.Int
	recent        []TransferStat
}

// NewService creates the facade over an empty tax policy and trigger mode OFF
func NewService(p Params) *Service {
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Clock == nil {
		p.Clock = time.Now
	}
	return &Service{
		book:          p.Book,
		registry:      p.Registry,
		reflections:   p.Reflections,
		triggers:      p.Triggers,
		journal:       p.Journal,
		logger:        p.Logger,
		metrics:       p.Metrics,
		pool:          p.Pool,
		clock:         p.Clock,
		cumulativeTax: make(map[string]*uint256.Int),
	}
}

// Genesis mints the full supply to the initial owner, exactly once
func (s *Service) Genesis(ctx context.Context, owner domain.Address, supply *uint256.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if owner.IsZero() {
		return fmt.Errorf("genesis owner: %w", domain.ErrZeroAddressRejected)
	}
	if err := s.book.Mint(owner, supply); err != nil {
		return err
	}
	s.reflections.OnMint(owner)
	s.record(ctx, domain.EntryMovement, domain.MovementRecord{
		From:   domain.ZeroAddress,
		To:     owner,
		Amount: supply.Dec(),
		Label:  "mint",
	})
	s.logger.Info("supply minted",
		zap.String("owner", owner.Hex()), zap.String("supply", supply.Dec()))
	return nil
}

// Minted reports whether genesis has happened
func (s *Service) Minted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Minted()
}

// Transfer settles one top-level movement: the tax split, the reflection
// bookkeeping of every sub-movement, and the post-settlement trigger
// evaluation, as one atomic unit.
//
// Logic:
//  1. Validate the amount against the sender's observable balance. The cuts
//     and the net reconstruct the gross exactly, so a covered gross covers
//     every sub-movement and nothing can fail mid-settlement.
//  2. Apply each component cut in declared policy order, then move the net.
//     A transfer with no applicable tax moves the full amount in one step.
//     Zero-value transfers settle too and leave a zero movement record.
//  3. Evaluate the trigger against the settled transfer and apply at most
//     one bounded pool payout.
func (s *Service) Transfer(ctx context.Context, from, to domain.Address, amount *uint256.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if amount == nil {
		return fmt.Errorf("transfer amount is required: %w", domain.ErrParameterRejected)
	}
	if from.IsZero() {
		return fmt.Errorf("transfer sender: %w", domain.ErrZeroAddressRejected)
	}
	if s.balanceOfLocked(from).Lt(amount) {
		return fmt.Errorf("transfer %s from %s: %w", amount.Dec(), from, domain.ErrInsufficientBalance)
	}

	taxed := splitter.Applies(amount, s.policy,
		s.registry.TaxExcluded(from), s.registry.TaxExcluded(to))
	var cuts []splitter.Cut
	net := amount
	if taxed {
		var err error
		cuts, net, err = splitter.Split(amount, s.policy)
		if err != nil {
			return err
		}
	}

	st, err := s.book.Begin()
	if err != nil {
		return err
	}
	defer st.Close()

	totalTax := uint256.NewInt(0)
	if taxed {
		components := make([]domain.ComponentCutRecord, 0, len(cuts))
		for _, cut := range cuts {
			if err := s.applyCut(ctx, st, from, cut); err != nil {
				return err
			}
			totalTax.Add(totalTax, cut.Amount)
			components = append(components, domain.ComponentCutRecord{
				Name:   cut.Component.Name,
				Kind:   cut.Component.Kind,
				Amount: cut.Amount.Dec(),
			})
			if !cut.Amount.IsZero() {
				s.metrics.AddTaxUnits(cut.Component.Name, cut.Amount)
				s.addCumulativeTax(cut.Component.Name, cut.Amount)
			}
		}
		if err := s.rawMove(ctx, st, from, to, net, "net"); err != nil {
			return err
		}
		s.record(ctx, domain.EntryTaxApplied, domain.TaxAppliedRecord{
			From:       from,
			To:         to,
			Gross:      amount.Dec(),
			Net:        net.Dec(),
			Components: components,
		})
	} else if err := s.rawMove(ctx, st, from, to, amount, ""); err != nil {
		return err
	}

	if err := s.settleTrigger(ctx, st, from, to, amount); err != nil {
		return err
	}

	s.metrics.ObserveTransfer(taxed)
	s.metrics.SetPoolBalance(s.balanceOfLocked(s.pool))
	s.metrics.SetRateZero(s.reflections.Enabled() && s.reflections.CurrentRate().IsZero())
	s.noteTransfer(amount, totalTax)
	return nil
}

// applyCut settles one component of a taxed transfer. Zero cuts produce no
// movement but still appear in the tax-applied record.
func (s *Service) applyCut(ctx context.Context, st *book.Settlement, from domain.Address, cut splitter.Cut) error {
	if cut.Amount.IsZero() {
		return nil
	}
	switch cut.Component.Kind {
	case domain.DestinationWallet:
		return s.rawMove(ctx, st, from, cut.Component.Wallet, cut.Amount, cut.Component.Name)
	case domain.DestinationUnspendable:
		return s.rawMove(ctx, st, from, domain.ZeroAddress, cut.Amount, cut.Component.Name)
	case domain.DestinationSelfPool:
		return s.rawMove(ctx, st, from, s.pool, cut.Amount, cut.Component.Name)
	case domain.DestinationReflection:
		// No destination: the component's worth leaves circulating supply and
		// every reflection-included holder's derived balance rises.
		rate := s.reflections.CurrentRate()
		if s.reflections.TracksDirect(from) {
			if err := st.Debit(from, cut.Amount); err != nil {
				return err
			}
		}
		if desync := s.reflections.ApplyReflectTax(from, cut.Amount, rate); desync != nil {
			s.recordDesync(ctx, desync)
		}
		return nil
	}
	return fmt.Errorf("component %q has unknown destination kind %q: %w",
		cut.Component.Name, cut.Component.Kind, domain.ErrParameterRejected)
}

// rawMove applies one raw ledger movement: direct entries for parties whose
// wealth is direct-tracked, reflected entries for both, and the movement
// record. The rate is captured before anything changes.
func (s *Service) rawMove(ctx context.Context, st *book.Settlement, from, to domain.Address, amount *uint256.Int, label string) error {
	rate := s.reflections.CurrentRate()

	st.Touch(from)
	st.Touch(to)
	if s.reflections.TracksDirect(from) {
		if err := st.Debit(from, amount); err != nil {
			return err
		}
	}
	if s.reflections.TracksDirect(to) {
		st.Credit(to, amount)
	}
	if desync := s.reflections.ApplyMove(from, to, amount, rate); desync != nil {
		s.recordDesync(ctx, desync)
	}

	s.record(ctx, domain.EntryMovement, domain.MovementRecord{
		From:   from,
		To:     to,
		Amount: amount.Dec(),
		Label:  label,
	})
	return nil
}

// settleTrigger evaluates the trigger engine against the settled transfer.
// A lucky-drop payout is a raw movement out of the pool: it bypasses the
// splitter, so it is never taxed and never charged a reflection fee.
func (s *Service) settleTrigger(ctx context.Context, st *book.Settlement, from, to domain.Address, amount *uint256.Int) error {
	outcome := s.triggers.Evaluate(s.clock(), from, to, amount, s.balanceOfLocked(s.pool))
	if outcome == nil {
		return nil
	}

	if outcome.Payout != nil {
		if err := s.rawMove(ctx, st, s.pool, to, outcome.Payout, "payout"); err != nil {
			return err
		}
		s.record(ctx, domain.EntryPayoutIssued, domain.PayoutIssuedRecord{
			EventID:       outcome.EventID,
			Recipient:     to,
			Amount:        outcome.Payout.Dec(),
			PoolRemaining: s.balanceOfLocked(s.pool).Dec(),
		})
		s.metrics.AddPayoutUnits(outcome.Payout)
	}

	s.record(ctx, domain.EntryTriggerFired, domain.TriggerFiredRecord{
		EventID: outcome.EventID,
		Mode:    outcome.Mode,
		From:    outcome.From,
		To:      outcome.To,
		Amount:  outcome.Amount.Dec(),
	})
	s.metrics.ObserveTrigger(string(outcome.Mode))
	return nil
}

// SetTaxPolicy replaces the ordered component list applied to taxable
// transfers. Settled history is untouched.
func (s *Service) SetTaxPolicy(ctx context.Context, policy domain.TaxPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := policy.Validate(); err != nil {
		return err
	}
	if !s.reflections.Enabled() && policy.HasReflection() {
		return fmt.Errorf("reflection component on a reflection-disabled ledger: %w",
			domain.ErrParameterRejected)
	}
	s.policy = policy
	s.record(ctx, domain.EntryConfigChanged, domain.ConfigChangedRecord{
		Setting: "tax_policy",
		Detail:  describePolicy(policy),
	})
	return nil
}

// SetDestinationWallet redirects the named WALLET component
func (s *Service) SetDestinationWallet(ctx context.Context, component string, wallet domain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if wallet.IsZero() {
		return fmt.Errorf("destination wallet: %w", domain.ErrZeroAddressRejected)
	}
	for i := range s.policy.Components {
		c := &s.policy.Components[i]
		if c.Name != component || c.Kind != domain.DestinationWallet {
			continue
		}
		c.Wallet = wallet
		s.record(ctx, domain.EntryConfigChanged, domain.ConfigChangedRecord{
			Setting: "destination_wallet",
			Detail:  fmt.Sprintf("%s=%s", component, wallet.Hex()),
		})
		return nil
	}
	return fmt.Errorf("no wallet component named %q: %w", component, domain.ErrParameterRejected)
}

// SetTaxExcluded toggles an account's tax exclusion. Same-value calls are
// silent no-ops and leave no journal entry.
func (s *Service) SetTaxExcluded(ctx context.Context, account domain.Address, excluded bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.registry.SetTaxExcluded(account, excluded) {
		s.record(ctx, domain.EntryExclusionChanged, domain.ExclusionChangedRecord{
			Account:  account,
			Registry: "TAX",
			Excluded: excluded,
		})
	}
	return nil
}

// SetReflectionExcluded toggles an account's reflection exclusion, running
// the balance-preserving ledger transition. Same-value calls are rejected.
func (s *Service) SetReflectionExcluded(ctx context.Context, account domain.Address, excluded bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.book.Begin()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := s.reflections.SetExcluded(st, account, excluded); err != nil {
		return err
	}
	s.record(ctx, domain.EntryExclusionChanged, domain.ExclusionChangedRecord{
		Account:  account,
		Registry: "REFLECTION",
		Excluded: excluded,
	})
	return nil
}

// SetTriggerMode replaces the configured trigger mode
func (s *Service) SetTriggerMode(ctx context.Context, mode domain.TriggerMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.triggers.SetMode(mode); err != nil {
		return err
	}
	s.record(ctx, domain.EntryConfigChanged, domain.ConfigChangedRecord{
		Setting: "trigger_mode",
		Detail:  string(mode),
	})
	return nil
}

// SetTriggerParams replaces the trigger thresholds
func (s *Service) SetTriggerParams(ctx context.Context, params domain.TriggerParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.triggers.SetParams(params); err != nil {
		return err
	}
	s.record(ctx, domain.EntryConfigChanged, domain.ConfigChangedRecord{
		Setting: "trigger_parameters",
		Detail: fmt.Sprintf("confetti=%d reverse_day=%d lucky=%d payout_bps=%d max_payout=%s",
			params.ConfettiModulo, params.ReverseDayModulo, params.LuckyDropModulo,
			params.LuckyPayoutBps, params.LuckyMaxPayout.Dec()),
	})
	return nil
}

// ScheduleTriggerWindow installs the mode-override window
func (s *Service) ScheduleTriggerWindow(ctx context.Context, mode domain.TriggerMode, start, end time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.triggers.Schedule(mode, start, end, s.clock()); err != nil {
		return err
	}
	s.record(ctx, domain.EntryConfigChanged, domain.ConfigChangedRecord{
		Setting: "trigger_window",
		Detail: fmt.Sprintf("%s %s..%s", mode,
			start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339)),
	})
	return nil
}

// ClearTriggerWindow removes the mode-override window
func (s *Service) ClearTriggerWindow(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.triggers.ClearWindow()
	s.record(ctx, domain.EntryConfigChanged, domain.ConfigChangedRecord{
		Setting: "trigger_window",
		Detail:  "cleared",
	})
	return nil
}

// RecordOwnershipTransfer journals an accepted ownership handover. The
// Authorizer holds the actual owner state.
func (s *Service) RecordOwnershipTransfer(ctx context.Context, newOwner domain.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record(ctx, domain.EntryConfigChanged, domain.ConfigChangedRecord{
		Setting: "owner",
		Detail:  newOwner.Hex(),
	})
}

// BalanceOf answers the observable balance query
func (s *Service) BalanceOf(account domain.Address) *uint256.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balanceOfLocked(account)
}

// TotalSupply returns the fixed supply constant
func (s *Service) TotalSupply() *uint256.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.TotalSupply()
}

// PoolAccount returns the self-pool address
func (s *Service) PoolAccount() domain.Address {
	return s.pool
}

// PoolBalance returns the pool's observable balance
func (s *Service) PoolBalance() *uint256.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balanceOfLocked(s.pool)
}

// Policy returns a copy of the active tax policy
func (s *Service) Policy() domain.TaxPolicy {
	s.mu.Lock()
	defer s.mu.Unlock()

	components := make([]domain.TaxComponent, len(s.policy.Components))
	copy(components, s.policy.Components)
	return domain.TaxPolicy{Components: components}
}

// TaxExcluded reports an account's tax exclusion state
func (s *Service) TaxExcluded(account domain.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.TaxExcluded(account)
}

// ReflectionExcluded reports an account's reflection exclusion state
func (s *Service) ReflectionExcluded(account domain.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.ReflectionExcluded(account)
}

// ReflectionEnabled reports whether reflection accounting is active
func (s *Service) ReflectionEnabled() bool {
	return s.reflections.Enabled()
}

// ReflectionRateZero reports whether the reflection rate currently reads
// zero, meaning derived balances all collapse to zero
func (s *Service) ReflectionRateZero() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reflections.Enabled() && s.reflections.CurrentRate().IsZero()
}

// TriggerMode returns the configured trigger mode, ignoring any window
func (s *Service) TriggerMode() domain.TriggerMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.triggers.Mode()
}

// CumulativeTax returns the total units collected per component since boot
func (s *Service) CumulativeTax() map[string]*uint256.Int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]*uint256.Int, len(s.cumulativeTax))
	for name, units := range s.cumulativeTax {
		out[name] = units.Clone()
	}
	return out
}

// RecentTransfers returns the rolling window feeding the effective-rate stat
func (s *Service) RecentTransfers() []TransferStat {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TransferStat, len(s.recent))
	for i, stat := range s.recent {
		out[i] = TransferStat{Gross: stat.Gross.Clone(), Tax: stat.Tax.Clone()}
	}
	return out
}

// BalanceSheet returns every known account's observable balance and the
// total supply as one consistent snapshot
func (s *Service) BalanceSheet() ([]AccountBalance, *uint256.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts := s.book.KnownAccounts()
	sheet := make([]AccountBalance, 0, len(accounts))
	for _, account := range accounts {
		sheet = append(sheet, AccountBalance{Account: account, Balance: s.balanceOfLocked(account)})
	}
	return sheet, s.book.TotalSupply()
}

func (s *Service) balanceOfLocked(account domain.Address) *uint256.Int {
	return s.reflections.BalanceOf(account)
}

func (s *Service) noteTransfer(gross, tax *uint256.Int) {
	s.recent = append(s.recent, TransferStat{Gross: gross.Clone(), Tax: tax.Clone()})
	if len(s.recent) > recentWindow {
		s.recent = s.recent[len(s.recent)-recentWindow:]
	}
}

func (s *Service) addCumulativeTax(component string, amount *uint256.Int) {
	total, ok := s.cumulativeTax[component]
	if !ok {
		total = uint256.NewInt(0)
		s.cumulativeTax[component] = total
	}
	total.Add(total, amount)
}

// record appends one journal entry. A failing journal is logged and skipped:
// the settled state is authoritative and never rolls back over a lost record.
func (s *Service) record(ctx context.Context, kind domain.EntryKind, payload any) {
	if s.journal == nil {
		return
	}
	entry := domain.Entry{ID: uuid.New(), At: s.clock(), Kind: kind, Payload: payload}
	if err := s.journal.Record(ctx, entry); err != nil {
		s.logger.Warn("journal record failed",
			zap.String("kind", string(kind)), zap.Error(err))
	}
}

func (s *Service) recordDesync(ctx context.Context, rec *domain.ReflectionDesyncRecord) {
	s.logger.Warn("reflected-unit deficit absorbed",
		zap.String("account", rec.Account.Hex()), zap.String("deficit", rec.Deficit))
	s.record(ctx, domain.EntryReflectionDesync, *rec)
}

func describePolicy(policy domain.TaxPolicy) string {
	if len(policy.Components) == 0 {
		return "cleared"
	}
	parts := make([]string, 0, len(policy.Components))
	for _, c := range policy.Components {
		parts = append(parts, fmt.Sprintf("%s:%dbps:%s", c.Name, c.RateBps, c.Kind))
	}
	return strings.Join(parts, ", ")
}
