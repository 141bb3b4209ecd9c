package risk

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/prathan03/mt5-auto-trade/broker"
	"github.com/prathan03/mt5-auto-trade/market"
)

// accountSource is the slice of the gateway the manager queries. Checks use
// one snapshot taken at call start so they cannot drift against each other.
type accountSource interface {
	AccountSnapshot(ctx context.Context) (broker.AccountSnapshot, error)
	OpenPositions(ctx context.Context) ([]broker.Position, error)
	SymbolSpec(ctx context.Context, symbol string) (broker.SymbolSpec, error)
}

// Decision is a trade admission verdict. The first failing check wins.
type Decision struct {
	Allowed bool
	Code    string
	Reason  string
}

// Reason codes for rejected admissions.
const (
	CodeSnapshotUnavailable = "SNAPSHOT_UNAVAILABLE"
	CodeDailyLoss           = "DAILY_LOSS_LIMIT"
	CodeWeeklyLoss          = "WEEKLY_LOSS_LIMIT"
	CodeMaxOpenTrades       = "MAX_OPEN_TRADES"
	CodeCorrelation         = "CORRELATION_LIMIT"
)

func allowed() Decision {
	return Decision{Allowed: true, Reason: "can open trade"}
}

func rejected(code, format string, args ...any) Decision {
	return Decision{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// Manager is a near-stateless policy engine; the run-scoped state is the
// pair of loss baselines, rebased at day and ISO-week rollovers.
type Manager struct {
	cfg            Config
	source         accountSource
	initialBalance float64
	now            func() time.Time

	mu        sync.Mutex
	dayStart  float64
	dayDate   string
	weekStart float64
	weekTag   string
}

func NewManager(cfg Config, source accountSource, initialBalance float64) *Manager {
	m := &Manager{
		cfg:            cfg,
		source:         source,
		initialBalance: initialBalance,
		now:            time.Now,
		dayStart:       initialBalance,
		weekStart:      initialBalance,
	}
	m.dayDate, m.weekTag = periodTags(m.now())
	return m
}

func periodTags(t time.Time) (day, week string) {
	y, w := t.ISOWeek()
	return t.Format("2006-01-02"), fmt.Sprintf("%d-W%02d", y, w)
}

// baselines returns the day-start and week-start balances, rebasing them to
// the current balance when the calendar period has rolled over.
func (m *Manager) baselines(balance float64) (day, week float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dayTag, weekTag := periodTags(m.now())
	if dayTag != m.dayDate {
		m.dayDate = dayTag
		m.dayStart = balance
	}
	if weekTag != m.weekTag {
		m.weekTag = weekTag
		m.weekStart = balance
	}
	return m.dayStart, m.weekStart
}

// InitialBalance returns the loss-limit reference balance for this run.
func (m *Manager) InitialBalance() float64 { return m.initialBalance }

// Config returns the immutable risk parameters.
func (m *Manager) Config() Config { return m.cfg }

// DailyLoss returns the loss fraction against the day-start baseline, for
// early-warning alerts. Negative means the day is in profit.
func (m *Manager) DailyLoss(balance float64) float64 {
	day, _ := m.baselines(balance)
	if day <= 0 {
		return 0
	}
	return (day - balance) / day
}

// CanOpenTrade runs the admission checks in order: daily loss, weekly loss,
// open-position cap, correlation cap. An unavailable snapshot fails closed.
func (m *Manager) CanOpenTrade(ctx context.Context, symbol string) Decision {
	acct, err := m.source.AccountSnapshot(ctx)
	if err != nil {
		return rejected(CodeSnapshotUnavailable, "account snapshot unavailable: %v", err)
	}
	positions, err := m.source.OpenPositions(ctx)
	if err != nil {
		return rejected(CodeSnapshotUnavailable, "position list unavailable: %v", err)
	}

	dayStart, weekStart := m.baselines(acct.Balance)
	if dayStart > 0 {
		lossPct := (dayStart - acct.Balance) / dayStart
		if lossPct >= m.cfg.MaxDailyLoss {
			return rejected(CodeDailyLoss, "daily loss limit reached: %.2f%% >= %.2f%%",
				lossPct*100, m.cfg.MaxDailyLoss*100)
		}
	}
	if weekStart > 0 {
		lossPct := (weekStart - acct.Balance) / weekStart
		if lossPct >= m.cfg.MaxWeeklyLoss {
			return rejected(CodeWeeklyLoss, "weekly loss limit reached: %.2f%% >= %.2f%%",
				lossPct*100, m.cfg.MaxWeeklyLoss*100)
		}
	}

	if len(positions) >= m.cfg.MaxOpenTrades {
		return rejected(CodeMaxOpenTrades, "maximum open trades reached: %d", len(positions))
	}

	if symbol != "" {
		if n := m.correlatedCount(symbol, positions); n >= m.cfg.MaxCorrelationTrades {
			return rejected(CodeCorrelation, "correlation limit reached for %s: %d positions", symbol, n)
		}
	}

	return allowed()
}

// correlatedCount counts open positions sharing any correlation group with
// symbol. Symbols are normalized so broker suffixes still match the groups.
func (m *Manager) correlatedCount(symbol string, positions []broker.Position) int {
	groups := m.cfg.groupsFor(market.Normalize(symbol))
	if len(groups) == 0 {
		return 0
	}

	members := make(map[string]bool)
	for _, g := range groups {
		for _, s := range m.cfg.CorrelationGroups[g] {
			members[s] = true
		}
	}

	count := 0
	for _, p := range positions {
		if members[market.Normalize(p.Symbol)] {
			count++
		}
	}
	return count
}

// classFactor derates the risk budget for higher-volatility asset classes.
func classFactor(symbol string) float64 {
	switch market.Classify(symbol) {
	case market.ClassMetal:
		return 0.7
	case market.ClassIndex:
		return 0.8
	case market.ClassEnergy:
		return 0.6
	case market.ClassCrypto:
		return 0.5
	default:
		return 1.0
	}
}

// LotSize computes the order volume for a proposal. Returns 0 only when the
// instrument cannot be resolved; a zero stop distance yields the broker's
// minimum volume rather than silently skipping risk.
func (m *Manager) LotSize(ctx context.Context, symbol string, entry, stopLoss float64, confidence int, balance float64) float64 {
	spec, err := m.source.SymbolSpec(ctx, symbol)
	if err != nil || spec.Point <= 0 || spec.TickValue <= 0 {
		return 0
	}

	riskAmount := balance * m.cfg.MaxRiskPerTrade
	riskAmount *= m.cfg.tierMultiplier(confidence)
	riskAmount *= classFactor(symbol)

	pipUnit := market.PipUnit(symbol, spec.Point)
	pipDistance := math.Abs(entry-stopLoss) / pipUnit
	pipValue := spec.TickValue * (pipUnit / spec.Point) // broker quotes value per point

	var lot float64
	if pipDistance > 0 {
		lot = riskAmount / (pipDistance * pipValue)
	} else {
		lot = spec.VolumeMin
	}

	if ceiling, ok := m.cfg.MaxLotBySymbol[market.Normalize(symbol)]; ok && lot > ceiling {
		lot = ceiling
	}

	lot = math.Max(spec.VolumeMin, math.Min(lot, spec.VolumeMax))

	if spec.VolumeStep > 0 {
		lot = math.Round(lot/spec.VolumeStep) * spec.VolumeStep
		if lot < spec.VolumeMin {
			lot = spec.VolumeMin
		}
	}

	return math.Round(lot*100) / 100
}
