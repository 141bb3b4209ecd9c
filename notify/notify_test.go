package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type capture struct {
	events []Event
}

func (c *capture) Emit(e Event) { c.events = append(c.events, e) }

func TestNewStampsIDAndTime(t *testing.T) {
	t.Parallel()

	a := New(TradeOpened)
	b := New(TradeOpened)

	assert.Equal(t, TradeOpened, a.Type)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.Time.IsZero())
}

func TestMultiFansOut(t *testing.T) {
	t.Parallel()

	a, b := &capture{}, &capture{}
	m := Multi{a, b, Nop{}}

	m.Emit(New(RiskAlert))

	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}

func TestRender(t *testing.T) {
	t.Parallel()

	e := New(TradeOpened)
	e.Symbol = "EURUSD"
	e.Ticket = 1001
	e.Side = "BUY"
	e.Volume = 0.5
	e.Price = 1.10010
	e.StopLoss = 1.09510
	e.Confidence = 85
	e.Reason = "H1 uptrend"

	got := render(e)
	assert.Contains(t, got, "[TRADE_OPENED] EURUSD #1001 BUY 0.50 lots @ 1.10010")
	assert.Contains(t, got, "SL 1.09510")
	assert.Contains(t, got, "conf 85%")
	assert.Contains(t, got, "H1 uptrend")
}

func TestRenderMetricsSorted(t *testing.T) {
	t.Parallel()

	e := New(RiskAlert)
	e.Reason = "drawdown warning"
	e.Metrics = map[string]float64{"peak": 10000, "drawdown": 12.5}

	got := render(e)
	assert.Contains(t, got, "drawdown: 12.50")
	assert.Contains(t, got, "peak: 10000.00")
}
