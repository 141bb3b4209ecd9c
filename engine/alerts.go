package engine

import (
	"fmt"
	"log"
	"time"

	"github.com/prathan03/mt5-auto-trade/broker"
	"github.com/prathan03/mt5-auto-trade/notify"
)

const (
	// lossAlertFraction warns when the day's loss reaches this share of the
	// daily limit, before admissions start getting rejected.
	lossAlertFraction = 0.8

	// drawdownAlertPct is the equity drawdown from the running peak that
	// triggers an alert; re-alerts need a further drawdownRealertStep.
	drawdownAlertPct    = 10.0
	drawdownRealertStep = 5.0
)

// evaluateAlerts emits RISK_ALERT events for the approaching daily-loss
// limit and for deep drawdowns. Both alerts latch so a stuck condition does
// not spam every cycle.
func (e *Engine) evaluateAlerts(acct broker.AccountSnapshot) {
	lossPct := e.risk.DailyLoss(acct.Balance)
	limit := e.risk.Config().MaxDailyLoss
	if limit > 0 && lossPct >= limit*lossAlertFraction {
		if !e.lossAlerted {
			e.lossAlerted = true
			e.emitRiskAlert(
				fmt.Sprintf("daily loss at %.2f%% of the %.2f%% limit", lossPct*100, limit*100),
				map[string]float64{"loss_percent": lossPct * 100, "limit_percent": limit * 100},
			)
		}
	} else {
		e.lossAlerted = false
	}

	if e.peakEquity <= 0 {
		return
	}
	dd := (e.peakEquity - acct.Equity) / e.peakEquity * 100
	switch {
	case dd <= drawdownAlertPct:
		e.ddAlerted = 0
	case e.ddAlerted == 0 || dd >= e.ddAlerted+drawdownRealertStep:
		e.ddAlerted = dd
		e.emitRiskAlert(
			fmt.Sprintf("drawdown %.1f%% from peak equity %.2f", dd, e.peakEquity),
			map[string]float64{"drawdown": dd, "peak": e.peakEquity, "equity": acct.Equity},
		)
	}
}

func (e *Engine) emitRiskAlert(reason string, metrics map[string]float64) {
	log.Printf("risk alert: %s", reason)
	ev := notify.New(notify.RiskAlert)
	ev.Reason = reason
	ev.Metrics = metrics
	e.sink.Emit(ev)
}

// maybeSummary emits one ACCOUNT_SUMMARY event per UTC day, on the first
// cycle after midnight.
func (e *Engine) maybeSummary(acct broker.AccountSnapshot, open int) {
	day := time.Now().UTC().YearDay()
	if day == e.summaryDay {
		return
	}
	e.summaryDay = day

	ev := notify.New(notify.AccountSummary)
	ev.Metrics = map[string]float64{
		"balance":      acct.Balance,
		"equity":       acct.Equity,
		"free_margin":  acct.FreeMargin,
		"margin_level": acct.MarginLevel,
		"open_trades":  float64(open),
	}
	e.sink.Emit(ev)
}
