package engine

import (
	"context"
	"log"
	"time"

	"github.com/prathan03/mt5-auto-trade/broker"
	"github.com/prathan03/mt5-auto-trade/journal"
	"github.com/prathan03/mt5-auto-trade/notify"
	"github.com/prathan03/mt5-auto-trade/obs"
	"github.com/prathan03/mt5-auto-trade/pkg/id"
	"github.com/prathan03/mt5-auto-trade/signal"
)

// execute admits and places proposals one at a time on the coordinator, so
// each admission sees the positions opened by the ones before it.
func (e *Engine) execute(ctx context.Context, proposals []signal.Proposal, acct broker.AccountSnapshot) {
	for _, p := range proposals {
		e.executeOne(ctx, p, acct)
	}
}

func (e *Engine) executeOne(ctx context.Context, p signal.Proposal, acct broker.AccountSnapshot) {
	decision := e.risk.CanOpenTrade(ctx, p.Symbol)
	if !decision.Allowed {
		log.Printf("execute %s: rejected: %s", p.Symbol, decision.Reason)
		obs.Rejection(decision.Code)
		e.recordRejection(p, decision.Code, decision.Reason)

		ev := notify.New(notify.TradeRejected)
		ev.Symbol = p.Symbol
		ev.Side = string(p.Decision)
		ev.Confidence = p.Confidence
		ev.Reason = decision.Reason
		e.sink.Emit(ev)
		return
	}

	lot := e.risk.LotSize(ctx, p.Symbol, p.EntryPrice, p.StopLoss, p.Confidence, acct.Balance)
	if lot <= 0 {
		log.Printf("execute %s: zero volume, instrument unresolvable", p.Symbol)
		e.recordRejection(p, "ZERO_VOLUME", "lot size resolved to zero")
		return
	}

	side := broker.Buy
	if p.Decision == signal.Sell {
		side = broker.Sell
	}

	// The broker-side TP is the final target; TP1/TP2 are taken as partial
	// closes by the position manager.
	tp := p.TakeProfit3
	if tp <= 0 {
		tp = p.TakeProfit1
	}

	res, err := e.gw.PlaceOrder(ctx, broker.OrderRequest{
		Symbol:     p.Symbol,
		Side:       side,
		Volume:     lot,
		Price:      p.EntryPrice,
		StopLoss:   p.StopLoss,
		TakeProfit: tp,
		Deviation:  e.cfg.Engine.SlippagePoints,
		Magic:      e.cfg.Engine.Magic,
		Comment:    "auto " + p.Symbol,
	})
	if err != nil {
		log.Printf("execute %s: order failed: %v", p.Symbol, err)
		obs.Rejection("EXECUTION_FAILED")
		e.recordRejection(p, "EXECUTION_FAILED", err.Error())
		return
	}

	log.Printf("execute %s: %s %.2f lots @ %.5f ticket=%d",
		p.Symbol, side, res.Volume, res.Price, res.Ticket)
	obs.OrderPlaced(side.String())

	ev := notify.New(notify.TradeOpened)
	ev.Symbol = p.Symbol
	ev.Ticket = res.Ticket
	ev.Side = side.String()
	ev.Volume = res.Volume
	ev.Price = res.Price
	ev.StopLoss = p.StopLoss
	ev.TakeProfit = tp
	ev.Confidence = p.Confidence
	ev.Reason = p.Reasoning
	e.sink.Emit(ev)

	if err := e.journal.RecordTrade(journal.TradeRecord{
		ID:         id.New(),
		Ticket:     res.Ticket,
		Symbol:     p.Symbol,
		Side:       side.String(),
		Volume:     res.Volume,
		EntryPrice: res.Price,
		StopLoss:   p.StopLoss,
		TakeProfit: tp,
		Confidence: p.Confidence,
		Reasoning:  p.Reasoning,
		OpenTime:   time.Now(),
	}); err != nil {
		log.Printf("execute %s: journal trade: %v", p.Symbol, err)
	}
}

func (e *Engine) recordRejection(p signal.Proposal, code, reason string) {
	if err := e.journal.RecordDecision(journal.DecisionRecord{
		ID:         id.New(),
		Symbol:     p.Symbol,
		Decision:   string(p.Decision),
		Confidence: p.Confidence,
		Code:       code,
		Reason:     reason,
		Time:       time.Now(),
	}); err != nil {
		log.Printf("execute %s: journal decision: %v", p.Symbol, err)
	}
}
