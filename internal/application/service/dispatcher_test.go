package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"basisd/internal/application/port"
	"basisd/internal/domain/model"
)

type submittedOrder struct {
	market   port.Market
	side     port.Side
	quantity float64
}

type mockExecutor struct {
	orders  []submittedOrder
	failAt  int // 1-based index of the call that fails, 0 = never
	calls   int
	lastErr error
}

func (m *mockExecutor) SubmitMarketOrder(ctx context.Context, market port.Market, symbol string, side port.Side, quantity float64) (*port.OrderResult, error) {
	m.calls++
	if m.failAt != 0 && m.calls == m.failAt {
		m.lastErr = errors.New("venue rejected order")
		return nil, m.lastErr
	}
	m.orders = append(m.orders, submittedOrder{market: market, side: side, quantity: quantity})
	return &port.OrderResult{OrderID: "1", Status: "FILLED"}, nil
}

func profitableOpportunity(strategy model.Strategy) model.Opportunity {
	premium := 1.0
	if strategy == model.StrategyBuyFuturesSellSpot {
		premium = -1.0
	}
	return model.NewOpportunity(time.Now(), "BTC", 50000, 50000*(1+premium/100), premium, nil, 0.5)
}

func TestDispatchSimulateNeverTouchesVenue(t *testing.T) {
	exec := &mockExecutor{}
	d := NewDispatcher(exec, 0.01)

	ok := d.Dispatch(context.Background(), profitableOpportunity(model.StrategySellFuturesBuySpot), true)

	if !ok {
		t.Error("simulated dispatch must report success")
	}
	if exec.calls != 0 {
		t.Errorf("simulate mode must issue zero orders, got %d", exec.calls)
	}
}

func TestDispatchSellFuturesBuySpotLegOrder(t *testing.T) {
	exec := &mockExecutor{}
	d := NewDispatcher(exec, 0.01)

	ok := d.Dispatch(context.Background(), profitableOpportunity(model.StrategySellFuturesBuySpot), false)

	if !ok {
		t.Fatal("dispatch should succeed")
	}
	if len(exec.orders) != 2 {
		t.Fatalf("expected exactly 2 legs, got %d", len(exec.orders))
	}
	first, second := exec.orders[0], exec.orders[1]
	if first.market != port.MarketFutures || first.side != port.SideSell {
		t.Errorf("first leg must be futures SELL, got %s %s", first.market, first.side)
	}
	if second.market != port.MarketSpot || second.side != port.SideBuy {
		t.Errorf("second leg must be spot BUY, got %s %s", second.market, second.side)
	}
	if first.quantity != 0.01 || second.quantity != 0.01 {
		t.Errorf("both legs must use the configured quantity, got %v and %v", first.quantity, second.quantity)
	}
}

func TestDispatchBuyFuturesSellSpotLegOrder(t *testing.T) {
	exec := &mockExecutor{}
	d := NewDispatcher(exec, 0.01)

	if !d.Dispatch(context.Background(), profitableOpportunity(model.StrategyBuyFuturesSellSpot), false) {
		t.Fatal("dispatch should succeed")
	}
	first, second := exec.orders[0], exec.orders[1]
	if first.market != port.MarketFutures || first.side != port.SideBuy {
		t.Errorf("first leg must be futures BUY, got %s %s", first.market, first.side)
	}
	if second.market != port.MarketSpot || second.side != port.SideSell {
		t.Errorf("second leg must be spot SELL, got %s %s", second.market, second.side)
	}
}

func TestDispatchFirstLegFailureStopsThere(t *testing.T) {
	exec := &mockExecutor{failAt: 1}
	d := NewDispatcher(exec, 0.01)

	ok := d.Dispatch(context.Background(), profitableOpportunity(model.StrategySellFuturesBuySpot), false)

	if ok {
		t.Error("failed futures leg must report false")
	}
	if len(exec.orders) != 0 {
		t.Errorf("spot leg must not be attempted after a failed futures leg, got %d fills", len(exec.orders))
	}
}

func TestDispatchSecondLegFailureNoRollback(t *testing.T) {
	exec := &mockExecutor{failAt: 2}
	d := NewDispatcher(exec, 0.01)

	ok := d.Dispatch(context.Background(), profitableOpportunity(model.StrategySellFuturesBuySpot), false)

	if ok {
		t.Error("failed spot leg must report false")
	}
	// the filled futures leg stays as-is
	if len(exec.orders) != 1 {
		t.Fatalf("expected exactly the futures fill to remain, got %d", len(exec.orders))
	}
	if exec.calls != 2 {
		t.Errorf("expected 2 submissions and no compensating order, got %d", exec.calls)
	}
}

func TestDispatchNilExecutorIsReadOnly(t *testing.T) {
	d := NewDispatcher(nil, 0.01)

	if !d.Dispatch(context.Background(), profitableOpportunity(model.StrategySellFuturesBuySpot), false) {
		t.Error("read-only dispatch must report success")
	}
}
