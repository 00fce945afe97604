package backtest

import (
	"fmt"
	"math"
	"time"

	"amp-engine/internal/errors"
	"amp-engine/internal/models"
)

// position is one open long. Backers records which amps stood behind the
// entry and with what normalized weight, for PnL attribution on close.
type position struct {
	qty        int
	entryPrice float64
	entryTime  time.Time
	backers    map[string]float64
}

// portfolio holds the simulated cash and positions of one run. Fills apply a
// fixed slippage fraction and commission cost; the model only goes long, a
// sell with no position is a no-op.
type portfolio struct {
	cash       float64
	positions  map[string]*position
	slippage   float64
	commission float64
}

func newPortfolio(capital, slippage, commission float64) *portfolio {
	return &portfolio{
		cash:       capital,
		positions:  make(map[string]*position),
		slippage:   slippage,
		commission: commission,
	}
}

// equity marks every position to the latest known close.
func (p *portfolio) equity(closes map[string]float64) float64 {
	total := p.cash
	for symbol, pos := range p.positions {
		if close, ok := closes[symbol]; ok {
			total += float64(pos.qty) * close
		} else {
			total += float64(pos.qty) * pos.entryPrice
		}
	}
	return total
}

// exposure is the total notional of open positions at the latest closes.
func (p *portfolio) exposure(closes map[string]float64) float64 {
	var total float64
	for symbol, pos := range p.positions {
		price := pos.entryPrice
		if close, ok := closes[symbol]; ok {
			price = close
		}
		total += float64(pos.qty) * price
	}
	return total
}

// buy opens or extends a long at the bar's close adjusted for slippage.
// Returns the quantity actually affordable after cash and commission.
func (p *portfolio) buy(bar models.MarketBar, qty int, backers map[string]float64) int {
	if qty <= 0 {
		return 0
	}
	price := bar.Close * (1 + p.slippage)

	// Cash bounds the fill.
	maxAffordable := int(math.Floor(p.cash / (price * (1 + p.commission))))
	if qty > maxAffordable {
		qty = maxAffordable
	}
	if qty <= 0 {
		return 0
	}

	notional := price * float64(qty)
	p.cash -= notional + notional*p.commission

	pos, ok := p.positions[bar.Symbol]
	if !ok {
		p.positions[bar.Symbol] = &position{
			qty:        qty,
			entryPrice: price,
			entryTime:  bar.Timestamp,
			backers:    backers,
		}
		return qty
	}

	// Average in; keep the original backers weighted by size.
	totalQty := pos.qty + qty
	pos.entryPrice = (pos.entryPrice*float64(pos.qty) + price*float64(qty)) / float64(totalQty)
	pos.qty = totalQty
	return qty
}

// sell closes up to qty shares of the symbol's long and returns the trade.
// A sell with nothing held returns nil.
func (p *portfolio) sell(bar models.MarketBar, qty int, reason string) *Trade {
	pos, ok := p.positions[bar.Symbol]
	if !ok || qty <= 0 {
		return nil
	}
	if qty > pos.qty {
		qty = pos.qty
	}

	price := bar.Close * (1 - p.slippage)
	notional := price * float64(qty)
	pnl := float64(qty)*(price-pos.entryPrice) - notional*p.commission
	p.cash += notional - notional*p.commission

	trade := &Trade{
		Symbol:     bar.Symbol,
		EntryTime:  pos.entryTime,
		ExitTime:   bar.Timestamp,
		EntryPrice: pos.entryPrice,
		ExitPrice:  price,
		Quantity:   qty,
		PnL:        pnl,
		PnLPercent: (price - pos.entryPrice) / pos.entryPrice * 100,
		Reason:     reason,
		backers:    pos.backers,
	}

	pos.qty -= qty
	if pos.qty == 0 {
		delete(p.positions, bar.Symbol)
	}
	return trade
}

// sellAll closes the symbol's entire position, if any.
func (p *portfolio) sellAll(bar models.MarketBar, reason string) *Trade {
	pos, ok := p.positions[bar.Symbol]
	if !ok {
		return nil
	}
	return p.sell(bar, pos.qty, reason)
}

// clipForRisk reduces a proposed quantity so no configured limit is
// breached. A clip is reported as a RiskError describing the rule and the
// bound; breaches never abort the run.
func clipForRisk(
	action models.Action,
	symbol string,
	qty int,
	price float64,
	limits models.RiskLimits,
	p *portfolio,
	closes map[string]float64,
	dailyLoss float64,
) (int, *errors.RiskError) {
	if qty <= 0 || action != models.ActionBuy {
		return qty, nil
	}

	if limits.MaxDailyLoss > 0 && dailyLoss >= limits.MaxDailyLoss {
		return 0, errors.NewRiskError("max_daily_loss", dailyLoss, limits.MaxDailyLoss,
			"daily loss at or past limit, no new entries")
	}

	_, holding := p.positions[symbol]
	if limits.MaxOpenPositions > 0 && !holding && len(p.positions) >= limits.MaxOpenPositions {
		return 0, errors.NewRiskError("max_open_positions",
			float64(len(p.positions)), float64(limits.MaxOpenPositions),
			fmt.Sprintf("%d positions open at limit %d", len(p.positions), limits.MaxOpenPositions))
	}

	if limits.MaxExposure > 0 && price > 0 {
		equity := p.equity(closes)
		headroom := limits.MaxExposure*equity - p.exposure(closes)
		maxQty := int(math.Floor(headroom / price))
		if maxQty < 0 {
			maxQty = 0
		}
		if qty > maxQty {
			return maxQty, errors.NewRiskError("max_exposure",
				p.exposure(closes)+float64(qty)*price, limits.MaxExposure*equity,
				fmt.Sprintf("exposure headroom %.2f allows %d shares at %.2f", headroom, maxQty, price))
		}
	}

	return qty, nil
}
