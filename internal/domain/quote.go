package domain

import "forex_go/pkg/quant"

// Quote is a bid/ask snapshot for a symbol, as served by the broker bridge.
type Quote struct {
	Symbol    string            `json:"symbol"`
	BidMicros quant.PriceMicros `json:"bid"`
	AskMicros quant.PriceMicros `json:"ask"`
	TsUnixM   quant.TimeStamp   `json:"timestamp"`
}

// SpreadMicros returns the ask-bid spread.
func (q Quote) SpreadMicros() quant.PriceMicros {
	return q.AskMicros - q.BidMicros
}

// ExecPrice returns the price a new order of the given side fills at:
// ask for buys, bid for sells.
func (q Quote) ExecPrice(side Side) quant.PriceMicros {
	if side == SideBuy {
		return q.AskMicros
	}
	return q.BidMicros
}

// ClosePrice returns the price an open position of the given side closes
// at, which is the opposite side of the book.
func (q Quote) ClosePrice(side Side) quant.PriceMicros {
	if side == SideBuy {
		return q.BidMicros
	}
	return q.AskMicros
}
