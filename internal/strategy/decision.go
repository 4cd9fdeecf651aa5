// Package strategy
package strategy

// Decision is the output of a voter or of the consensus: what to do with a
// symbol at the evaluation point.
type Decision int8

const (
	Hold Decision = 0
	Buy  Decision = 1
	Sell Decision = -1
)

func (d Decision) String() string {
	switch d {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "HOLD"
	}
}
