package risk

import (
	"errors"
	"math"

	"go.uber.org/zap"

	"github.com/rustyeddy/fxpilot/market"
	"github.com/rustyeddy/fxpilot/signals"
)

// ErrNoEquity means the balance could not be read; no plan may be made.
var ErrNoEquity = errors.New("no equity figure")

// Quotes is what the allocator reads from a gateway snapshot.
type Quotes interface {
	Price(instrument string) (float64, bool)
	Balance() (float64, bool)
}

// Plan is the order the allocator wants for one instrument. Size is in
// units, signed: negative sells.
type Plan struct {
	Instrument  string            `json:"instrument"`
	Direction   signals.Direction `json:"direction"`
	Strength    float64           `json:"strength"`
	Weight      float64           `json:"weight"`
	Fraction    float64           `json:"fraction"`
	Price       float64           `json:"price"`
	StopPrice   float64           `json:"stop_price"`
	TargetPrice float64           `json:"target_price"`
	Size        float64           `json:"size"`
}

// Notional is the capital the plan commits, in quote currency.
func (p Plan) Notional() float64 {
	return abs(p.Size) * p.Price
}

// Omission records an actionable instrument that got no plan.
type Omission struct {
	Instrument string
	Reason     string
}

type Allocator struct {
	params Params
	log    *zap.Logger
}

func NewAllocator(p Params, log *zap.Logger) (*Allocator, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Allocator{params: p, log: log.Named("allocator")}, nil
}

func (a *Allocator) Params() Params { return a.params }

// Weight is max(baseline - strength, 0) ^ exponent. A NaN strength weighs 0.
func (a *Allocator) Weight(strength float64) float64 {
	return Weight(strength, a.params.Baseline, a.params.WeightExponent)
}

func Weight(strength, baseline, exponent float64) float64 {
	d := distance(strength, baseline)
	if d == 0 {
		return 0
	}
	return math.Pow(d, exponent)
}

func distance(strength, baseline float64) float64 {
	if math.IsNaN(strength) || strength >= baseline {
		return 0
	}
	return baseline - strength
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

type candidate struct {
	instrument string
	dir        signals.Direction
	strength   float64
	price      float64
	weight     float64
	// distance is baseline minus strength, floored at zero.
	distance float64
}

// Allocate splits equity across the BUY instruments and, independently,
// across the SELL instruments, in proportion to their weights. HOLD and
// UNKNOWN are dropped silently. Instruments without a price are returned
// as omissions. A pool whose weights sum to zero gets size 0 throughout.
// Plans follow the order of instruments.
func (a *Allocator) Allocate(instruments []string, sigs signals.Set, q Quotes) ([]Plan, []Omission, error) {
	equity, ok := q.Balance()
	if !ok || math.IsNaN(equity) || equity <= 0 {
		return nil, nil, ErrNoEquity
	}

	var (
		cands     []candidate
		omissions []Omission
		sums      = map[signals.Direction]float64{}
		widest    = map[signals.Direction]float64{}
	)
	for _, inst := range instruments {
		sig := sigs.Get(inst)
		if !sig.Direction.Actionable() {
			continue
		}
		price, ok := q.Price(inst)
		if !ok || price <= 0 {
			a.log.Warn("instrument skipped",
				zap.String("instrument", inst),
				zap.String("action", "allocate"),
				zap.String("reason", "no price"))
			omissions = append(omissions, Omission{Instrument: inst, Reason: "no price"})
			continue
		}
		d := distance(sig.Strength, a.params.Baseline)
		widest[sig.Direction] = math.Max(widest[sig.Direction], d)
		cands = append(cands, candidate{
			instrument: inst,
			dir:        sig.Direction,
			strength:   sig.Strength,
			price:      price,
			weight:     a.Weight(sig.Strength),
			distance:   d,
		})
	}

	// Fractions come from distances scaled by the pool's widest one, so the
	// power stays within [0, 1] for any exponent.
	scaled := make([]float64, len(cands))
	for i, c := range cands {
		if m := widest[c.dir]; m > 0 {
			scaled[i] = math.Pow(c.distance/m, a.params.WeightExponent)
		}
		sums[c.dir] += scaled[i]
	}

	plans := make([]Plan, 0, len(cands))
	for i, c := range cands {
		frac := 0.0
		if total := sums[c.dir]; total > 0 {
			frac = scaled[i] / total
		}
		units := equity * frac / c.price
		if !finite(frac) || !finite(units) {
			frac, units = 0, 0
		}
		size := market.RoundUnits(units)
		stop, target := a.levels(c.instrument, c.dir, c.price)
		if c.dir == signals.Sell {
			size = -size
		}
		plans = append(plans, Plan{
			Instrument:  c.instrument,
			Direction:   c.dir,
			Strength:    c.strength,
			Weight:      c.weight,
			Fraction:    frac,
			Price:       c.price,
			StopPrice:   stop,
			TargetPrice: target,
			Size:        size,
		})
	}
	return plans, omissions, nil
}

func (a *Allocator) levels(inst string, dir signals.Direction, price float64) (stop, target float64) {
	if dir == signals.Sell {
		return market.RoundPrice(inst, price*(1+a.params.StopMargin)),
			market.RoundPrice(inst, price*(1-a.params.TargetMargin))
	}
	return market.RoundPrice(inst, price*(1-a.params.StopMargin)),
		market.RoundPrice(inst, price*(1+a.params.TargetMargin))
}
