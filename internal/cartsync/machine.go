// Package cartsync keeps a client's view of the cart in step with the server.
//
// Every line shown to the shopper is driven by a Machine: quantity changes
// are rendered optimistically, debounced per line, sent as a single PATCH
// carrying the latest quantity, and reconciled with the authoritative
// snapshot the server returns. The Machine is pure; it consumes events and
// returns effects. Syncer runs it against real timers and a Transport.
package cartsync

import (
	"fmt"
	"time"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/money"
)

// DefaultQuietPeriod is the debounce delay between the last interaction on a
// line and the request that carries it.
const DefaultQuietPeriod = 500 * time.Millisecond

// LineState is the synchronization state of one line.
type LineState int

const (
	StateIdle LineState = iota
	StatePendingOptimistic
	StateReconciled
	StateRemoved
)

func (s LineState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePendingOptimistic:
		return "pending"
	case StateReconciled:
		return "reconciled"
	case StateRemoved:
		return "removed"
	default:
		return fmt.Sprintf("LineState(%d)", int(s))
	}
}

// Snapshot is the server's answer to a line update.
type Snapshot struct {
	ProductID  string      `json:"product_id"`
	Quantity   int         `json:"quantity"`
	Subtotal   money.Money `json:"subtotal"`
	TotalPrice money.Money `json:"total_price"`
	Removed    bool        `json:"removed"`
	ItemCount  int         `json:"item_count"`
	Message    string      `json:"message,omitempty"`
}

// LineSeed is a line as first rendered by the page.
type LineSeed struct {
	ProductID string
	Quantity  int
	UnitPrice money.Money
}

// Event is an input to the Machine.
type Event interface{ isEvent() }

// Input sets the quantity the shopper asked for. Negative values count as 0.
type Input struct {
	ProductID string
	Quantity  int
}

// Adjust changes the displayed quantity by Delta, as the +/- controls do.
type Adjust struct {
	ProductID string
	Delta     int
}

// TimerFired reports the end of a line's quiet period.
type TimerFired struct {
	ProductID string
}

// Response delivers the snapshot for request Seq.
type Response struct {
	ProductID string
	Seq       uint64
	Snapshot  Snapshot
}

// Failure reports that request Seq did not produce a snapshot.
type Failure struct {
	ProductID string
	Seq       uint64
	Err       error
}

func (Input) isEvent()      {}
func (Adjust) isEvent()     {}
func (TimerFired) isEvent() {}
func (Response) isEvent()   {}
func (Failure) isEvent()    {}

// Effect is an instruction returned by the Machine.
type Effect interface{ isEffect() }

// Render shows a line's quantity and subtotal.
type Render struct {
	ProductID string
	Quantity  int
	Subtotal  money.Money
}

// RenderTotal shows the cart total.
type RenderTotal struct {
	Total money.Money
}

// Schedule (re)arms the quiet-period timer of a line, cancelling any
// previous one.
type Schedule struct {
	ProductID string
	After     time.Duration
}

// Send issues the update request for a line.
type Send struct {
	ProductID string
	Quantity  int
	Seq       uint64
}

// RemoveLine drops a line from the page.
type RemoveLine struct {
	ProductID string
}

// SetItemCount updates the cart item-count indicator.
type SetItemCount struct {
	Count int
}

// Reload reloads the whole page. The page has no empty-cart rendering.
type Reload struct{}

// Log records a problem that is not shown to the shopper.
type Log struct {
	ProductID string
	Message   string
	Err       error
}

func (Render) isEffect()       {}
func (RenderTotal) isEffect()  {}
func (Schedule) isEffect()     {}
func (Send) isEffect()         {}
func (RemoveLine) isEffect()   {}
func (SetItemCount) isEffect() {}
func (Reload) isEffect()       {}
func (Log) isEffect()          {}

type line struct {
	productID string
	unitPrice money.Money
	quantity  int
	subtotal  money.Money
	state     LineState

	// seq is the number of the last request sent; accepted the last one
	// whose answer was applied.
	seq      uint64
	accepted uint64
	inFlight bool
	// dirty marks a quantity that changed while a request was in flight.
	dirty        bool
	timerPending bool
}

// newerIntent reports whether the shopper changed the line after the
// in-flight request was sent.
func (l *line) newerIntent() bool {
	return l.dirty || l.timerPending
}

// Machine is the per-cart synchronization state machine. It is not safe for
// concurrent use; Syncer serializes access to it.
type Machine struct {
	quiet     time.Duration
	lines     map[string]*line
	itemCount int
	total     money.Money
}

// NewMachine builds a machine for the lines currently on the page.
func NewMachine(quiet time.Duration, seeds []LineSeed, total money.Money) *Machine {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	m := &Machine{
		quiet: quiet,
		lines: make(map[string]*line, len(seeds)),
		total: total,
	}
	for _, s := range seeds {
		m.lines[s.ProductID] = &line{
			productID: s.ProductID,
			unitPrice: s.UnitPrice,
			quantity:  s.Quantity,
			subtotal:  s.UnitPrice.MulInt(s.Quantity),
			state:     StateIdle,
		}
	}
	m.itemCount = len(m.lines)
	return m
}

// State returns the state of a line. Unknown lines report StateRemoved.
func (m *Machine) State(productID string) LineState {
	l, ok := m.lines[productID]
	if !ok {
		return StateRemoved
	}
	return l.state
}

// Quantity returns the displayed quantity of a line.
func (m *Machine) Quantity(productID string) int {
	if l, ok := m.lines[productID]; ok && l.state != StateRemoved {
		return l.quantity
	}
	return 0
}

// Subtotal returns the displayed subtotal of a line.
func (m *Machine) Subtotal(productID string) money.Money {
	if l, ok := m.lines[productID]; ok && l.state != StateRemoved {
		return l.subtotal
	}
	return money.Zero
}

// Total returns the displayed cart total.
func (m *Machine) Total() money.Money { return m.total }

// ItemCount returns the displayed item count.
func (m *Machine) ItemCount() int { return m.itemCount }

// Handle applies one event and returns the effects to execute, in order.
func (m *Machine) Handle(ev Event) []Effect {
	switch e := ev.(type) {
	case Input:
		return m.input(e.ProductID, e.Quantity)
	case Adjust:
		l, ok := m.live(e.ProductID)
		if !ok {
			return []Effect{Log{ProductID: e.ProductID, Message: "no such line"}}
		}
		return m.input(e.ProductID, l.quantity+e.Delta)
	case TimerFired:
		return m.timerFired(e.ProductID)
	case Response:
		return m.response(e)
	case Failure:
		return m.failure(e)
	default:
		return []Effect{Log{Message: fmt.Sprintf("unknown event %T", ev)}}
	}
}

func (m *Machine) live(productID string) (*line, bool) {
	l, ok := m.lines[productID]
	if !ok || l.state == StateRemoved {
		return nil, false
	}
	return l, true
}

func (m *Machine) input(productID string, quantity int) []Effect {
	l, ok := m.live(productID)
	if !ok {
		return []Effect{Log{ProductID: productID, Message: "no such line"}}
	}
	if quantity < 0 {
		quantity = 0
	}

	l.quantity = quantity
	l.subtotal = l.unitPrice.MulInt(quantity)
	l.state = StatePendingOptimistic
	l.timerPending = true

	return []Effect{
		Render{ProductID: productID, Quantity: l.quantity, Subtotal: l.subtotal},
		Schedule{ProductID: productID, After: m.quiet},
	}
}

func (m *Machine) timerFired(productID string) []Effect {
	l, ok := m.live(productID)
	if !ok || !l.timerPending {
		return nil
	}
	l.timerPending = false

	if l.inFlight {
		l.dirty = true
		return nil
	}
	return []Effect{m.send(l)}
}

func (m *Machine) send(l *line) Effect {
	l.seq++
	l.inFlight = true
	l.dirty = false
	return Send{ProductID: l.productID, Quantity: l.quantity, Seq: l.seq}
}

func (m *Machine) response(r Response) []Effect {
	l, ok := m.live(r.ProductID)
	if !ok {
		return nil
	}
	if r.Seq <= l.accepted || r.Seq > l.seq {
		return []Effect{Log{ProductID: r.ProductID, Message: fmt.Sprintf("ignoring stale response %d", r.Seq)}}
	}
	l.accepted = r.Seq
	if r.Seq == l.seq {
		l.inFlight = false
	}

	if l.newerIntent() {
		// The snapshot describes a quantity the shopper already replaced.
		var effects []Effect
		if l.dirty && !l.inFlight {
			effects = append(effects, m.send(l))
		}
		return effects
	}

	snap := r.Snapshot
	m.total = snap.TotalPrice
	m.itemCount = snap.ItemCount

	if snap.Removed {
		l.state = StateRemoved
		l.quantity = 0
		l.subtotal = money.Zero
		effects := []Effect{
			RemoveLine{ProductID: l.productID},
			SetItemCount{Count: m.itemCount},
			RenderTotal{Total: m.total},
		}
		if m.itemCount == 0 {
			effects = append(effects, Reload{})
		}
		return effects
	}

	l.state = StateReconciled
	l.quantity = snap.Quantity
	l.subtotal = snap.Subtotal
	return []Effect{
		Render{ProductID: l.productID, Quantity: l.quantity, Subtotal: l.subtotal},
		RenderTotal{Total: m.total},
		SetItemCount{Count: m.itemCount},
	}
}

func (m *Machine) failure(f Failure) []Effect {
	l, ok := m.live(f.ProductID)
	if !ok || f.Seq != l.seq || !l.inFlight {
		return nil
	}
	l.inFlight = false

	// The optimistic value stays on screen until the next reconciliation.
	effects := []Effect{Log{ProductID: f.ProductID, Message: "cart update failed", Err: f.Err}}
	if l.dirty {
		effects = append(effects, m.send(l))
	}
	return effects
}
