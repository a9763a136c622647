package cartsync

import (
	"context"
	"sync"
	"time"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/money"
)

// Transport sends one line update to the server.
type Transport interface {
	UpdateLine(ctx context.Context, productID string, quantity int) (*Snapshot, error)
}

// View is the rendered cart.
type View interface {
	RenderLine(productID string, quantity int, subtotal money.Money)
	RenderTotal(total money.Money)
	RemoveLine(productID string)
	SetItemCount(count int)
	Reload()
}

// Syncer drives a Machine from a single goroutine. Timers and transport
// calls run elsewhere and report back through the event queue, so the
// machine and the view are only ever touched by Run.
type Syncer struct {
	machine   *Machine
	transport Transport
	view      View
	logger    *logging.LoggerV2

	events chan Event
	done   chan struct{}
	timers map[string]*time.Timer
	wg     sync.WaitGroup
}

func NewSyncer(machine *Machine, transport Transport, view View, logger *logging.LoggerV2) *Syncer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Syncer{
		machine:   machine,
		transport: transport,
		view:      view,
		logger:    logger,
		events:    make(chan Event, 64),
		done:      make(chan struct{}),
		timers:    make(map[string]*time.Timer),
	}
}

// Run processes events until ctx is cancelled. Requests already sent are not
// cancelled by a rescheduled timer, only by ctx.
func (s *Syncer) Run(ctx context.Context) error {
	defer func() {
		close(s.done)
		for _, t := range s.timers {
			t.Stop()
		}
		s.wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.events:
			s.execute(ctx, s.machine.Handle(ev))
		}
	}
}

// SetQuantity records a typed quantity.
func (s *Syncer) SetQuantity(productID string, quantity int) {
	s.post(Input{ProductID: productID, Quantity: quantity})
}

// Increase is the + control.
func (s *Syncer) Increase(productID string) {
	s.post(Adjust{ProductID: productID, Delta: 1})
}

// Decrease is the - control.
func (s *Syncer) Decrease(productID string) {
	s.post(Adjust{ProductID: productID, Delta: -1})
}

func (s *Syncer) post(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *Syncer) execute(ctx context.Context, effects []Effect) {
	for _, eff := range effects {
		switch e := eff.(type) {
		case Render:
			s.view.RenderLine(e.ProductID, e.Quantity, e.Subtotal)
		case RenderTotal:
			s.view.RenderTotal(e.Total)
		case SetItemCount:
			s.view.SetItemCount(e.Count)
		case RemoveLine:
			s.stopTimer(e.ProductID)
			s.view.RemoveLine(e.ProductID)
		case Reload:
			s.view.Reload()
		case Schedule:
			s.schedule(e.ProductID, e.After)
		case Send:
			s.send(ctx, e)
		case Log:
			fields := logging.Fields{"product_id": e.ProductID}
			if e.Err != nil {
				fields["error"] = e.Err.Error()
			}
			s.logger.Warn(e.Message, fields)
		}
	}
}

func (s *Syncer) schedule(productID string, after time.Duration) {
	s.stopTimer(productID)
	s.timers[productID] = time.AfterFunc(after, func() {
		s.post(TimerFired{ProductID: productID})
	})
}

func (s *Syncer) stopTimer(productID string) {
	if t, ok := s.timers[productID]; ok {
		t.Stop()
		delete(s.timers, productID)
	}
}

func (s *Syncer) send(ctx context.Context, e Send) {
	s.logger.Debug("Sending cart update", logging.Fields{
		"product_id": e.ProductID,
		"quantity":   e.Quantity,
		"seq":        e.Seq,
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		snap, err := s.transport.UpdateLine(ctx, e.ProductID, e.Quantity)
		if err != nil {
			s.post(Failure{ProductID: e.ProductID, Seq: e.Seq, Err: err})
			return
		}
		s.post(Response{ProductID: e.ProductID, Seq: e.Seq, Snapshot: *snap})
	}()
}
