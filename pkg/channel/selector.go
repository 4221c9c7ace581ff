package channel

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/neo4j/graph-data-science-client-sub004/pkg/errors"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/table"
)

// State is the negotiation state of a [Selector].
type State int32

const (
	StateUnnegotiated State = iota
	StateNegotiating
	StateQueryOnly
	StateBulkAvailable
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnnegotiated:
		return "UNNEGOTIATED"
	case StateNegotiating:
		return "NEGOTIATING"
	case StateQueryOnly:
		return "QUERY_ONLY"
	case StateBulkAvailable:
		return "BULK_AVAILABLE"
	case StateClosed:
		return "CLOSED"
	}
	return "UNKNOWN"
}

// NegotiateTimeout bounds the one-time negotiation.
const NegotiateTimeout = 30 * time.Second

// NegotiateFunc establishes the bulk channel. An error means the connection
// stays query-only for its lifetime.
type NegotiateFunc func(ctx context.Context) (*BulkChannel, error)

// Selector routes calls to the bulk channel when it is available and
// supports the call, and to the query channel otherwise.
//
// Negotiation runs at most once, on the first call that needs it; concurrent
// first calls wait for the same negotiation. A failed negotiation is never
// retried.
type Selector struct {
	query     *QueryChannel
	negotiate NegotiateFunc
	logger    *log.Logger

	once   sync.Once
	state  atomic.Int32
	bulk   *BulkChannel
	negErr error
}

// NewSelector creates a selector. A nil negotiate disables the bulk channel.
func NewSelector(query *QueryChannel, negotiate NegotiateFunc, logger *log.Logger) *Selector {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &Selector{query: query, negotiate: negotiate, logger: logger}
	if negotiate == nil {
		s.negErr = errors.New(errors.ErrCodeUnsupported, "bulk channel disabled")
		s.once.Do(func() { s.state.Store(int32(StateQueryOnly)) })
	}
	return s
}

// State returns the current negotiation state.
func (s *Selector) State() State { return State(s.state.Load()) }

// Negotiate runs negotiation if it has not run yet and returns the
// resulting state. The outcome holds for the connection's lifetime, so
// negotiation runs detached from ctx's cancellation, bounded by
// [NegotiateTimeout].
func (s *Selector) Negotiate(ctx context.Context) State {
	s.once.Do(func() {
		s.state.Store(int32(StateNegotiating))
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), NegotiateTimeout)
		defer cancel()
		bulk, err := s.negotiate(nctx)
		if err != nil || bulk == nil {
			if err == nil {
				err = errors.New(errors.ErrCodeNegotiationFailed, "negotiation returned no channel")
			}
			s.negErr = err
			s.state.Store(int32(StateQueryOnly))
			if errors.Is(err, errors.ErrCodeUnsupported) {
				s.logger.Info("bulk channel unavailable, using query channel", "reason", errors.UserMessage(err))
			} else {
				s.logger.Warn("bulk channel negotiation failed, using query channel", "err", err)
			}
			return
		}
		s.bulk = bulk
		s.state.Store(int32(StateBulkAvailable))
		d := bulk.Descriptor()
		s.logger.Debug("bulk channel negotiated", "address", d.Address, "version", d.Version, "encrypted", d.Encrypted)
	})
	return s.State()
}

// Select returns the channel that will execute call.
func (s *Selector) Select(ctx context.Context, call Call) Channel {
	if s.Negotiate(ctx) == StateBulkAvailable && s.bulk.Supports(call) {
		return s.bulk
	}
	return s.query
}

// Name returns "auto".
func (s *Selector) Name() string { return "auto" }

// Supports always returns true; the query channel serves everything.
func (s *Selector) Supports(Call) bool { return true }

// Execute runs call on the selected channel. Calls the bulk channel rejects
// as unsupported are re-issued on the query channel.
func (s *Selector) Execute(ctx context.Context, call Call) (*table.Table, error) {
	if s.State() == StateClosed {
		return nil, errors.New(errors.ErrCodeClosed, "connection is closed")
	}
	return s.Dispatch(ctx, s.Select(ctx, call), call)
}

// Dispatch runs call on ch, a channel previously returned by Select. A bulk
// channel that declines the call as unsupported is replaced by the query
// channel.
func (s *Selector) Dispatch(ctx context.Context, ch Channel, call Call) (*table.Table, error) {
	if s.State() == StateClosed {
		return nil, errors.New(errors.ErrCodeClosed, "connection is closed")
	}
	res, err := ch.Execute(ctx, call)
	if err != nil && ch != Channel(s.query) && errors.Is(err, errors.ErrCodeUnsupported) {
		s.logger.Debug("bulk channel declined call, falling back", "namespace", call.Namespace)
		return s.query.Execute(ctx, call)
	}
	return res, err
}

// Query returns the query channel.
func (s *Selector) Query() *QueryChannel { return s.query }

// Bulk returns the negotiated bulk channel, negotiating if needed.
func (s *Selector) Bulk(ctx context.Context) (*BulkChannel, error) {
	switch s.Negotiate(ctx) {
	case StateBulkAvailable:
		return s.bulk, nil
	case StateClosed:
		return nil, errors.New(errors.ErrCodeClosed, "connection is closed")
	}
	return nil, errors.Wrap(errors.ErrCodeUnsupported, s.negErr, "bulk channel unavailable")
}

// Close closes the bulk channel, if any. Later calls fail with CLIENT_CLOSED.
func (s *Selector) Close() error {
	// Waits for an in-flight negotiation and prevents a later one.
	s.once.Do(func() {})
	if State(s.state.Swap(int32(StateClosed))) == StateClosed {
		return nil
	}
	if s.bulk != nil {
		return s.bulk.Close()
	}
	return nil
}
