package fanout

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"dirnet/pkg/record"
	"dirnet/pkg/relay"
	"dirnet/pkg/types"
	"dirnet/pkg/wire"
)

// Query sends filter to every relay in parallel and merges their answers.
//
// Each relay runs as an independent task: dial failures, malformed
// frames, invalid signatures and mid-stream disconnects all degrade that
// relay's contribution to whatever it already delivered, never to an
// error. The call returns once every relay reached a terminal state —
// end-of-query, connection close, or the shared deadline. Results are
// deduplicated by record id; the first arrival of an id wins.
//
// Zero reachable relays yield an empty slice, not an error.
func (e *Engine) Query(ctx context.Context, filter types.Filter, relays []string, timeout time.Duration) []types.Record {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sub := newSubscriptionID()
	results := make(chan types.Record)

	var wg sync.WaitGroup
	for _, url := range relays {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			e.queryRelay(ctx, url, sub, filter, results)
		}(url)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	// Single owning drain: the only place the merged set is touched.
	var merged []types.Record
	seen := make(map[types.RecordID]struct{})
	for r := range results {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		merged = append(merged, r)
	}
	return merged
}

// queryRelay runs one relay's subscription to completion and feeds
// verified records into results.
func (e *Engine) queryRelay(ctx context.Context, url string, sub types.SubscriptionID, filter types.Filter, results chan<- types.Record) {
	conn, err := relay.Connect(ctx, url, e.logger)
	if err != nil {
		e.logger.Debug("relay unreachable, skipping", zap.String("relay", url), zap.Error(err))
		return
	}
	defer conn.Close()

	req, err := wire.EncodeReq(sub, filter)
	if err != nil {
		e.logger.Warn("failed to encode subscription request", zap.Error(err))
		return
	}
	if err := conn.Send(req); err != nil {
		e.logger.Debug("failed to send subscription request", zap.String("relay", url), zap.Error(err))
		return
	}

	for {
		select {
		case <-ctx.Done():
			// Deadline: keep what the relay already sent, tell it to
			// stop, and let the deferred Close tear the session down.
			e.stopSubscription(conn, sub)
			return

		case msg, ok := <-conn.Messages():
			if !ok {
				// Remote close counts as terminal; partial results stand.
				return
			}
			switch m := msg.(type) {
			case wire.RecordMessage:
				if m.Subscription != sub {
					continue
				}
				if !record.Verify(&m.Record) {
					e.logger.Debug("dropping record with invalid signature",
						zap.String("relay", url), zap.String("id", string(m.Record.ID)))
					continue
				}
				select {
				case results <- m.Record:
				case <-ctx.Done():
					e.stopSubscription(conn, sub)
					return
				}
			case wire.EndOfQuery:
				if m.Subscription != sub {
					continue
				}
				e.stopSubscription(conn, sub)
				return
			case wire.Notice:
				e.logger.Debug("relay notice", zap.String("relay", url), zap.String("text", m.Text))
			}
		}
	}
}

// stopSubscription proactively closes the subscription on the relay.
// Best effort: the connection is going away regardless.
func (e *Engine) stopSubscription(conn *relay.Connection, sub types.SubscriptionID) {
	if frame, err := wire.EncodeClose(sub); err == nil {
		_ = conn.Send(frame)
	}
}
