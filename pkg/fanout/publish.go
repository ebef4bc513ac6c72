package fanout

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"dirnet/pkg/relay"
	"dirnet/pkg/types"
	"dirnet/pkg/wire"
)

// relayResult is one relay's terminal publish outcome.
type relayResult struct {
	ok     bool
	reason string
}

// Publish sends the record to every relay in parallel and aggregates
// per-relay acknowledgments.
//
// A relay succeeds only on an explicit accepting acknowledgment
// correlated to the record id. Dial failures carry the dial error text,
// rejections carry the relay's reason, and relays that never acknowledge
// before the shared deadline are reported as "timeout". The call never
// returns an error; callers inspect the outcome's SuccessCount.
func (e *Engine) Publish(ctx context.Context, rec *types.Record, relays []string, timeout time.Duration) types.PublishOutcome {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results := make(chan relayResult)

	var wg sync.WaitGroup
	for _, url := range relays {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			res := e.publishRelay(ctx, url, rec)
			results <- res
		}(url)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	outcome := types.PublishOutcome{Total: len(relays)}
	for res := range results {
		if res.ok {
			outcome.SuccessCount++
		} else {
			outcome.FailureReasons = append(outcome.FailureReasons, res.reason)
		}
	}
	return outcome
}

func (e *Engine) publishRelay(ctx context.Context, url string, rec *types.Record) relayResult {
	conn, err := relay.Connect(ctx, url, e.logger)
	if err != nil {
		return relayResult{reason: err.Error()}
	}
	defer conn.Close()

	frame, err := wire.EncodePublish(rec)
	if err != nil {
		return relayResult{reason: err.Error()}
	}
	if err := conn.Send(frame); err != nil {
		return relayResult{reason: err.Error()}
	}

	for {
		select {
		case <-ctx.Done():
			return relayResult{reason: "timeout"}

		case msg, ok := <-conn.Messages():
			if !ok {
				return relayResult{reason: "connection closed before acknowledgment"}
			}
			switch m := msg.(type) {
			case wire.Ack:
				if m.RecordID != rec.ID {
					continue
				}
				if m.Accepted {
					return relayResult{ok: true}
				}
				reason := m.Reason
				if reason == "" {
					reason = "rejected"
				}
				e.logger.Debug("relay rejected record",
					zap.String("relay", url), zap.String("reason", reason))
				return relayResult{reason: reason}
			case wire.Notice:
				e.logger.Debug("relay notice", zap.String("relay", url), zap.String("text", m.Text))
			}
		}
	}
}
