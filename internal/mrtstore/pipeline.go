package mrtstore

import (
	"context"
	"time"

	"github.com/route-beacon/mrtparse/internal/mrt"
	"go.uber.org/zap"
)

// Pipeline batches decoded values behind the framer's Sinks callbacks and
// flushes them to the Writer on a size or time trigger, the same way
// internal/state.Pipeline batches ParsedRoutes before calling its Writer.
// Sinks are invoked synchronously by mrt.Parser.Run on its own goroutine,
// so Pipeline's channels exist to decouple that call from Postgres
// round-trip latency without blocking the parser on every record.
type Pipeline struct {
	writer        *Writer
	batchSize     int
	flushInterval time.Duration
	logger        *zap.Logger

	ribs   chan *RibRow
	states chan *mrt.BgpState
	msgs   chan *mrt.BgpMsg
}

func NewPipeline(writer *Writer, batchSize, flushIntervalMs, channelBufferSize int, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		writer:        writer,
		batchSize:     batchSize,
		flushInterval: time.Duration(flushIntervalMs) * time.Millisecond,
		logger:        logger,
		ribs:          make(chan *RibRow, channelBufferSize),
		states:        make(chan *mrt.BgpState, channelBufferSize),
		msgs:          make(chan *mrt.BgpMsg, channelBufferSize),
	}
}

// Sinks returns the mrt.Sinks wiring that feeds this pipeline. Any sink
// left nil by the caller (see SinksConfig) is simply never invoked by the
// framer, so the corresponding channel here stays empty and costs nothing.
func (p *Pipeline) Sinks(ctx context.Context, enableDump, enableState, enableMessage bool) mrt.Sinks {
	var sinks mrt.Sinks
	if enableDump {
		sinks.Dump = func(rib *mrt.Rib, peers *mrt.PeerContext) {
			select {
			case p.ribs <- &RibRow{Rib: rib, Peers: peers}:
			case <-ctx.Done():
			}
		}
	}
	if enableState {
		sinks.State = func(s *mrt.BgpState) {
			select {
			case p.states <- s:
			case <-ctx.Done():
			}
		}
	}
	if enableMessage {
		sinks.Message = func(m *mrt.BgpMsg) {
			select {
			case p.msgs <- m:
			case <-ctx.Done():
			}
		}
	}
	return sinks
}

// Run drains all three channels until ctx is canceled or any one of the
// channels is closed, flushing on whichever trigger (size or timer) fires
// first for each record kind independently.
func (p *Pipeline) Run(ctx context.Context) {
	var ribBatch []*RibRow
	var stateBatch []*mrt.BgpState
	var msgBatch []*mrt.BgpMsg

	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	flushAll := func() {
		if len(ribBatch) > 0 {
			if _, err := p.writer.FlushRibBatch(ctx, ribBatch); err != nil {
				p.logger.Error("rib batch flush failed", zap.Error(err))
			}
			ribBatch = nil
		}
		if len(stateBatch) > 0 {
			if _, err := p.writer.FlushStateBatch(ctx, stateBatch); err != nil {
				p.logger.Error("state batch flush failed", zap.Error(err))
			}
			stateBatch = nil
		}
		if len(msgBatch) > 0 {
			if _, err := p.writer.FlushMessageBatch(ctx, msgBatch); err != nil {
				p.logger.Error("message batch flush failed", zap.Error(err))
			}
			msgBatch = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			flushAll()
			return

		case row, ok := <-p.ribs:
			if !ok {
				flushAll()
				return
			}
			ribBatch = append(ribBatch, row)
			if len(ribBatch) >= p.batchSize {
				if _, err := p.writer.FlushRibBatch(ctx, ribBatch); err != nil {
					p.logger.Error("rib batch flush failed", zap.Error(err))
				}
				ribBatch = nil
			}

		case s, ok := <-p.states:
			if !ok {
				flushAll()
				return
			}
			stateBatch = append(stateBatch, s)
			if len(stateBatch) >= p.batchSize {
				if _, err := p.writer.FlushStateBatch(ctx, stateBatch); err != nil {
					p.logger.Error("state batch flush failed", zap.Error(err))
				}
				stateBatch = nil
			}

		case m, ok := <-p.msgs:
			if !ok {
				flushAll()
				return
			}
			msgBatch = append(msgBatch, m)
			if len(msgBatch) >= p.batchSize {
				if _, err := p.writer.FlushMessageBatch(ctx, msgBatch); err != nil {
					p.logger.Error("message batch flush failed", zap.Error(err))
				}
				msgBatch = nil
			}

		case <-ticker.C:
			flushAll()
		}
	}
}
