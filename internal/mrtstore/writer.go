// Package mrtstore is an example downstream sink for the core decoder: it
// persists decoded Rib, BgpState, and BgpMsg values to Postgres via pgx,
// batched the way internal/state and internal/history's writers batch BMP
// data. It is an external collaborator of internal/mrt, wired through the
// Sinks callbacks the framer invokes — never a dependency of the decoder
// itself.
package mrtstore

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klauspost/compress/zstd"
	"github.com/route-beacon/mrtparse/internal/metrics"
	"github.com/route-beacon/mrtparse/internal/mrt"
	"go.uber.org/zap"
)

var zstdEncoder, _ = zstd.NewWriter(nil)

type Writer struct {
	pool          *pgxpool.Pool
	logger        *zap.Logger
	storeRawBytes bool
	compressRaw   bool
}

func NewWriter(pool *pgxpool.Pool, logger *zap.Logger, storeRawBytes, compressRaw bool) *Writer {
	return &Writer{
		pool:          pool,
		logger:        logger,
		storeRawBytes: storeRawBytes,
		compressRaw:   compressRaw,
	}
}

// RibRow pairs a decoded Rib with the PeerContext active when it was
// decoded, so the collector's administrative metadata (bgp id, view name)
// travels with every persisted entry, per the original's data model.
type RibRow struct {
	Rib   *mrt.Rib
	Peers *mrt.PeerContext
}

// FlushRibBatch writes a batch of decoded RIB entries to mrt_routes.
// Each entry of each Rib becomes one row; the batch itself spans possibly
// many distinct prefixes, matching how route_events/current_routes absorb
// many prefixes per flush interval.
func (w *Writer) FlushRibBatch(ctx context.Context, rows []*RibRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	start := time.Now()

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var total int64
	for _, row := range rows {
		prefix := fmt.Sprintf("%s/%d", row.Rib.Prefix.IP, row.Rib.Prefix.Length)

		for _, entry := range row.Rib.Entries {
			peerBGPID, peerASN, peerIP := peerMetadata(row.Peers, entry.PeerIndex)
			var collectorBGPID uint32
			var viewName string
			if row.Peers != nil {
				collectorBGPID = row.Peers.CollectorBGPID
				viewName = row.Peers.ViewName
			}

			var nextHop net.IP
			if entry.NextHop.IP != nil {
				nextHop = entry.NextHop.IP
			}

			tag, err := tx.Exec(ctx, `
				INSERT INTO mrt_routes (seq_num, family, prefix, path_id, originated,
					collector_bgp_id, view_name, peer_bgp_id, peer_asn, peer_ip,
					origin, as_path, next_hop, med, local_pref)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
				ON CONFLICT (seq_num, prefix, path_id, peer_bgp_id) DO UPDATE SET
					originated = EXCLUDED.originated,
					next_hop   = EXCLUDED.next_hop,
					med        = EXCLUDED.med,
					local_pref = EXCLUDED.local_pref`,
				row.Rib.SeqNum, row.Rib.Prefix.Family.String(), prefix, entry.PathID, entry.Originated,
				collectorBGPID, nullableString(viewName), peerBGPID, peerASN, nullableIP(peerIP),
				nullableOrigin(entry.Origin, entry.OriginSet), entry.ASPath, nullableIP(nextHop),
				nullableUint32(entry.MED, entry.MEDPresent), nullableUint32(entry.LocalPref, entry.LocalPrefPresent),
			)
			if err != nil {
				return 0, fmt.Errorf("insert mrt_route: %w", err)
			}
			total += tag.RowsAffected()
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	dur := time.Since(start).Seconds()
	metrics.DBWriteDuration.WithLabelValues("mrt_routes", "upsert").Observe(dur)
	metrics.DBRowsAffectedTotal.WithLabelValues("mrt_routes", "upsert").Add(float64(total))
	metrics.BatchSize.WithLabelValues("mrt_routes").Observe(float64(len(rows)))

	return total, nil
}

// FlushStateBatch writes a batch of BGP FSM state transitions to bgp_state_events.
func (w *Writer) FlushStateBatch(ctx context.Context, states []*mrt.BgpState) (int64, error) {
	if len(states) == 0 {
		return 0, nil
	}

	start := time.Now()

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var total int64
	for _, s := range states {
		tag, err := tx.Exec(ctx, `
			INSERT INTO bgp_state_events (ts, src_as, dst_as, src_ip, dst_ip, old_state, new_state)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			s.Timestamp, s.SrcAS, s.DstAS, nullableIP(s.Src.IP), nullableIP(s.Dst.IP), s.OldState, s.NewState,
		)
		if err != nil {
			return 0, fmt.Errorf("insert bgp_state_event: %w", err)
		}
		total += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	dur := time.Since(start).Seconds()
	metrics.DBWriteDuration.WithLabelValues("bgp_state_events", "insert").Observe(dur)
	metrics.DBRowsAffectedTotal.WithLabelValues("bgp_state_events", "insert").Add(float64(total))
	metrics.BatchSize.WithLabelValues("bgp_state_events").Observe(float64(len(states)))

	return total, nil
}

// FlushMessageBatch writes a batch of raw BGP UPDATE/etc. messages to bgp_messages.
func (w *Writer) FlushMessageBatch(ctx context.Context, msgs []*mrt.BgpMsg) (int64, error) {
	if len(msgs) == 0 {
		return 0, nil
	}

	start := time.Now()

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var total int64
	for _, m := range msgs {
		var raw []byte
		if w.storeRawBytes {
			if w.compressRaw {
				raw = zstdEncoder.EncodeAll(m.RawMessage, nil)
			} else {
				raw = m.RawMessage
			}
		}

		tag, err := tx.Exec(ctx, `
			INSERT INTO bgp_messages (ts, src_as, dst_as, src_ip, dst_ip, add_path, raw_message)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			m.Timestamp, m.SrcAS, m.DstAS, nullableIP(m.Src.IP), nullableIP(m.Dst.IP), m.AddPath, raw,
		)
		if err != nil {
			return 0, fmt.Errorf("insert bgp_message: %w", err)
		}
		total += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	dur := time.Since(start).Seconds()
	metrics.DBWriteDuration.WithLabelValues("bgp_messages", "insert").Observe(dur)
	metrics.DBRowsAffectedTotal.WithLabelValues("bgp_messages", "insert").Add(float64(total))
	metrics.BatchSize.WithLabelValues("bgp_messages").Observe(float64(len(msgs)))

	return total, nil
}

func peerMetadata(peers *mrt.PeerContext, idx uint16) (bgpID, asn uint32, ip net.IP) {
	if peers == nil || int(idx) >= len(peers.Peers) {
		return 0, 0, nil
	}
	p := peers.Peers[idx]
	return p.BGPID, p.ASNum, p.IP
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableIP(ip net.IP) any {
	if ip == nil {
		return nil
	}
	return ip.String()
}

func nullableOrigin(v uint8, present bool) any {
	if !present {
		return nil
	}
	return v
}

func nullableUint32(v uint32, present bool) any {
	if !present {
		return nil
	}
	return v
}
