// mrtdump reads MRT-framed records from a file (or stdin) and prints a
// human-readable summary of each one, the way debug-raw printed decoded
// BMP/BGP fields from a Kafka topic. It exercises internal/mrt and
// internal/nlri directly, with no store or HTTP surface attached.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/route-beacon/mrtparse/internal/mrt"
	"github.com/route-beacon/mrtparse/internal/mrtsource"
	"github.com/route-beacon/mrtparse/internal/nlri"
)

func main() {
	path := ""
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	var source interface {
		Read(p []byte) (int, error)
	}
	var closer func() error

	if path == "" || path == "-" {
		source = os.Stdin
	} else {
		src, err := mrtsource.NewFileSource(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "mrtdump: %v\n", err)
			os.Exit(1)
		}
		source = src
		closer = src.Close
	}
	if closer != nil {
		defer closer()
	}

	parser := mrt.NewParser(source, nlri.New())

	ribCount, stateCount, msgCount := 0, 0, 0

	parser.Sinks.Dump = func(rib *mrt.Rib, peers *mrt.PeerContext) {
		ribCount++
		viewName := ""
		if peers != nil {
			viewName = peers.ViewName
		}
		fmt.Printf("RIB seq=%d family=%s prefix=%s/%d entries=%d view=%q\n",
			rib.SeqNum, rib.Prefix.Family, rib.Prefix.IP, rib.Prefix.Length, len(rib.Entries), viewName)
		for i, e := range rib.Entries {
			peerDesc := "?"
			if peers != nil && int(e.PeerIndex) < len(peers.Peers) {
				p := peers.Peers[e.PeerIndex]
				peerDesc = fmt.Sprintf("%s (AS%d)", p.IP, p.ASNum)
			}
			fmt.Printf("  [%d] peer=%s originated=%s nexthop=%s med=%v localpref=%v\n",
				i, peerDesc, e.Originated.Format(time.RFC3339), e.NextHop.IP, e.MED, e.LocalPref)
		}
	}

	parser.Sinks.State = func(s *mrt.BgpState) {
		stateCount++
		fmt.Printf("STATE ts=%s src_as=%d dst_as=%d %d -> %d\n",
			s.Timestamp.Format(time.RFC3339), s.SrcAS, s.DstAS, s.OldState, s.NewState)
	}

	parser.Sinks.Message = func(m *mrt.BgpMsg) {
		msgCount++
		fmt.Printf("MESSAGE ts=%s src_as=%d dst_as=%d addpath=%v bytes=%d\n",
			m.Timestamp.Format(time.RFC3339), m.SrcAS, m.DstAS, m.AddPath, len(m.RawMessage))
	}

	if err := parser.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "mrtdump: parse error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\ndone: %d rib records, %d state records, %d message records\n", ribCount, stateCount, msgCount)
}
