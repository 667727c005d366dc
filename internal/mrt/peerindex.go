package mrt

import "net"

// decodePeerIndexTable decodes a TABLE_DUMP_V2 PEER_INDEX_TABLE record:
// {collector_bgp_id:u32, view_name_len:u16, view_name:bytes,
// peer_count:u16, peer_entry...}. Each peer_entry is
// {peer_type:u8, peer_bgp_id:u32, peer_ip (4 or 16 bytes per bit 0 of
// peer_type), peer_as (2 or 4 bytes per bit 1 of peer_type)}.
// Grounded on mrtparser.c's mrt_parse_v2_peer.
func decodePeerIndexTable(payload []byte) (*PeerContext, error) {
	c := NewCursor(payload)

	bgpID, err := c.ReadU32()
	if err != nil {
		return nil, err
	}
	viewLen, err := c.ReadU16()
	if err != nil {
		return nil, err
	}
	viewName, err := c.ReadExact(int(viewLen))
	if err != nil {
		return nil, err
	}
	count, err := c.ReadU16()
	if err != nil {
		return nil, err
	}

	pctx := &PeerContext{
		CollectorBGPID: bgpID,
		ViewName:       string(viewName),
		Peers:          make([]PeerEntry, 0, count),
	}

	for i := 0; i < int(count); i++ {
		peerType, err := c.ReadU8()
		if err != nil {
			return nil, err
		}
		peerBGPID, err := c.ReadU32()
		if err != nil {
			return nil, err
		}

		var ip net.IP
		if peerType&0x1 != 0 {
			b, err := c.ReadExact(16)
			if err != nil {
				return nil, err
			}
			ip = net.IP(b)
		} else {
			b, err := c.ReadExact(4)
			if err != nil {
				return nil, err
			}
			ip = net.IP(b)
		}

		var asNum uint32
		if peerType&0x2 != 0 {
			asNum, err = c.ReadU32()
		} else {
			var as16 uint16
			as16, err = c.ReadU16()
			asNum = uint32(as16)
		}
		if err != nil {
			return nil, err
		}

		pctx.Peers = append(pctx.Peers, PeerEntry{
			BGPID: peerBGPID,
			IP:    ip,
			ASNum: asNum,
		})
	}

	return pctx, nil
}

// synthesizeLegacyPeerContext builds the singleton PeerContext used for
// TABLE_DUMP and BGP4MP_ENTRY records, which carry one peer address/ASN
// inline rather than referencing a PEER_INDEX_TABLE.
func synthesizeLegacyPeerContext() *PeerContext {
	return &PeerContext{Peers: make([]PeerEntry, 1)}
}
