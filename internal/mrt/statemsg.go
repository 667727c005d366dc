package mrt

import "time"

// stateMsgHeader is the fixed prefix shared by every BGP4MP[_ET]
// STATE_CHANGE and MESSAGE variant: {src_as, dst_as} (2 or 4 bytes each
// depending on subtype), if_index:u16, afi:u16. isET records additionally
// carry a 4-byte microsecond field immediately after the common MRT
// header, before this prefix - that's consumed by the framer, not here.
type stateMsgHeader struct {
	srcAS, dstAS uint32
	family       Family
}

func decodeStateMsgHeader(c *Cursor, as4 bool) (stateMsgHeader, error) {
	var h stateMsgHeader
	if as4 {
		src, err := c.ReadU32()
		if err != nil {
			return h, err
		}
		dst, err := c.ReadU32()
		if err != nil {
			return h, err
		}
		h.srcAS, h.dstAS = src, dst
	} else {
		src, err := c.ReadU16()
		if err != nil {
			return h, err
		}
		dst, err := c.ReadU16()
		if err != nil {
			return h, err
		}
		h.srcAS, h.dstAS = uint32(src), uint32(dst)
	}
	if err := c.Skip(2); err != nil { // if_index, ignored
		return h, err
	}
	afi, err := c.ReadU16()
	if err != nil {
		return h, err
	}
	family, ok := afiSafiToFamily(afi, -1)
	if !ok {
		return h, ErrUnknownFamily
	}
	h.family = family
	return h, nil
}

// decodeState decodes a BGP4MP[_ET] STATE_CHANGE record body:
// {header, src_addr, dst_addr, old_state:u16, new_state:u16}. as4
// selects the width of the ASN fields in the shared header; usec (0 for
// plain BGP4MP) is folded into the timestamp's sub-second precision.
// Grounded on mrtparser.c's mrt_parse_state.
func decodeState(tsSec uint32, usec uint32, as4 bool, payload []byte) (*BgpState, error) {
	c := NewCursor(payload)
	h, err := decodeStateMsgHeader(c, as4)
	if err != nil {
		return nil, err
	}
	src, err := decodeAddress(c, h.family)
	if err != nil {
		return nil, err
	}
	dst, err := decodeAddress(c, h.family)
	if err != nil {
		return nil, err
	}
	oldState, err := c.ReadU16()
	if err != nil {
		return nil, err
	}
	newState, err := c.ReadU16()
	if err != nil {
		return nil, err
	}
	return &BgpState{
		Timestamp: mrtTimestamp(tsSec, usec),
		SrcAS:     h.srcAS,
		DstAS:     h.dstAS,
		Src:       src,
		Dst:       dst,
		OldState:  oldState,
		NewState:  newState,
	}, nil
}

// decodeMsg decodes a BGP4MP[_ET] MESSAGE record body:
// {header, src_addr, dst_addr, raw_bgp_message: rest}. addPath is a
// property of the record's subtype, not something decoded from the
// payload; it's threaded through so a downstream BGP UPDATE parser
// knows whether NLRI in RawMessage carry a leading path identifier.
// Grounded on mrtparser.c's mrt_parse_msg.
func decodeMsg(tsSec uint32, usec uint32, as4, addPath bool, payload []byte) (*BgpMsg, error) {
	c := NewCursor(payload)
	h, err := decodeStateMsgHeader(c, as4)
	if err != nil {
		return nil, err
	}
	src, err := decodeAddress(c, h.family)
	if err != nil {
		return nil, err
	}
	dst, err := decodeAddress(c, h.family)
	if err != nil {
		return nil, err
	}
	raw := c.ReadRest()
	return &BgpMsg{
		Timestamp:  mrtTimestamp(tsSec, usec),
		SrcAS:      h.srcAS,
		DstAS:      h.dstAS,
		Src:        src,
		Dst:        dst,
		AddPath:    addPath,
		RawMessage: raw,
	}, nil
}

func mrtTimestamp(sec, usec uint32) time.Time {
	return time.Unix(int64(sec), int64(usec)*1000).UTC()
}
