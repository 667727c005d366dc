package mrt

import "time"

// PrefixDecoder is the abstract NLRI sub-decoder: the one extension
// point this package depends on through an interface rather than a
// concrete package, so a caller can swap in a richer prefix decoder
// (e.g. one that understands RD/label stacks) without touching
// internal/mrt. isWithdraw is always false for RIB records; it exists
// so the same interface could later serve a BGP UPDATE NLRI walker,
// which does distinguish announced from withdrawn NLRI.
type PrefixDecoder interface {
	GetPrefix(c *Cursor, family Family, isWithdraw bool) (Prefix, error)
}

// afiSafiToFamily maps an AFI/SAFI pair to a Family, including the
// SAFI=128 MPLS-labeled-VPN disambiguation mrtparser.c's mrt_afi2aid
// applies. safi of -1 means "no SAFI byte was present on the wire"
// (used by StateMsgDecoder, which only ever carries an AFI).
func afiSafiToFamily(afi uint16, safi int) (Family, bool) {
	switch afi {
	case AFIIPv4:
		switch safi {
		case -1, int(SAFIUnicast), int(SAFIMulticast):
			return FamilyIPv4, true
		case int(SAFIVPN):
			return FamilyVPNv4, true
		}
	case AFIIPv6:
		switch safi {
		case -1, int(SAFIUnicast), int(SAFIMulticast):
			return FamilyIPv6, true
		case int(SAFIVPN):
			return FamilyVPNv6, true
		}
	}
	return FamilyUnspecified, false
}

// decodeTableDump decodes a legacy TABLE_DUMP record. Layout:
// {view:u16 (ignored), seq:u16, prefix_addr (fixed family width),
// prefix_len:u8, status:u8 (ignored), originated:u32,
// peer_addr (fixed family width), peer_as:u16, attr_len:u16, attr...}.
// Legacy records predate 4-byte ASNs entirely, so attributes are always
// decoded with as4ASPath=false. Grounded on mrtparser.c's
// mrt_parse_dump.
func decodeTableDump(family Family, payload []byte, legacyPeerCtx *PeerContext) (*Rib, error) {
	c := NewCursor(payload)

	if err := c.Skip(2); err != nil { // view, ignored
		return nil, err
	}
	seq, err := c.ReadU16()
	if err != nil {
		return nil, err
	}
	prefixAddr, err := decodeAddress(c, family)
	if err != nil {
		return nil, err
	}
	prefixLen, err := c.ReadU8()
	if err != nil {
		return nil, err
	}
	if int(prefixLen) > prefixBitWidth(family) {
		return nil, ErrBadPrefixLen
	}
	if err := c.Skip(1); err != nil { // status, ignored
		return nil, err
	}
	originatedSec, err := c.ReadU32()
	if err != nil {
		return nil, err
	}
	peerAddr, err := decodeAddress(c, family)
	if err != nil {
		return nil, err
	}
	peerAS, err := c.ReadU16()
	if err != nil {
		return nil, err
	}
	attrLen, err := c.ReadU16()
	if err != nil {
		return nil, err
	}
	attrBytes, err := c.ReadExact(int(attrLen))
	if err != nil {
		return nil, err
	}

	attrs, err := decodeAttributes(attrBytes, family, false)
	if err != nil {
		return nil, err
	}

	legacyPeerCtx.Peers[0] = PeerEntry{IP: peerAddr.IP, ASNum: uint32(peerAS)}

	entry := ribEntryFromAttrs(attrs, 0, time.Unix(int64(originatedSec), 0).UTC())

	return &Rib{
		SeqNum: uint32(seq),
		Prefix: Prefix{Family: family, IP: prefixAddr.IP, Length: prefixLen},
		Entries: []RibEntry{entry},
	}, nil
}

// decodeTableDumpV2 decodes a TABLE_DUMP_V2 RIB_* record. Layout:
// {seq:u32, prefix_len:u8, prefix_bytes (via PrefixDecoder),
// entry_count:u16, rib_entry...}. Each rib_entry is
// {peer_index:u16, originated:u32, [path_id:u32 if AddPath],
// attr_len:u16, attr...}, with attributes always as4ASPath=true.
// family is the one the caller derived from the MRT subtype;
// RIB_GENERIC/RIB_GENERIC_ADDPATH, which carry their own afi/safi
// immediately after seq, go through decodeGenericTableDumpV2 instead.
// Grounded on mrtparser.c's mrt_parse_v2_rib.
func decodeTableDumpV2(family Family, addPath bool, payload []byte, prefixDecoder PrefixDecoder) (*Rib, error) {
	c := NewCursor(payload)
	seq, err := c.ReadU32()
	if err != nil {
		return nil, err
	}
	return decodeRibBody(c, seq, family, addPath, prefixDecoder)
}

// decodeGenericTableDumpV2 decodes RIB_GENERIC/RIB_GENERIC_ADDPATH,
// which insert {afi:u16, safi:u8} between seq and the common
// prefix/entries body found in every other RIB_* subtype.
func decodeGenericTableDumpV2(addPath bool, payload []byte, prefixDecoder PrefixDecoder) (*Rib, error) {
	c := NewCursor(payload)
	seq, err := c.ReadU32()
	if err != nil {
		return nil, err
	}
	family, err := decodeRibGenericFamily(c)
	if err != nil {
		return nil, err
	}
	return decodeRibBody(c, seq, family, addPath, prefixDecoder)
}

// decodeRibBody decodes {prefix_len+prefix_bytes, entry_count,
// rib_entry...} - the part of a TABLE_DUMP_V2 RIB_* record common to
// every subtype once seq (and, for RIB_GENERIC, afi/safi) has already
// been consumed.
func decodeRibBody(c *Cursor, seq uint32, family Family, addPath bool, prefixDecoder PrefixDecoder) (*Rib, error) {
	prefix, err := prefixDecoder.GetPrefix(c, family, false)
	if err != nil {
		return nil, err
	}

	count, err := c.ReadU16()
	if err != nil {
		return nil, err
	}

	entries := make([]RibEntry, 0, count)
	for i := 0; i < int(count); i++ {
		peerIdx, err := c.ReadU16()
		if err != nil {
			return nil, err
		}
		originated, err := c.ReadU32()
		if err != nil {
			return nil, err
		}
		var pathID uint32
		if addPath {
			pathID, err = c.ReadU32()
			if err != nil {
				return nil, err
			}
		}
		attrLen, err := c.ReadU16()
		if err != nil {
			return nil, err
		}
		attrBytes, err := c.ReadExact(int(attrLen))
		if err != nil {
			return nil, err
		}

		attrs, err := decodeAttributes(attrBytes, family, true)
		if err != nil {
			return nil, err
		}

		entry := ribEntryFromAttrs(attrs, peerIdx, time.Unix(int64(originated), 0).UTC())
		entry.PathID = pathID
		entries = append(entries, entry)
	}

	return &Rib{
		SeqNum:  seq,
		Prefix:  prefix,
		AddPath: addPath,
		Entries: entries,
	}, nil
}

// decodeRibGenericFamily reads the afi:u16,safi:u8 pair that precedes
// the common RIB_* body in RIB_GENERIC/RIB_GENERIC_ADDPATH records, and
// resolves it to a Family.
func decodeRibGenericFamily(c *Cursor) (Family, error) {
	afi, err := c.ReadU16()
	if err != nil {
		return FamilyUnspecified, err
	}
	safi, err := c.ReadU8()
	if err != nil {
		return FamilyUnspecified, err
	}
	family, ok := afiSafiToFamily(afi, int(safi))
	if !ok {
		return FamilyUnspecified, ErrUnknownFamily
	}
	return family, nil
}

// decodeBGP4MPEntry decodes a deprecated BGP4MP_ENTRY record (BGP4MP
// subtype 2). Layout: {src_as:u16, dst_as:u16, if_index:u16, afi:u16,
// src_addr (family width), dst_addr (family width), view:u16 (ignored),
// status:u16 (ignored), originated:u32, afi:u16, safi:u8, nh_len:u8,
// next_hop (family width, but the cursor advances by nh_len bytes
// regardless - see SPEC_FULL.md §5), prefix (via PrefixDecoder),
// attr_len:u16, attr...}. Legacy format, so attributes are always
// as4ASPath=false. Grounded on mrtparser.c's mrt_parse_dump_mp.
func decodeBGP4MPEntry(payload []byte, legacyPeerCtx *PeerContext, prefixDecoder PrefixDecoder) (*Rib, error) {
	c := NewCursor(payload)

	if err := c.Skip(2); err != nil { // src_as, ignored
		return nil, err
	}
	dstAS, err := c.ReadU16()
	if err != nil {
		return nil, err
	}
	if err := c.Skip(2); err != nil { // if_index, ignored
		return nil, err
	}
	headerAFI, err := c.ReadU16()
	if err != nil {
		return nil, err
	}
	addrFamily, ok := afiSafiToFamily(headerAFI, -1)
	if !ok {
		return nil, ErrUnknownFamily
	}

	if err := c.Skip(addressWidth(addrFamily)); err != nil { // src_addr, ignored
		return nil, err
	}
	dstAddr, err := decodeAddress(c, addrFamily)
	if err != nil {
		return nil, err
	}
	if err := c.Skip(4); err != nil { // view:u16 + status:u16, ignored
		return nil, err
	}
	originated, err := c.ReadU32()
	if err != nil {
		return nil, err
	}

	prefixFamily, err := decodeRibGenericFamily(c)
	if err != nil {
		return nil, err
	}

	nhLen, err := c.ReadU8()
	if err != nil {
		return nil, err
	}
	nhField, err := c.PeekExact(int(nhLen))
	if err != nil {
		return nil, err
	}
	nextHop, err := decodeAddressFixedWidth(nhField, prefixFamily)
	if err != nil {
		return nil, err
	}
	if err := c.Skip(int(nhLen)); err != nil {
		return nil, err
	}

	prefix, err := prefixDecoder.GetPrefix(c, prefixFamily, false)
	if err != nil {
		return nil, err
	}

	attrLen, err := c.ReadU16()
	if err != nil {
		return nil, err
	}
	attrBytes, err := c.ReadExact(int(attrLen))
	if err != nil {
		return nil, err
	}
	attrs, err := decodeAttributes(attrBytes, prefixFamily, false)
	if err != nil {
		return nil, err
	}
	if attrs.NextHop.Family == FamilyUnspecified {
		attrs.NextHop = nextHop
	}

	legacyPeerCtx.Peers[0] = PeerEntry{IP: dstAddr.IP, ASNum: uint32(dstAS)}

	entry := ribEntryFromAttrs(attrs, 0, time.Unix(int64(originated), 0).UTC())

	return &Rib{
		Prefix:  prefix,
		Entries: []RibEntry{entry},
	}, nil
}

func ribEntryFromAttrs(attrs *decodedAttrs, peerIdx uint16, originated time.Time) RibEntry {
	return RibEntry{
		PeerIndex:        peerIdx,
		Originated:       originated,
		Origin:           attrs.Origin,
		OriginSet:        attrs.OriginSet,
		ASPath:           attrs.ASPath,
		NextHop:          attrs.NextHop,
		MED:              attrs.MED,
		MEDPresent:       attrs.MEDPresent,
		LocalPref:        attrs.LocalPref,
		LocalPrefPresent: attrs.LocalPrefPresent,
		ExtraAttrs:       attrs.ExtraAttrs,
	}
}
