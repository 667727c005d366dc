package mrt

import (
	"encoding/binary"
	"net"
)

const maxExtraAttrs = 254

// decodedAttrs accumulates everything AttributeDecoder can extract from
// a path attribute TLV stream.
type decodedAttrs struct {
	Origin    uint8
	OriginSet bool
	ASPath    []byte
	NextHop   Address
	MED       uint32
	MEDPresent bool
	LocalPref        uint32
	LocalPrefPresent bool
	ExtraAttrs [][]byte
}

// decodeAttributes walks a BGP path attribute TLV stream (RFC 4271
// §4.3). family is the owning Rib/BgpState's address family: it decides
// whether NEXT_HOP (IPv4-only) or MP_REACH_NLRI's embedded next hop
// applies. as4ASPath selects whether AS_PATH is already 4-byte-ASN
// encoded (TABLE_DUMP_V2) or needs aspathInflate (legacy TABLE_DUMP /
// BGP4MP_ENTRY), mirroring mrtparser.c's mrt_extract_attr.
func decodeAttributes(data []byte, family Family, as4ASPath bool) (*decodedAttrs, error) {
	attrs := &decodedAttrs{}
	off := 0
	for off < len(data) {
		tlvStart := off
		if off+2 > len(data) {
			return nil, ErrTruncated
		}
		flags := data[off]
		typ := data[off+1]
		off += 2

		var length int
		if flags&attrExtendedLengthFlag != 0 {
			if off+2 > len(data) {
				return nil, ErrTruncated
			}
			length = int(binary.BigEndian.Uint16(data[off : off+2]))
			off += 2
		} else {
			if off+1 > len(data) {
				return nil, ErrTruncated
			}
			length = int(data[off])
			off++
		}
		if off+length > len(data) {
			return nil, ErrTruncated
		}
		payload := data[off : off+length]
		off += length

		switch typ {
		case AttrOrigin:
			if length != 1 {
				return nil, ErrTruncated
			}
			attrs.Origin = payload[0]
			attrs.OriginSet = true

		case AttrASPath:
			if as4ASPath {
				attrs.ASPath = append([]byte{}, payload...)
			} else {
				inflated, err := aspathInflate(payload)
				if err != nil {
					return nil, err
				}
				attrs.ASPath = inflated
			}

		case AttrNextHop:
			if length != 4 {
				return nil, ErrTruncated
			}
			if family == FamilyIPv4 {
				ip := make(net.IP, 4)
				copy(ip, payload)
				attrs.NextHop = Address{Family: FamilyIPv4, IP: ip}
			}

		case AttrMultiExitDisc:
			if length != 4 {
				return nil, ErrTruncated
			}
			attrs.MED = binary.BigEndian.Uint32(payload)
			attrs.MEDPresent = true

		case AttrLocalPref:
			if length != 4 {
				return nil, ErrTruncated
			}
			attrs.LocalPref = binary.BigEndian.Uint32(payload)
			attrs.LocalPrefPresent = true

		case AttrMPReachNLRI:
			nh, err := extractMPReachNextHop(payload, family)
			if err != nil {
				return nil, err
			}
			if nh.Family != FamilyUnspecified {
				attrs.NextHop = nh
			}

		case AttrAS4Path:
			// When the record already carries 4-byte ASNs, a separate
			// AS4_PATH attribute is meaningless transition scaffolding
			// and mrtparser.c deliberately falls through to the default
			// (unknown-attribute) case instead of acting on it.
			if as4ASPath {
				if err := appendExtra(attrs, data[tlvStart:off]); err != nil {
					return nil, err
				}
			} else {
				attrs.ASPath = append([]byte{}, payload...)
			}

		default:
			if err := appendExtra(attrs, data[tlvStart:off]); err != nil {
				return nil, err
			}
		}
	}
	return attrs, nil
}

func appendExtra(attrs *decodedAttrs, tlv []byte) error {
	if len(attrs.ExtraAttrs) >= maxExtraAttrs {
		return ErrTooManyAttrs
	}
	attrs.ExtraAttrs = append(attrs.ExtraAttrs, append([]byte{}, tlv...))
	return nil
}

// aspathInflate expands an AS_PATH attribute encoded with 2-byte ASNs
// into the 4-byte-ASN wire shape TABLE_DUMP_V2/RibEntry.ASPath uses
// uniformly, via the same two-pass size-then-copy algorithm as
// mrtparser.c's mrt_aspath_inflate: each segment is {type:u8, len:u8,
// asn...}; the inflated form keeps type/len and widens every asn from 2
// to 4 bytes, zero-extended.
func aspathInflate(data []byte) ([]byte, error) {
	outLen := 0
	off := 0
	for off < len(data) {
		if off+2 > len(data) {
			return nil, ErrTruncated
		}
		segLen := int(data[off+1])
		segSize := 2 + 2*segLen
		if off+segSize > len(data) {
			return nil, ErrTruncated
		}
		outLen += 2 + 4*segLen
		off += segSize
	}

	out := make([]byte, outLen)
	off, oo := 0, 0
	for off < len(data) {
		segType, segLen := data[off], data[off+1]
		out[oo], out[oo+1] = segType, segLen
		oo += 2
		off += 2
		for i := 0; i < int(segLen); i++ {
			out[oo], out[oo+1] = 0, 0
			out[oo+2], out[oo+3] = data[off], data[off+1]
			oo += 4
			off += 2
		}
	}
	return out, nil
}

// extractMPReachNextHop pulls the embedded next hop out of an
// MP_REACH_NLRI attribute payload, per family. It replicates
// mrtparser.c's "horrible hack" disambiguation between the RFC 6396
// encoding, which omits the afi/safi prefix ({nh_len:u8, nh...}), and a
// legacy encoding many MRT producers still emit that keeps the full
// RFC 4760 prefix ({afi:u16, safi:u8, nh_len:u8, nh...}): if the byte at
// offset 0 equals len(data)-1, the payload is already in the RFC 6396
// shape; otherwise the leading 3 bytes (afi+safi) are stripped first.
func extractMPReachNextHop(data []byte, family Family) (Address, error) {
	if len(data) < 1 {
		return Address{}, ErrTruncated
	}
	if int(data[0]) != len(data)-1 {
		if len(data) < 3 {
			return Address{}, ErrTruncated
		}
		data = data[3:]
	}
	if len(data) < 1 {
		return Address{}, ErrTruncated
	}
	nhLen := int(data[0])
	if 1+nhLen > len(data) {
		return Address{}, ErrTruncated
	}

	switch family {
	case FamilyIPv6:
		if len(data) < 17 {
			return Address{}, ErrTruncated
		}
		ip := make(net.IP, 16)
		copy(ip, data[1:17])
		return Address{Family: FamilyIPv6, IP: ip}, nil
	case FamilyVPNv4:
		if len(data) < 13 {
			return Address{}, ErrTruncated
		}
		ip := make(net.IP, 4)
		copy(ip, data[9:13])
		return Address{Family: FamilyVPNv4, IP: ip}, nil
	case FamilyVPNv6:
		if len(data) < 25 {
			return Address{}, ErrTruncated
		}
		ip := make(net.IP, 16)
		copy(ip, data[9:25])
		return Address{Family: FamilyVPNv6, IP: ip}, nil
	default:
		// IPv4 records carry their next hop in NEXT_HOP, not
		// MP_REACH_NLRI; nothing to extract.
		return Address{}, nil
	}
}
