package mrt

import (
	"net"
	"time"
)

// Family identifies the address encoding used by a Rib/Address/Prefix
// value. It is derived from MRT subtype and/or AFI/SAFI, never from the
// address bytes themselves.
type Family uint8

const (
	FamilyUnspecified Family = iota
	FamilyIPv4
	FamilyIPv6
	FamilyVPNv4
	FamilyVPNv6
)

func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "ipv4"
	case FamilyIPv6:
		return "ipv6"
	case FamilyVPNv4:
		return "vpnv4"
	case FamilyVPNv6:
		return "vpnv6"
	default:
		return "unspecified"
	}
}

// addressWidth returns the number of wire bytes occupied by the address
// portion of Family f: just the IP for plain families, the IP following
// the 8-byte RD+label-stack prefix for VPN families. The RD and label
// stack themselves are never decoded (see mrtparser.c's "labelstack and
// rd missing" comment) - this implementation carries that same gap
// forward deliberately rather than inventing RD/label semantics the
// corpus doesn't show.
func addressWidth(f Family) int {
	switch f {
	case FamilyIPv4:
		return 4
	case FamilyIPv6:
		return 16
	case FamilyVPNv4:
		return 8 + 4
	case FamilyVPNv6:
		return 8 + 16
	default:
		return 0
	}
}

// prefixBitWidth is the maximum prefix length for Family f's IP portion.
func prefixBitWidth(f Family) int {
	switch f {
	case FamilyIPv4, FamilyVPNv4:
		return 32
	case FamilyIPv6, FamilyVPNv6:
		return 128
	default:
		return 0
	}
}

// Address is a fully decoded, independently owned network address. IP is
// nil when Family is FamilyUnspecified.
type Address struct {
	Family Family
	IP     net.IP
}

// Prefix is a decoded NLRI entry: an address family, an IP (zero-padded
// to the family's width), and a bit length.
type Prefix struct {
	Family Family
	IP     net.IP
	Length uint8
}

// PeerEntry is one row of a PEER_INDEX_TABLE, or the single synthesized
// entry used for legacy TABLE_DUMP/BGP4MP_ENTRY records.
type PeerEntry struct {
	BGPID  uint32
	IP     net.IP
	ASNum  uint32
}

// PeerContext is the ownership unit produced by PeerIndexDecoder: the
// full peer table plus the administrative metadata that travels with it.
// A Rib sink receives both the decoded Rib and the PeerContext active at
// the time the record was parsed, per the framer's dispatch contract.
type PeerContext struct {
	CollectorBGPID uint32
	ViewName       string
	Peers          []PeerEntry
}

// RibEntry is one peer's view of a prefix inside a single Rib record.
type RibEntry struct {
	PeerIndex  uint16 // index into the active PeerContext.Peers; legacy records always use 0
	Originated time.Time

	PathID uint32 // only meaningful when the owning Rib's AddPath is true

	Origin    uint8
	OriginSet bool
	ASPath    []byte // inflated to 4-byte-ASN segments; see AttributeDecoder
	NextHop   Address
	MED       uint32
	MEDPresent bool
	LocalPref        uint32
	LocalPrefPresent bool

	// ExtraAttrs holds the verbatim TLV bytes (flags, type, length,
	// value) of every attribute this decoder does not interpret,
	// including an AS4_PATH TLV seen on a record that already carries
	// 4-byte ASNs (see the as4_aspath fallthrough quirk in
	// attributes.go). Capped at 254 entries; exceeding the cap is
	// ErrTooManyAttrs.
	ExtraAttrs [][]byte
}

// Rib is a fully decoded TABLE_DUMP, TABLE_DUMP_V2 RIB_*, or
// BGP4MP_ENTRY record: one prefix, one or more per-peer entries.
type Rib struct {
	SeqNum  uint32
	Prefix  Prefix
	AddPath bool
	Entries []RibEntry
}

// BgpState is a decoded BGP4MP[_ET] STATE_CHANGE record.
type BgpState struct {
	Timestamp time.Time
	SrcAS     uint32
	DstAS     uint32
	Src       Address
	Dst       Address
	OldState  uint16
	NewState  uint16
}

// BgpMsg is a decoded BGP4MP[_ET] MESSAGE record: the raw BGP message is
// handed back unparsed, since BGP UPDATE/NOTIFICATION/KEEPALIVE
// semantics belong to a downstream collaborator, not to this decoder.
type BgpMsg struct {
	Timestamp time.Time
	SrcAS     uint32
	DstAS     uint32
	Src       Address
	Dst       Address
	AddPath   bool
	RawMessage []byte
}
