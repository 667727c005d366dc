// Package nlri provides the default NLRI prefix sub-decoder internal/mrt
// depends on through the mrt.PrefixDecoder interface. It decodes the
// {prefix_len:u8, prefix_bytes: ceil(prefix_len/8)} encoding RFC 6396 §4.3
// uses for TABLE_DUMP_V2 RIB entries, for each of the four address
// families this repository supports.
//
// The bit-length-to-byte-length arithmetic follows the same approach as
// BGP NLRI prefix parsing generally, and mrtparser.c's
// mrt_extract_prefix/nlri_get_prefix/nlri_get_vpn4/nlri_get_vpn6
// delegates prefix decoding to exactly this kind of narrow, swappable
// collaborator.
package nlri

import (
	"net"

	"github.com/route-beacon/mrtparse/internal/mrt"
)

// Decoder is the default mrt.PrefixDecoder implementation. It carries no
// state and is safe to share across Parsers.
type Decoder struct{}

// New returns a Decoder ready to use.
func New() *Decoder {
	return &Decoder{}
}

// GetPrefix reads one {prefix_len, prefix_bytes} pair for family from c.
// Bits of the last prefix byte beyond prefix_len are cleared, so the
// returned IP is the network address. isWithdraw is accepted for interface symmetry with a future BGP
// UPDATE NLRI walker but has no effect here: RIB records never carry a
// withdraw/announce distinction.
func (d *Decoder) GetPrefix(c *mrt.Cursor, family mrt.Family, isWithdraw bool) (mrt.Prefix, error) {
	bitLen, err := c.ReadU8()
	if err != nil {
		return mrt.Prefix{}, err
	}

	maxBits := prefixBitWidth(family)
	if maxBits == 0 {
		return mrt.Prefix{}, mrt.ErrUnknownFamily
	}
	if int(bitLen) > maxBits {
		return mrt.Prefix{}, mrt.ErrBadPrefixLen
	}

	byteLen := (int(bitLen) + 7) / 8
	raw, err := c.ReadExact(byteLen)
	if err != nil {
		return mrt.Prefix{}, err
	}

	ip := make(net.IP, maxBits/8)
	copy(ip, raw)
	if rem := int(bitLen) % 8; rem != 0 {
		ip[byteLen-1] &= byte(0xFF) << (8 - rem)
	}

	return mrt.Prefix{Family: family, IP: ip, Length: bitLen}, nil
}

// prefixBitWidth mirrors the IP-portion width internal/mrt uses for its
// own bounds checking: 32 for the v4-based families, 128 for v6-based,
// since the VPN RD/label-stack prefix bits this implementation doesn't
// decode (see internal/mrt's addressWidth doc comment) are never part of
// prefix_len on the wire either - prefix_len here always describes the
// IP portion only, consistent with the documented RD/label gap.
func prefixBitWidth(family mrt.Family) int {
	switch family {
	case mrt.FamilyIPv4, mrt.FamilyVPNv4:
		return 32
	case mrt.FamilyIPv6, mrt.FamilyVPNv6:
		return 128
	default:
		return 0
	}
}
