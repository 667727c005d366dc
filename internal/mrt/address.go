package mrt

import "net"

// decodeAddress reads exactly addressWidth(family) bytes and returns the
// IP portion as an Address. For VPN families the leading 8-byte
// RD+label-stack prefix is skipped, never decoded (see addressWidth's
// doc comment). Returns ErrUnknownFamily for FamilyUnspecified.
func decodeAddress(c *Cursor, family Family) (Address, error) {
	switch family {
	case FamilyIPv4:
		b, err := c.ReadExact(4)
		if err != nil {
			return Address{}, err
		}
		return Address{Family: family, IP: net.IP(b)}, nil
	case FamilyIPv6:
		b, err := c.ReadExact(16)
		if err != nil {
			return Address{}, err
		}
		return Address{Family: family, IP: net.IP(b)}, nil
	case FamilyVPNv4:
		if err := c.Skip(8); err != nil {
			return Address{}, err
		}
		b, err := c.ReadExact(4)
		if err != nil {
			return Address{}, err
		}
		return Address{Family: family, IP: net.IP(b)}, nil
	case FamilyVPNv6:
		if err := c.Skip(8); err != nil {
			return Address{}, err
		}
		b, err := c.ReadExact(16)
		if err != nil {
			return Address{}, err
		}
		return Address{Family: family, IP: net.IP(b)}, nil
	default:
		return Address{}, ErrUnknownFamily
	}
}

// decodeAddressFixedWidth behaves like decodeAddress but reads from a
// byte slice that has already been sliced off the wire (used by the
// BGP4MP_ENTRY next-hop quirk in rib.go, where the declared field length
// and the family's fixed width can disagree).
func decodeAddressFixedWidth(data []byte, family Family) (Address, error) {
	w := addressWidth(family)
	if w == 0 {
		return Address{}, ErrUnknownFamily
	}
	if len(data) < w {
		return Address{}, ErrTruncated
	}
	switch family {
	case FamilyIPv4, FamilyIPv6:
		ip := make(net.IP, w)
		copy(ip, data[:w])
		return Address{Family: family, IP: ip}, nil
	case FamilyVPNv4, FamilyVPNv6:
		ipLen := w - 8
		ip := make(net.IP, ipLen)
		copy(ip, data[8:w])
		return Address{Family: family, IP: ip}, nil
	default:
		return Address{}, ErrUnknownFamily
	}
}
