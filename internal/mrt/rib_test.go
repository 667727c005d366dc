package mrt

import (
	"encoding/binary"
	"net"
	"testing"
)

// testPrefixDecoder is a minimal PrefixDecoder used only by this
// package's own tests, so internal/mrt's tests don't have to reach
// across to internal/nlri (which itself imports internal/mrt, and an
// internal test file can't import back into its own package without
// creating an import cycle). It implements the same bit-length encoding
// internal/nlri.Decoder does.
type testPrefixDecoder struct{}

func (testPrefixDecoder) GetPrefix(c *Cursor, family Family, isWithdraw bool) (Prefix, error) {
	bitLen, err := c.ReadU8()
	if err != nil {
		return Prefix{}, err
	}
	maxBits := prefixBitWidth(family)
	if int(bitLen) > maxBits {
		return Prefix{}, ErrBadPrefixLen
	}
	byteLen := (int(bitLen) + 7) / 8
	raw, err := c.ReadExact(byteLen)
	if err != nil {
		return Prefix{}, err
	}
	ip := make(net.IP, maxBits/8)
	copy(ip, raw)
	return Prefix{Family: family, IP: ip, Length: bitLen}, nil
}

func buildLegacyTableDump(prefix net.IP, prefixLen uint8, peer net.IP, peerAS uint16, attrs []byte) []byte {
	var out []byte
	out = binary.BigEndian.AppendUint16(out, 0) // view
	out = binary.BigEndian.AppendUint16(out, 7) // seq
	out = append(out, prefix...)
	out = append(out, prefixLen)
	out = append(out, 1) // status
	out = binary.BigEndian.AppendUint32(out, 1700000000)
	out = append(out, peer...)
	out = binary.BigEndian.AppendUint16(out, peerAS)
	out = binary.BigEndian.AppendUint16(out, uint16(len(attrs)))
	out = append(out, attrs...)
	return out
}

func TestDecodeTableDump_IPv4(t *testing.T) {
	attrs := buildAttr(0, AttrOrigin, []byte{0}, false)
	payload := buildLegacyTableDump(net4(192, 0, 2, 0), 24, net4(192, 0, 2, 254), 65001, attrs)

	legacyCtx := synthesizeLegacyPeerContext()
	rib, err := decodeTableDump(FamilyIPv4, payload, legacyCtx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rib.Prefix.Length != 24 || !rib.Prefix.IP.Equal(net4(192, 0, 2, 0)) {
		t.Fatalf("unexpected prefix: %+v", rib.Prefix)
	}
	if len(rib.Entries) != 1 || !rib.Entries[0].OriginSet {
		t.Fatalf("unexpected entries: %+v", rib.Entries)
	}
	if legacyCtx.Peers[0].ASNum != 65001 {
		t.Fatalf("expected synthesized peer ASN 65001, got %d", legacyCtx.Peers[0].ASNum)
	}
}

func buildTableDumpV2RibEntry(peerIdx uint16, originated uint32, pathID *uint32, attrs []byte) []byte {
	var out []byte
	out = binary.BigEndian.AppendUint16(out, peerIdx)
	out = binary.BigEndian.AppendUint32(out, originated)
	if pathID != nil {
		out = binary.BigEndian.AppendUint32(out, *pathID)
	}
	out = binary.BigEndian.AppendUint16(out, uint16(len(attrs)))
	out = append(out, attrs...)
	return out
}

func TestDecodeTableDumpV2_IPv4Unicast(t *testing.T) {
	attrs := buildAttr(0, AttrOrigin, []byte{0}, false)
	entry := buildTableDumpV2RibEntry(3, 1700000000, nil, attrs)

	var payload []byte
	payload = binary.BigEndian.AppendUint32(payload, 42) // seq
	payload = append(payload, 24)                        // prefix len
	payload = append(payload, net4(203, 0, 113, 0)[:3]...) // 3 bytes for /24
	payload = binary.BigEndian.AppendUint16(payload, 1)    // entry count
	payload = append(payload, entry...)

	rib, err := decodeTableDumpV2(FamilyIPv4, false, payload, testPrefixDecoder{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rib.SeqNum != 42 {
		t.Errorf("expected seq 42, got %d", rib.SeqNum)
	}
	if rib.Prefix.Length != 24 {
		t.Errorf("expected prefix len 24, got %d", rib.Prefix.Length)
	}
	if len(rib.Entries) != 1 || rib.Entries[0].PeerIndex != 3 {
		t.Fatalf("unexpected entries: %+v", rib.Entries)
	}
}

func TestDecodeTableDumpV2_AddPathCarriesPathID(t *testing.T) {
	attrs := buildAttr(0, AttrOrigin, []byte{0}, false)
	pathID := uint32(7)
	entry := buildTableDumpV2RibEntry(0, 1700000000, &pathID, attrs)

	var payload []byte
	payload = binary.BigEndian.AppendUint32(payload, 1)
	payload = append(payload, 32)
	payload = append(payload, net4(198, 51, 100, 1)...)
	payload = binary.BigEndian.AppendUint16(payload, 1)
	payload = append(payload, entry...)

	rib, err := decodeTableDumpV2(FamilyIPv4, true, payload, testPrefixDecoder{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rib.AddPath || rib.Entries[0].PathID != 7 {
		t.Fatalf("expected AddPath path id 7, got %+v", rib.Entries[0])
	}
}

func TestDecodeGenericTableDumpV2_VPNSAFIMapping(t *testing.T) {
	attrs := buildAttr(0, AttrOrigin, []byte{0}, false)
	entry := buildTableDumpV2RibEntry(0, 1700000000, nil, attrs)

	var payload []byte
	payload = binary.BigEndian.AppendUint32(payload, 1) // seq
	payload = binary.BigEndian.AppendUint16(payload, AFIIPv4)
	payload = append(payload, SAFIVPN)
	payload = append(payload, 32) // prefix len (IP portion only)
	payload = append(payload, net4(10, 1, 2, 3)...)
	payload = binary.BigEndian.AppendUint16(payload, 1)
	payload = append(payload, entry...)

	rib, err := decodeGenericTableDumpV2(false, payload, testPrefixDecoder{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rib.Prefix.Family != FamilyVPNv4 {
		t.Fatalf("expected SAFI=128 to resolve to VPNv4, got %v", rib.Prefix.Family)
	}
}

func buildBGP4MPEntry(dstAS uint16, headerAFI uint16, srcAddr, dstAddr net.IP, originated uint32,
	prefixAFI uint16, safi uint8, nhLen uint8, nh net.IP, prefixLen uint8, prefix net.IP, attrs []byte) []byte {
	var out []byte
	out = binary.BigEndian.AppendUint16(out, 65001) // src_as
	out = binary.BigEndian.AppendUint16(out, dstAS)
	out = binary.BigEndian.AppendUint16(out, 1) // if_index
	out = binary.BigEndian.AppendUint16(out, headerAFI)
	out = append(out, srcAddr...)
	out = append(out, dstAddr...)
	out = binary.BigEndian.AppendUint16(out, 0) // view
	out = binary.BigEndian.AppendUint16(out, 1) // status
	out = binary.BigEndian.AppendUint32(out, originated)
	out = binary.BigEndian.AppendUint16(out, prefixAFI)
	out = append(out, safi)
	out = append(out, nhLen)
	out = append(out, nh...)
	out = append(out, prefixLen)
	byteLen := (int(prefixLen) + 7) / 8
	out = append(out, prefix[:byteLen]...)
	out = binary.BigEndian.AppendUint16(out, uint16(len(attrs)))
	out = append(out, attrs...)
	return out
}

func TestDecodeBGP4MPEntry_NhLenWiderThanFixedWidth(t *testing.T) {
	attrs := []byte{} // no NEXT_HOP attribute; falls back to the nh field
	nh := append(net4(192, 0, 2, 9), 0, 0) // 6 bytes declared as nh_len, only 4 are the real address
	payload := buildBGP4MPEntry(65002, AFIIPv4, net4(192, 0, 2, 1), net4(192, 0, 2, 2), 1700000000,
		AFIIPv4, SAFIUnicast, uint8(len(nh)), nh, 24, net4(192, 0, 2, 0), attrs)

	legacyCtx := synthesizeLegacyPeerContext()
	rib, err := decodeBGP4MPEntry(payload, legacyCtx, testPrefixDecoder{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rib.Entries[0].NextHop.IP.Equal(net4(192, 0, 2, 9)) {
		t.Fatalf("expected next hop decoded from the fixed-width prefix of the nh field, got %v", rib.Entries[0].NextHop)
	}
	if legacyCtx.Peers[0].ASNum != 65002 {
		t.Fatalf("expected synthesized peer ASN from dst_as, got %d", legacyCtx.Peers[0].ASNum)
	}
}
