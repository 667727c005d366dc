package mrt

import (
	"encoding/binary"
	"testing"
)

func buildStateChangeBody(as4 bool, srcAS, dstAS uint32, family Family, old, new_ uint16) []byte {
	var out []byte
	if as4 {
		out = binary.BigEndian.AppendUint32(out, srcAS)
		out = binary.BigEndian.AppendUint32(out, dstAS)
	} else {
		out = binary.BigEndian.AppendUint16(out, uint16(srcAS))
		out = binary.BigEndian.AppendUint16(out, uint16(dstAS))
	}
	out = binary.BigEndian.AppendUint16(out, 1) // if_index
	afi := AFIIPv4
	if family == FamilyIPv6 {
		afi = AFIIPv6
	}
	out = binary.BigEndian.AppendUint16(out, afi)
	width := addressWidth(family)
	out = append(out, make([]byte, width)...) // src addr, zeroed
	out = append(out, make([]byte, width)...) // dst addr, zeroed
	out = binary.BigEndian.AppendUint16(out, old)
	out = binary.BigEndian.AppendUint16(out, new_)
	return out
}

func TestDecodeState_AS4(t *testing.T) {
	body := buildStateChangeBody(true, 65001, 65002, FamilyIPv4, BGPStateOpenConfirm, BGPStateEstablished)
	state, err := decodeState(1700000000, 500, true, body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.SrcAS != 65001 || state.DstAS != 65002 {
		t.Fatalf("unexpected AS numbers: %+v", state)
	}
	if state.OldState != BGPStateOpenConfirm || state.NewState != BGPStateEstablished {
		t.Fatalf("unexpected state transition: %+v", state)
	}
	if state.Timestamp.Nanosecond() != 500*1000 {
		t.Fatalf("expected usec folded into timestamp, got %v", state.Timestamp)
	}
}

func TestDecodeState_LegacyTwoByteASN(t *testing.T) {
	body := buildStateChangeBody(false, 65001, 65002, FamilyIPv6, BGPStateIdle, BGPStateConnect)
	state, err := decodeState(1700000000, 0, false, body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.SrcAS != 65001 {
		t.Fatalf("unexpected src as: %d", state.SrcAS)
	}
}

func buildMessageBody(as4 bool, srcAS, dstAS uint32, family Family, raw []byte) []byte {
	header := buildStateChangeBody(as4, srcAS, dstAS, family, 0, 0)
	// strip the trailing old/new state u16s the STATE_CHANGE body has but
	// MESSAGE doesn't: header, src_addr, dst_addr is common, the rest
	// diverges.
	body := header[:len(header)-4]
	return append(body, raw...)
}

func TestDecodeMsg_CarriesRawMessageAndAddPathFlag(t *testing.T) {
	raw := []byte{0xFF, 0xFF, 0xFF}
	body := buildMessageBody(true, 65001, 65002, FamilyIPv4, raw)
	msg, err := decodeMsg(1700000000, 0, true, true, body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !msg.AddPath {
		t.Fatalf("expected AddPath=true")
	}
	if string(msg.RawMessage) != string(raw) {
		t.Fatalf("expected raw message %v, got %v", raw, msg.RawMessage)
	}
}
