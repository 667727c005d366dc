package mrt

import (
	"encoding/binary"
	"errors"
	"io"
)

const commonHeaderSize = 12

// defaultMaxPayloadLen bounds the length field of the common MRT header
// before a buffer of that size is allocated. RFC 6396 puts no hard cap
// on record length; this is purely a defensive guard against a corrupt
// or hostile length field turning into an unbounded allocation - the
// closest Go equivalent this package has to the original's
// AllocFailure fatal kind (see errors.go).
const defaultMaxPayloadLen = 64 << 20

// Sinks are the external collaborators a Parser delivers decoded
// records to. A nil sink means that class of record is not delivered;
// for Dump specifically, a nil sink also means the record is never
// decoded in the first place (mirroring mrtparser.c's
// `if (p->dump == NULL) break;` gate before touching the payload at
// all). State and Message records are always decoded regardless of
// whether a sink is set - only delivery is gated - because the original
// parses them unconditionally and only skips the callback.
type Sinks struct {
	Dump    func(rib *Rib, peers *PeerContext)
	State   func(state *BgpState)
	Message func(msg *BgpMsg)
}

// Diagnostics receives human-readable verbose tracing. Passing a nil
// Diagnostics (the default) makes the parser silent regardless of
// Verbose.
type Diagnostics func(format string, args ...any)

// DropHook is invoked whenever dispatch drops a record after a
// recoverable decode error (anything but ErrTooManyAttrs). It receives
// the record's top-level MRT type name and the error that caused the
// drop, so a caller can observe parse failures (e.g. incrementing a
// metrics counter) without this package depending on any metrics
// library itself. A nil DropHook is a no-op.
type DropHook func(stage string, err error)

// Header is a decoded common MRT header (RFC 6396 §2).
type Header struct {
	Timestamp uint32
	Type      uint16
	Subtype   uint16
	Length    uint32
}

// Parser holds everything Run needs to pull and dispatch MRT records
// from a single byte source. It is a plain value owned by the caller -
// there is no global or package-level parser state - so multiple
// Parsers over independent sources never interfere with each other.
type Parser struct {
	Source        io.Reader
	Sinks         Sinks
	PrefixDecoder PrefixDecoder
	Verbose       bool
	Diag          Diagnostics
	OnDrop        DropHook
	MaxPayloadLen int

	peerCtx       *PeerContext
	legacyPeerCtx *PeerContext
}

// NewParser constructs a Parser reading from source and resolving NLRI
// via prefixDecoder - internal/nlri.Decoder in this repository, but any
// PrefixDecoder implementation works.
func NewParser(source io.Reader, prefixDecoder PrefixDecoder) *Parser {
	return &Parser{
		Source:        source,
		PrefixDecoder: prefixDecoder,
		MaxPayloadLen: defaultMaxPayloadLen,
		legacyPeerCtx: synthesizeLegacyPeerContext(),
	}
}

func (p *Parser) diagf(format string, args ...any) {
	if p.Verbose && p.Diag != nil {
		p.Diag(format, args...)
	}
}

// Run pulls records from Source until a short read cleanly ends the
// stream, or a fatal decode error (ErrTooManyAttrs) is returned. Every
// record whose class has a non-nil sink is decoded and delivered inline
// before the next record is read; sinks are never re-entered
// concurrently, and Run never retains state across calls once it
// returns: both peer contexts are released on every return.
func (p *Parser) Run() error {
	if p.legacyPeerCtx == nil {
		p.legacyPeerCtx = synthesizeLegacyPeerContext()
	}
	defer func() {
		p.peerCtx = nil
		p.legacyPeerCtx = nil
	}()

	headerBuf := make([]byte, commonHeaderSize)
	for {
		n, err := io.ReadFull(p.Source, headerBuf)
		if err != nil {
			if n == 0 && errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				p.diagf("short read on common header (%d/%d bytes): stream ends", n, commonHeaderSize)
				return nil
			}
			return err
		}

		hdr := Header{
			Timestamp: binary.BigEndian.Uint32(headerBuf[0:4]),
			Type:      binary.BigEndian.Uint16(headerBuf[4:6]),
			Subtype:   binary.BigEndian.Uint16(headerBuf[6:8]),
			Length:    binary.BigEndian.Uint32(headerBuf[8:12]),
		}

		if int64(hdr.Length) > int64(p.MaxPayloadLen) {
			p.diagf("record length %d exceeds max payload %d: stream ends", hdr.Length, p.MaxPayloadLen)
			return nil
		}

		payload := make([]byte, hdr.Length)
		if _, err := io.ReadFull(p.Source, payload); err != nil {
			p.diagf("short read on payload (wanted %d bytes): stream ends", hdr.Length)
			return nil
		}

		if err := p.dispatch(hdr, payload); err != nil {
			if errors.Is(err, ErrTooManyAttrs) {
				return err
			}
			p.diagf("dropping record type=%d subtype=%d: %v", hdr.Type, hdr.Subtype, err)
			if p.OnDrop != nil {
				p.OnDrop(stageName(hdr.Type), err)
			}
		}
	}
}

// stageName buckets a record's top-level MRT type into the coarse
// stage names a drop hook reports, mirroring the switch dispatch
// already uses.
func stageName(recordType uint16) string {
	switch recordType {
	case TypeTableDump:
		return "table_dump"
	case TypeTableDumpV2:
		return "table_dump_v2"
	case TypeBGP4MP, TypeBGP4MPET:
		return "bgp4mp"
	default:
		return "unknown"
	}
}

func (p *Parser) dispatch(hdr Header, payload []byte) error {
	switch hdr.Type {
	case TypeNull, TypeStart, TypeDie, TypeIAmDead, TypePeerDown,
		TypeBGP, TypeIDRP, TypeBGP4PLUS, TypeBGP4PLUS1:
		p.diagf("deprecated record type=%d subtype=%d, skipping", hdr.Type, hdr.Subtype)
		return nil

	case TypeRIP, TypeRIPNG, TypeOSPFv2, TypeISIS, TypeISISET, TypeOSPFv3, TypeOSPFv3ET:
		p.diagf("unsupported record type=%d subtype=%d, skipping", hdr.Type, hdr.Subtype)
		return nil

	case TypeTableDump:
		return p.dispatchTableDump(hdr, payload)

	case TypeTableDumpV2:
		return p.dispatchTableDumpV2(hdr, payload)

	case TypeBGP4MP, TypeBGP4MPET:
		return p.dispatchBGP4MP(hdr, payload)

	default:
		p.diagf("unknown record type=%d subtype=%d, skipping", hdr.Type, hdr.Subtype)
		return nil
	}
}

func (p *Parser) dispatchTableDump(hdr Header, payload []byte) error {
	if p.Sinks.Dump == nil {
		return nil
	}
	var family Family
	switch hdr.Subtype {
	case SubtypeDumpAFIIPv4:
		family = FamilyIPv4
	case SubtypeDumpAFIIPv6:
		family = FamilyIPv6
	default:
		return ErrUnknownFamily
	}

	rib, err := decodeTableDump(family, payload, p.legacyPeerCtx)
	if err != nil {
		return err
	}
	p.Sinks.Dump(rib, p.legacyPeerCtx)
	return nil
}

func (p *Parser) dispatchTableDumpV2(hdr Header, payload []byte) error {
	if p.Sinks.Dump == nil {
		return nil
	}

	if hdr.Subtype == SubtypePeerIndexTable {
		pctx, err := decodePeerIndexTable(payload)
		if err != nil {
			return err
		}
		p.peerCtx = pctx
		return nil
	}

	var family Family
	addPath := false
	generic := false
	switch hdr.Subtype {
	case SubtypeRibIPv4Unicast, SubtypeRibIPv4Multicast:
		family = FamilyIPv4
	case SubtypeRibIPv6Unicast, SubtypeRibIPv6Multicast:
		family = FamilyIPv6
	case SubtypeRibIPv4UnicastAddPath, SubtypeRibIPv4MulticastAddPath:
		family, addPath = FamilyIPv4, true
	case SubtypeRibIPv6UnicastAddPath, SubtypeRibIPv6MulticastAddPath:
		family, addPath = FamilyIPv6, true
	case SubtypeRibGeneric:
		generic = true
	case SubtypeRibGenericAddPath:
		generic, addPath = true, true
	default:
		return ErrUnknownFamily
	}

	var rib *Rib
	var err error
	if generic {
		rib, err = decodeGenericTableDumpV2(addPath, payload, p.PrefixDecoder)
	} else {
		rib, err = decodeTableDumpV2(family, addPath, payload, p.PrefixDecoder)
	}
	if err != nil {
		return err
	}
	p.Sinks.Dump(rib, p.peerCtx)
	return nil
}

func (p *Parser) dispatchBGP4MP(hdr Header, payload []byte) error {
	isET := hdr.Type == TypeBGP4MPET
	var usec uint32
	body := payload
	if isET {
		c := NewCursor(payload)
		u, err := c.ReadU32()
		if err != nil {
			return err
		}
		usec = u
		body = payload[4:]
	}

	switch hdr.Subtype {
	case SubtypeBGP4MPEntry:
		if p.Sinks.Dump == nil {
			return nil
		}
		rib, err := decodeBGP4MPEntry(body, p.legacyPeerCtx, p.PrefixDecoder)
		if err != nil {
			return err
		}
		p.Sinks.Dump(rib, p.legacyPeerCtx)
		return nil

	case SubtypeStateChange, SubtypeStateChangeAS4:
		as4 := hdr.Subtype == SubtypeStateChangeAS4
		state, err := decodeState(hdr.Timestamp, usec, as4, body)
		if err != nil {
			return err
		}
		if p.Sinks.State != nil {
			p.Sinks.State(state)
		}
		return nil

	case SubtypeMessage, SubtypeMessageAS4, SubtypeMessageLocal, SubtypeMessageAS4Local,
		SubtypeMessageAddPath, SubtypeMessageAS4AddPath, SubtypeMessageLocalAddPath, SubtypeMessageAS4LocalAddPath:
		as4 := isAS4MessageSubtype(hdr.Subtype)
		addPath := isAddPathMessageSubtype(hdr.Subtype)
		msg, err := decodeMsg(hdr.Timestamp, usec, as4, addPath, body)
		if err != nil {
			return err
		}
		if p.Sinks.Message != nil {
			p.Sinks.Message(msg)
		}
		return nil

	default:
		p.diagf("unknown BGP4MP subtype=%d, skipping", hdr.Subtype)
		return nil
	}
}

func isAS4MessageSubtype(subtype uint16) bool {
	switch subtype {
	case SubtypeMessageAS4, SubtypeMessageAS4Local, SubtypeMessageAS4AddPath, SubtypeMessageAS4LocalAddPath:
		return true
	default:
		return false
	}
}

func isAddPathMessageSubtype(subtype uint16) bool {
	switch subtype {
	case SubtypeMessageAddPath, SubtypeMessageAS4AddPath, SubtypeMessageLocalAddPath, SubtypeMessageAS4LocalAddPath:
		return true
	default:
		return false
	}
}
