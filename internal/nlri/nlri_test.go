package nlri

import (
	"net"
	"testing"

	"github.com/route-beacon/mrtparse/internal/mrt"
)

func TestGetPrefix_IPv4ExactByteBoundary(t *testing.T) {
	c := mrt.NewCursor([]byte{24, 10, 0, 1})
	d := New()

	p, err := d.GetPrefix(c, mrt.FamilyIPv4, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Length != 24 {
		t.Errorf("expected length 24, got %d", p.Length)
	}
	want := net.IPv4(10, 0, 1, 0).To4()
	if !p.IP.Equal(want) {
		t.Errorf("expected %v, got %v", want, p.IP)
	}
}

func TestGetPrefix_IPv4PartialByte(t *testing.T) {
	c := mrt.NewCursor([]byte{20, 172, 16, 5})
	d := New()

	p, err := d.GetPrefix(c, mrt.FamilyIPv4, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Length != 20 {
		t.Errorf("expected length 20, got %d", p.Length)
	}
	want := net.IPv4(172, 16, 0, 0).To4()
	if !p.IP.Equal(want) {
		t.Errorf("expected %v, got %v", want, p.IP)
	}
}

func TestGetPrefix_IPv6(t *testing.T) {
	raw := net.ParseIP("2001:db8::").To16()[:8]
	c := mrt.NewCursor(append([]byte{64}, raw...))
	d := New()

	p, err := d.GetPrefix(c, mrt.FamilyIPv6, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Length != 64 {
		t.Errorf("expected length 64, got %d", p.Length)
	}
	want := net.ParseIP("2001:db8::")
	if !p.IP.Equal(want) {
		t.Errorf("expected %v, got %v", want, p.IP)
	}
}

func TestGetPrefix_ZeroLength(t *testing.T) {
	c := mrt.NewCursor([]byte{0})
	d := New()

	p, err := d.GetPrefix(c, mrt.FamilyIPv4, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Length != 0 {
		t.Errorf("expected length 0, got %d", p.Length)
	}
	want := net.IPv4(0, 0, 0, 0).To4()
	if !p.IP.Equal(want) {
		t.Errorf("expected %v, got %v", want, p.IP)
	}
}

func TestGetPrefix_LengthExceedsFamilyWidth(t *testing.T) {
	c := mrt.NewCursor([]byte{33, 1, 2, 3, 4})
	d := New()

	if _, err := d.GetPrefix(c, mrt.FamilyIPv4, false); err != mrt.ErrBadPrefixLen {
		t.Errorf("expected ErrBadPrefixLen, got %v", err)
	}
}

func TestGetPrefix_UnknownFamily(t *testing.T) {
	c := mrt.NewCursor([]byte{8, 1})
	d := New()

	if _, err := d.GetPrefix(c, mrt.FamilyUnspecified, false); err != mrt.ErrUnknownFamily {
		t.Errorf("expected ErrUnknownFamily, got %v", err)
	}
}

func TestGetPrefix_TruncatedPrefixBytes(t *testing.T) {
	c := mrt.NewCursor([]byte{24, 10, 0})
	d := New()

	if _, err := d.GetPrefix(c, mrt.FamilyIPv4, false); err == nil {
		t.Error("expected a truncation error, got nil")
	}
}

func TestGetPrefix_VPNv4UsesIPv4Width(t *testing.T) {
	c := mrt.NewCursor([]byte{16, 192, 168})
	d := New()

	p, err := d.GetPrefix(c, mrt.FamilyVPNv4, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.IP) != 4 {
		t.Errorf("expected a 4-byte IP for VPNv4, got %d bytes", len(p.IP))
	}
}
