package mrtsource

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestNewFileSource_ReadsContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rib.mrt")
	want := []byte{0xde, 0xad, 0xbe, 0xef}
	if err := os.WriteFile(path, want, 0644); err != nil {
		t.Fatal(err)
	}

	src, err := NewFileSource(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer src.Close()

	got, err := io.ReadAll(src)
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestNewFileSource_MissingFile(t *testing.T) {
	if _, err := NewFileSource("/nonexistent/path/to/rib.mrt"); err == nil {
		t.Fatal("expected error for a missing file")
	}
}

func TestNewZstdFileSource_DecompressesContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rib.mrt.zst")

	want := make([]byte, 4096)
	for i := range want {
		want[i] = byte(i % 251)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	compressed := enc.EncodeAll(want, nil)
	enc.Close()

	if err := os.WriteFile(path, compressed, 0644); err != nil {
		t.Fatal(err)
	}

	src, err := NewZstdFileSource(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer src.Close()

	got, err := io.ReadAll(src)
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("decompressed content mismatch, got %d bytes want %d bytes", len(got), len(want))
	}
}

func TestNewZstdFileSource_MissingFile(t *testing.T) {
	if _, err := NewZstdFileSource("/nonexistent/path/to/rib.mrt.zst"); err == nil {
		t.Fatal("expected error for a missing file")
	}
}
