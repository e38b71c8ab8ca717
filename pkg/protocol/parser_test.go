package protocol

import (
	"testing"

	"github.com/relayforge/relaysuite/pkg/errors"
	"github.com/relayforge/relaysuite/pkg/framing"
)

func TestIdentifyTakesRestOfBuffer(t *testing.T) {
	buf := NewBuffer()
	buf.Feed(framing.EncodeCommandHeader(framing.IDENTIFY))
	buf.Feed([]byte("alice"))

	got, err := buf.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id, ok := got.(Identify)
	if !ok {
		t.Fatalf("got %T, want Identify", got)
	}
	if string(id.RawIdentifier) != "alice" {
		t.Fatalf("got identifier %q, want %q", id.RawIdentifier, "alice")
	}
}

func TestGetFileNeedsMoreBytes(t *testing.T) {
	buf := NewBuffer()
	buf.Feed(framing.EncodeCommandHeader(framing.GET_FILE))
	buf.Feed([]byte{5, 0}) // path length 5, no path bytes yet

	_, err := buf.Next()
	if !errors.IsParseIncomplete(err) {
		t.Fatalf("expected ParseIncomplete, got %v", err)
	}

	buf.Feed([]byte("a.txt"))
	got, err := buf.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gf, ok := got.(GetFile)
	if !ok {
		t.Fatalf("got %T, want GetFile", got)
	}
	if gf.Path != "a.txt" {
		t.Fatalf("got path %q, want %q", gf.Path, "a.txt")
	}
}

func TestPutFileTwoPhaseParsing(t *testing.T) {
	buf := NewBuffer()

	cursor := framing.EncodeCommandHeader(framing.PUT_FILE)
	pathField := make([]byte, 2)
	framing.WriteUint16LE(pathField, 9)
	buf.Feed(cursor)
	buf.Feed(pathField)
	buf.Feed([]byte("hello.txt"))

	accepted, err := buf.Next()
	if err != nil {
		t.Fatalf("unexpected error parsing put_file header: %v", err)
	}
	acc, ok := accepted.(PutFileAccepted)
	if !ok {
		t.Fatalf("got %T, want PutFileAccepted", accepted)
	}
	if acc.CommandPath != "hello.txt" {
		t.Fatalf("got command path %q, want %q", acc.CommandPath, "hello.txt")
	}

	// Body hasn't arrived yet: Next must report incomplete without losing
	// the already-accepted path.
	_, err = buf.Next()
	if !errors.IsParseIncomplete(err) {
		t.Fatalf("expected ParseIncomplete before body arrives, got %v", err)
	}

	hdr := framing.FileHeader{Permissions: 0o644, Path: "hello.txt", FileSize: 5}
	buf.Feed(framing.EncodeFileHeader(hdr))
	buf.Feed([]byte("Hello"))

	final, err := buf.Next()
	if err != nil {
		t.Fatalf("unexpected error parsing put_file body: %v", err)
	}
	pf, ok := final.(PutFile)
	if !ok {
		t.Fatalf("got %T, want PutFile", final)
	}
	if pf.CommandPath != "hello.txt" || string(pf.Data) != "Hello" {
		t.Fatalf("got %+v", pf)
	}
	if pf.Header.FileSize != 5 {
		t.Fatalf("got file size %d, want 5", pf.Header.FileSize)
	}
}

func TestPutFileBodyArrivesAcrossMultipleFeeds(t *testing.T) {
	buf := NewBuffer()
	buf.Feed(framing.EncodeCommandHeader(framing.PUT_FILE))
	pathField := make([]byte, 2)
	framing.WriteUint16LE(pathField, 1)
	buf.Feed(pathField)
	buf.Feed([]byte("x"))

	if _, err := buf.Next(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	full := append(framing.EncodeFileHeader(framing.FileHeader{Path: "x", FileSize: 3}), []byte("abc")...)
	for i := 0; i < len(full)-1; i++ {
		buf.Feed(full[i : i+1])
		if _, err := buf.Next(); !errors.IsParseIncomplete(err) {
			t.Fatalf("expected incomplete at byte %d, got %v", i, err)
		}
	}
	buf.Feed(full[len(full)-1:])
	got, err := buf.Next()
	if err != nil {
		t.Fatalf("unexpected error on final byte: %v", err)
	}
	pf := got.(PutFile)
	if string(pf.Data) != "abc" {
		t.Fatalf("got data %q, want %q", pf.Data, "abc")
	}
}

func TestEnumerateConsumesHeaderOnly(t *testing.T) {
	buf := NewBuffer()
	buf.Feed(framing.EncodeCommandHeader(framing.ENUMERATE))
	buf.Feed(framing.EncodeCommandHeader(framing.IDENTIFY))
	buf.Feed([]byte("bob"))

	got, err := buf.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := got.(Enumerate); !ok {
		t.Fatalf("got %T, want Enumerate", got)
	}

	got, err = buf.Next()
	if err != nil {
		t.Fatalf("unexpected error on second command: %v", err)
	}
	id, ok := got.(Identify)
	if !ok || string(id.RawIdentifier) != "bob" {
		t.Fatalf("got %+v, want Identify{bob}", got)
	}
}

func TestUnknownCommandClearsBuffer(t *testing.T) {
	buf := NewBuffer()
	buf.Feed([]byte{99, 0, 0, 0})
	buf.Feed([]byte("trailing garbage"))

	got, err := buf.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u, ok := got.(Unknown)
	if !ok || u.ID != 99 {
		t.Fatalf("got %+v, want Unknown{99}", got)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected buffer cleared after unknown command, got %d bytes left", buf.Len())
	}
}
