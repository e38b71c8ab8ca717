// Package framing provides the wire-level primitives for the binary file
// protocol: little-endian integer encode/decode and the two fixed-shape
// headers (command header, file header) that ride on top of them.
//
// Every parse function here is pure and non-consuming: given a byte slice
// that doesn't yet hold enough data, it reports "need more" instead of
// erroring, so callers can grow a buffer across multiple reads and retry.
package framing

import "encoding/binary"

const (
	// CommandHeaderSize is the fixed size of a command header in bytes.
	CommandHeaderSize = 4

	// fileHeaderFixedSize is the size of the permissions + path_length
	// fields that precede the variable-length path.
	fileHeaderFixedSize = 4

	// fileSizeFieldSize is the size of the trailing file_size field.
	fileSizeFieldSize = 8
)

// CommandID identifies which binary-protocol command a header introduces.
type CommandID uint8

const (
	IDENTIFY  CommandID = 0
	GET_FILE  CommandID = 1
	PUT_FILE  CommandID = 2
	ENUMERATE CommandID = 3
)

func (c CommandID) String() string {
	switch c {
	case IDENTIFY:
		return "IDENTIFY"
	case GET_FILE:
		return "GET_FILE"
	case PUT_FILE:
		return "PUT_FILE"
	case ENUMERATE:
		return "ENUMERATE"
	default:
		return "UNKNOWN"
	}
}

// ReplyStatus is the single-byte, unframed status the server sends after a
// command that has a reply (GET_FILE, PUT_FILE, unknown ids); IDENTIFY and
// ENUMERATE get none.
type ReplyStatus uint8

const (
	ACK     ReplyStatus = 0
	NACK    ReplyStatus = 1
	INVALID ReplyStatus = 254
	ERROR   ReplyStatus = 255
)

// CommandHeader is the 4-byte prefix of every command: a 1-byte command id
// followed by 3 reserved bytes, ignored on read.
type CommandHeader struct {
	CommandID CommandID
	Reserved  [3]byte
}

// FileHeader is the variable-length record carrying a file's permission
// bits, path, and size. It appears in GET_FILE's reply (after the ACK byte)
// and in PUT_FILE's payload (after the command header and path).
type FileHeader struct {
	Permissions uint16
	Path        string
	FileSize    uint64
}

// ReadUint16LE decodes a little-endian uint16 from the first two bytes of buf.
// The caller must ensure len(buf) >= 2.
func ReadUint16LE(buf []byte) uint16 {
	return binary.LittleEndian.Uint16(buf)
}

// ReadUint64LE decodes a little-endian uint64 from the first eight bytes of
// buf. The caller must ensure len(buf) >= 8.
func ReadUint64LE(buf []byte) uint64 {
	return binary.LittleEndian.Uint64(buf)
}

// WriteUint16LE encodes v as little-endian into the first two bytes of dest.
// The caller must ensure len(dest) >= 2.
func WriteUint16LE(dest []byte, v uint16) {
	binary.LittleEndian.PutUint16(dest, v)
}

// WriteUint64LE encodes v as little-endian into the first eight bytes of
// dest. The caller must ensure len(dest) >= 8.
func WriteUint64LE(dest []byte, v uint64) {
	binary.LittleEndian.PutUint64(dest, v)
}

// ParseCommandHeader attempts to parse a command header from the front of
// buf. It reports ok=false without consuming anything if buf is shorter
// than CommandHeaderSize.
func ParseCommandHeader(buf []byte) (hdr CommandHeader, ok bool) {
	if len(buf) < CommandHeaderSize {
		return CommandHeader{}, false
	}
	hdr.CommandID = CommandID(buf[0])
	copy(hdr.Reserved[:], buf[1:4])
	return hdr, true
}

// ParseFileHeader attempts to parse a FileHeader starting at offset in buf.
// On success it returns the header and the offset of the first byte after
// it (i.e. where the file contents begin). It reports ok=false without
// consuming anything if buf doesn't yet hold enough bytes for the length
// fields, or for path_length + 8 bytes once the path length is known.
func ParseFileHeader(buf []byte, offset int) (hdr FileHeader, nextOffset int, ok bool) {
	if len(buf) < offset+fileHeaderFixedSize {
		return FileHeader{}, 0, false
	}

	permissions := ReadUint16LE(buf[offset : offset+2])
	pathLen := ReadUint16LE(buf[offset+2 : offset+4])

	needed := offset + fileHeaderFixedSize + int(pathLen) + fileSizeFieldSize
	if len(buf) < needed {
		return FileHeader{}, 0, false
	}

	pathStart := offset + fileHeaderFixedSize
	pathEnd := pathStart + int(pathLen)
	path := string(buf[pathStart:pathEnd])
	fileSize := ReadUint64LE(buf[pathEnd : pathEnd+fileSizeFieldSize])

	return FileHeader{
		Permissions: permissions,
		Path:        path,
		FileSize:    fileSize,
	}, needed, true
}

// EncodeFileHeader serializes a FileHeader into its wire form: permissions,
// path length, path bytes, file size — all little-endian.
func EncodeFileHeader(hdr FileHeader) []byte {
	pathBytes := []byte(hdr.Path)
	out := make([]byte, fileHeaderFixedSize+len(pathBytes)+fileSizeFieldSize)
	WriteUint16LE(out[0:2], hdr.Permissions)
	WriteUint16LE(out[2:4], uint16(len(pathBytes)))
	copy(out[4:4+len(pathBytes)], pathBytes)
	WriteUint64LE(out[4+len(pathBytes):], hdr.FileSize)
	return out
}

// EncodeCommandHeader serializes a command header: 1 command byte followed
// by 3 zero reserved bytes.
func EncodeCommandHeader(id CommandID) []byte {
	return []byte{byte(id), 0, 0, 0}
}
