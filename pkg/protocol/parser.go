// Package protocol implements the streaming parser and per-connection state
// machine for the binary file-transfer command protocol (spec.md §4.F).
//
// The parser accumulates bytes into a growing buffer and repeatedly attempts
// to extract one command; a step that doesn't yet have enough data leaves
// the buffer untouched and reports a "need more" error so the caller knows
// to recv more and retry — the same shape as go-rawhttp's buffer package
// growing a Buffer until a threshold is reached, generalized here to growing
// until one full command is available (spec.md §9: "a parser returning
// Need(n)/Done(cmd, rest) variants").
package protocol

import (
	"github.com/relayforge/relaysuite/pkg/errors"
	"github.com/relayforge/relaysuite/pkg/framing"
)

// CommandPayload is implemented by each command's parsed payload type.
type CommandPayload interface {
	commandPayload()
}

// Identify is IDENTIFY's payload: spec.md §4.F and §9 both note that the
// identifier is "the remainder of the current buffer", not a length-prefixed
// field — an intentionally-kept ambiguity, not a bug.
type Identify struct {
	RawIdentifier []byte
}

func (Identify) commandPayload() {}

// GetFile is GET_FILE's payload: just the requested path.
type GetFile struct {
	Path string
}

func (GetFile) commandPayload() {}

// PutFileAccepted is emitted as soon as PUT_FILE's command header and path
// have been parsed, before the FileHeader or file body have necessarily
// arrived. The engine sends the first of PUT_FILE's two ACKs on receiving
// this (spec.md §4.F: "Send ACK" right after the command+path header),
// then calls Next again to continue parsing the same command.
type PutFileAccepted struct {
	CommandPath string
}

func (PutFileAccepted) commandPayload() {}

// PutFile is PUT_FILE's completed payload: the FileHeader and file bytes
// that followed the already-acknowledged command+path section.
type PutFile struct {
	CommandPath string
	Header      framing.FileHeader
	Data        []byte
}

func (PutFile) commandPayload() {}

// Enumerate is ENUMERATE's payload. The command is reserved and
// unimplemented per spec.md §4.F: the server consumes the header and sends
// no reply.
type Enumerate struct{}

func (Enumerate) commandPayload() {}

// Unknown wraps a command id the engine doesn't recognize.
type Unknown struct {
	ID framing.CommandID
}

func (Unknown) commandPayload() {}

// phase tracks where a Buffer is mid-PUT_FILE, since that command is parsed
// in two steps separated by an ACK the caller sends in between.
type phase int

const (
	phaseIdle phase = iota
	phaseAwaitingPutFileBody
)

// Buffer accumulates bytes from a connection and extracts one command at a
// time. It is not safe for concurrent use — each connection worker owns
// exactly one.
type Buffer struct {
	data        []byte
	phase       phase
	pendingPath string // CommandPath carried from PutFileAccepted to PutFile
}

// NewBuffer returns an empty parse buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Feed appends newly-received bytes to the buffer.
func (b *Buffer) Feed(p []byte) {
	b.data = append(b.data, p...)
}

// Len reports how many unconsumed bytes remain buffered.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Next attempts to extract the next unit of protocol state from the
// buffered bytes: a complete command, or — for PUT_FILE — the
// PutFileAccepted midpoint. It returns an error satisfying
// errors.IsParseIncomplete when more data is needed; the buffer is left
// unchanged in that case so the caller can Feed more and retry.
//
// IDENTIFY is special-cased per spec.md §9: it consumes the 4-byte command
// header and then the *entire remaining buffer* as the identifier,
// regardless of whether more commands are already queued up behind it in
// the same recv. This matches the source behavior the spec fixes in place.
func (b *Buffer) Next() (CommandPayload, error) {
	if b.phase == phaseAwaitingPutFileBody {
		return b.parsePutFileBody()
	}

	hdr, ok := framing.ParseCommandHeader(b.data)
	if !ok {
		return nil, errors.NewParseIncompleteError("parse_command_header")
	}

	switch hdr.CommandID {
	case framing.IDENTIFY:
		payload := Identify{RawIdentifier: append([]byte(nil), b.data[framing.CommandHeaderSize:]...)}
		b.data = nil
		return payload, nil

	case framing.GET_FILE:
		return b.parseGetFile()

	case framing.PUT_FILE:
		return b.parsePutFileHeader()

	case framing.ENUMERATE:
		b.consume(framing.CommandHeaderSize)
		return Enumerate{}, nil

	default:
		b.data = nil
		return Unknown{ID: hdr.CommandID}, nil
	}
}

func (b *Buffer) parseGetFile() (CommandPayload, error) {
	cursor := framing.CommandHeaderSize
	if len(b.data) < cursor+2 {
		return nil, errors.NewParseIncompleteError("parse_get_file_path_length")
	}
	pathLen := int(framing.ReadUint16LE(b.data[cursor : cursor+2]))
	cursor += 2

	if len(b.data) < cursor+pathLen {
		return nil, errors.NewParseIncompleteError("parse_get_file_path")
	}
	path := string(b.data[cursor : cursor+pathLen])
	cursor += pathLen

	b.consume(cursor)
	return GetFile{Path: path}, nil
}

// parsePutFileHeader parses PUT_FILE's command-path section only. Once it
// succeeds, the buffer transitions to phaseAwaitingPutFileBody so the next
// Next() call picks up exactly where this one left off instead of
// re-parsing (and re-acknowledging) the same path.
func (b *Buffer) parsePutFileHeader() (CommandPayload, error) {
	cursor := framing.CommandHeaderSize
	if len(b.data) < cursor+2 {
		return nil, errors.NewParseIncompleteError("parse_put_file_path_length")
	}
	pathLen := int(framing.ReadUint16LE(b.data[cursor : cursor+2]))
	cursor += 2

	if len(b.data) < cursor+pathLen {
		return nil, errors.NewParseIncompleteError("parse_put_file_path")
	}
	cmdPath := string(b.data[cursor : cursor+pathLen])
	cursor += pathLen

	b.consume(cursor)
	b.phase = phaseAwaitingPutFileBody
	b.pendingPath = cmdPath
	return PutFileAccepted{CommandPath: cmdPath}, nil
}

func (b *Buffer) parsePutFileBody() (CommandPayload, error) {
	fileHeader, next, ok := framing.ParseFileHeader(b.data, 0)
	if !ok {
		return nil, errors.NewParseIncompleteError("parse_put_file_header")
	}

	if len(b.data) < next+int(fileHeader.FileSize) {
		return nil, errors.NewParseIncompleteError("parse_put_file_data")
	}
	fileData := append([]byte(nil), b.data[next:next+int(fileHeader.FileSize)]...)
	total := next + int(fileHeader.FileSize)

	b.consume(total)
	path := b.pendingPath
	b.pendingPath = ""
	b.phase = phaseIdle
	return PutFile{CommandPath: path, Header: fileHeader, Data: fileData}, nil
}

func (b *Buffer) consume(n int) {
	b.data = append([]byte(nil), b.data[n:]...)
}
