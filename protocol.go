// protocol.go
// Line protocol: client commands in, server responses out. Every line ends in CRLF.

package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

const crlf = "\r\n"

type CommandKind int

const (
	CommandQuit CommandKind = iota
	CommandWho
	CommandName
	CommandBroadcast
)

func (k CommandKind) String() string {
	switch k {
	case CommandQuit:
		return "QUIT"
	case CommandWho:
		return "WHO"
	case CommandName:
		return "NAME"
	case CommandBroadcast:
		return "BROADCAST"
	default:
		return fmt.Sprintf("CommandKind(%d)", int(k))
	}
}

// Command is one decoded client line. Arg is set for NAME and BROADCAST.
type Command struct {
	Kind CommandKind
	Arg  string
}

var (
	ErrMalformed      = errors.New("malformed command")
	ErrUnknownCommand = fmt.Errorf("%w: unknown keyword", ErrMalformed)
	ErrEmptyName      = fmt.Errorf("%w: empty name", ErrMalformed)
	ErrLineTooLong    = fmt.Errorf("%w: line too long", ErrMalformed)
)

// Decode parses a single line with its terminator already stripped.
// Arguments are the raw rest of the line after one space. QUIT and WHO ignore theirs.
func Decode(line []byte) (Command, error) {
	keyword, rest, _ := bytes.Cut(line, []byte{' '})

	switch string(keyword) {
	case "QUIT":
		return Command{Kind: CommandQuit}, nil
	case "WHO":
		return Command{Kind: CommandWho}, nil
	case "NAME":
		if len(rest) == 0 {
			return Command{}, ErrEmptyName
		}
		return Command{Kind: CommandName, Arg: string(rest)}, nil
	case "BROADCAST":
		return Command{Kind: CommandBroadcast, Arg: string(rest)}, nil
	default:
		return Command{}, ErrUnknownCommand
	}
}

var noNameLine = []byte("NONAME" + crlf)

// encodeNames renders a WHO reply. Unset names show up as empty tokens.
func encodeNames(names []string) []byte {
	var b strings.Builder
	b.WriteString("NAMES")
	for _, name := range names {
		b.WriteByte(' ')
		b.WriteString(name)
	}
	b.WriteString(crlf)
	return []byte(b.String())
}

func encodeFrom(msg ChatMessage) []byte {
	return []byte("FROM " + msg.Sender + " " + msg.Body + crlf)
}

func encodeError(line []byte) []byte {
	out := make([]byte, 0, len("ERROR ")+len(line)+len(crlf))
	out = append(out, "ERROR "...)
	out = append(out, line...)
	return append(out, crlf...)
}

// lineReader splits a byte stream into lines, reassembling lines that span reads.
// A line (terminator included) may not exceed max bytes.
type lineReader struct {
	r *bufio.Reader
}

func newLineReader(r io.Reader, max int) *lineReader {
	return &lineReader{r: bufio.NewReaderSize(r, max)}
}

// ReadLine returns the next line without its terminator. When the line did not fit,
// overlong is set, line holds its first bytes and the remainder has been skipped.
// A partial line at end of input is dropped.
func (lr *lineReader) ReadLine() (line []byte, overlong bool, err error) {
	chunk, err := lr.r.ReadSlice('\n')
	if err == nil {
		return trimTerminator(bytes.Clone(chunk)), false, nil
	}
	if !errors.Is(err, bufio.ErrBufferFull) {
		return nil, false, err
	}

	line = bytes.Clone(chunk)
	for errors.Is(err, bufio.ErrBufferFull) {
		_, err = lr.r.ReadSlice('\n')
	}
	if err != nil {
		return nil, false, err
	}
	return line, true, nil
}

// trimTerminator strips CRLF, or a bare LF.
func trimTerminator(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte{'\n'})
	return bytes.TrimSuffix(line, []byte{'\r'})
}
