package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const (
	sessionFormatVersionCurrent = 1

	flagRemembered byte = 1 << 0
)

// ErrCorruptSession is returned by Decode for unreadable blobs.
var ErrCorruptSession = errors.New("corrupt session")

// Encode serializes s in the current record format. SessionID is not part
// of the record; it is the Redis key.
func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(sessionFormatVersionCurrent)

	if len(s.AccountID) > 255 {
		return nil, errors.New("accountID too long")
	}
	buf.WriteByte(byte(len(s.AccountID)))
	buf.WriteString(s.AccountID)

	buf.Write(s.Epoch[:])

	var flags byte
	if s.Remembered {
		flags |= flagRemembered
	}
	buf.WriteByte(flags)

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a record written by Encode. Unknown versions, unknown flag
// bits and trailing bytes are rejected.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil || version != sessionFormatVersionCurrent {
		return nil, ErrCorruptSession
	}

	s := &Session{}

	accountLen, err := reader.ReadByte()
	if err != nil {
		return nil, ErrCorruptSession
	}
	accountID := make([]byte, accountLen)
	if _, err := io.ReadFull(reader, accountID); err != nil {
		return nil, ErrCorruptSession
	}
	s.AccountID = string(accountID)

	if _, err := io.ReadFull(reader, s.Epoch[:]); err != nil {
		return nil, ErrCorruptSession
	}

	flags, err := reader.ReadByte()
	if err != nil || flags&^flagRemembered != 0 {
		return nil, ErrCorruptSession
	}
	s.Remembered = flags&flagRemembered != 0

	if err := binary.Read(reader, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, ErrCorruptSession
	}
	if err := binary.Read(reader, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, ErrCorruptSession
	}

	if reader.Len() != 0 {
		return nil, ErrCorruptSession
	}

	return s, nil
}
