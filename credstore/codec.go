package credstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
)

const pairFormatVersionCurrent = 1

// Encode serializes p into the versioned binary credential format:
// version byte, then each token as a big-endian uint16 length and its bytes.
func Encode(p Pair) ([]byte, error) {
	if len(p.AccessToken) > math.MaxUint16 {
		return nil, errors.New("access token too long")
	}
	if len(p.RefreshToken) > math.MaxUint16 {
		return nil, errors.New("refresh token too long")
	}

	var buf bytes.Buffer
	buf.Grow(1 + 4 + len(p.AccessToken) + len(p.RefreshToken))

	buf.WriteByte(pairFormatVersionCurrent)
	writeString(&buf, p.AccessToken)
	writeString(&buf, p.RefreshToken)

	return buf.Bytes(), nil
}

// Decode parses data produced by [Encode].
func Decode(data []byte) (Pair, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return Pair{}, err
	}
	if version != pairFormatVersionCurrent {
		return Pair{}, errors.New("invalid credential format version")
	}

	access, err := readString(reader)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := readString(reader)
	if err != nil {
		return Pair{}, err
	}
	if reader.Len() != 0 {
		return Pair{}, errors.New("trailing bytes after credential pair")
	}

	return Pair{AccessToken: access, RefreshToken: refresh}, nil
}

func writeString(buf *bytes.Buffer, s string) {
	var size [2]byte
	binary.BigEndian.PutUint16(size[:], uint16(len(s)))
	buf.Write(size[:])
	buf.WriteString(s)
}

func readString(reader *bytes.Reader) (string, error) {
	var size uint16
	if err := binary.Read(reader, binary.BigEndian, &size); err != nil {
		return "", err
	}
	out := make([]byte, size)
	if _, err := io.ReadFull(reader, out); err != nil {
		return "", err
	}
	return string(out), nil
}
