package event

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/tarungka/loom/frontier"
)

// TickTime encodes frontier.Tick as 8 BigEndian bytes.
type TickTime struct{}

func (TickTime) EncodeTime(w io.Writer, t frontier.Tick) error {
	return binary.Write(w, binary.BigEndian, uint64(t))
}

func (TickTime) DecodeTime(r io.Reader) (frontier.Tick, error) {
	var v uint64
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, err
	}
	return frontier.Tick(v), nil
}

// Uint64Data encodes uint64 records as 8 BigEndian bytes.
type Uint64Data struct{}

func (Uint64Data) EncodeData(w io.Writer, d uint64) error {
	return binary.Write(w, binary.BigEndian, d)
}

func (Uint64Data) DecodeData(r io.Reader) (uint64, error) {
	var v uint64
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// RawBytes encodes byte-slice records with a length prefix.
type RawBytes struct{}

func (RawBytes) EncodeData(w io.Writer, d []byte) error {
	if err := binary.Write(w, binary.BigEndian, int32(len(d))); err != nil {
		return err
	}
	if len(d) > 0 {
		if _, err := w.Write(d); err != nil {
			return err
		}
	}
	return nil
}

func (RawBytes) DecodeData(r io.Reader) ([]byte, error) {
	var length int32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, err
	}
	if length < 0 || length > 10*1024*1024 {
		return nil, fmt.Errorf("invalid bytes length: %d", length)
	}
	if length == 0 {
		return nil, nil
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

// StringData encodes string records with a length prefix.
type StringData struct{}

func (StringData) EncodeData(w io.Writer, d string) error {
	if err := binary.Write(w, binary.BigEndian, int32(len(d))); err != nil {
		return err
	}
	if len(d) > 0 {
		if _, err := io.WriteString(w, d); err != nil {
			return err
		}
	}
	return nil
}

func (StringData) DecodeData(r io.Reader) (string, error) {
	var length int32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return "", err
	}
	if length < 0 || length > 1024*1024 {
		return "", fmt.Errorf("invalid string length: %d", length)
	}
	if length == 0 {
		return "", nil
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return "", err
	}
	return string(data), nil
}
