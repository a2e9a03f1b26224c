package utils

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SixIDHookFunc lets tests control ID generation.
type SixIDHookFunc func() (id SixID, override bool)

// NewSixIDHook, when set, is consulted by NewSixID before generating a random ID.
var NewSixIDHook SixIDHookFunc

// SixID is a 6-byte document identifier. It is stored in Mongo as binary
// subtype 0x80 and rendered as 10 Crockford Base32 characters.
type SixID [6]byte

const sixIDBinarySubtype byte = 0x80

var crockford = base32.NewEncoding("0123456789ABCDEFGHJKMNPQRSTVWXYZ").WithPadding(base32.NoPadding)

// ErrInvalidSixID is returned when a string or BSON value cannot be decoded.
var ErrInvalidSixID = errors.New("invalid SixID")

// NewSixID returns a random SixID.
func NewSixID() SixID {
	if NewSixIDHook != nil {
		if id, ok := NewSixIDHook(); ok {
			return id
		}
	}
	var id SixID
	if _, err := rand.Read(id[:]); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return id
}

// IsZero reports whether the ID is unset.
func (id SixID) IsZero() bool {
	return id == SixID{}
}

func (id SixID) String() string {
	return crockford.EncodeToString(id[:])
}

// ParseSixID decodes a Crockford Base32 string. Hyphens and spaces are
// ignored, input is case-insensitive and O/I/L are read as 0/1/1.
// An empty string yields the zero ID.
func ParseSixID(s string) (SixID, error) {
	if s == "" {
		return SixID{}, nil
	}
	normalized := strings.Map(func(r rune) rune {
		switch r {
		case '-', ' ':
			return -1
		case 'o', 'O':
			return '0'
		case 'i', 'I', 'l', 'L':
			return '1'
		}
		if r >= 'a' && r <= 'z' {
			return r - 'a' + 'A'
		}
		return r
	}, s)
	if len(normalized) != 10 {
		return SixID{}, fmt.Errorf("%w: %q must be 10 characters", ErrInvalidSixID, s)
	}
	raw, err := crockford.DecodeString(normalized)
	if err != nil || len(raw) != 6 {
		return SixID{}, fmt.Errorf("%w: %q", ErrInvalidSixID, s)
	}
	var id SixID
	copy(id[:], raw)
	return id, nil
}

// MustParseSixID is ParseSixID for constants in tests and fixtures.
func MustParseSixID(s string) SixID {
	id, err := ParseSixID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (id SixID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

func (id *SixID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseSixID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// MarshalBSONValue implements bson.ValueMarshaler.
func (id SixID) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(primitive.Binary{Subtype: sixIDBinarySubtype, Data: id[:]})
}

// UnmarshalBSONValue implements bson.ValueUnmarshaler.
func (id *SixID) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	if t == bsontype.Null || t == bsontype.Undefined {
		*id = SixID{}
		return nil
	}
	if t != bsontype.Binary {
		return fmt.Errorf("%w: unexpected BSON type %s", ErrInvalidSixID, t)
	}
	var bin primitive.Binary
	if err := (bson.RawValue{Type: t, Value: data}).Unmarshal(&bin); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSixID, err)
	}
	if bin.Subtype != sixIDBinarySubtype || len(bin.Data) != 6 {
		return fmt.Errorf("%w: subtype 0x%x length %d", ErrInvalidSixID, bin.Subtype, len(bin.Data))
	}
	copy(id[:], bin.Data)
	return nil
}
