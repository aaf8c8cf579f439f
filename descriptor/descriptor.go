// Package descriptor encodes, decodes and orders the version descriptor that
// accompanies every published generation of resources.
//
// The descriptor is a protobuf message with two fields:
//
//	message VersionDescriptor {
//	  int32  protocol_version = 1;
//	  string data_version_id  = 2;
//	}
//
// It is read with protowire directly so that unknown fields added by newer
// publishers are skipped rather than rejected.
package descriptor

import (
	"fmt"
	"regexp"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/shiguang-schedule/reposync/errors"
)

const (
	fieldProtocolVersion protowire.Number = 1
	fieldDataVersionID   protowire.Number = 2

	// idTimeLayout is the timestamp half of a data version id.
	idTimeLayout = "20060102150405"
)

// idPattern is YYYYMMDDhhmmss_NNN. Fixed width and zero padding make plain
// string comparison agree with chronological order.
var idPattern = regexp.MustCompile(`^\d{14}_\d{3}$`)

// Descriptor is the decoded version descriptor.
type Descriptor struct {
	ProtocolVersion int
	DataVersionID   string
}

// ValidateID reports whether id is a well-formed data version id.
func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return errors.New(errors.CodeInvalidInput,
			fmt.Sprintf("data version id %q does not match YYYYMMDDhhmmss_NNN", id))
	}
	if _, err := time.Parse(idTimeLayout, id[:14]); err != nil {
		return errors.Wrap(err, errors.CodeInvalidInput,
			fmt.Sprintf("data version id %q has an invalid timestamp", id))
	}
	return nil
}

// Validate checks both fields.
func (d Descriptor) Validate() error {
	if d.ProtocolVersion < 0 {
		return errors.New(errors.CodeInvalidInput,
			fmt.Sprintf("negative protocol version %d", d.ProtocolVersion))
	}
	return ValidateID(d.DataVersionID)
}

// Timestamp returns the publication time encoded in the data version id.
func (d Descriptor) Timestamp() (time.Time, error) {
	if err := ValidateID(d.DataVersionID); err != nil {
		return time.Time{}, err
	}
	return time.Parse(idTimeLayout, d.DataVersionID[:14])
}

// Compare orders two data version ids: -1 if a is older than b, 0 if equal,
// +1 if newer. An empty id is older than any non-empty one.
func Compare(a, b string) int {
	switch {
	case a == b:
		return 0
	case a == "":
		return -1
	case b == "":
		return 1
	case a < b:
		return -1
	default:
		return 1
	}
}

// Parse decodes and validates a descriptor.
func Parse(data []byte) (*Descriptor, error) {
	if len(data) == 0 {
		return nil, errors.New(errors.CodeInvalidInput, "descriptor is empty")
	}

	var d Descriptor
	var sawID bool

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, errors.Wrap(protowire.ParseError(n), errors.CodeInvalidInput, "malformed descriptor tag")
		}
		data = data[n:]

		switch {
		case num == fieldProtocolVersion && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, errors.Wrap(protowire.ParseError(m), errors.CodeInvalidInput, "malformed protocol_version")
			}
			d.ProtocolVersion = int(int32(v))
			n = m
		case num == fieldDataVersionID && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(data)
			if m < 0 {
				return nil, errors.Wrap(protowire.ParseError(m), errors.CodeInvalidInput, "malformed data_version_id")
			}
			d.DataVersionID = v
			sawID = true
			n = m
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, errors.Wrap(protowire.ParseError(n), errors.CodeInvalidInput,
					fmt.Sprintf("malformed descriptor field %d", num))
			}
		}
		data = data[n:]
	}

	if !sawID {
		return nil, errors.New(errors.CodeInvalidInput, "descriptor has no data_version_id")
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Marshal encodes d. Zero-valued fields are omitted, as proto3 does.
func (d Descriptor) Marshal() []byte {
	var b []byte
	if d.ProtocolVersion != 0 {
		b = protowire.AppendTag(b, fieldProtocolVersion, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(d.ProtocolVersion)))
	}
	if d.DataVersionID != "" {
		b = protowire.AppendTag(b, fieldDataVersionID, protowire.BytesType)
		b = protowire.AppendString(b, d.DataVersionID)
	}
	return b
}
