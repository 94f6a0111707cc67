package od

import (
	"encoding/binary"
	"math"
	"strconv"
)

// fixedWidth reports the wire width in bytes of a fixed-size CANopen
// primitive, or ok=false for variable-length / unsized types (strings,
// DOMAIN) which CheckSize skips entirely.
func fixedWidth(dataType uint8) (width int, ok bool) {
	switch dataType {
	case BOOLEAN, UNSIGNED8, INTEGER8:
		return 1, true
	case UNSIGNED16, INTEGER16:
		return 2, true
	case UNSIGNED32, INTEGER32, REAL32:
		return 4, true
	case UNSIGNED64, INTEGER64, REAL64:
		return 8, true
	default:
		return 0, false
	}
}

// CheckSize verifies a byte slice's length matches what dataType requires
// on the wire; types with no fixed width (strings, DOMAIN, ...) always pass.
func CheckSize(length int, dataType uint8) error {
	width, ok := fixedWidth(dataType)
	if !ok {
		return nil
	}
	switch {
	case length < width:
		return ErrDataShort
	case length > width:
		return ErrDataLong
	default:
		return nil
	}
}

// EncodeFromString parses an EDS-style textual value into its wire
// encoding for dataType, adding offset to numeric values (used for
// $NODEID-relative defaults).
func EncodeFromString(value string, datatype uint8, offset uint8) ([]byte, error) {
	if value == "" {
		value = "0"
	}

	switch datatype {
	case BOOLEAN, UNSIGNED8:
		parsed, err := strconv.ParseUint(value, 0, 8)
		if err != nil {
			return nil, err
		}
		return []byte{byte(uint8(parsed) + offset)}, nil

	case INTEGER8:
		parsed, err := strconv.ParseInt(value, 0, 8)
		if err != nil {
			return nil, err
		}
		return []byte{byte(parsed + int64(offset))}, nil

	case UNSIGNED16:
		parsed, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return nil, err
		}
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(parsed)+uint16(offset))
		return b, nil

	case INTEGER16:
		parsed, err := strconv.ParseInt(value, 0, 16)
		if err != nil {
			return nil, err
		}
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(parsed+int64(offset)))
		return b, nil

	case UNSIGNED32:
		parsed, err := strconv.ParseUint(value, 0, 32)
		if err != nil {
			return nil, err
		}
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(parsed)+uint32(offset))
		return b, nil

	case INTEGER32:
		parsed, err := strconv.ParseInt(value, 0, 32)
		if err != nil {
			return nil, err
		}
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(parsed+int64(offset)))
		return b, nil

	case REAL32:
		parsed, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return nil, err
		}
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(parsed)))
		return b, nil

	case UNSIGNED64:
		parsed, err := strconv.ParseUint(value, 0, 64)
		if err != nil {
			return nil, err
		}
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, parsed+uint64(offset))
		return b, nil

	case INTEGER64:
		parsed, err := strconv.ParseInt(value, 0, 64)
		if err != nil {
			return nil, err
		}
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, uint64(parsed+int64(offset)))
		return b, nil

	case REAL64:
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, err
		}
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, math.Float64bits(parsed))
		return b, nil

	case VISIBLE_STRING, OCTET_STRING:
		return []byte(value), nil

	case DOMAIN:
		return []byte{}, nil

	default:
		return nil, ErrTypeMismatch
	}
}

// EncodeFromTypeExact encodes a Go value of exact type (uint8, int16, ...)
// to its little-endian wire form, inferring the CANopen type from the Go
// type rather than from an explicit dataType argument.
func EncodeFromTypeExact(data any) ([]byte, error) {
	return EncodeFromType(data)
}

// EncodeFromTypeExactToBuffer writes data into buf in place, validating
// that data's Go type matches dataType's expected representation.
// Strings and byte slices shorter than buf are zero-padded; longer ones
// fail with ErrDataLong.
func EncodeFromTypeExactToBuffer(data any, dataType uint8, buf []byte) error {
	switch val := data.(type) {
	case bool:
		if dataType != BOOLEAN {
			return ErrTypeMismatch
		}
		buf[0] = 0
		if val {
			buf[0] = 1
		}
	case uint8:
		if dataType != UNSIGNED8 {
			return ErrTypeMismatch
		}
		buf[0] = val
	case int8:
		if dataType != INTEGER8 {
			return ErrTypeMismatch
		}
		buf[0] = byte(val)
	case uint16:
		if dataType != UNSIGNED16 {
			return ErrTypeMismatch
		}
		binary.LittleEndian.PutUint16(buf, val)
	case int16:
		if dataType != INTEGER16 {
			return ErrTypeMismatch
		}
		binary.LittleEndian.PutUint16(buf, uint16(val))
	case uint32:
		if dataType != UNSIGNED32 {
			return ErrTypeMismatch
		}
		binary.LittleEndian.PutUint32(buf, val)
	case int32:
		if dataType != INTEGER32 {
			return ErrTypeMismatch
		}
		binary.LittleEndian.PutUint32(buf, uint32(val))
	case uint64:
		if dataType != UNSIGNED64 {
			return ErrTypeMismatch
		}
		binary.LittleEndian.PutUint64(buf, val)
	case int64:
		if dataType != INTEGER64 {
			return ErrTypeMismatch
		}
		binary.LittleEndian.PutUint64(buf, uint64(val))
	case float32:
		if dataType != REAL32 {
			return ErrTypeMismatch
		}
		binary.LittleEndian.PutUint32(buf, math.Float32bits(val))
	case float64:
		if dataType != REAL64 {
			return ErrTypeMismatch
		}
		binary.LittleEndian.PutUint64(buf, math.Float64bits(val))
	case string:
		if dataType != VISIBLE_STRING {
			return ErrTypeMismatch
		}
		if len(val) > len(buf) {
			return ErrDataLong
		}
		clear(buf)
		copy(buf, val)
	case []byte:
		if len(val) > len(buf) {
			return ErrDataLong
		}
		clear(buf)
		copy(buf, val)
	default:
		return ErrTypeMismatch
	}
	return nil
}

// EncodeFromType encodes a Go value of exact type to its little-endian
// wire representation, without checking it against a declared dataType.
func EncodeFromType(data any) ([]byte, error) {
	switch val := data.(type) {
	case uint8:
		return []byte{val}, nil
	case int8:
		return []byte{byte(val)}, nil
	case uint16:
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, val)
		return b, nil
	case int16:
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(val))
		return b, nil
	case uint32:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, val)
		return b, nil
	case int32:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(val))
		return b, nil
	case uint64:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, val)
		return b, nil
	case int64:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, uint64(val))
		return b, nil
	case string:
		return []byte(val), nil
	case float32:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, math.Float32bits(val))
		return b, nil
	case float64:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, math.Float64bits(val))
		return b, nil
	case []byte:
		return val, nil
	default:
		return nil, ErrTypeMismatch
	}
}

// DecodeToType decodes data per dataType, returning string, int64, uint64
// or float64 depending on the CANopen type's signedness.
func DecodeToType(data []byte, dataType uint8) (any, error) {
	if err := CheckSize(len(data), dataType); err != nil {
		return nil, err
	}
	switch dataType {
	case BOOLEAN, UNSIGNED8:
		return uint64(data[0]), nil
	case INTEGER8:
		return int64(int8(data[0])), nil
	case UNSIGNED16:
		return uint64(binary.LittleEndian.Uint16(data)), nil
	case INTEGER16:
		return int64(int16(binary.LittleEndian.Uint16(data))), nil
	case UNSIGNED32:
		return uint64(binary.LittleEndian.Uint32(data)), nil
	case INTEGER32:
		return int64(int32(binary.LittleEndian.Uint32(data))), nil
	case UNSIGNED64:
		return binary.LittleEndian.Uint64(data), nil
	case INTEGER64:
		return int64(binary.LittleEndian.Uint64(data)), nil
	case REAL32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(data))), nil
	case REAL64:
		return math.Float64frombits(binary.LittleEndian.Uint64(data)), nil
	case VISIBLE_STRING, OCTET_STRING:
		return string(data), nil
	case DOMAIN:
		return int64(0), nil
	default:
		return nil, ErrTypeMismatch
	}
}

// DecodeToTypeExact decodes data per dataType, returning the exact Go
// type (uint8, int16, float32, ...) rather than DecodeToType's widened
// int64/uint64/float64.
func DecodeToTypeExact(data []byte, dataType uint8) (any, error) {
	if err := CheckSize(len(data), dataType); err != nil {
		return nil, err
	}
	switch dataType {
	case BOOLEAN, UNSIGNED8:
		return data[0], nil
	case INTEGER8:
		return int8(data[0]), nil
	case UNSIGNED16:
		return binary.LittleEndian.Uint16(data), nil
	case INTEGER16:
		return int16(binary.LittleEndian.Uint16(data)), nil
	case UNSIGNED32:
		return binary.LittleEndian.Uint32(data), nil
	case INTEGER32:
		return int32(binary.LittleEndian.Uint32(data)), nil
	case UNSIGNED64:
		return binary.LittleEndian.Uint64(data), nil
	case INTEGER64:
		return int64(binary.LittleEndian.Uint64(data)), nil
	case REAL32:
		return math.Float32frombits(binary.LittleEndian.Uint32(data)), nil
	case REAL64:
		return math.Float64frombits(binary.LittleEndian.Uint64(data)), nil
	case VISIBLE_STRING, OCTET_STRING:
		return string(data), nil
	case DOMAIN:
		return int64(0), nil
	default:
		return nil, ErrTypeMismatch
	}
}

// DecodeToString renders data per dataType as text in the given numeric
// base (ignored for strings).
func DecodeToString(data []byte, dataType uint8, base int) (string, error) {
	if err := CheckSize(len(data), dataType); err != nil {
		return "", err
	}
	switch dataType {
	case BOOLEAN, UNSIGNED8:
		return strconv.FormatUint(uint64(data[0]), base), nil
	case INTEGER8:
		return strconv.FormatInt(int64(int8(data[0])), base), nil
	case UNSIGNED16:
		return strconv.FormatUint(uint64(binary.LittleEndian.Uint16(data)), base), nil
	case INTEGER16:
		return strconv.FormatInt(int64(int16(binary.LittleEndian.Uint16(data))), base), nil
	case UNSIGNED32:
		return strconv.FormatUint(uint64(binary.LittleEndian.Uint32(data)), base), nil
	case INTEGER32:
		return strconv.FormatInt(int64(int32(binary.LittleEndian.Uint32(data))), base), nil
	case UNSIGNED64:
		return strconv.FormatUint(binary.LittleEndian.Uint64(data), base), nil
	case INTEGER64:
		return strconv.FormatInt(int64(binary.LittleEndian.Uint64(data)), base), nil
	case REAL32:
		return strconv.FormatFloat(float64(math.Float32frombits(binary.LittleEndian.Uint32(data))), 'f', -1, 64), nil
	case REAL64:
		return strconv.FormatFloat(math.Float64frombits(binary.LittleEndian.Uint64(data)), 'f', -1, 64), nil
	case VISIBLE_STRING, OCTET_STRING:
		return string(data), nil
	case DOMAIN:
		return "0", nil
	default:
		return "", ErrTypeMismatch
	}
}

// EncodeAttribute derives an OD attribute byte from an EDS AccessType
// string, its PDO-mappable flag, and its data type.
func EncodeAttribute(accessType string, pdoMapping bool, dataType uint8) uint8 {
	var attribute uint8
	switch accessType {
	case "ro", "const":
		attribute = AttributeSdoR
	case "wo":
		attribute = AttributeSdoW
	default:
		attribute = AttributeSdoRw
	}
	if pdoMapping {
		attribute |= AttributeTrpdo
	}
	if dataType == VISIBLE_STRING || dataType == OCTET_STRING {
		attribute |= AttributeStr
	}
	return attribute
}

// DecodeAttribute renders an OD attribute byte back to its EDS
// AccessType string (read/write wins over read-only/write-only).
func DecodeAttribute(attribute uint8) string {
	switch {
	case attribute&AttributeSdoRw == AttributeSdoRw:
		return "rw"
	case attribute&AttributeSdoR > 0:
		return "ro"
	case attribute&AttributeSdoW > 0:
		return "wo"
	default:
		return "rw"
	}
}
