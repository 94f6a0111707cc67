package od

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"reflect"
	"runtime"
	"strings"

	"gopkg.in/ini.v1"
)

// An Entry object is the main building block of an [ObjectDictionary].
// it holds an OD entry, i.e. an OD object at a specific index.
// An entry can be one of the following object types, defined by CiA 301
//   - VAR [Variable]
//   - DOMAIN [Variable]
//   - ARRAY [VariableList]
//   - RECORD [VariableList]
//
// If the Object is an ARRAY or a RECORD it can hold also multiple sub entries.
// sub entries are always of type VAR, for simplicity.
type Entry struct {
	logger *slog.Logger
	// The OD index e.g. x1006
	Index uint16
	// The OD name inside of EDS
	Name string
	// The OD object type, as cited above.
	ObjectType uint8
	// Either a [Variable] or a [VariableList] object
	object            any
	extension         *extension
	subEntriesNameMap map[string]uint8
}

// NewEntry builds an [Entry] bound to a single [Variable] or a
// [VariableList] (ARRAY/RECORD), named for diagnostics.
func NewEntry(logger *slog.Logger, index uint16, name string, object any, objectType uint8) *Entry {
	return &Entry{
		logger:            logger.With("index", fmt.Sprintf("x%x", index), "name", name),
		Index:             index,
		Name:              name,
		object:            object,
		ObjectType:        objectType,
		subEntriesNameMap: map[string]uint8{},
	}
}

// SubIndex resolves the [Variable] stored at a given subindex. subIndex may
// be a string (resolved against the EDS sub-entry names), an int, or a uint8.
func (entry *Entry) SubIndex(subIndex any) (*Variable, error) {
	if entry == nil {
		return nil, ErrIdxNotExist
	}
	switch object := entry.object.(type) {
	case *Variable:
		if subIndex != 0 && subIndex != "" && subIndex != uint8(0) {
			return nil, ErrSubNotExist
		}
		return object, nil
	case *VariableList:
		resolved, err := entry.resolveSubIndex(subIndex)
		if err != nil {
			return nil, err
		}
		return object.GetSubObject(resolved)
	default:
		// This is not normal
		return nil, ErrDevIncompat
	}
}

// resolveSubIndex normalizes the three accepted subIndex representations
// down to a uint8, looking names up against the entry's EDS-derived map.
func (entry *Entry) resolveSubIndex(subIndex any) (uint8, error) {
	switch sub := subIndex.(type) {
	case string:
		resolved, ok := entry.subEntriesNameMap[sub]
		if !ok {
			return 0, ErrSubNotExist
		}
		return resolved, nil
	case int:
		if sub >= 256 {
			return 0, ErrDevIncompat
		}
		return uint8(sub), nil
	case uint8:
		return sub, nil
	default:
		return 0, ErrDevIncompat
	}
}

// addSectionMember adds a sub-entry to an ARRAY/RECORD Entry while loading
// an EDS/DCF section; VAR entries have no members to add.
func (entry *Entry) addSectionMember(section *ini.Section, name string, nodeId uint8, subIndex uint8) error {
	record, ok := entry.object.(*VariableList)
	if !ok {
		return fmt.Errorf("cannot add member to type : %T", record)
	}
	variable, err := NewVariableFromSection(section, name, nodeId, entry.Index, subIndex)
	if err != nil {
		return err
	}
	switch entry.ObjectType {
	case ObjectTypeARRAY:
		record.Variables[subIndex] = variable
	case ObjectTypeRECORD:
		record.Variables = append(record.Variables, variable)
	default:
		return fmt.Errorf("add member not supported for ObjectType : %v", entry.ObjectType)
	}
	entry.subEntriesNameMap[name] = subIndex
	return nil
}

// AddExtension attaches custom read/write behaviour to an OD entry; absent
// an extension, access falls back to [ReadEntryDefault] and
// [WriteEntryDefault]. A handful of CiA-standard entries (x1005, x1006, ...)
// already register one in their owning package's init wiring.
func (entry *Entry) AddExtension(object any, read StreamReader, write StreamWriter) {
	entry.logger.Debug("added extension",
		"read", getFunctionName(read),
		"write", getFunctionName(write),
	)
	entry.extension = &extension{object: object, read: read, write: write}
}

// SubCount reports how many sub entries live under this Entry; a VAR
// entry always reports exactly one.
func (entry *Entry) SubCount() int {
	switch object := entry.object.(type) {
	case *Variable:
		return 1
	case *VariableList:
		return len(object.Variables)
	default:
		// This is not normal
		entry.logger.Error("invalid entry", "type", fmt.Sprintf("%T", entry))
		return 1
	}
}

func (entry *Entry) Extension() *extension {
	return entry.extension
}

func (entry *Entry) FlagPDOByte(subIndex byte) *uint8 {
	return &entry.extension.flagsPDO[subIndex>>3]
}

// Uint8 reads the sub entry's value as an UNSIGNED8.
func (entry *Entry) Uint8(subIndex uint8) (uint8, error) {
	v, err := entry.SubIndex(subIndex)
	if err != nil {
		return 0, err
	}
	return v.Uint8()
}

// Uint16 reads the sub entry's value as an UNSIGNED16.
func (entry *Entry) Uint16(subIndex uint8) (uint16, error) {
	v, err := entry.SubIndex(subIndex)
	if err != nil {
		return 0, err
	}
	return v.Uint16()
}

// Uint32 reads the sub entry's value as an UNSIGNED32.
func (entry *Entry) Uint32(subIndex uint8) (uint32, error) {
	v, err := entry.SubIndex(subIndex)
	if err != nil {
		return 0, err
	}
	return v.Uint32()
}

// Uint64 reads the sub entry's value as an UNSIGNED64.
func (entry *Entry) Uint64(subIndex uint8) (uint64, error) {
	v, err := entry.SubIndex(subIndex)
	if err != nil {
		return 0, err
	}
	return v.Uint64()
}

// PutUint8 writes an UNSIGNED8 to the sub entry. origin bypasses any
// registered extension when true.
func (entry *Entry) PutUint8(subIndex uint8, value uint8, origin bool) error {
	return entry.WriteExactly(subIndex, []byte{value}, origin)
}

// PutUint16 writes an UNSIGNED16 to the sub entry. origin bypasses any
// registered extension when true.
func (entry *Entry) PutUint16(subIndex uint8, value uint16, origin bool) error {
	return entry.putFixedWidth(subIndex, 2, origin, func(b []byte) { binary.LittleEndian.PutUint16(b, value) })
}

// PutUint32 writes an UNSIGNED32 to the sub entry. origin bypasses any
// registered extension when true.
func (entry *Entry) PutUint32(subIndex uint8, value uint32, origin bool) error {
	return entry.putFixedWidth(subIndex, 4, origin, func(b []byte) { binary.LittleEndian.PutUint32(b, value) })
}

// PutUint64 writes an UNSIGNED64 to the sub entry. origin bypasses any
// registered extension when true.
func (entry *Entry) PutUint64(subIndex uint8, value uint64, origin bool) error {
	return entry.putFixedWidth(subIndex, 8, origin, func(b []byte) { binary.LittleEndian.PutUint64(b, value) })
}

// putFixedWidth encodes a fixed-size little-endian value and writes it,
// shared by the multi-byte PutUintN helpers above.
func (entry *Entry) putFixedWidth(subIndex uint8, width int, origin bool, encode func([]byte)) error {
	b := make([]byte, width)
	encode(b)
	return entry.WriteExactly(subIndex, b, origin)
}

// ReadExactly reads exactly len(b) bytes from OD at (index,subIndex).
// origin controls whether a registered extension is bypassed.
func (entry *Entry) ReadExactly(subIndex uint8, b []byte, origin bool) error {
	streamer, err := NewStreamer(entry, subIndex, origin)
	if err != nil {
		return err
	}
	if int(streamer.DataLength) != len(b) {
		return ErrTypeMismatch
	}
	_, err = streamer.Read(b)
	return err
}

// WriteExactly writes exactly len(b) bytes to OD at (index,subIndex).
// origin controls whether a registered extension is bypassed.
func (entry *Entry) WriteExactly(subIndex uint8, b []byte, origin bool) error {
	streamer, err := NewStreamer(entry, subIndex, origin)
	if err != nil {
		return err
	}
	if int(streamer.DataLength) != len(b) {
		return ErrTypeMismatch
	}
	_, err = streamer.Write(b)
	return err
}

// getFunctionName returns the unqualified name of a function value, used
// only for extension debug logging.
func getFunctionName(i interface{}) string {
	fullName := runtime.FuncForPC(reflect.ValueOf(i).Pointer()).Name()
	parts := strings.Split(fullName, ".")
	return parts[len(parts)-1]
}
