package node

import "github.com/libcanopen/canopen/pkg/od"

// resolveLocal looks up the variable at (index,subindex) and reads its raw
// bytes straight out of the object dictionary, bypassing SDO.
func (node *BaseNode) resolveLocal(index any, subindex any) (*od.Variable, []byte, error) {
	entry := node.od.Index(index)
	odVar, err := entry.SubIndex(subindex)
	if err != nil {
		return nil, nil, err
	}
	buf := make([]byte, odVar.DataLength())
	err = entry.ReadExactly(odVar.SubIndex, buf, false)
	if err != nil {
		return nil, nil, err
	}
	return odVar, buf, nil
}

// Read entry via direct local OD access
// - index should be the same as accepted by [od.ObjectDictionary.Index]
// - subindex should be the same as accepted by [od.Entry.SubIndex]
// returns value as actual OD "base" datatype
// i.e. one of : uint64, int64, float64, string, []byte
func (node *BaseNode) ReadAny(index any, subindex any) (any, error) {
	odVar, buf, err := node.resolveLocal(index, subindex)
	if err != nil {
		return nil, err
	}
	return od.DecodeToType(buf, odVar.DataType)
}

// Read entry via direct local OD access
// - index should be the same as accepted by [od.ObjectDictionary.Index]
// - subindex should be the same as accepted by [od.Entry.SubIndex]
// returns the exact OD datatype :
// i.e. one of : uint8, ..., uint64, int8, ..., int64,
// float32, float64, string, []byte
func (node *BaseNode) ReadAnyExact(index any, subindex any) (any, error) {
	odVar, buf, err := node.resolveLocal(index, subindex)
	if err != nil {
		return nil, err
	}
	return od.DecodeToTypeExact(buf, odVar.DataType)
}

// Read entry via direct local OD access
// - index should be the same as accepted by [od.ObjectDictionary.Index]
// - subindex should be the same as accepted by [od.Entry.SubIndex]
// returns a copy of the OD value as raw []byte
func (node *BaseNode) ReadBytes(index any, subindex any) ([]byte, error) {
	_, buf, err := node.resolveLocal(index, subindex)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Read entry via direct local OD access
// - index should be the same as accepted by [od.ObjectDictionary.Index]
// - subindex should be the same as accepted by [od.Entry.SubIndex]
// returns as bool
func (node *BaseNode) ReadBool(index any, subindex any) (bool, error) {
	_, buf, err := node.resolveLocal(index, subindex)
	if err != nil {
		return false, err
	}
	if len(buf) == 0 {
		return false, od.ErrTypeMismatch
	}
	return buf[0] != 0, nil
}

// Read entry via direct local OD access
// - index should be the same as accepted by [od.ObjectDictionary.Index]
// - subindex should be the same as accepted by [od.Entry.SubIndex]
// returns uint8, uint16, uint32, uint64 value as uint64
func (node *BaseNode) ReadLocalUint(index any, subindex any) (value uint64, e error) {
	v, err := node.ReadAny(index, subindex)
	if err != nil {
		return 0, err
	}
	value, ok := v.(uint64)
	if !ok {
		return 0, od.ErrTypeMismatch
	}
	return value, nil
}

// Read entry via direct local OD access
// - index should be the same as accepted by [od.ObjectDictionary.Index]
// - subindex should be the same as accepted by [od.Entry.SubIndex]
// returns int8, int16, int32, int64 value as int64
func (node *BaseNode) ReadLocalInt(index any, subindex any) (value int64, e error) {
	v, err := node.ReadAny(index, subindex)
	if err != nil {
		return 0, err
	}
	value, ok := v.(int64)
	if !ok {
		return 0, od.ErrTypeMismatch
	}
	return value, nil
}

// Read entry via direct local OD access
// - index should be the same as accepted by [od.ObjectDictionary.Index]
// - subindex should be the same as accepted by [od.Entry.SubIndex]
// returns float32, float64 value as float64
func (node *BaseNode) ReadLocalFloat(index any, subindex any) (value float64, e error) {
	v, err := node.ReadAny(index, subindex)
	if err != nil {
		return 0, err
	}
	value, ok := v.(float64)
	if !ok {
		return 0, od.ErrTypeMismatch
	}
	return value, nil
}

// Read entry via direct local OD access
// - index should be the same as accepted by [od.ObjectDictionary.Index]
// - subindex should be the same as accepted by [od.Entry.SubIndex]
// returns value as string
func (node *BaseNode) ReadLocalString(index any, subindex any) (value string, e error) {
	v, err := node.ReadAny(index, subindex)
	if err != nil {
		return "", err
	}
	value, ok := v.(string)
	if !ok {
		return "", od.ErrTypeMismatch
	}
	return value, nil
}

// Read entry via direct local OD access
// - index should be the same as accepted by [od.ObjectDictionary.Index]
// - subindex should be the same as accepted by [od.Entry.SubIndex]
// returns value as uint8
func (node *BaseNode) ReadUint8(index any, subindex any) (value uint8, e error) {
	entry := node.od.Index(index)
	odVar, err := entry.SubIndex(subindex)
	if err != nil {
		return 0, err
	}
	return entry.Uint8(odVar.SubIndex)
}

// Read entry via direct local OD access
// - index should be the same as accepted by [od.ObjectDictionary.Index]
// - subindex should be the same as accepted by [od.Entry.SubIndex]
// returns value as uint16
func (node *BaseNode) ReadUint16(index any, subindex any) (value uint16, e error) {
	entry := node.od.Index(index)
	odVar, err := entry.SubIndex(subindex)
	if err != nil {
		return 0, err
	}
	return entry.Uint16(odVar.SubIndex)
}

// Read entry via direct local OD access
// - index should be the same as accepted by [od.ObjectDictionary.Index]
// - subindex should be the same as accepted by [od.Entry.SubIndex]
// returns value as uint32
func (node *BaseNode) ReadUint32(index any, subindex any) (value uint32, e error) {
	entry := node.od.Index(index)
	odVar, err := entry.SubIndex(subindex)
	if err != nil {
		return 0, err
	}
	return entry.Uint32(odVar.SubIndex)
}

// Read entry via direct local OD access
// - index should be the same as accepted by [od.ObjectDictionary.Index]
// - subindex should be the same as accepted by [od.Entry.SubIndex]
// returns value as uint64
func (node *BaseNode) ReadUint64(index any, subindex any) (value uint64, e error) {
	entry := node.od.Index(index)
	odVar, err := entry.SubIndex(subindex)
	if err != nil {
		return 0, err
	}
	return entry.Uint64(odVar.SubIndex)
}

// Read entry via direct local OD access
// - index should be the same as accepted by [od.ObjectDictionary.Index]
// - subindex should be the same as accepted by [od.Entry.SubIndex]
// returns value as int8
func (node *BaseNode) ReadInt8(index any, subindex any) (value int8, e error) {
	odVar, buf, err := node.resolveLocal(index, subindex)
	if err != nil {
		return 0, err
	}
	v, err := od.DecodeToTypeExact(buf, odVar.DataType)
	if err != nil {
		return 0, err
	}
	value, ok := v.(int8)
	if !ok {
		return 0, od.ErrTypeMismatch
	}
	return value, nil
}

// Read entry via direct local OD access
// - index should be the same as accepted by [od.ObjectDictionary.Index]
// - subindex should be the same as accepted by [od.Entry.SubIndex]
// returns value as int16
func (node *BaseNode) ReadInt16(index any, subindex any) (value int16, e error) {
	odVar, buf, err := node.resolveLocal(index, subindex)
	if err != nil {
		return 0, err
	}
	v, err := od.DecodeToTypeExact(buf, odVar.DataType)
	if err != nil {
		return 0, err
	}
	value, ok := v.(int16)
	if !ok {
		return 0, od.ErrTypeMismatch
	}
	return value, nil
}

// Read entry via direct local OD access
// - index should be the same as accepted by [od.ObjectDictionary.Index]
// - subindex should be the same as accepted by [od.Entry.SubIndex]
// returns value as int32
func (node *BaseNode) ReadInt32(index any, subindex any) (value int32, e error) {
	odVar, buf, err := node.resolveLocal(index, subindex)
	if err != nil {
		return 0, err
	}
	v, err := od.DecodeToTypeExact(buf, odVar.DataType)
	if err != nil {
		return 0, err
	}
	value, ok := v.(int32)
	if !ok {
		return 0, od.ErrTypeMismatch
	}
	return value, nil
}

// Read entry via direct local OD access
// - index should be the same as accepted by [od.ObjectDictionary.Index]
// - subindex should be the same as accepted by [od.Entry.SubIndex]
// returns value as int64
func (node *BaseNode) ReadInt64(index any, subindex any) (value int64, e error) {
	odVar, buf, err := node.resolveLocal(index, subindex)
	if err != nil {
		return 0, err
	}
	v, err := od.DecodeToTypeExact(buf, odVar.DataType)
	if err != nil {
		return 0, err
	}
	value, ok := v.(int64)
	if !ok {
		return 0, od.ErrTypeMismatch
	}
	return value, nil
}

// Read entry via direct local OD access
// - index should be the same as accepted by [od.ObjectDictionary.Index]
// - subindex should be the same as accepted by [od.Entry.SubIndex]
// returns value as float32
func (node *BaseNode) ReadFloat32(index any, subindex any) (value float32, e error) {
	odVar, buf, err := node.resolveLocal(index, subindex)
	if err != nil {
		return 0, err
	}
	v, err := od.DecodeToTypeExact(buf, odVar.DataType)
	if err != nil {
		return 0, err
	}
	value, ok := v.(float32)
	if !ok {
		return 0, od.ErrTypeMismatch
	}
	return value, nil
}

// Read entry via direct local OD access
// - index should be the same as accepted by [od.ObjectDictionary.Index]
// - subindex should be the same as accepted by [od.Entry.SubIndex]
// returns value as float64
func (node *BaseNode) ReadFloat64(index any, subindex any) (value float64, e error) {
	odVar, buf, err := node.resolveLocal(index, subindex)
	if err != nil {
		return 0, err
	}
	v, err := od.DecodeToTypeExact(buf, odVar.DataType)
	if err != nil {
		return 0, err
	}
	value, ok := v.(float64)
	if !ok {
		return 0, od.ErrTypeMismatch
	}
	return value, nil
}

// Write entry via direct local OD access
// - index should be the same as accepted by [od.ObjectDictionary.Index]
// - subindex should be the same as accepted by [od.Entry.SubIndex]
// write any datatype i.e. one of : uint8, ..., uint64, int8, ..., int64,
// float32, float64, string, []byte
func (node *BaseNode) WriteAnyExact(index any, subindex any, value any) error {
	entry := node.od.Index(index)
	odVar, err := entry.SubIndex(subindex)
	if err != nil {
		return err
	}
	buf := make([]byte, odVar.DataLength())
	err = od.EncodeFromTypeExactToBuffer(value, odVar.DataType, buf)
	if err != nil {
		return err
	}
	return entry.WriteExactly(odVar.SubIndex, buf, false)
}

// Write entry via direct local OD access
// - index should be the same as accepted by [od.ObjectDictionary.Index]
// - subindex should be the same as accepted by [od.Entry.SubIndex]
// write data as raw bytes, only length will be checked, no assumtions
// are made.
func (node *BaseNode) WriteBytes(index any, subindex any, value []byte) error {
	entry := node.od.Index(index)
	odVar, err := entry.SubIndex(subindex)
	if err != nil {
		return err
	}
	return entry.WriteExactly(odVar.SubIndex, value, false)
}
