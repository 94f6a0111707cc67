package od

// VariableList backs an ARRAY or RECORD object: an ordered collection of
// [Variable] sub entries addressed by subindex.
type VariableList struct {
	Variables         []*Variable
	objectType        uint8 // ObjectTypeARRAY or ObjectTypeRECORD
	subEntriesNameMap map[string]uint8
}

func newVariableList(length int, objectType uint8) *VariableList {
	return &VariableList{
		objectType:        objectType,
		Variables:         make([]*Variable, length),
		subEntriesNameMap: make(map[string]uint8),
	}
}

// NewRecord builds an empty RECORD VariableList; members are appended via
// AddSubObject as they are declared.
func NewRecord() *VariableList {
	return newVariableList(0, ObjectTypeRECORD)
}

// NewArray builds an ARRAY VariableList pre-sized to length slots, indexed
// directly by subindex.
func NewArray(length uint8) *VariableList {
	return newVariableList(int(length), ObjectTypeARRAY)
}

// GetSubObject looks up a sub entry by subindex. For an ARRAY the
// subindex is a direct slice index; for a RECORD the slice is searched
// since members may be sparse or declared out of order.
func (rec *VariableList) GetSubObject(subindex uint8) (*Variable, error) {
	if rec.objectType == ObjectTypeARRAY {
		if int(subindex) >= len(rec.Variables) {
			return nil, ErrSubNotExist
		}
		return rec.Variables[subindex], nil
	}
	for _, variable := range rec.Variables {
		if variable.SubIndex == subindex {
			return variable, nil
		}
	}
	return nil, ErrSubNotExist
}

// GetSubObjectByName resolves a sub entry by its EDS-declared name.
func (rec *VariableList) GetSubObjectByName(name string) (*Variable, error) {
	subindex, ok := rec.subEntriesNameMap[name]
	if !ok {
		return nil, ErrSubNotExist
	}
	return rec.GetSubObject(subindex)
}

// AddSubObject declares a new [Variable] member. For an ARRAY, subindex
// must already be a valid slot (the slice does not grow); for a RECORD,
// the member is appended and the list grows by one.
func (rec *VariableList) AddSubObject(
	subindex uint8,
	name string,
	datatype uint8,
	attribute uint8,
	value string,
) (*Variable, error) {
	variable, err := NewVariable(subindex, name, datatype, attribute, value)
	if err != nil {
		return nil, err
	}

	if rec.objectType == ObjectTypeARRAY {
		if int(subindex) >= len(rec.Variables) {
			_logger.Error("trying to add a sub-object to array but out of bounds",
				"subindex", subindex,
				"length", len(rec.Variables),
			)
			return nil, ErrSubNotExist
		}
		rec.subEntriesNameMap[name] = subindex
		rec.Variables[subindex] = variable
		return variable, nil
	}

	rec.subEntriesNameMap[name] = subindex
	rec.Variables = append(rec.Variables, variable)
	return variable, nil
}
