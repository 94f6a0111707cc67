package od

import (
	"fmt"
	"sort"
	"strconv"

	"gopkg.in/ini.v1"
)

// ExportEDS writes odict out as an EDS file. With defaultValues set, the
// object dictionary's original backing INI file is copied verbatim;
// otherwise a fresh EDS is built reflecting current values (e.g. after a
// PDO mapping change). The result is not guaranteed byte-compliant with
// CiA 306 but is sufficient for this library to re-parse.
func ExportEDS(odict *ObjectDictionary, defaultValues bool, filename string) error {
	if defaultValues {
		return odict.iniFile.SaveTo(filename)
	}

	eds := ini.Empty()
	for _, index := range sortedIndices(odict) {
		entry := odict.entriesByIndexValue[index]
		if err := writeEntrySections(eds, index, entry); err != nil {
			return err
		}
	}
	return eds.SaveTo(filename)
}

// sortedIndices returns the object dictionary's indices in ascending
// order, so the exported EDS reads low-to-high like a hand-written one.
func sortedIndices(odict *ObjectDictionary) []uint16 {
	indices := make([]uint16, 0, len(odict.entriesByIndexValue))
	for index := range odict.entriesByIndexValue {
		indices = append(indices, index)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	return indices
}

// writeEntrySections emits the INI section(s) for a single OD entry: one
// section for a plain VAR/DOMAIN, or a header section plus one "subN"
// section per member for an ARRAY/RECORD.
func writeEntrySections(eds *ini.File, index uint16, entry *Entry) error {
	indexStr := strconv.FormatUint(uint64(index), 16)

	if entry.SubCount() == 1 {
		variable, ok := entry.object.(*Variable)
		if !ok {
			return fmt.Errorf("[OD] expecting a variable type at %x", index)
		}
		section, err := eds.NewSection(indexStr)
		if err != nil {
			return err
		}
		if err := populateSection(section, index, variable, entry.ObjectType); err != nil {
			return fmt.Errorf("[OD] error populating section index at %x : %v", index, err)
		}
		return nil
	}

	variables, ok := entry.object.(*VariableList)
	if !ok {
		return fmt.Errorf("[OD] expecting a variable list type at %x", index)
	}
	header, err := eds.NewSection(indexStr)
	if err != nil {
		return err
	}
	if err := populateHeaderSection(header, entry.Name, variables.objectType, uint8(entry.SubCount())); err != nil {
		return err
	}
	for i, variable := range variables.Variables {
		sub, err := eds.NewSection(indexStr + "sub" + strconv.FormatUint(uint64(i), 16))
		if err != nil {
			return err
		}
		if err := populateSection(sub, index, variable, entry.ObjectType); err != nil {
			return fmt.Errorf("[OD] error populating section index at %x|%x : %v", index, i, err)
		}
	}
	return nil
}

// populateSection fills in an EDS section describing a single Variable.
func populateSection(section *ini.Section, index uint16, variable *Variable, objectType uint8) error {
	for _, kv := range [][2]string{
		{"ParameterName", variable.Name},
		{"ObjectType", "0x" + strconv.FormatUint(uint64(objectType), 16)},
		{"DataType", "0x" + strconv.FormatUint(uint64(variable.DataType), 16)},
		{"AccessType", DecodeAttribute(variable.Attribute)},
	} {
		if _, err := section.NewKey(kv[0], kv[1]); err != nil {
			return err
		}
	}

	base := 10
	prefix := ""
	if index >= AreaCommunicationProfileStart && index <= AreaCommunicationProfileEnd {
		// Communication-profile values read more naturally in hex.
		base, prefix = 16, "0x"
	}
	decoded, err := DecodeToString(variable.value, variable.DataType, base)
	if err != nil {
		return err
	}
	_, err = section.NewKey("DefaultValue", prefix+decoded)
	return err
}

// populateHeaderSection fills in the header section of an ARRAY/RECORD
// entry, e.g.:
//
//	[1A03]
//	ParameterName=TPDO mapping parameter
//	ObjectType=0x9
//	SubNumber=0x9
func populateHeaderSection(section *ini.Section, name string, objectType uint8, count uint8) error {
	for _, kv := range [][2]string{
		{"ParameterName", name},
		{"ObjectType", "0x" + strconv.FormatUint(uint64(objectType), 16)},
		{"SubNumber", "0x" + strconv.FormatUint(uint64(count), 16)},
	} {
		if _, err := section.NewKey(kv[0], kv[1]); err != nil {
			return err
		}
	}
	return nil
}
