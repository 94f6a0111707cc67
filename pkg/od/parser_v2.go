package od

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// ParseV2 parses an EDS/DCF file into an [ObjectDictionary] using a
// single forward scan rather than a generic INI parser, ~10x faster than
// going through [Parse]. It trades that speed for a requirement:
// sections must appear in order, i.e. all of [1000]'s "sub" sections must
// appear before [1001] starts. Remaining bottlenecks: the section-header
// regexps, and the byte->string conversions needed to stash values until
// a section closes.
func ParseV2(file any, nodeId uint8) (*ObjectDictionary, error) {
	buf, err := v2Source(file)
	if err != nil {
		return nil, err
	}

	od := NewOD()
	parser := &v2Parser{od: od, nodeId: nodeId}

	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		lineRaw := scanner.Bytes()
		if len(lineRaw) < 2 {
			continue
		}
		line := trimSpaces(lineRaw)
		if len(line) == 0 || line[0] == ';' || line[0] == '#' {
			continue
		}
		if line[0] == '[' && line[len(line)-1] == ']' {
			if err := parser.enterSection(line); err != nil {
				return nil, err
			}
			continue
		}
		parser.assignField(line)
	}
	return od, nil
}

// v2Source normalizes ParseV2's accepted inputs (a path or raw bytes)
// into a single buffer.
func v2Source(file any) (*bytes.Buffer, error) {
	switch f := file.(type) {
	case string:
		fh, err := os.Open(f)
		if err != nil {
			return nil, err
		}
		defer fh.Close()
		buf := &bytes.Buffer{}
		if _, err := io.Copy(buf, fh); err != nil {
			return nil, err
		}
		return buf, nil
	case []byte:
		return bytes.NewBuffer(f), nil
	default:
		return nil, fmt.Errorf("unsupported type")
	}
}

// v2Fields accumulates the key/value pairs of the section currently
// being scanned, reset each time a new section header is seen.
type v2Fields struct {
	parameterName string
	defaultValue  string
	objectType    string
	pdoMapping    string
	lowLimit      string
	highLimit     string
	subNumber     string
	accessType    string
	dataType      string
}

func (f *v2Fields) reset() { *f = v2Fields{} }

func (f *v2Fields) assign(key, value string) {
	switch key {
	case "ParameterName":
		f.parameterName = value
	case "ObjectType":
		f.objectType = value
	case "SubNumber":
		f.subNumber = value
	case "AccessType":
		f.accessType = value
	case "DataType":
		f.dataType = value
	case "LowLimit":
		f.lowLimit = value
	case "HighLimit":
		f.highLimit = value
	case "DefaultValue":
		f.defaultValue = value
	case "PDOMapping":
		f.pdoMapping = value
	}
}

// v2Parser holds the scan state carried across lines: which OD entry
// (and, for ARRAY/RECORD, which sub entry) is currently being built.
type v2Parser struct {
	od     *ObjectDictionary
	nodeId uint8

	fields     v2Fields
	entry      *Entry
	vList      *VariableList
	isEntry    bool
	isSubEntry bool
	subIndex   uint8
}

// enterSection closes out whatever entry/sub entry was being built, then
// opens the new section named by line (the full "[...]" header).
func (p *v2Parser) enterSection(line []byte) error {
	if len(line) < 4 {
		return nil
	}
	if err := p.closeCurrentSection(); err != nil {
		return err
	}

	p.isEntry = false
	p.isSubEntry = false
	sectionBytes := line[1 : len(line)-1]
	subSection := sectionBytes[4:]

	switch {
	case len(subSection) < 4 && matchIdxRegExp.Match(sectionBytes):
		section := string(sectionBytes)
		idx, err := strconv.ParseUint(section, 16, 16)
		if err != nil {
			return err
		}
		p.isEntry = true
		p.entry = &Entry{
			Index:             uint16(idx),
			subEntriesNameMap: map[string]uint8{},
			logger:            p.od.logger,
		}
		p.od.entriesByIndexValue[uint16(idx)] = p.entry

	case matchSubidxRegExp.Match(sectionBytes):
		section := string(sectionBytes)
		// TODO: cross-check against p.entry to catch out-of-order sub sections.
		p.isSubEntry = true
		sidx, err := strconv.ParseUint(section[7:], 16, 8)
		if err != nil {
			return err
		}
		p.subIndex = uint8(sidx)
	}

	p.fields.reset()
	return nil
}

// closeCurrentSection finalizes the entry or sub entry accumulated in
// p.fields, if any was in progress, before a new section header is read.
func (p *v2Parser) closeCurrentSection() error {
	switch {
	case p.fields.parameterName != "" && p.isEntry:
		p.entry.Name = p.fields.parameterName
		p.od.entriesByIndexName[p.fields.parameterName] = p.entry
		vList, err := populateEntry(p.entry, p.nodeId, p.fields)
		if err != nil {
			return fmt.Errorf("failed to create new entry %v", err)
		}
		p.vList = vList

	case p.fields.parameterName != "" && p.isSubEntry:
		if err := populateSubEntry(p.entry, p.vList, p.nodeId, p.fields, p.subIndex); err != nil {
			return fmt.Errorf("failed to create sub entry %v", err)
		}
	}
	return nil
}

func (p *v2Parser) assignField(line []byte) {
	equalsIdx := bytes.IndexByte(line, '=')
	if equalsIdx == -1 {
		return
	}
	key := string(trimSpaces(line[:equalsIdx]))
	value := string(trimSpaces(line[equalsIdx+1:]))
	p.fields.assign(key, value)
}

// resolveNodeRelative strips a "$NODEID" marker from a DefaultValue
// string, returning the literal remainder and the node offset to apply
// (0 if the marker was absent).
func resolveNodeRelative(defaultValue string, nodeId uint8) (string, uint8) {
	if !strings.Contains(defaultValue, "$NODEID") {
		return defaultValue, 0
	}
	re := regexp.MustCompile(`\+?\$NODEID\+?`)
	return re.ReplaceAllString(defaultValue, ""), nodeId
}

func populateEntry(entry *Entry, nodeId uint8, f v2Fields) (*VariableList, error) {
	oType := uint8(7) // CiA default: VAR
	if f.objectType != "" {
		parsed, err := strconv.ParseUint(f.objectType, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("failed to parse object type %v", err)
		}
		oType = uint8(parsed)
	}
	entry.ObjectType = oType

	switch oType {
	case ObjectTypeVAR, ObjectTypeDOMAIN:
		if f.dataType == "" {
			return nil, fmt.Errorf("need data type")
		}
		dataTypeUint, err := strconv.ParseUint(f.dataType, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("failed to parse object type %v", err)
		}
		dType := uint8(dataTypeUint)
		attribute := EncodeAttribute(f.accessType, f.pdoMapping == "1", dType)

		defaultValue, offset := resolveNodeRelative(f.defaultValue, nodeId)
		variable := &Variable{
			Name:      f.parameterName,
			DataType:  dType,
			Attribute: attribute,
			SubIndex:  0,
		}
		variable.valueDefault, err = EncodeFromString(defaultValue, variable.DataType, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to parse 'DefaultValue' for x%x|x%x, because %v (datatype :x%x)", "", 0, err, variable.DataType)
		}
		variable.value = append([]byte(nil), variable.valueDefault...)
		entry.object = variable
		return nil, nil

	case ObjectTypeARRAY:
		sub, err := strconv.ParseUint(f.subNumber, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("failed to parse subnumber %v", err)
		}
		vList := NewArray(uint8(sub))
		entry.object = vList
		return vList, nil

	case ObjectTypeRECORD:
		vList := NewRecord()
		entry.object = vList
		return vList, nil

	default:
		return nil, fmt.Errorf("unknown object type %v", oType)
	}
}

func populateSubEntry(entry *Entry, vlist *VariableList, nodeId uint8, f v2Fields, subIndex uint8) error {
	if f.dataType == "" {
		return fmt.Errorf("need data type")
	}
	dataTypeUint, err := strconv.ParseUint(f.dataType, 0, 8)
	if err != nil {
		return fmt.Errorf("failed to parse object type %v", err)
	}
	dType := uint8(dataTypeUint)
	attribute := EncodeAttribute(f.accessType, f.pdoMapping == "1", dType)

	defaultValue, offset := resolveNodeRelative(f.defaultValue, nodeId)
	variable := &Variable{
		Name:      f.parameterName,
		DataType:  dType,
		Attribute: attribute,
		SubIndex:  subIndex,
	}
	variable.valueDefault, err = EncodeFromString(defaultValue, variable.DataType, offset)
	if err != nil {
		return fmt.Errorf("failed to parse 'DefaultValue' %v %v %v", err, defaultValue, variable.DataType)
	}
	variable.value = append([]byte(nil), variable.valueDefault...)

	switch entry.ObjectType {
	case ObjectTypeARRAY:
		vlist.Variables[subIndex] = variable
	case ObjectTypeRECORD:
		vlist.Variables = append(vlist.Variables, variable)
	default:
		return fmt.Errorf("add member not supported for ObjectType : %v", entry.ObjectType)
	}
	entry.subEntriesNameMap[f.parameterName] = subIndex
	return nil
}

// trimSpaces strips leading/trailing ' ' and '\t' without the allocation
// bytes.TrimSpace's unicode-aware scan would cost here.
func trimSpaces(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && (b[start] == ' ' || b[start] == '\t') {
		start++
	}
	for end > start && (b[end-1] == ' ' || b[end-1] == '\t') {
		end--
	}
	return b[start:end]
}
