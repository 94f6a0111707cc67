package pdo

import (
	"context"
	"fmt"
	"log/slog"

	canopen "github.com/libcanopen/canopen"
	"github.com/libcanopen/canopen/pkg/emergency"
	"github.com/libcanopen/canopen/pkg/od"
)

const (
	MaxPdoLength    uint8 = 8
	BufferCountRpdo uint8 = 2
	MinPdoNumber          = uint16(1)
	MaxPdoNumber          = uint16(512)
	MinRpdoNumber         = MinPdoNumber
	MaxRpdoNumber         = uint16(256)
	MinTpdoNumber         = MaxRpdoNumber + 1
	MaxTpdoNumber         = MaxPdoNumber
)

const (
	TransmissionTypeSyncAcyclic = 0    // synchronous (acyclic)
	TransmissionTypeSync1       = 1    // synchronous (cyclic every sync)
	TransmissionTypeSync240     = 0xF0 // synchronous (cyclic every 240-th sync)
	TransmissionTypeSyncEventLo = 0xFE // event-driven, lower value (manufacturer specific)
	TransmissionTypeSyncEventHi = 0xFF // event-driven, higher value (device profile and application profile specific)
)

// Common to TPDO & RPDO
type PDOCommon struct {
	od             *od.ObjectDictionary
	logger         *slog.Logger
	emcy           *emergency.EMCY
	streamers      [od.MaxMappedEntriesPdo]od.Streamer
	Valid          bool
	dataLength     uint32
	nbMapped       uint8
	flagPDOByte    [od.FlagsPdoSize]*byte
	flagPDOBitmask [od.FlagsPdoSize]byte
	IsRPDO         bool
	predefinedId   uint16
	configuredId   uint16
}

func (base *PDOCommon) attribute() uint8 {
	if base.IsRPDO {
		return od.AttributeRpdo
	}
	return od.AttributeTpdo
}

func (base *PDOCommon) Type() string {
	if base.IsRPDO {
		return "RPDO"
	}
	return "TPDO"
}

// logMapping logs at the given level with the index/subindex pair every
// mapping-related message in this file carries, plus any extra fields.
func (pdo *PDOCommon) logMapping(level slog.Level, msg string, index uint16, subIndex byte, extra ...any) {
	fields := []any{"index", fmt.Sprintf("x%x", index), "subindex", fmt.Sprintf("x%x", subIndex)}
	fields = append(fields, extra...)
	pdo.logger.Log(context.Background(), level, msg, fields...)
}

// readOptionalUint16 reads an optional sub-entry, warning and returning
// the zero value on failure instead of aborting construction.
func readOptionalUint16(entry *od.Entry, subIndex uint8, logger *slog.Logger, warnMsg string) uint16 {
	value, err := entry.Uint16(subIndex)
	if err != nil {
		logger.Warn(warnMsg, "index", fmt.Sprintf("x%x", entry.Index), "subindex", subIndex, "error", err)
	}
	return value
}

// readOptionalUint8 is [readOptionalUint16] for byte-sized sub-entries.
func readOptionalUint8(entry *od.Entry, subIndex uint8, logger *slog.Logger, warnMsg string) uint8 {
	value, err := entry.Uint8(subIndex)
	if err != nil {
		logger.Warn(warnMsg, "index", fmt.Sprintf("x%x", entry.Index), "subindex", subIndex, "error", err)
	}
	return value
}

// configureCobId reads and validates the COB-ID sub-entry shared by the
// RPDO (0x14xx) and TPDO (0x18xx) communication parameter records,
// reporting a wrong-mapping emergency when the mapping itself was
// invalid. It sets pdo.Valid and returns the resolved CAN-ID, or 0 if
// the PDO should stay disabled.
func (pdo *PDOCommon) configureCobId(entry *od.Entry, predefinedIdent uint16, erroneousMap uint32) (uint16, error) {
	cobId, err := entry.Uint32(od.SubPdoCobId)
	if err != nil {
		pdo.logMapping(slog.LevelError, "reading cob id failed", entry.Index, od.SubPdoCobId, "error", err)
		return 0, canopen.ErrOdParameters
	}

	valid := (cobId & 0x80000000) == 0
	canId := uint16(cobId & 0x7FF)
	if valid && (pdo.nbMapped == 0 || canId == 0) {
		valid = false
		if erroneousMap == 0 {
			erroneousMap = 1
		}
	}
	if erroneousMap != 0 {
		errorInfo := erroneousMap
		if erroneousMap == 1 {
			errorInfo = cobId
		}
		pdo.emcy.ErrorReport(emergency.EmPDOWrongMapping, emergency.ErrProtocolError, errorInfo)
	}
	if !valid {
		canId = 0
	}
	// If default canId is stored in od add node id
	if canId != 0 && canId == (predefinedIdent&0xFF80) {
		canId = predefinedIdent
	}
	pdo.Valid = valid
	return canId, nil
}

// Configure a PDO map (this is done on startup and can also be done dynamically when writing to special objects)
func (pdo *PDOCommon) configureMap(mapParam uint32, mapIndex uint32, isRPDO bool) error {
	index := uint16(mapParam >> 16)
	subIndex := byte(mapParam >> 8)
	mappedLengthBits := byte(mapParam)
	mappedLength := mappedLengthBits >> 3
	streamer := &pdo.streamers[mapIndex]

	// Total PDO length should be smaller than the max possible size
	if mappedLength > MaxPdoLength {
		pdo.logMapping(slog.LevelWarn, "mapped parameter is too long", index, subIndex, "length", mappedLength)
		return od.ErrMapLen
	}
	// Dummy entries map to "fake" entries
	if index < 0x20 && subIndex == 0 {
		streamer.ResetData(uint32(mappedLength), uint32(mappedLength))
		streamer.SetWriter(WriteDummy)
		streamer.SetReader(ReadDummy)
		return nil
	}
	// Get entry in OD
	entry := pdo.od.Index(index)
	streamerCopy, err := od.NewStreamer(entry, subIndex, false)
	if err != nil {
		pdo.logMapping(slog.LevelWarn, "mapping failed", index, subIndex, "error", err)
		return err
	}

	// Check correct attribute, length, and alignment
	switch {
	case !streamerCopy.HasAttribute(pdo.attribute()):
		pdo.logMapping(slog.LevelWarn, "mapping failed : attribute error", index, subIndex)
		return od.ErrNoMap
	case (mappedLengthBits & 0x07) != 0:
		pdo.logMapping(slog.LevelWarn, "mapping failed : alignment error", index, subIndex)
		return od.ErrNoMap
	case streamerCopy.DataLength < uint32(mappedLength):
		pdo.logMapping(slog.LevelWarn, "mapping failed : length error", index, subIndex)
		return od.ErrNoMap
	default:
	}
	streamer.SetStream(streamerCopy.Stream)
	streamer.SetReader(streamerCopy.Reader())
	streamer.SetWriter(streamerCopy.Writer())
	streamer.DataOffset = uint32(mappedLength)

	if isRPDO {
		return nil
	}
	if uint32(subIndex) < (uint32(od.FlagsPdoSize)*8) && entry.Extension() != nil {
		pdo.flagPDOByte[mapIndex] = entry.FlagPDOByte(subIndex)
		pdo.flagPDOBitmask[mapIndex] = 1 << (subIndex & 0x07)
	} else {
		pdo.flagPDOByte[mapIndex] = nil
	}
	pdo.logMapping(slog.LevelInfo, "update mapping successful", index, subIndex)
	return nil
}

// Create and initialize a common PDO object
func NewPDO(
	odict *od.ObjectDictionary,
	logger *slog.Logger,
	entry *od.Entry,
	isRPDO bool,
	em *emergency.EMCY,
	erroneoursMap *uint32,
) (*PDOCommon, error) {
	pdo := &PDOCommon{od: odict, emcy: em, IsRPDO: isRPDO}

	if logger == nil {
		logger = slog.Default()
	}
	pdo.logger = logger.With("service", pdo.Type())

	// Get number of mapped objects
	mappedObjectsCount, err := entry.Uint8(0)
	if err != nil {
		pdo.logger.Error("reading nb mapped objects failed",
			"index", fmt.Sprintf("x%x", entry.Index),
			"subindex", fmt.Sprintf("x%x", 0),
			"error", err,
		)
		return nil, canopen.ErrOdParameters
	}

	pdoDataLength := uint32(0)

	// Iterate over all the mapping objects
	for i := range pdo.streamers {
		streamer := &pdo.streamers[i]
		mapParam, err := entry.Uint32(uint8(i) + 1)
		if err == od.ErrSubNotExist {
			continue
		}
		if err != nil {
			pdo.logger.Error("reading mapped objects failed",
				"index", fmt.Sprintf("x%x", entry.Index),
				"subindex", fmt.Sprintf("x%x", i+1),
				"error", err,
			)
			return nil, canopen.ErrOdParameters
		}
		if err := pdo.configureMap(mapParam, uint32(i), isRPDO); err != nil {
			// Init failed, but not critical
			streamer.ResetData(0, 0xFF)
			if *erroneoursMap == 0 {
				*erroneoursMap = mapParam
			}
		}
		if i < int(mappedObjectsCount) {
			pdoDataLength += streamer.DataOffset
		}
	}

	if pdoDataLength > uint32(MaxPdoLength) || (pdoDataLength == 0 && mappedObjectsCount > 0) {
		if *erroneoursMap == 0 {
			*erroneoursMap = 1
		}
	}
	if *erroneoursMap == 0 {
		pdo.dataLength = pdoDataLength
		pdo.nbMapped = mappedObjectsCount
	}
	return pdo, nil
}
