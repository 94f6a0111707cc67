package od

import (
	"errors"
	"fmt"
)

var ErrEdsFormat = errors.New("invalid EDS format")

// ODR is the abort/return code family used internally by object dictionary
// accessors before being translated to an SDO abort code by pkg/sdo.
type ODR int8

const (
	ErrPartial      ODR = -1
	ErrNo           ODR = 0
	ErrOutOfMem     ODR = 1
	ErrUnsuppAccess ODR = 2
	ErrWriteOnly    ODR = 3
	ErrReadonly     ODR = 4
	ErrIdxNotExist  ODR = 5
	ErrNoMap        ODR = 6
	ErrMapLen       ODR = 7
	ErrParIncompat  ODR = 8
	ErrDevIncompat  ODR = 9
	ErrHw           ODR = 10
	ErrTypeMismatch ODR = 11
	ErrDataLong     ODR = 12
	ErrDataShort    ODR = 13
	ErrSubNotExist  ODR = 14
	ErrInvalidValue ODR = 15
	ErrValueHigh    ODR = 16
	ErrValueLow     ODR = 17
	ErrMaxLessMin   ODR = 18
	ErrNoRessource  ODR = 19
	ErrGeneral      ODR = 20
	ErrDataTransf   ODR = 21
	ErrDataLocCtrl  ODR = 22
	ErrDataDevState ODR = 23
	ErrOdMissing    ODR = 24
	ErrNoData       ODR = 25
	ErrCount        ODR = 26
)

// Error satisfies the error interface by switching over the known codes
// rather than keying a lookup table; unrecognized values (there should be
// none, since ODR is a closed set) fall through to a generic message.
func (odr ODR) Error() string {
	return fmt.Sprintf("OD error %d (%s)", int(odr), odr.text())
}

func (odr ODR) text() string {
	switch odr {
	case ErrPartial:
		return "Incomplete transfer"
	case ErrNo:
		return "No error"
	case ErrOutOfMem:
		return "Out of memory"
	case ErrUnsuppAccess:
		return "Unsupported access to an object"
	case ErrWriteOnly:
		return "Attempt to read a write only object"
	case ErrReadonly:
		return "Attempt to write a read only object"
	case ErrIdxNotExist:
		return "Object does not exist in the object dictionary"
	case ErrNoMap:
		return "Object cannot be mapped to the PDO"
	case ErrMapLen:
		return "Num and len of object to be mapped exceeds PDO len"
	case ErrParIncompat:
		return "General parameter incompatibility reasons"
	case ErrDevIncompat:
		return "General internal incompatibility in device"
	case ErrHw:
		return "Access failed due to hardware error"
	case ErrTypeMismatch:
		return "Data type does not match, length does not match"
	case ErrDataLong:
		return "Data type does not match, length too high"
	case ErrDataShort:
		return "Data type does not match, length too short"
	case ErrSubNotExist:
		return "Sub index does not exist"
	case ErrInvalidValue:
		return "Invalid value for parameter (download only)"
	case ErrValueHigh:
		return "Value range of parameter written too high"
	case ErrValueLow:
		return "Value range of parameter written too low"
	case ErrMaxLessMin:
		return "Maximum value is less than minimum value."
	case ErrNoRessource:
		return "Resource not available: SDO connection"
	case ErrGeneral:
		return "General error"
	case ErrDataTransf:
		return "Data cannot be transferred or stored to application"
	case ErrDataLocCtrl:
		return "Data cannot be transferred because of local control"
	case ErrDataDevState:
		return "Data cannot be tran. because of present device state"
	case ErrOdMissing:
		return "Object dict. not present or dynamic generation fails"
	case ErrNoData:
		return "No data available"
	default:
		return "unknown"
	}
}

const (
	MaxMappedEntriesPdo = uint8(8)
	FlagsPdoSize        = uint8(32)
)

// Object dictionary object attribute bits (CiA 301 table 65).
const (
	AttributeSdoR   uint8 = 0x01 // SDO server may read from the variable
	AttributeSdoW   uint8 = 0x02 // SDO server may write to the variable
	AttributeSdoRw  uint8 = AttributeSdoR | AttributeSdoW
	AttributeTpdo   uint8 = 0x04 // Variable is mappable into TPDO (can be read)
	AttributeRpdo   uint8 = 0x08 // Variable is mappable into RPDO (can be written)
	AttributeTrpdo  uint8 = AttributeTpdo | AttributeRpdo
	AttributeTsrdo  uint8 = 0x10 // Variable is mappable into transmitting SRDO
	AttributeRsrdo  uint8 = 0x20 // Variable is mappable into receiving SRDO
	AttributeTrsrdo uint8 = AttributeTsrdo | AttributeRsrdo
	AttributeMb     uint8 = 0x40 // Variable is multi-byte ((u)int16_t to (u)int64_t)
	// AttributeStr allows a write shorter than the declared variable size;
	// the remainder is zero-filled. Used for VISIBLE_STRING/UNICODE_STRING.
	AttributeStr uint8 = 0x80
)

// Standard CANopen object entries index.
const (
	EntryDeviceType                  uint16 = 0x1000
	EntryErrorRegister               uint16 = 0x1001
	EntryManufacturerStatusRegister  uint16 = 0x1003
	EntryCobIdSYNC                   uint16 = 0x1005
	EntryCommunicationCyclePeriod    uint16 = 0x1006
	EntrySynchronousWindowLength     uint16 = 0x1007
	EntryManufacturerDeviceName      uint16 = 0x1008
	EntryManufacturerHardwareVersion uint16 = 0x1009
	EntryManufacturerSoftwareVersion uint16 = 0x100A
	EntryStoreParameters             uint16 = 0x1010
	EntryRestoreDefaultParameters    uint16 = 0x1011
	EntryCobIdTIME                   uint16 = 0x1012
	EntryHighResTimestamp            uint16 = 0x1013
	EntryCobIdEMCY                   uint16 = 0x1014
	EntryInhibitTimeEMCY             uint16 = 0x1015
	EntryConsumerHeartbeatTime       uint16 = 0x1016
	EntryProducerHeartbeatTime       uint16 = 0x1017
	EntryIdentityObject              uint16 = 0x1018
	EntrySynchronousCounterOverflow  uint16 = 0x1019
	EntryStoreEDS                    uint16 = 0x1021
	EntryStorageFormat               uint16 = 0x1022
	EntryRPDOCommunicationStart      uint16 = 0x1400
	EntryRPDOCommunicationEnd        uint16 = 0x15FF
	EntryRPDOMappingStart            uint16 = 0x1600
	EntryRPDOMappingEnd              uint16 = 0x17FF
	EntryTPDOCommunicationStart      uint16 = 0x1800
	EntryTPDOCommunicationEnd        uint16 = 0x19FF
	EntryTPDOMappingStart            uint16 = 0x1A00
	EntryTPDOMappingEnd              uint16 = 0x1BFF
)

// Standard CANopen object areas.
const (
	AreaCommunicationProfileStart        uint16 = 0x1000
	AreaCommunicationProfileEnd          uint16 = 0x1FFF
	AreaManufacturerSpecificProfileStart uint16 = 0x2000
	AreaManufacturerSpecificProfileEnd   uint16 = 0x5FFF
	AreaDeviceProfileStart               uint16 = 0x6000
	AreaDeviceProfileEnd                 uint16 = 0x9FFF
	AreaInterfaceProfileStart            uint16 = 0xA000
	AreaInterfaceProfileEnd              uint16 = 0xBFFF
	AreaFutureUseStart                   uint16 = 0xC000
	AreaFutureUseEnd                     uint16 = 0xFFFF
)

// EDS/DCF "Store EDS" encoding marker (object 1021 subindex 0, CiA 306 §4.2).
// Both the plain-ASCII form and the zipped form (a zip archive holding one
// EDS file) are accepted by the parser and served by pkg/node.
const (
	FormatEDSAscii  = 0
	FormatEDSZipped = 0x90
)
