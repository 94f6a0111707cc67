// Package can re-exports the root canopen package's wire types under a
// shorter name for driver backends, and hosts the interface registry
// concrete backends (socketcan, virtual, ...) register themselves into.
package can

import (
	"fmt"

	canopen "github.com/libcanopen/canopen"
)

// Frame, Bus and FrameListener are aliases onto the canopen package's own
// types so that a backend built against "can." and code built against
// "canopen." interoperate without adapters.
type (
	Frame         = canopen.Frame
	Bus           = canopen.Bus
	FrameListener = canopen.FrameListener
)

// NewFrame builds a classic frame; see canopen.NewFrame.
func NewFrame(id uint32, flags uint8, dlc uint8) Frame {
	return canopen.NewFrame(id, flags, dlc)
}

const (
	CanRtrFlag uint32 = 0x40000000
	CanSffMask uint32 = 0x000007FF
)

// CAN bus error bits, as reported by BusManager.Error.
const (
	CanErrorTxWarning   = 0x0001
	CanErrorTxPassive   = 0x0002
	CanErrorTxBusOff    = 0x0004
	CanErrorTxOverflow  = 0x0008
	CanErrorPdoLate     = 0x0080
	CanErrorRxWarning   = 0x0100
	CanErrorRxPassive   = 0x0200
	CanErrorRxOverflow  = 0x0800
	CanErrorWarnPassive = 0x0303
)

type NewInterfaceFunc func(channel string) (canopen.Bus, error)

var AvailableInterfaces = make(map[string]NewInterfaceFunc)

// ImplementedInterfaces lists the backends vendored alongside this package.
var ImplementedInterfaces = []string{
	"socketcan",
	"virtual",
}

// RegisterInterface makes a backend constructor available under name.
// Concrete backends call this from an init() function.
func RegisterInterface(interfaceType string, newInterface NewInterfaceFunc) {
	AvailableInterfaces[interfaceType] = newInterface
}

// NewBus constructs a Bus from a registered backend.
func NewBus(canInterface string, channel string) (Bus, error) {
	create, ok := AvailableInterfaces[canInterface]
	if !ok {
		return nil, fmt.Errorf("can: unregistered interface %q", canInterface)
	}
	return create(channel)
}
