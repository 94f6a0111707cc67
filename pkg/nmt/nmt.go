package nmt

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	canopen "github.com/libcanopen/canopen"
	"github.com/libcanopen/canopen/pkg/emergency"
	"github.com/libcanopen/canopen/pkg/od"
)

const (
	StartupToOperational    uint16 = 0x0100
	nmtErrOnBusOffHb        uint16 = 0x1000
	nmtErrOnErrReg          uint16 = 0x2000
	nmtErrToStopped         uint16 = 0x4000
	nmtErrFreeToOperational uint16 = 0x8000
)

const ServiceId = 0

// Possible NMT states
const (
	StateInitializing   uint8 = 0
	StatePreOperational uint8 = 127
	StateOperational    uint8 = 5
	StateStopped        uint8 = 4
	StateUnknown        uint8 = 255
)

var stateMap = map[uint8]string{
	StateInitializing:   "INITIALIZING",
	StatePreOperational: "PRE-OPERATIONAL",
	StateOperational:    "OPERATIONAL",
	StateStopped:        "STOPPED",
	StateUnknown:        "UNKNOWN",
}

func stateName(state uint8) string {
	if name, ok := stateMap[state]; ok {
		return name
	}
	return fmt.Sprintf("0x%02x", state)
}

// Global node state to be used
const (
	ResetNot  uint8 = 0
	ResetComm uint8 = 1
	ResetApp  uint8 = 2
	ResetQuit uint8 = 3
)

// Available NMT commands
// They can be broadcasted to all nodes or to individual nodes
type Command uint8

const (
	CommandEmpty               Command = 0
	CommandEnterOperational    Command = 1
	CommandEnterStopped        Command = 2
	CommandEnterPreOperational Command = 128
	CommandResetNode           Command = 129
	CommandResetCommunication  Command = 130
)

var CommandDescription = map[Command]string{
	CommandEnterOperational:    "ENTER-OPERATIONAL",
	CommandEnterStopped:        "ENTER-STOPPED",
	CommandEnterPreOperational: "ENTER-PREOPERATIONAL",
	CommandResetNode:           "RESET-NODE",
	CommandResetCommunication:  "RESET-COMMUNICATION",
}

// commandTargetState maps a command that changes the operating state
// directly; CommandResetNode/CommandResetCommunication instead set a
// pending reset and are handled separately.
var commandTargetState = map[Command]uint8{
	CommandEnterOperational:    StateOperational,
	CommandEnterStopped:        StateStopped,
	CommandEnterPreOperational: StatePreOperational,
}

// resetFor reports the pending-reset value a command implies, if any.
func resetFor(command Command) (uint8, bool) {
	switch command {
	case CommandResetNode:
		return ResetApp, true
	case CommandResetCommunication:
		return ResetComm, true
	default:
		return ResetNot, false
	}
}

// NMT object for processing NMT behaviour, slave or master
type NMT struct {
	bm                     *canopen.BusManager
	logger                 *slog.Logger
	mu                     sync.Mutex
	emcy                   *emergency.EMCY
	operatingState         uint8
	operatingStatePrev     uint8
	internalCommand        Command
	nodeId                 uint8
	control                uint16
	hearbeatProducerTimeUs uint32
	timer                  *time.Timer
	resetCommand           uint8
	nmtTxBuff              canopen.Frame
	hbTxBuff               canopen.Frame
	callbacks              map[uint64]func(nmtState uint8)
	callbackNextId         uint64
	rxCancel               func()
}

// Handle [NMT] related RX CAN frames
func (nmt *NMT) Handle(frame canopen.Frame) {
	nmt.mu.Lock()
	defer nmt.mu.Unlock()

	if frame.DLC != 2 {
		return
	}
	data := frame.Data
	command, nodeId := Command(data[0]), data[1]
	if nodeId == 0 || nodeId == nmt.nodeId {
		nmt.logger.Debug("processing NMT command", "command", command, "target", nodeId)
		nmt.processCommand(command)
	}
}

func (nmt *NMT) processCommand(command Command) {
	next := nmt.operatingState
	if target, ok := commandTargetState[command]; ok {
		next = target
	} else if reset, ok := resetFor(command); ok {
		nmt.resetCommand = reset
		nmt.logger.Debug("reset command should be handled by user", "command", CommandDescription[command])
	}

	if next != nmt.operatingState {
		nmt.setState(next)
	}
}

func (nmt *NMT) setState(newState uint8) {
	if newState == nmt.operatingState {
		return
	}
	nmt.logger.Info("nmt state changed", "previous", stateName(nmt.operatingState), "new", stateName(newState))
	nmt.operatingState = newState

	// Heartbeat is sent on three events: a hearbeat producer timeout
	// (cyclic), a state change, and startup.
	nmt.sendHeartbeat()

	for _, callback := range nmt.callbacks {
		callback(newState)
	}
}

// sendHeartbeat emits a heartbeat carrying the current nmt state and
// reschedules the producer timer, if active.
func (nmt *NMT) sendHeartbeat() {
	nmt.hbTxBuff.Data[0] = nmt.operatingState
	_ = nmt.send(nmt.hbTxBuff)
	nmt.logger.Debug("sending heartbeat", "period_us", nmt.hearbeatProducerTimeUs, "state", stateName(nmt.operatingState))

	if nmt.hearbeatProducerTimeUs == 0 {
		return
	}
	period := time.Duration(nmt.hearbeatProducerTimeUs) * time.Microsecond
	if nmt.timer == nil {
		nmt.timer = time.AfterFunc(period, nmt.heartbeatTimeout)
	} else {
		nmt.timer.Reset(period)
	}
}

func (nmt *NMT) heartbeatTimeout() {
	nmt.mu.Lock()
	defer nmt.mu.Unlock()
	nmt.sendHeartbeat()
}

func (nmt *NMT) send(frame canopen.Frame) error {
	if err := nmt.bm.Send(frame); err != nil {
		nmt.logger.Error("failed to send", "err", err)
		return err
	}
	return nil
}

// GetInternalState returns the current NMT state.
func (nmt *NMT) GetInternalState() uint8 {
	if nmt == nil {
		return StateInitializing
	}
	nmt.mu.Lock()
	defer nmt.mu.Unlock()
	return nmt.operatingState
}

// Get and clear pending reset command
func (nmt *NMT) GetPendingReset() uint8 {
	nmt.mu.Lock()
	defer nmt.mu.Unlock()
	cmd := nmt.resetCommand
	nmt.resetCommand = ResetNot
	return cmd
}

// Reset internal NMT state machine
func (nmt *NMT) Reset() {
	nmt.mu.Lock()
	nmt.operatingState = StateInitializing
	nmt.mu.Unlock()
	nmt.Start()
}

// Stop NMT processing
func (nmt *NMT) Stop() {
	nmt.mu.Lock()
	defer nmt.mu.Unlock()

	if nmt.timer != nil {
		nmt.timer.Stop()
	}
	nmt.callbacks = make(map[uint64]func(nmtState uint8))
	nmt.callbackNextId = 1
}

// Start NMT processing (this will trigger sending a heartbeat because equivalent to bootup)
func (nmt *NMT) Start() {
	nmt.mu.Lock()
	defer nmt.mu.Unlock()

	nmt.sendHeartbeat()
	if nmt.operatingState != StateInitializing {
		return
	}
	if nmt.control&StartupToOperational != 0 {
		nmt.operatingState = StateOperational
	} else {
		nmt.operatingState = StatePreOperational
	}
}

// Send NMT command to self, don't send on network
func (nmt *NMT) SendInternalCommand(command uint8) {
	nmt.mu.Lock()
	defer nmt.mu.Unlock()

	nmt.processCommand(Command(command))
}

// Send an NMT command to the network
func (nmt *NMT) SendCommand(command Command, nodeId uint8) error {
	nmt.mu.Lock()
	defer nmt.mu.Unlock()

	// Also apply to node if concerned
	if nodeId == 0 || nodeId == nmt.nodeId {
		nmt.processCommand(command)
	}
	nmt.nmtTxBuff.Data[0] = uint8(command)
	nmt.nmtTxBuff.Data[1] = nodeId
	return nmt.send(nmt.nmtTxBuff)
}

// Add a callback func to be called on NMT state change
// It returns a cancel func that can be used to remove the callback
func (nmt *NMT) AddStateChangeCallback(callback func(nmtState uint8)) (cancel func()) {
	nmt.mu.Lock()
	defer nmt.mu.Unlock()

	id := nmt.callbackNextId
	nmt.callbackNextId++
	nmt.callbacks[id] = callback

	return func() {
		nmt.mu.Lock()
		defer nmt.mu.Unlock()
		delete(nmt.callbacks, id)
	}
}

func NewNMT(
	bm *canopen.BusManager,
	logger *slog.Logger,
	emergency *emergency.EMCY,
	nodeId uint8,
	control uint16,
	firstHbTimeMs uint16,
	canIdNmtTx uint16,
	canIdNmtRx uint16,
	canIdHbTx uint16,
	entry1017 *od.Entry,
) (*NMT, error) {
	if entry1017 == nil || bm == nil {
		return nil, canopen.ErrIllegalArgument
	}
	if logger == nil {
		logger = slog.Default()
	}

	nmt := &NMT{
		bm:             bm,
		logger:         logger.With("service", "[NMT]"),
		operatingState: StateInitializing,
		nodeId:         nodeId,
		control:        control,
		emcy:           emergency,
		callbacks:      make(map[uint64]func(nmtState uint8)),
		callbackNextId: 1,
	}
	nmt.operatingStatePrev = nmt.operatingState

	hbProdTimeMs, err := entry1017.Uint16(0)
	if err != nil {
		nmt.logger.Error("reading producer heartbeat failed",
			"index", fmt.Sprintf("x%x", 0x1017),
			"subindex", 0,
			"error", err,
		)
		return nil, canopen.ErrOdParameters
	}
	nmt.hearbeatProducerTimeUs = uint32(hbProdTimeMs) * 1000
	entry1017.AddExtension(nmt, od.ReadEntryDefault, writeEntry1017)

	rxCancel, err := nmt.bm.Subscribe(uint32(canIdNmtRx), 0x7FF, false, nmt)
	nmt.rxCancel = rxCancel
	if err != nil {
		return nil, err
	}
	nmt.nmtTxBuff = canopen.NewFrame(uint32(canIdNmtTx), 0, 2)
	nmt.hbTxBuff = canopen.NewFrame(uint32(canIdHbTx), 0, 1)

	nmt.Start()

	return nmt, nil
}
