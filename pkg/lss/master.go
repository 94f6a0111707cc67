package lss

import (
	"encoding/binary"
	"log/slog"
	"sync"
	"time"

	canopen "github.com/libcanopen/canopen"
)

var DefaultTimeout = 1000 * time.Millisecond

type LSSMaster struct {
	*canopen.BusManager
	logger  *slog.Logger
	mu      sync.Mutex
	rx      chan LSSMessage
	timeout time.Duration
}

// Handle [LSSMaster] related RX CAN frames
func (l *LSSMaster) Handle(frame canopen.Frame) {
	if frame.DLC != 8 {
		return
	}
	select {
	case l.rx <- (LSSMessage{raw: frame.Data}):
	default:
		l.logger.Warn("dropped LSS slave RX frame")
	}
}

// WaitForResponse waits for an answer from the slave carrying the given
// command. A response with a different command is ignored until timeout.
func (l *LSSMaster) WaitForResponse(cmd LSSCommand) (LSSMessage, error) {
	deadline := time.Now().Add(l.timeout)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return LSSMessage{}, ErrTimeout
		}

		select {
		case resp := <-l.rx:
			if cmd == resp.Command() {
				return resp, nil
			}
			l.logger.Warn("received unexpected response, ignoring", "response", resp)
		case <-time.After(remaining):
			l.logger.Warn("no response received from slave, expecting", "command", cmd)
			return LSSMessage{}, ErrTimeout
		}
	}
}

// SwitchStateGlobal sends a switch state global command (waiting or
// configuration) to all nodes. No answer is expected.
func (l *LSSMaster) SwitchStateGlobal(mode LSSMode) error {
	frame := canopen.NewFrame(ServiceMasterId, 0, 8)
	frame.Data[0] = byte(CmdSwitchStateGlobal)
	frame.Data[1] = byte(mode)
	return l.Send(frame)
}

// selectiveField pairs a switch-state-selective command with the address
// field it carries, letting SwitchStateSelective loop over the four
// fields instead of repeating near-identical send blocks.
type selectiveField struct {
	cmd   LSSCommand
	value uint32
}

// SwitchStateSelective sends the switch state selective command sequence
// addressed to the node matching address. If no answer is received, the
// command times out.
func (l *LSSMaster) SwitchStateSelective(address LSSAddress) error {
	fields := []selectiveField{
		{CmdSwitchStateSelectiveVendor, address.VendorId},
		{CmdSwitchStateSelectiveProduct, address.ProductCode},
		{CmdSwitchStateSelectiveRevision, address.RevisionNumber},
		{CmdSwitchStateSelectiveSerialNb, address.SerialNumber},
	}

	frame := canopen.NewFrame(ServiceMasterId, 0, 8)
	for _, f := range fields {
		frame.Data[0] = byte(f.cmd)
		binary.LittleEndian.PutUint32(frame.Data[1:], f.value)
		l.Send(frame)
	}

	_, err := l.WaitForResponse(CmdSwitchStateSelectiveResult)
	return err
}

// SetTimeout updates the timeout used when waiting for a slave answer.
func (l *LSSMaster) SetTimeout(timeout time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.timeout = timeout
}

func NewLSSMaster(bm *canopen.BusManager, logger *slog.Logger, timeout time.Duration) (*LSSMaster, error) {
	if logger == nil {
		logger = slog.Default()
	}

	lss := &LSSMaster{
		BusManager: bm,
		logger:     logger.With("service", "[LSSMaster]"),
		rx:         make(chan LSSMessage, 2),
	}
	lss.SetTimeout(timeout)
	if _, err := lss.Subscribe(ServiceSlaveId, 0x7FF, false, lss); err != nil {
		return nil, err
	}

	return lss, nil
}
