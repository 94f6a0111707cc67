package config

import (
	"log/slog"

	"github.com/libcanopen/canopen/pkg/sdo"
)

// NodeConfigurator provides helper methods for
// reading / updating CANopen reserved configuration objects
// i.e. objects between 0x1000 and 0x2000.
// No EDS files need to be loaded for configuring these parameters
// This uses an SDO client to access the different objects
type NodeConfigurator struct {
	client *sdo.SDOClient
	nodeId uint8
	logger *slog.Logger
}

// Create a new [NodeConfigurator] for given ID and SDOClient
func NewNodeConfigurator(nodeId uint8, client *sdo.SDOClient) *NodeConfigurator {
	configurator := NodeConfigurator{
		client: client,
		nodeId: nodeId,
		logger: slog.Default().With("service", "[CONFIGURATOR]", "nodeId", nodeId),
	}
	return &configurator
}

// setCobIdBit reads the COB-ID stored at (index, 0) and writes it back
// with bit set (true) or cleared (false), used by the SYNC/TIME producer
// and consumer enable/disable helpers which only differ by bit position.
func (config *NodeConfigurator) setCobIdBit(index uint16, bit uint, set bool) error {
	cobId, err := config.client.ReadUint32(config.nodeId, index, 0)
	if err != nil {
		return err
	}
	if set {
		cobId |= 1 << bit
	} else {
		cobId &^= 1 << bit
	}
	return config.client.WriteRaw(config.nodeId, index, 0, cobId, false)
}
