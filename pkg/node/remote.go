package node

import (
	"errors"
	"log/slog"

	canopen "github.com/libcanopen/canopen"
	"github.com/libcanopen/canopen/pkg/config"
	"github.com/libcanopen/canopen/pkg/emergency"
	"github.com/libcanopen/canopen/pkg/nmt"
	"github.com/libcanopen/canopen/pkg/od"
	"github.com/libcanopen/canopen/pkg/pdo"
	"github.com/libcanopen/canopen/pkg/sdo"
	"github.com/libcanopen/canopen/pkg/sync"
)

// A RemoteNode is a bit different from a [LocalNode].
// It is a local representation of a remote node on the CAN bus
// and does not have the same standard CiA objects.
// Its goal is to simplify master control by providing some general
// features :
//   - SDOClient for reading / writing to remote node with given EDS
//   - RPDO for updating a local OD with the TPDOs from the remote node
//   - SYNC consumer
//
// A RemoteNode has the same id as the remote node that it controls
// however, being a direct local representation it may only be accessed
// locally.
type RemoteNode struct {
	*BaseNode
	remoteOd *od.ObjectDictionary // Remote node od, this does not change
	client   *sdo.SDOClient       // A unique sdoClient shared between localCtrl & remoteCtrl
	rpdos    []*pdo.RPDO          // Local RPDOs (corresponds to remote TPDOs)
	tpdos    []*pdo.TPDO          // Local TPDOs (corresponds to remote RPDOs)
	sync     *sync.SYNC           // Sync consumer (for synchronous PDOs)
	emcy     *emergency.EMCY      // Emergency consumer (fake producer for logging internal errors)
}

func (node *RemoteNode) ProcessPDO(syncWas bool, timeDifferenceUs uint32) {
	node.mu.Lock()
	defer node.mu.Unlock()
	for _, tpdo := range node.tpdos {
		tpdo.Process(timeDifferenceUs, true, syncWas)
	}
	for _, rpdo := range node.rpdos {
		rpdo.Process(timeDifferenceUs, true, syncWas)
	}
}

func (node *RemoteNode) ProcessSYNC(timeDifferenceUs uint32) bool {
	syncWas := false
	if node.sync != nil {
		var timerNextUs uint32
		event := node.sync.Process(true, timeDifferenceUs, &timerNextUs)

		switch event {
		case sync.EventRxOrTx:
			syncWas = true
		case sync.EventPassedWindow:
		}
	}
	return syncWas
}

func (node *RemoteNode) ProcessMain(enableGateway bool, timeDifferenceUs uint32, timerNextUs *uint32) uint8 {
	return nmt.ResetNot
}

func (node *RemoteNode) Servers() []*sdo.SDOServer {
	return nil
}

// Create a remote node
func NewRemoteNode(
	bm *canopen.BusManager,
	logger *slog.Logger,
	remoteOd *od.ObjectDictionary,
	remoteNodeId uint8,
) (*RemoteNode, error) {
	if bm == nil {
		return nil, errors.New("need at least busManager")
	}
	if remoteOd == nil {
		remoteOd = od.NewOD()
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("id", remoteNodeId)
	base, err := newBaseNode(bm, logger, remoteOd, remoteNodeId)
	if err != nil {
		return nil, err
	}
	node := &RemoteNode{BaseNode: base}
	node.remoteOd = remoteOd

	// Create a new SDO client for the remote node & for local access
	client, err := sdo.NewSDOClient(bm, logger, remoteOd, 0, sdo.DEFAULT_SDO_CLIENT_TIMEOUT_MS, nil)
	if err != nil {
		logger.Error("error when initializing SDO client object", "error", err)
		return nil, err
	}
	node.client = client
	// Create a new SYNC object
	node.od.AddSYNC()
	// Initialize SYNC
	sync, err := sync.NewSYNC(
		bm,
		logger,
		nil,
		node.od.Index(0x1005),
		node.od.Index(0x1006),
		node.od.Index(0x1007),
		node.od.Index(0x1019),
	)
	if err != nil {
		logger.Error("error when initialising SYNC object", "error", err)
		return nil, err
	}
	node.sync = sync

	// Add empty EMCY, only used for logging for now
	node.emcy = &emergency.EMCY{}

	return node, nil
}

// Initialize PDOs according to either local OD mapping or remote OD mapping
// A TPDO from the distant node corresponds to an RPDO on this node and vice-versa
func (node *RemoteNode) StartPDOs(useLocal bool) error {
	node.mu.Lock()
	defer node.mu.Unlock()

	var conf *config.NodeConfigurator

	localConf := config.NewNodeConfigurator(0, node.client)

	if useLocal {
		conf = localConf
	} else {
		conf = config.NewNodeConfigurator(node.id, node.client)
	}

	rpdos, tpdos, err := conf.ReadConfigurationAllPDO()
	if err != nil {
		return err
	}

	// Remote TPDOs become local RPDOs; create CANopen RPDO objects
	for i, pdoConfig := range tpdos {
		nb := uint16(i) + 1
		if err := node.od.AddRPDO(nb); err != nil {
			return err
		}
		if err := node.applyRemotePDOConfig(localConf, nb, pdoConfig); err != nil {
			return err
		}
		rpdo, err := pdo.NewRPDO(
			node.BusManager,
			node.logger,
			node.od,
			node.emcy, // Empty emergency object used for logging
			node.sync,
			node.GetOD().Index(0x1400+i),
			node.GetOD().Index(0x1600+i),
			0,
		)
		if err != nil {
			return err
		}
		node.rpdos = append(node.rpdos, rpdo)
		node.enableRemotePDO(localConf, nb)
	}

	// Remote node RPDOs become local TPDOs; create CANopen TPDO objects
	for i, pdoConfig := range rpdos {
		nb := uint16(i) + 1 + pdo.MaxRpdoNumber
		if err := node.od.AddTPDO(uint16(i + 1)); err != nil {
			return err
		}
		if err := node.applyRemotePDOConfig(localConf, nb, pdoConfig); err != nil {
			return err
		}
		tpdo, err := pdo.NewTPDO(
			node.BusManager,
			node.logger,
			node.od,
			node.emcy, // Empty emergency object used for logging
			node.sync,
			node.GetOD().Index(0x1800+i),
			node.GetOD().Index(0x1A00+i),
			0,
		)
		if err != nil {
			return err
		}
		node.tpdos = append(node.tpdos, tpdo)
		node.enableRemotePDO(localConf, nb)
	}

	return nil
}

// applyRemotePDOConfig disables the local PDO at nb, writes the configuration
// read from the remote node, leaving it disabled for the caller to enable.
func (node *RemoteNode) applyRemotePDOConfig(localConf *config.NodeConfigurator, nb uint16, pdoConfig config.PDOConfigurationParameter) error {
	if err := localConf.DisablePDO(nb); err != nil {
		return err
	}
	return localConf.WriteConfigurationPDO(nb, pdoConfig)
}

// enableRemotePDO re-enables the local PDO at nb once its backing object has
// been created; failure here is logged but not fatal to node startup.
func (node *RemoteNode) enableRemotePDO(localConf *config.NodeConfigurator, nb uint16) {
	if err := localConf.EnablePDO(nb); err != nil {
		node.logger.Warn("failed to initialize RPDO", "nb", nb, "error", err)
	}
}
