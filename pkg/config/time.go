package config

const entryTIME uint16 = 0x1012

func (config *NodeConfigurator) ReadCobIdTIME() (uint32, error) {
	return config.client.ReadUint32(config.nodeId, entryTIME, 0)
}

func (config *NodeConfigurator) ProducerEnableTIME() error {
	return config.setCobIdBit(entryTIME, 30, true)
}

func (config *NodeConfigurator) ProducerDisableTIME() error {
	return config.setCobIdBit(entryTIME, 30, false)
}

func (config *NodeConfigurator) ConsumerEnableTIME() error {
	return config.setCobIdBit(entryTIME, 31, true)
}

func (config *NodeConfigurator) ConsumerDisable() error {
	return config.setCobIdBit(entryTIME, 31, false)
}
