package pdo

import (
	"testing"

	canopen "github.com/libcanopen/canopen"
	"github.com/libcanopen/canopen/pkg/can/virtual"
	"github.com/libcanopen/canopen/pkg/emergency"
	"github.com/libcanopen/canopen/pkg/od"
	"github.com/stretchr/testify/assert"
)

func BenchmarkXxx(b *testing.B) {
	b.StopTimer()
	bus, err := virtual.NewVirtualCanBus("localhost:18888")
	bus.Connect()
	assert.Nil(b, err)
	bm := canopen.NewBusManager(bus)
	od := od.Default()
	tpdo, err := NewTPDO(bm, nil, od, &emergency.EMCY{}, nil, od.Index(0x1801), od.Index(0x1A01), 0)
	assert.Nil(b, err)
	b.StartTimer()
	for n := 0; n < b.N; n++ {
		err := tpdo.send()
		assert.Nil(b, err)
	}

}
