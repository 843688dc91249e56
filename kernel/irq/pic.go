package irq

import "github.com/achilleasa/uniker/kernel/cpu"

// PIC I/O ports and remap vectors. IRQ0-7 land on vectors 32-39, IRQ8-15 on
// 40-47, clear of the CPU exception range (0-31).
const (
	picMasterCmd  = 0x20
	picMasterData = 0x21
	picSlaveCmd   = 0xA0
	picSlaveData  = 0xA1

	picEOI = 0x20
)

// remapPIC reprograms both 8259 PICs so hardware IRQs don't collide with CPU
// exception vectors.
func remapPIC() {
	cpu.OutPort8(picMasterCmd, 0x11)
	cpu.OutPort8(picSlaveCmd, 0x11)
	cpu.OutPort8(picMasterData, 0x20)
	cpu.OutPort8(picSlaveData, 0x28)
	cpu.OutPort8(picMasterData, 0x04)
	cpu.OutPort8(picSlaveData, 0x02)
	cpu.OutPort8(picMasterData, 0x01)
	cpu.OutPort8(picSlaveData, 0x01)
	cpu.OutPort8(picMasterData, 0x0)
	cpu.OutPort8(picSlaveData, 0x0)
}

// ackIRQ sends end-of-interrupt to the PIC(s) that raised irq line.
func ackIRQ(line uint8) {
	if line >= 8 {
		cpu.OutPort8(picSlaveCmd, picEOI)
	}
	cpu.OutPort8(picMasterCmd, picEOI)
}
