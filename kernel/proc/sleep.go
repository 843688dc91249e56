package proc

import "github.com/achilleasa/uniker/kernel/irq"

// TimerFreqHz is the configured timer interrupt frequency; wake_time math
// (spec.md §4.5) is expressed in timer ticks, not wall-clock time.
const TimerFreqHz = 1000

// ticksFn is mocked by tests so Sleep's wake condition doesn't depend on a
// live timer IRQ.
var ticksFn = irq.Ticks

// Sleep blocks p for at least ms milliseconds, yielding until the scheduler
// observes ticks >= wake_time.
func Sleep(p *Process, ms uint64) {
	lock.Acquire()
	p.WakeTime = ticksFn() + ms*TimerFreqHz/1000
	p.State = Sleeping
	lock.Release()

	for {
		Schedule()
		lock.Acquire()
		done := p.State != Sleeping
		lock.Release()
		if done {
			return
		}
	}
}
