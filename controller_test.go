package dramctrl

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/dramctrl/internal/signal"
)

func TestController(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Controller Suite")
}

// returnEvent is one transaction handed back by ReturnDoneTrans. runUntil
// ticks ctrl until stop reports true or the cycle budget is exhausted,
// returning every event observed along the way.
type returnEvent struct {
	clk     uint64
	addr    int64
	isWrite bool
}

func runUntil(ctrl *Controller, maxCycles int, stop func([]returnEvent) bool) []returnEvent {
	var events []returnEvent

	for i := 0; i < maxCycles; i++ {
		ctrl.ClockTick()

		clk := ctrl.Clk()
		for {
			addr, isWrite, ok := ctrl.ReturnDoneTrans(clk)
			if !ok {
				break
			}

			events = append(events, returnEvent{clk: clk, addr: addr, isWrite: isWrite})
		}

		if stop != nil && stop(events) {
			break
		}
	}

	return events
}

var _ = Describe("Controller", func() {
	var base Builder

	BeforeEach(func() {
		base = MakeBuilder().
			WithRanks(1).
			WithBankGroups(1).
			WithBanksPerGroup(2).
			WithTransQueueSize(8).
			WithRowBufPolicy(OpenPage)
	})

	It("scenario 1: a single open-page read completes read_delay cycles after issue", func() {
		ctrl := base.WithReadDelay(20).Build()

		Expect(ctrl.WillAcceptTransaction(false)).To(BeTrue())
		ctrl.AddTransaction(signal.NewTransaction(0x1000, false, 0, 0))

		events := runUntil(ctrl, 200, func(evs []returnEvent) bool { return len(evs) > 0 })

		Expect(events).To(HaveLen(1))
		Expect(events[0].addr).To(Equal(int64(0x1000)))
		Expect(events[0].isWrite).To(BeFalse())
		Expect(ctrl.Stats.NumReadCmds.Value()).To(Equal(uint64(1)))
		Expect(ctrl.Stats.NumReadsDone.Value()).To(Equal(uint64(1)))
	})

	It("scenario 2: a write followed by a read to the same address forwards without a DRAM read", func() {
		ctrl := base.WithReadDelay(20).WithWriteDelay(20).Build()

		for i := 0; i < 5; i++ {
			ctrl.ClockTick()
		}

		Expect(ctrl.WillAcceptTransaction(true)).To(BeTrue())
		ctrl.AddTransaction(signal.NewTransaction(0x2000, true, 0, 5))

		ctrl.ClockTick()

		Expect(ctrl.WillAcceptTransaction(false)).To(BeTrue())
		ctrl.AddTransaction(signal.NewTransaction(0x2000, false, 0, 6))

		readReturned := false
		for i := 0; i < 5; i++ {
			clk := ctrl.Clk()

			for {
				addr, isWrite, ok := ctrl.ReturnDoneTrans(clk)
				if !ok {
					break
				}

				if addr == 0x2000 && !isWrite {
					Expect(clk).To(Equal(uint64(7)))
					readReturned = true
				}
			}

			ctrl.ClockTick()
		}

		Expect(readReturned).To(BeTrue())
		Expect(ctrl.Stats.NumWriteBufHits.Value()).To(Equal(uint64(1)))
	})

	It("scenario 3: coalesced reads to the same address share one DRAM command and complete together", func() {
		ctrl := base.WithReadDelay(20).WithCommandQueueCapacity(1).Build()

		ctrl.AddTransaction(signal.NewTransaction(0x3000, false, 0, 0))
		ctrl.AddTransaction(signal.NewTransaction(0x3000, false, 0, 0))
		ctrl.AddTransaction(signal.NewTransaction(0x3000, false, 0, 0))

		events := runUntil(ctrl, 200, func(evs []returnEvent) bool { return len(evs) >= 3 })

		Expect(events).To(HaveLen(3))
		for _, e := range events {
			Expect(e.clk).To(Equal(events[0].clk))
		}

		Expect(ctrl.Stats.NumReadCmds.Value()).To(Equal(uint64(1)))
	})

	It("scenario 4: a nearly full write buffer triggers write-drain before any read issues", func() {
		ctrl := base.WithTransQueueSize(16).WithBanksPerGroup(1).Build()

		for i := 0; i < 9; i++ {
			addr := uint64(0x4000 + i*0x100)
			Expect(ctrl.WillAcceptTransaction(true)).To(BeTrue())
			ctrl.AddTransaction(signal.NewTransaction(addr, true, 0, 0))
		}

		drained := false

		for i := 0; i < 100 && !drained; i++ {
			ctrl.ClockTick()
			if ctrl.Stats.NumWriteCmds.Value() > 0 {
				drained = true
			}
		}

		Expect(drained).To(BeTrue())
		Expect(ctrl.Stats.NumReadCmds.Value()).To(Equal(uint64(0)))
	})

	It("scenario 5: a write aborts draining while its address still has a pending read", func() {
		ctrl := base.WithBanksPerGroup(1).WithCommandQueueCapacity(8).Build()

		read := signal.NewTransaction(0xA, false, 0, 0)
		ctrl.pendingRd[0xA] = []*signal.Transaction{&read}

		Expect(ctrl.WillAcceptTransaction(true)).To(BeTrue())
		ctrl.AddTransaction(signal.NewTransaction(0xA, true, 0, 0))
		ctrl.writeDraining = 1

		ctrl.scheduleTransaction()

		Expect(ctrl.writeDraining).To(Equal(0))
		Expect(ctrl.Stats.NumWrDependency.Value()).To(Equal(uint64(1)))
		Expect(ctrl.writeBuffer).To(HaveLen(1))
	})

	It("scenario 6: distributed round-robin admits one transaction per requester in rotation", func() {
		ctrl := MakeBuilder().
			WithRanks(1).WithBankGroups(1).WithBanksPerGroup(4).
			WithDistController(true).
			WithUnifiedQueue(true).
			WithRequestersPerChannel(4).
			WithDistTransQueueSize(8).
			WithLinkLatency(2).
			Build()

		for r := 0; r < 4; r++ {
			for n := 0; n < 3; n++ {
				addr := uint64(0x10000*(r+1) + n*0x100)
				Expect(ctrl.WillAcceptTransactionFrom(r, false)).To(BeTrue())
				ctrl.AddTransaction(signal.NewTransaction(addr, false, r, 0))
			}
		}

		var admittedOrder []int

		for i := 0; i < 12; i++ {
			before := len(ctrl.sharedUnified)
			ctrl.queueIn()

			if len(ctrl.sharedUnified) > before {
				admittedOrder = append(admittedOrder, ctrl.lastUnifiedRequester)
				ctrl.sharedUnified = ctrl.sharedUnified[1:]
			}
		}

		Expect(admittedOrder).To(HaveLen(12))
		for i, r := range admittedOrder {
			Expect(r).To(Equal(i % 4))
		}
	})

	It("P4: a centralized read queue never exceeds trans_queue_size", func() {
		ctrl := base.WithTransQueueSize(2).WithCommandQueueCapacity(0).Build()

		Expect(ctrl.WillAcceptTransaction(false)).To(BeTrue())
		ctrl.AddTransaction(signal.NewTransaction(0x1, false, 0, 0))
		Expect(ctrl.WillAcceptTransaction(false)).To(BeTrue())
		ctrl.AddTransaction(signal.NewTransaction(0x2, false, 0, 0))

		Expect(ctrl.WillAcceptTransaction(false)).To(BeFalse())
	})

	It("panics if the centralized entry point is used on a distributed controller", func() {
		ctrl := base.WithDistController(true).WithRequestersPerChannel(1).Build()

		Expect(func() { ctrl.WillAcceptTransaction(false) }).To(Panic())
	})

	It("panics if the requester-qualified entry point is used on a centralized controller", func() {
		ctrl := base.Build()

		Expect(func() { ctrl.WillAcceptTransactionFrom(0, false) }).To(Panic())
	})
})
