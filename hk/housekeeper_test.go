package hk_test

import (
	"sync/atomic"
	"time"

	"github.com/tsukushibito/unity-mcp-bridge/hk"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Housekeeper", func() {
	It("runs a registered job repeatedly until it unregisters itself", func() {
		var calls int32
		h := hk.New(5 * time.Millisecond)
		go h.Run()
		h.WaitStarted()
		defer h.Stop()

		h.Reg("count-to-3", func() time.Duration {
			n := atomic.AddInt32(&calls, 1)
			if n >= 3 {
				return 0
			}
			return 5 * time.Millisecond
		}, time.Millisecond)

		Eventually(func() int32 { return atomic.LoadInt32(&calls) }, "200ms", "5ms").Should(Equal(int32(3)))
		Consistently(func() int32 { return atomic.LoadInt32(&calls) }, "30ms", "5ms").Should(Equal(int32(3)))
	})

	It("stops running a job once Unreg is called", func() {
		var calls int32
		h := hk.New(5 * time.Millisecond)
		go h.Run()
		h.WaitStarted()
		defer h.Stop()

		h.Reg("tick", func() time.Duration {
			atomic.AddInt32(&calls, 1)
			return 5 * time.Millisecond
		}, time.Millisecond)

		Eventually(func() int32 { return atomic.LoadInt32(&calls) }, "100ms", "5ms").Should(BeNumerically(">=", 1))
		h.Unreg("tick")
		snapshot := atomic.LoadInt32(&calls)
		Consistently(func() int32 { return atomic.LoadInt32(&calls) }, "30ms", "5ms").Should(Equal(snapshot))
	})
})
