package faulttrace

import (
	"bytes"
	"log"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LogHook", func() {
	It("should write one line per event", func() {
		var buf bytes.Buffer

		runWorkload(NewLogHook(log.New(&buf, "", 0)))

		out := buf.String()
		Expect(out).To(ContainSubstring("[pagefault] pid 1 (prog) va 0x1000\n"))
		Expect(out).To(ContainSubstring("[loadseg] va 0x1000 off 0x1000 size 4\n"))
		Expect(out).To(ContainSubstring("[unresolved] pid 1 va 0x100000: "))
		Expect(out).To(ContainSubstring("[evict] va 0x2000 -> block 0\n"))
		Expect(out).To(ContainSubstring("[retrieve] block 0 -> va 0x2000\n"))
		Expect(out).To(ContainSubstring("[cow] pid 1 va 0x1000\n"))
	})
})
