package logger_test

import (
	"bytes"
	"unicode/utf8"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/rovo/pkg/logger"
)

var _ = Describe("Truncate", func() {
	It("returns short strings unchanged", func() {
		Expect(logger.Truncate("hello", 10)).To(Equal("hello"))
		Expect(logger.Truncate("hello", 5)).To(Equal("hello"))
	})

	It("flattens newlines before measuring", func() {
		Expect(logger.Truncate("a\nb\nc", 10)).To(Equal("a b c"))
		Expect(logger.Truncate("line one\nline two", 8)).To(Equal("line one..."))
	})

	It("backs off to a rune boundary instead of splitting a character", func() {
		// "é" occupies bytes 1 and 2.
		Expect(logger.Truncate("héllo wörld", 2)).To(Equal("h..."))
		Expect(logger.Truncate("héllo wörld", 3)).To(Equal("hé..."))
	})

	It("always yields valid UTF-8 for every cut point", func() {
		s := "héllo wörld 日本語 ✓ done"
		for n := 0; n < len(s); n++ {
			out := logger.Truncate(s, n)
			Expect(utf8.ValidString(out)).To(BeTrue(), "cut at %d gave %q", n, out)
			Expect(len(out) - len("...")).To(BeNumerically("<=", n))
		}
	})

	It("treats a negative limit as zero", func() {
		Expect(logger.Truncate("abc", -1)).To(Equal("..."))
	})
})

var _ = Describe("NewLoggerTo", func() {
	It("writes plain level names when colour is off", func() {
		var buf bytes.Buffer
		log := logger.NewLoggerTo(&buf, false, false)
		log.Info("relay ready", zap.String("addr", ":8080"))
		Expect(log.Sync()).To(Succeed())

		Expect(buf.String()).To(ContainSubstring("INFO"))
		Expect(buf.String()).To(ContainSubstring("relay ready"))
		Expect(buf.String()).NotTo(ContainSubstring("\x1b["))
	})

	It("drops debug entries unless debug is enabled", func() {
		var quiet, verbose bytes.Buffer
		logger.NewLoggerTo(&quiet, false, false).Debug("hidden")
		logger.NewLoggerTo(&verbose, true, false).Debug("shown")

		Expect(quiet.String()).To(BeEmpty())
		Expect(verbose.String()).To(ContainSubstring("shown"))
	})
})
