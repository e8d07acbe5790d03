package terminal

import (
	"bytes"
	"os"
	"sync"
	"time"

	"github.com/creack/pty"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type recordingSink struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	exited chan int
}

func newRecordingSink() *recordingSink {
	return &recordingSink{exited: make(chan int, 1)}
}

func (s *recordingSink) Send(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Write(data)
}

func (s *recordingSink) Exited(code int) {
	s.exited <- code
}

func (s *recordingSink) Output() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

var _ = Describe("Terminal Manager", func() {
	const shell = "/bin/sh"

	var (
		m   *Manager
		dir string
	)

	BeforeEach(func() {
		if _, err := os.Stat(shell); err != nil {
			Skip("no /bin/sh available")
		}
		ptmx, tty, err := pty.Open()
		if err != nil {
			Skip("pty not available: " + err.Error())
		}
		_ = ptmx.Close()
		_ = tty.Close()

		dir = GinkgoT().TempDir()
		m = NewManager(Options{Shell: shell, Dir: dir, KillTimeout: 500 * time.Millisecond})
	})

	AfterEach(func() {
		if m != nil {
			m.CloseAll()
		}
	})

	It("echoes shell output back through the sink", func() {
		sink := newRecordingSink()
		s, err := m.Open("a", sink)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.ID()).To(Equal("a"))
		Expect(s.PID()).To(BeNumerically(">", 0))
		Expect(s.State()).To(Equal(StateRunning))

		Expect(m.Write("a", []byte("echo marker-$((40+2))\n"))).To(Succeed())
		Eventually(sink.Output, 5*time.Second, 20*time.Millisecond).Should(ContainSubstring("marker-42"))
	})

	It("starts the shell inside the workspace directory", func() {
		sink := newRecordingSink()
		_, err := m.Open("a", sink)
		Expect(err).NotTo(HaveOccurred())

		Expect(m.Write("a", []byte("pwd; echo TERM=$TERM\n"))).To(Succeed())
		Eventually(sink.Output, 5*time.Second, 20*time.Millisecond).Should(ContainSubstring("TERM=xterm-color"))
		Expect(sink.Output()).To(ContainSubstring(dir))
	})

	It("applies resize to the pty", func() {
		sink := newRecordingSink()
		_, err := m.Open("a", sink)
		Expect(err).NotTo(HaveOccurred())

		Expect(m.Resize("a", 100, 40)).To(Succeed())
		Expect(m.Resize("a", 0, 40)).To(Succeed())
		Expect(m.Write("a", []byte("stty size\n"))).To(Succeed())
		Eventually(sink.Output, 5*time.Second, 20*time.Millisecond).Should(ContainSubstring("40 100"))
	})

	It("keeps sessions isolated from each other", func() {
		sinkA := newRecordingSink()
		sinkB := newRecordingSink()
		_, err := m.Open("a", sinkA)
		Expect(err).NotTo(HaveOccurred())
		_, err = m.Open("b", sinkB)
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Count()).To(Equal(2))
		Expect(m.IDs()).To(Equal([]string{"a", "b"}))

		Expect(m.Write("a", []byte("echo only-$((1+1))-a\n"))).To(Succeed())
		Eventually(sinkA.Output, 5*time.Second, 20*time.Millisecond).Should(ContainSubstring("only-2-a"))
		Consistently(sinkB.Output, 300*time.Millisecond, 50*time.Millisecond).ShouldNot(ContainSubstring("only-2-a"))

		m.Close("a")
		Expect(m.Count()).To(Equal(1))

		Expect(m.Write("b", []byte("echo still-$((3+4))\n"))).To(Succeed())
		Eventually(sinkB.Output, 5*time.Second, 20*time.Millisecond).Should(ContainSubstring("still-7"))
	})

	It("ignores writes to unknown or closed sessions", func() {
		Expect(m.Write("missing", []byte("ls\n"))).To(Succeed())
		Expect(m.Resize("missing", 80, 24)).To(Succeed())

		sink := newRecordingSink()
		s, err := m.Open("a", sink)
		Expect(err).NotTo(HaveOccurred())

		m.Close("a")
		Expect(s.State()).To(Equal(StateTerminated))
		Eventually(s.Done(), 3*time.Second).Should(BeClosed())
		Expect(m.Write("a", []byte("echo late\n"))).To(Succeed())
		Expect(s.write([]byte("echo late\n"))).To(Succeed())

		// 被 Close 的会话不会回调 Exited
		Consistently(sink.exited, 200*time.Millisecond).ShouldNot(Receive())
	})

	It("treats Close as idempotent", func() {
		_, err := m.Open("a", newRecordingSink())
		Expect(err).NotTo(HaveOccurred())

		m.Close("a")
		m.Close("a")
		m.Close("never-opened")
		Expect(m.Count()).To(BeZero())
	})

	It("reports shell exit and drops the session", func() {
		sink := newRecordingSink()
		_, err := m.Open("a", sink)
		Expect(err).NotTo(HaveOccurred())

		Expect(m.Write("a", []byte("exit 3\n"))).To(Succeed())
		Eventually(sink.exited, 5*time.Second).Should(Receive(Equal(3)))
		Expect(m.Count()).To(BeZero())
	})

	It("rejects duplicate ids and enforces the session limit", func() {
		limited := NewManager(Options{Shell: shell, Dir: dir, MaxSessions: 1, KillTimeout: 500 * time.Millisecond})
		DeferCleanup(limited.CloseAll)

		_, err := limited.Open("a", newRecordingSink())
		Expect(err).NotTo(HaveOccurred())

		_, err = limited.Open("a", newRecordingSink())
		Expect(err).To(MatchError(ErrSessionExists))

		_, err = limited.Open("b", newRecordingSink())
		Expect(err).To(MatchError(ErrSessionLimit))
	})

	It("wraps spawn failures", func() {
		broken := NewManager(Options{Shell: "/nonexistent/shell", Dir: dir})

		_, err := broken.Open("a", newRecordingSink())
		Expect(err).To(MatchError(ErrSpawnFailure))
		Expect(broken.Count()).To(BeZero())
	})

	It("closes every session on CloseAll", func() {
		for _, id := range []string{"a", "b", "c"} {
			_, err := m.Open(id, newRecordingSink())
			Expect(err).NotTo(HaveOccurred())
		}
		m.CloseAll()
		Expect(m.Count()).To(BeZero())
	})
})

var _ = Describe("resolveShell", func() {
	It("prefers the configured shell", func() {
		Expect(resolveShell("/bin/zsh")).To(Equal("/bin/zsh"))
	})

	It("falls back to $SHELL", func() {
		GinkgoT().Setenv("SHELL", "/bin/fish")
		Expect(resolveShell("")).To(Equal("/bin/fish"))
	})
})
