package terminal

import (
	"errors"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/Fl0rencess720/sheikah/pkg/common/metrics"
	"github.com/creack/pty"
	"go.uber.org/zap"
)

type State int

const (
	StateRunning State = iota + 1
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return "uninitialized"
	}
}

const readBufferSize = 32 * 1024

// Session 一个连接独占的 PTY shell
type Session struct {
	id   string
	ptmx *os.File
	cmd  *exec.Cmd

	mu    sync.Mutex
	state State

	waitCh    chan struct{}
	exitCode  int
	closeOnce sync.Once
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) PID() int {
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done 在 shell 进程退出后关闭
func (s *Session) Done() <-chan struct{} {
	return s.waitCh
}

func (s *Session) write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return nil
	}
	if _, err := s.ptmx.Write(data); err != nil {
		return err
	}
	metrics.RecordTerminalInput(len(data))
	return nil
}

func (s *Session) resize(cols, rows uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return nil
	}
	return pty.Setsize(s.ptmx, &pty.Winsize{Cols: cols, Rows: rows})
}

// wait 回收子进程并记录退出码
func (s *Session) wait() {
	err := s.cmd.Wait()
	code := 0
	if s.cmd.ProcessState != nil {
		code = s.cmd.ProcessState.ExitCode()
	} else if err != nil {
		code = -1
	}
	s.exitCode = code
	close(s.waitCh)
}

// pump 顺序读取 PTY 输出并交给 sink，读到 EOF/EIO 即 shell 已退出或 PTY 已关闭
func (s *Session) pump(sink Sink, onExit func(*Session) bool) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			metrics.RecordTerminalOutput(n)
			sink.Send(chunk)
		}
		if err != nil {
			break
		}
	}

	<-s.waitCh
	// 仍在会话表中说明是 shell 自行退出，而不是被 Close
	if onExit(s) {
		s.release()
		sink.Exited(s.exitCode)
	}
}

// terminate 进程组先收 SIGHUP，超时后 SIGKILL，最后关闭 PTY
func (s *Session) terminate(timeout time.Duration) {
	s.closeOnce.Do(func() {
		// 先发信号再加锁，阻塞在 PTY 写入上的 write 不会卡住关闭流程
		pid := s.PID()
		if pid > 0 {
			signalGroup(pid, syscall.SIGHUP)
			select {
			case <-s.waitCh:
			case <-time.After(timeout):
				signalGroup(pid, syscall.SIGKILL)
				select {
				case <-s.waitCh:
				case <-time.After(timeout):
					zap.L().Warn("Terminal process did not exit after SIGKILL", zap.String("session_id", s.id), zap.Int("pid", pid))
				}
			}
		}

		s.mu.Lock()
		s.state = StateTerminated
		s.mu.Unlock()
		_ = s.ptmx.Close()
	})
}

// release 用于 shell 已自行退出的场景，只需关闭 PTY
func (s *Session) release() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateTerminated
		s.mu.Unlock()
		_ = s.ptmx.Close()
	})
}

// signalGroup shell 由 pty 以 setsid 启动，pid 即进程组号
func signalGroup(pid int, sig syscall.Signal) {
	if err := syscall.Kill(-pid, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		zap.L().Debug("Signal terminal process group failed", zap.Int("pid", pid), zap.String("signal", sig.String()), zap.Error(err))
	}
}
