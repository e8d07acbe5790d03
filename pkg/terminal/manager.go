package terminal

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"sync"
	"time"

	"github.com/Fl0rencess720/sheikah/pkg/common/metrics"
	"github.com/creack/pty"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultCols        = 80
	defaultRows        = 24
	defaultKillTimeout = 2 * time.Second
	terminalEnv        = "TERM=xterm-color"
)

var (
	ErrSpawnFailure  = errors.New("spawn terminal shell failed")
	ErrSessionExists = errors.New("terminal session already exists")
	ErrSessionLimit  = errors.New("terminal session limit exceeded")
)

// Sink 接收某个会话的输出，由传输层实现
// Send 在同一个会话内按产生顺序被串行调用
type Sink interface {
	Send(data []byte)
	Exited(code int)
}

type Options struct {
	// Shell 为空时依次尝试 $SHELL、bash、sh
	Shell string
	Dir   string
	// Env 追加在宿主环境变量之后
	Env         []string
	MaxSessions int
	KillTimeout time.Duration
}

// Manager 维护 连接 -> PTY shell 的会话表
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	shell       string
	dir         string
	env         []string
	maxSessions int
	killTimeout time.Duration
}

func NewManager(opts Options) *Manager {
	killTimeout := opts.KillTimeout
	if killTimeout <= 0 {
		killTimeout = defaultKillTimeout
	}
	return &Manager{
		sessions:    make(map[string]*Session),
		shell:       resolveShell(opts.Shell),
		dir:         opts.Dir,
		env:         opts.Env,
		maxSessions: opts.MaxSessions,
		killTimeout: killTimeout,
	}
}

func resolveShell(configured string) string {
	if configured != "" {
		return configured
	}
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	if path, err := exec.LookPath("bash"); err == nil {
		return path
	}
	return "sh"
}

func (m *Manager) Shell() string {
	return m.shell
}

// Open 为 id 启动一个新的 shell，输出通过 sink 回传
func (m *Manager) Open(id string, sink Sink) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, id)
	}
	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		return nil, ErrSessionLimit
	}

	cmd := exec.Command(m.shell)
	cmd.Dir = m.dir
	cmd.Env = append(append(os.Environ(), m.env...), terminalEnv)
	if m.dir != "" {
		cmd.Env = append(cmd.Env, "PWD="+m.dir)
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: defaultCols, Rows: defaultRows})
	if err != nil {
		metrics.RecordTerminalSpawn(false)
		zap.L().Error("Spawn terminal shell failed", zap.String("session_id", id), zap.String("shell", m.shell), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrSpawnFailure, err)
	}

	s := &Session{
		id:     id,
		ptmx:   ptmx,
		cmd:    cmd,
		state:  StateRunning,
		waitCh: make(chan struct{}),
	}
	m.sessions[id] = s
	metrics.RecordTerminalSpawn(true)
	metrics.SetTerminalSessions(len(m.sessions))

	go s.wait()
	go s.pump(sink, m.detach)

	zap.L().Info("Terminal session opened", zap.String("session_id", id), zap.Int("pid", s.PID()), zap.String("shell", m.shell))
	return s, nil
}

// Write 原样转发输入；未知或已结束的会话直接忽略
func (m *Manager) Write(id string, data []byte) error {
	s := m.get(id)
	if s == nil || len(data) == 0 {
		return nil
	}
	return s.write(data)
}

// Resize 调整窗口大小，非正的尺寸被忽略
func (m *Manager) Resize(id string, cols, rows int) error {
	if cols <= 0 || rows <= 0 || cols > 0xffff || rows > 0xffff {
		return nil
	}
	s := m.get(id)
	if s == nil {
		return nil
	}
	return s.resize(uint16(cols), uint16(rows))
}

// Close 先摘除会话再结束进程，可重复调用
func (m *Manager) Close(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		metrics.SetTerminalSessions(len(m.sessions))
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	s.terminate(m.killTimeout)
	zap.L().Info("Terminal session closed", zap.String("session_id", id))
}

// CloseAll 关闭所有会话，用于进程退出前
func (m *Manager) CloseAll() {
	var g errgroup.Group
	for _, id := range m.IDs() {
		g.Go(func() error {
			m.Close(id)
			return nil
		})
	}
	_ = g.Wait()
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) IDs() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	slices.Sort(ids)
	return ids
}

func (m *Manager) get(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// detach shell 自行退出时由 pump 调用，返回 false 表示会话已被 Close 摘除
func (m *Manager) detach(s *Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.sessions[s.id]
	if !ok || cur != s {
		return false
	}
	delete(m.sessions, s.id)
	metrics.SetTerminalSessions(len(m.sessions))
	zap.L().Info("Terminal shell exited", zap.String("session_id", s.id), zap.Int("exit_code", s.exitCode))
	return true
}
