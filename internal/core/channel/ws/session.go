package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dep2p/go-widgetsync/config"
	"github.com/dep2p/go-widgetsync/internal/core/channel"
	pkgif "github.com/dep2p/go-widgetsync/pkg/interfaces"
	"github.com/dep2p/go-widgetsync/pkg/types"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ============================================================================
//                              选项
// ============================================================================

// Options websocket 会话选项
type Options struct {
	// WriteTimeout 单帧写超时
	WriteTimeout time.Duration

	// PingInterval 心跳间隔，0 表示禁用
	PingInterval time.Duration

	// MaxMessageBytes 入站消息上限
	MaxMessageBytes int64

	// Channel 出站消息的内核通道名（前端为 shell，内核为 iopub）
	Channel string

	// Username 消息头中的用户名
	Username string

	// Header 拨号时附加的 HTTP 头（如 Authorization）
	Header http.Header

	// Dialer 自定义拨号器，为空时使用 websocket.DefaultDialer
	Dialer *websocket.Dialer
}

// OptionsFromConfig 由通道配置构造选项
func OptionsFromConfig(cfg config.ChannelConfig) Options {
	return Options{
		WriteTimeout:    cfg.WriteTimeout.Duration(),
		PingInterval:    cfg.PingInterval.Duration(),
		MaxMessageBytes: cfg.MaxMessageBytes,
	}
}

func (o *Options) applyDefaults() {
	def := config.DefaultChannelConfig()
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = def.WriteTimeout.Duration()
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = def.MaxMessageBytes
	}
	if o.Channel == "" {
		o.Channel = "shell"
	}
	if o.Username == "" {
		o.Username = "widgetsync"
	}
}

// ============================================================================
//                              Session
// ============================================================================

// Session websocket 上的内核会话
type Session struct {
	*channel.Hub

	conn     *websocket.Conn
	opts     Options
	clientID string

	writeMu   sync.Mutex
	closeOnce sync.Once
	stop      chan struct{}
	wg        sync.WaitGroup
}

var (
	_ pkgif.Session = (*Session)(nil)
	_ channel.Conn  = (*Session)(nil)
)

// Dial 连接内核 websocket 端点
//
// 连接建立即视为就绪。
func Dial(ctx context.Context, url string, key types.SessionKey, opts Options) (*Session, error) {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, url, opts.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	logger.Info("内核 websocket 已连接", "url", url, "session", key.ShortString())
	return NewSession(conn, key, opts), nil
}

// NewSession 包装已建立的 websocket 连接
func NewSession(conn *websocket.Conn, key types.SessionKey, opts Options) *Session {
	opts.applyDefaults()
	s := &Session{
		Hub:      channel.NewHub(key),
		conn:     conn,
		opts:     opts,
		clientID: uuid.NewString(),
		stop:     make(chan struct{}),
	}
	conn.SetReadLimit(opts.MaxMessageBytes)

	s.wg.Add(1)
	go s.readLoop()
	if opts.PingInterval > 0 {
		s.wg.Add(1)
		go s.pingLoop()
	}
	s.Hub.MarkReady()
	return s
}

// ============================================================================
//                              Session 接口
// ============================================================================

// OpenChannel 发送 comm_open 并登记通道
func (s *Session) OpenChannel(ctx context.Context, target string, id types.ModelID, msg *pkgif.Message) (pkgif.Channel, error) {
	if id.IsEmpty() {
		id = types.NewModelID()
	}
	c, err := s.NewComm(id, target, s)
	if err != nil {
		return nil, err
	}
	content := commContent{CommID: string(id), TargetName: target}
	if err := s.write(ctx, msgCommOpen, content, msg); err != nil {
		_ = c.Close(ctx, nil)
		return nil, err
	}
	return c, nil
}

// SendComm 实现 channel.Conn
func (s *Session) SendComm(ctx context.Context, id types.ModelID, msg *pkgif.Message) error {
	return s.write(ctx, msgCommMsg, commContent{CommID: string(id)}, msg)
}

// CloseComm 实现 channel.Conn
func (s *Session) CloseComm(ctx context.Context, id types.ModelID, msg *pkgif.Message) error {
	if s.isStopped() {
		return nil
	}
	return s.write(ctx, msgCommClose, commContent{CommID: string(id)}, msg)
}

// Close 关闭全部通道并断开连接
func (s *Session) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.WriteTimeout)
	defer cancel()
	err := s.Shutdown(ctx, true)
	s.terminate(websocket.CloseNormalClosure)
	s.wg.Wait()
	return err
}

// ============================================================================
//                              读写
// ============================================================================

func (s *Session) write(ctx context.Context, msgType string, content commContent, msg *pkgif.Message) error {
	if s.isStopped() {
		return channel.ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, binaryFrame, err := s.encodeFrame(msgType, content, msg)
	if err != nil {
		return err
	}
	if int64(len(data)) > s.opts.MaxMessageBytes {
		return fmt.Errorf("%w: %d bytes", channel.ErrMessageTooLarge, len(data))
	}

	frameType := websocket.TextMessage
	if binaryFrame {
		frameType = websocket.BinaryMessage
	}
	deadline := time.Now().Add(s.opts.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := s.conn.WriteMessage(frameType, data); err != nil {
		return fmt.Errorf("write %s: %w", msgType, err)
	}
	return nil
}

func (s *Session) readLoop() {
	defer s.wg.Done()
	defer func() {
		_ = s.Shutdown(context.Background(), false)
		s.terminate(websocket.CloseNormalClosure)
	}()

	for {
		frameType, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.isStopped() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, websocket.ErrCloseSent) {
				logger.Warn("内核 websocket 读取失败", "session", s.Key().ShortString(), "err", err)
			}
			return
		}
		s.handleFrame(data, frameType == websocket.BinaryMessage)
	}
}

func (s *Session) handleFrame(data []byte, binaryFrame bool) {
	env, buffers, err := decodeFrame(data, binaryFrame)
	if err != nil {
		logger.Warn("丢弃无法解析的帧", "err", err)
		return
	}
	switch env.Header.MsgType {
	case msgCommOpen, msgCommMsg, msgCommClose:
	default:
		logger.Debug("忽略非 comm 消息", "type", env.Header.MsgType)
		return
	}

	content, msg, err := commMessage(env, buffers)
	if err != nil {
		logger.Warn("丢弃无法解析的 comm 消息", "type", env.Header.MsgType, "err", err)
		return
	}
	id := types.ModelID(content.CommID)
	switch env.Header.MsgType {
	case msgCommOpen:
		s.DispatchOpen(s, content.TargetName, id, msg)
	case msgCommMsg:
		s.DispatchMessage(id, msg)
	case msgCommClose:
		s.DispatchClose(id, msg)
	}
}

func (s *Session) pingLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.opts.WriteTimeout))
			s.writeMu.Unlock()
			if err != nil {
				logger.Debug("心跳发送失败", "err", err)
				return
			}
		}
	}
}

func (s *Session) isStopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

// terminate 发送关闭帧并断开底层连接
func (s *Session) terminate(code int) {
	s.closeOnce.Do(func() {
		close(s.stop)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, ""), time.Now().Add(s.opts.WriteTimeout))
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
}
