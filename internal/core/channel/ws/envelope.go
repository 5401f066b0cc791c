package ws

import (
	"encoding/json"
	"fmt"
	"time"

	pkgif "github.com/dep2p/go-widgetsync/pkg/interfaces"
	"github.com/dep2p/go-widgetsync/pkg/lib/statetree"
	"github.com/dep2p/go-widgetsync/pkg/types"
)

// 内核消息类型
const (
	msgCommOpen  = "comm_open"
	msgCommMsg   = "comm_msg"
	msgCommClose = "comm_close"
)

// 内核消息协议版本
const messagingVersion = "5.3"

type header struct {
	MsgID    string `json:"msg_id,omitempty"`
	MsgType  string `json:"msg_type,omitempty"`
	Session  string `json:"session,omitempty"`
	Username string `json:"username,omitempty"`
	Date     string `json:"date,omitempty"`
	Version  string `json:"version,omitempty"`
}

type envelope struct {
	Header       header          `json:"header"`
	ParentHeader header          `json:"parent_header"`
	Metadata     map[string]any  `json:"metadata"`
	Content      json.RawMessage `json:"content"`
	Channel      string          `json:"channel"`
}

type commContent struct {
	CommID     string            `json:"comm_id"`
	TargetName string            `json:"target_name,omitempty"`
	Data       statetree.Mapping `json:"data"`
}

// encodeFrame 把通道消息编码为 websocket 帧
//
// 返回值 binaryFrame 表示应以二进制帧发送。
func (s *Session) encodeFrame(msgType string, content commContent, msg *pkgif.Message) ([]byte, bool, error) {
	env := envelope{
		Header: header{
			MsgType:  msgType,
			Session:  s.clientID,
			Username: s.opts.Username,
			Date:     time.Now().UTC().Format(time.RFC3339Nano),
			Version:  messagingVersion,
		},
		Metadata: map[string]any{},
		Channel:  s.opts.Channel,
	}
	var buffers [][]byte
	if msg != nil {
		env.Header.MsgID = string(msg.ID)
		env.ParentHeader.MsgID = string(msg.ParentID)
		for k, v := range msg.Metadata {
			env.Metadata[k] = v
		}
		if content.Data == nil {
			content.Data = msg.Data
		}
		for _, b := range msg.Buffers {
			buffers = append(buffers, b.Data)
		}
	}
	if env.Header.MsgID == "" {
		env.Header.MsgID = string(types.NewMessageID())
	}
	if content.Data == nil {
		content.Data = statetree.Mapping{}
	}

	raw, err := json.Marshal(content)
	if err != nil {
		return nil, false, &statetree.SerializationError{Op: "encode", Err: err}
	}
	env.Content = raw
	head, err := json.Marshal(env)
	if err != nil {
		return nil, false, err
	}
	if len(buffers) == 0 {
		return head, false, nil
	}
	return packFrame(head, buffers), true, nil
}

// decodeFrame 解析入站帧
func decodeFrame(data []byte, binaryFrame bool) (*envelope, []statetree.Buffer, error) {
	head := data
	var raw [][]byte
	if binaryFrame {
		var err error
		head, raw, err = unpackFrame(data)
		if err != nil {
			return nil, nil, err
		}
	}
	var env envelope
	if err := json.Unmarshal(head, &env); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrBadEnvelope, err)
	}
	buffers := make([]statetree.Buffer, len(raw))
	for i, b := range raw {
		buffers[i] = statetree.Bytes(append([]byte(nil), b...))
	}
	return &env, buffers, nil
}

// commMessage 把入站信封转换为通道消息
func commMessage(env *envelope, buffers []statetree.Buffer) (*commContent, *pkgif.Message, error) {
	var content commContent
	if len(env.Content) > 0 {
		if err := json.Unmarshal(env.Content, &content); err != nil {
			return nil, nil, fmt.Errorf("%w: content: %v", ErrBadEnvelope, err)
		}
	}
	if content.CommID == "" {
		return nil, nil, fmt.Errorf("%w: missing comm_id", ErrBadEnvelope)
	}
	msg := &pkgif.Message{
		ID:       types.MessageID(env.Header.MsgID),
		ParentID: types.MessageID(env.ParentHeader.MsgID),
		Data:     content.Data,
		Metadata: env.Metadata,
	}
	if len(buffers) > 0 {
		msg.Buffers = buffers
	}
	return &content, msg, nil
}
