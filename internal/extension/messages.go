package extension

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// 服务端发往扩展客户端的消息主题
const (
	TopicExtensionConnected = "extension_connected"
	TopicPing               = "ping"
	TopicPong               = "pong"
	TopicCallCommand        = "call_command"
	TopicError              = "error"
)

// 客户端发往服务端的消息类型
const (
	TypePing            = "ping"
	TypePong            = "pong"
	TypeCommand         = "command"
	TypeCommandResponse = "command_response"
)

// 未提供输入参数说明时的默认值
const defaultInputSchema = "no input parameters"

// ClientState 扩展客户端连接状态
type ClientState string

const (
	StateConnected    ClientState = "CONNECTED"
	StateReady        ClientState = "READY"
	StateDisconnected ClientState = "DISCONNECTED"
)

// ServerMessage 服务端 → 客户端
// call_command 消息中 ID 为命令名，Message 为命令参数
type ServerMessage struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Topic         string    `json:"topic"`
	Message       any       `json:"message"`
	CollectionID  *string   `json:"collectionId,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// ClientMessage 客户端 → 服务端
type ClientMessage struct {
	Type          string          `json:"type"`
	Payload       json.RawMessage `json:"payload"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

// SupportedCommand 扩展客户端声明的可调用命令
type SupportedCommand struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"inputSchema"`
}

// ExtensionTool 握手后记录的客户端元数据
type ExtensionTool struct {
	ClientID          string             `json:"client_id"`
	ApplicationName   string             `json:"application_name"`
	UserEntityName    string             `json:"user_entity_name"`
	SupportedCommands []SupportedCommand `json:"supported_commands"`
	State             ClientState        `json:"state"`
	ConnectedAt       time.Time          `json:"connected_at"`
	LastSeen          time.Time          `json:"last_seen"`
}

// pingCommand 握手 payload 中的单个命令声明
type pingCommand struct {
	App         string `json:"app" validate:"required"`
	EntityName  string `json:"entityName"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Input       any    `json:"input"`
}

type pingPayload struct {
	Commands []pingCommand `validate:"required,min=1,dive"`
}

// pingObject 对象形式的握手 payload，应用信息写在外层
type pingObject struct {
	App        string        `json:"app"`
	EntityName string        `json:"entityName"`
	Commands   []pingCommand `json:"commands"`
}

func newServerMessage(id, topic string, message any, correlationID string) ServerMessage {
	if id == "" {
		id = uuid.NewString()
	}
	return ServerMessage{
		ID:            id,
		Timestamp:     time.Now().UTC(),
		Topic:         topic,
		Message:       message,
		CorrelationID: correlationID,
	}
}

// expand 把外层的 app 与 entityName 填入每个命令
func (o pingObject) expand() []pingCommand {
	commands := make([]pingCommand, 0, len(o.Commands))
	for _, cmd := range o.Commands {
		if cmd.App == "" {
			cmd.App = o.App
		}
		if cmd.EntityName == "" {
			cmd.EntityName = o.EntityName
		}
		commands = append(commands, cmd)
	}
	return commands
}

func (c pingCommand) toSupported() SupportedCommand {
	schema := c.Input
	if schema == nil || schema == "" {
		schema = defaultInputSchema
	}
	return SupportedCommand{Name: c.Name, Description: c.Description, InputSchema: schema}
}
