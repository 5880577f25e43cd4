// Package broadcast 把流水线各阶段的状态消息推送给已连接的WebSocket客户端
package broadcast

import (
	"sync"
	"time"

	"mystery-narrator/pkg/types"
)

// GlobalBroadcastService 全局广播服务
var GlobalBroadcastService *BroadcastService

// BroadcastService 广播服务结构
type BroadcastService struct {
	broadcastChan chan types.StageLog
	clients       map[*Client]bool
	register      chan *Client
	unregister    chan *Client // 通道用于注销特定客户端
	shutdown      chan bool    // 通道用于关闭整个服务
	mutex         sync.Mutex
}

// Client 表示一个WebSocket客户端
type Client struct {
	Conn interface{}         // WebSocket连接
	Send chan types.StageLog // 通道用于发送消息
}

// NewBroadcastService 创建新的广播服务
func NewBroadcastService() *BroadcastService {
	if GlobalBroadcastService != nil {
		return GlobalBroadcastService
	}
	return &BroadcastService{
		broadcastChan: make(chan types.StageLog, 100),
		clients:       make(map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		shutdown:      make(chan bool),
	}
}

// Start 启动广播服务
func (b *BroadcastService) Start(wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case client := <-b.register:
			b.mutex.Lock()
			b.clients[client] = true
			b.mutex.Unlock()
		case client := <-b.unregister:
			b.mutex.Lock()
			if _, ok := b.clients[client]; ok {
				delete(b.clients, client)
				close(client.Send)
			}
			b.mutex.Unlock()
		case <-b.shutdown:
			b.mutex.Lock()
			for client := range b.clients {
				delete(b.clients, client)
				close(client.Send)
			}
			b.mutex.Unlock()
			return
		case message := <-b.broadcastChan:
			b.mutex.Lock()
			for client := range b.clients {
				select {
				case client.Send <- message:
				default:
					// 发送失败说明客户端已阻塞，直接移除
					delete(b.clients, client)
					close(client.Send)
				}
			}
			b.mutex.Unlock()
		}
	}
}

// SendStage 推送一条阶段状态消息
// msgType取"info"、"success"、"degraded"或"error"
func (b *BroadcastService) SendStage(stage, msg, msgType string) {
	b.broadcastChan <- types.StageLog{
		Stage:     stage,
		Message:   msg,
		Type:      msgType,
		Timestamp: GetTimeStr(),
	}
}

// RegisterClient 注册客户端
func (b *BroadcastService) RegisterClient(conn interface{}) *Client {
	client := &Client{
		Conn: conn,
		Send: make(chan types.StageLog, 256), // 缓冲通道，避免阻塞
	}
	b.register <- client
	return client
}

// UnregisterClient 注销客户端
func (b *BroadcastService) UnregisterClient(client *Client) {
	b.unregister <- client
}

// Close 关闭广播服务
func (b *BroadcastService) Close() {
	b.shutdown <- true
}

func GetTimeStr() string {
	return time.Now().Format("2006-01-02 15:04:05")
}
