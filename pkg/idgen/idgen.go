// Package idgen 提供雪花算法 ID 生成器，保证按提交时间单调且唯一
package idgen

import (
	"fmt"
	"sync"
	"time"
)

// Generator 雪花 ID 生成器
type Generator struct {
	mu        sync.Mutex
	timestamp int64
	sequence  int64
	nodeID    int64
}

// New 创建生成器，nodeID 取低 10 位
func New(nodeID int64) *Generator {
	return &Generator{nodeID: nodeID & 0x3FF}
}

// Next 生成下一个 ID：timestamp(41 bits) + nodeID(10 bits) + sequence(12 bits)
func (g *Generator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UnixMilli()

	// 时钟回拨时等待追平，避免在更早的时间戳上复用序列号
	for now < g.timestamp {
		now = time.Now().UnixMilli()
	}

	if now == g.timestamp {
		g.sequence = (g.sequence + 1) & 0xFFF
		if g.sequence == 0 {
			// 同一毫秒内序列耗尽，等待下一毫秒
			for now <= g.timestamp {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		g.sequence = 0
	}

	g.timestamp = now
	return (now << 22) | (g.nodeID << 12) | g.sequence
}

// NextClaimID 生成理赔编号
func (g *Generator) NextClaimID() string {
	return fmt.Sprintf("CLM-%d", g.Next())
}
