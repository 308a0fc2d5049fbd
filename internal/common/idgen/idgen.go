// Package idgen 提供业务单号生成（snowflake）
package idgen

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	mu   sync.RWMutex
)

// Init 按节点号初始化生成器，节点号范围 0-1023
func Init(nodeID int64) error {
	n, err := snowflake.NewNode(nodeID)
	if err != nil {
		return fmt.Errorf("init snowflake node %d: %w", nodeID, err)
	}
	mu.Lock()
	node = n
	mu.Unlock()
	return nil
}

func current() *snowflake.Node {
	mu.RLock()
	n := node
	mu.RUnlock()
	if n != nil {
		return n
	}

	mu.Lock()
	defer mu.Unlock()
	if node == nil {
		node, _ = snowflake.NewNode(1)
	}
	return node
}

// NextID 生成新的 snowflake ID
func NextID() int64 {
	return current().Generate().Int64()
}

// MemberNo 生成会员编号
func MemberNo() string {
	return current().Generate().String()
}

// RechargeNo 生成充值单号
func RechargeNo() string {
	return "R" + current().Generate().String()
}

// ConsumptionNo 生成消费单号
func ConsumptionNo() string {
	return "C" + current().Generate().String()
}
