package ident

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Init initializes the snowflake node. Call once at process start; the node
// id distinguishes api and worker processes writing audit rows concurrently.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// Next returns a time-ordered int64 id. Append-only rows (transitions,
// automation events, delivery attempts) use these so that ordering by primary
// key is chronological without a separate sequence column.
func Next() int64 {
	return node.Generate().Int64()
}
