package storage

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sajjad-MoBe/txlog/internal/command"
	txErr "github.com/sajjad-MoBe/txlog/internal/errors"
)

// Node is a graph node with its properties.
type Node struct {
	ID         int64
	Properties map[string][]byte
}

// Relationship is a typed edge between two nodes.
type Relationship struct {
	ID   int64
	Type string
	From int64
	To   int64
}

// StoreMetrics tracks store activity
type StoreMetrics struct {
	Nodes         int64 `json:"nodes"`
	Relationships int64 `json:"relationships"`
	Transactions  int64 `json:"transactions"`
	Commands      int64 `json:"commands"`
	ErrorCount    int64 `json:"error_count"`
	LastTxID      int64 `json:"last_tx_id"`
}

// Store is an in-memory graph store that committed transactions are
// applied to. A transaction is applied completely or not at all.
type Store struct {
	nodes   map[int64]*Node
	rels    map[int64]*Relationship
	mutex   sync.RWMutex
	metrics StoreMetrics
}

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{
		nodes: make(map[int64]*Node),
		rels:  make(map[int64]*Relationship),
	}
}

// Apply applies the commands of committed transaction txID.
func (s *Store) Apply(txID int64, cmds []command.Command) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var undo []func()
	for i, cmd := range cmds {
		rc, ok := cmd.(*RecordCommand)
		if !ok {
			s.rollback(undo)
			atomic.AddInt64(&s.metrics.ErrorCount, 1)
			return txErr.Newf(txErr.ErrorTypeInvalidInput, "tx %d: command %d is %T, not a record command", txID, i, cmd)
		}
		u, err := s.applyLocked(rc)
		if err != nil {
			s.rollback(undo)
			atomic.AddInt64(&s.metrics.ErrorCount, 1)
			return txErr.WithMessage(err, fmt.Sprintf(" (tx %d, command %d)", txID, i))
		}
		undo = append(undo, u)
	}

	atomic.AddInt64(&s.metrics.Transactions, 1)
	atomic.AddInt64(&s.metrics.Commands, int64(len(cmds)))
	atomic.StoreInt64(&s.metrics.LastTxID, txID)
	atomic.StoreInt64(&s.metrics.Nodes, int64(len(s.nodes)))
	atomic.StoreInt64(&s.metrics.Relationships, int64(len(s.rels)))
	return nil
}

func (s *Store) rollback(undo []func()) {
	for i := len(undo) - 1; i >= 0; i-- {
		undo[i]()
	}
}

// applyLocked applies c and returns a function reverting it.
func (s *Store) applyLocked(c *RecordCommand) (func(), error) {
	switch c.Kind {
	case KindNodeCreate:
		if _, exists := s.nodes[c.ID]; exists {
			return nil, txErr.Newf(txErr.ErrorTypeInvalidInput, "node %d already exists", c.ID)
		}
		s.nodes[c.ID] = &Node{ID: c.ID, Properties: make(map[string][]byte)}
		return func() { delete(s.nodes, c.ID) }, nil

	case KindNodeDelete:
		node, exists := s.nodes[c.ID]
		if !exists {
			return nil, txErr.Newf(txErr.ErrorTypeNotFound, "node %d not found", c.ID)
		}
		for _, rel := range s.rels {
			if rel.From == c.ID || rel.To == c.ID {
				return nil, txErr.Newf(txErr.ErrorTypeInvalidInput, "node %d still has relationship %d", c.ID, rel.ID)
			}
		}
		delete(s.nodes, c.ID)
		return func() { s.nodes[c.ID] = node }, nil

	case KindRelCreate:
		if _, exists := s.rels[c.ID]; exists {
			return nil, txErr.Newf(txErr.ErrorTypeInvalidInput, "relationship %d already exists", c.ID)
		}
		from, to, err := c.Endpoints()
		if err != nil {
			return nil, txErr.New(txErr.ErrorTypeInvalidInput, "invalid relationship", err)
		}
		for _, id := range []int64{from, to} {
			if _, exists := s.nodes[id]; !exists {
				return nil, txErr.Newf(txErr.ErrorTypeNotFound, "relationship %d endpoint node %d not found", c.ID, id)
			}
		}
		s.rels[c.ID] = &Relationship{ID: c.ID, Type: c.Key, From: from, To: to}
		return func() { delete(s.rels, c.ID) }, nil

	case KindRelDelete:
		rel, exists := s.rels[c.ID]
		if !exists {
			return nil, txErr.Newf(txErr.ErrorTypeNotFound, "relationship %d not found", c.ID)
		}
		delete(s.rels, c.ID)
		return func() { s.rels[c.ID] = rel }, nil

	case KindPropertySet, KindPropertyRemove:
		node, exists := s.nodes[c.ID]
		if !exists {
			return nil, txErr.Newf(txErr.ErrorTypeNotFound, "node %d not found", c.ID)
		}
		old, had := node.Properties[c.Key]
		if c.Kind == KindPropertySet {
			node.Properties[c.Key] = append([]byte(nil), c.Value...)
		} else {
			delete(node.Properties, c.Key)
		}
		return func() {
			if had {
				node.Properties[c.Key] = old
			} else {
				delete(node.Properties, c.Key)
			}
		}, nil
	}
	return nil, txErr.Newf(txErr.ErrorTypeInvalidInput, "unknown command kind %s", c.Kind)
}

// GetNode returns a copy of node id.
func (s *Store) GetNode(id int64) (*Node, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	node, exists := s.nodes[id]
	if !exists {
		return nil, txErr.Newf(txErr.ErrorTypeNotFound, "node %d not found", id)
	}
	props := make(map[string][]byte, len(node.Properties))
	for k, v := range node.Properties {
		props[k] = append([]byte(nil), v...)
	}
	return &Node{ID: node.ID, Properties: props}, nil
}

// GetRelationship returns a copy of relationship id.
func (s *Store) GetRelationship(id int64) (*Relationship, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	rel, exists := s.rels[id]
	if !exists {
		return nil, txErr.Newf(txErr.ErrorTypeNotFound, "relationship %d not found", id)
	}
	copied := *rel
	return &copied, nil
}

// NodeIDs returns all node ids in ascending order.
func (s *Store) NodeIDs() []int64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	ids := make([]int64, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// GetMetrics returns a snapshot of the store metrics
func (s *Store) GetMetrics() StoreMetrics {
	return StoreMetrics{
		Nodes:         atomic.LoadInt64(&s.metrics.Nodes),
		Relationships: atomic.LoadInt64(&s.metrics.Relationships),
		Transactions:  atomic.LoadInt64(&s.metrics.Transactions),
		Commands:      atomic.LoadInt64(&s.metrics.Commands),
		ErrorCount:    atomic.LoadInt64(&s.metrics.ErrorCount),
		LastTxID:      atomic.LoadInt64(&s.metrics.LastTxID),
	}
}
