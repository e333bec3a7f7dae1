package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/sajjad-MoBe/txlog/internal/channel"
	"github.com/sajjad-MoBe/txlog/internal/command"
	txErr "github.com/sajjad-MoBe/txlog/internal/errors"
)

// Kind identifies a record command. Zero is reserved for command.None.
type Kind byte

const (
	KindNodeCreate     Kind = 1
	KindNodeDelete     Kind = 2
	KindRelCreate      Kind = 3
	KindRelDelete      Kind = 4
	KindPropertySet    Kind = 5
	KindPropertyRemove Kind = 6
)

var kindNames = map[Kind]string{
	KindNodeCreate:     "NODE_CREATE",
	KindNodeDelete:     "NODE_DELETE",
	KindRelCreate:      "REL_CREATE",
	KindRelDelete:      "REL_DELETE",
	KindPropertySet:    "PROPERTY_SET",
	KindPropertyRemove: "PROPERTY_REMOVE",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", byte(k))
}

func (k Kind) isRelationship() bool {
	return k == KindRelCreate || k == KindRelDelete
}

// RecordCommand is a single graph record mutation.
//
// For relationships, Key is the relationship type and Value holds the start
// and end node ids. For properties, ID is the owning node.
type RecordCommand struct {
	Kind  Kind
	ID    int64
	Key   string
	Value []byte
}

var _ command.Command = (*RecordCommand)(nil)

// NodeCreate creates node id.
func NodeCreate(id int64) *RecordCommand {
	return &RecordCommand{Kind: KindNodeCreate, ID: id, Value: []byte{}}
}

// NodeDelete deletes node id.
func NodeDelete(id int64) *RecordCommand {
	return &RecordCommand{Kind: KindNodeDelete, ID: id, Value: []byte{}}
}

// RelCreate creates relationship id of relType from one node to another.
func RelCreate(id int64, relType string, from, to int64) *RecordCommand {
	value := make([]byte, 16)
	binary.BigEndian.PutUint64(value[:8], uint64(from))
	binary.BigEndian.PutUint64(value[8:], uint64(to))
	return &RecordCommand{Kind: KindRelCreate, ID: id, Key: relType, Value: value}
}

// RelDelete deletes relationship id.
func RelDelete(id int64) *RecordCommand {
	return &RecordCommand{Kind: KindRelDelete, ID: id, Value: []byte{}}
}

// PropertySet sets a property on node id.
func PropertySet(id int64, key string, value []byte) *RecordCommand {
	if value == nil {
		value = []byte{}
	}
	return &RecordCommand{Kind: KindPropertySet, ID: id, Key: key, Value: value}
}

// PropertyRemove removes a property from node id.
func PropertyRemove(id int64, key string) *RecordCommand {
	return &RecordCommand{Kind: KindPropertyRemove, ID: id, Key: key, Value: []byte{}}
}

// Serialize writes kind:byte, id:i64, keyLen:i32, key, valLen:i32, value.
func (c *RecordCommand) Serialize(ch channel.WritableChannel) error {
	if _, ok := kindNames[c.Kind]; !ok {
		return txErr.Newf(txErr.ErrorTypeInvalidInput, "cannot serialize command of unknown kind %d", c.Kind)
	}
	if err := ch.Put(byte(c.Kind)); err != nil {
		return err
	}
	if err := ch.PutLong(c.ID); err != nil {
		return err
	}
	if err := ch.PutInt(int32(len(c.Key))); err != nil {
		return err
	}
	if err := ch.PutBytes([]byte(c.Key)); err != nil {
		return err
	}
	if err := ch.PutInt(int32(len(c.Value))); err != nil {
		return err
	}
	return ch.PutBytes(c.Value)
}

// Endpoints returns the start and end node of a REL_CREATE command.
func (c *RecordCommand) Endpoints() (from, to int64, err error) {
	if c.Kind != KindRelCreate || len(c.Value) != 16 {
		return 0, 0, fmt.Errorf("%s command carries no relationship endpoints", c.Kind)
	}
	return int64(binary.BigEndian.Uint64(c.Value[:8])), int64(binary.BigEndian.Uint64(c.Value[8:])), nil
}

func (c *RecordCommand) String() string {
	switch c.Kind {
	case KindRelCreate:
		from, to, _ := c.Endpoints()
		return fmt.Sprintf("%s[id=%d, type=%s, from=%d, to=%d]", c.Kind, c.ID, c.Key, from, to)
	case KindPropertySet:
		return fmt.Sprintf("%s[node=%d, %s=%q]", c.Kind, c.ID, c.Key, c.Value)
	case KindPropertyRemove:
		return fmt.Sprintf("%s[node=%d, key=%s]", c.Kind, c.ID, c.Key)
	}
	return fmt.Sprintf("%s[id=%d]", c.Kind, c.ID)
}
