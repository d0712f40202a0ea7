package circuit

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Marshal encodes the circuit to its compact binary form. The encoding
// is deterministic for identical circuits; it is the payload format of
// the oracle-circuit cache and the remote execution wire protocol.
func (c *Circuit) Marshal() ([]byte, error) {
	data, err := msgpack.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("circuit: marshal failed: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a circuit previously produced by Marshal.
func Unmarshal(data []byte) (*Circuit, error) {
	var c Circuit
	if err := msgpack.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("circuit: unmarshal failed: %w", err)
	}
	return &c, nil
}
