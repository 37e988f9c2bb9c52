// Package rpc defines the Connect services of the ledger: wire messages, procedure
// names, handler constructors and clients. Messages are plain Go structs carried by a
// JSON codec.
package rpc

import (
	"encoding/json"
	"fmt"

	"connectrpc.com/connect"
)

const (
	codecNameJSON            = "json"
	codecNameJSONCharsetUTF8 = codecNameJSON + "; charset=utf-8"
)

type jsonCodec struct {
	name string
}

func (c jsonCodec) Name() string { return c.name }

func (c jsonCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (c jsonCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("failed to decode %T: %w", msg, err)
	}
	return nil
}

// handlerDefaults replaces the protobuf JSON codecs, which only accept generated
// messages, with plain JSON ones.
func handlerDefaults() []connect.HandlerOption {
	return []connect.HandlerOption{
		connect.WithCodec(jsonCodec{codecNameJSON}),
		connect.WithCodec(jsonCodec{codecNameJSONCharsetUTF8}),
	}
}

func clientDefaults() []connect.ClientOption {
	return []connect.ClientOption{connect.WithCodec(jsonCodec{codecNameJSON})}
}
