package bus

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodec lets the grpc transport move request/response envelopes
// without a protoc-generated message type: grpc only requires a codec
// that can Marshal/Unmarshal whatever Go value the service handler
// passes it, and the standard library's json package is exactly that.
const jsonCodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return jsonCodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
