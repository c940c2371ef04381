package grpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName 内容子类型，对应 content-type application/grpc+json
const CodecName = "json"

// jsonCodec 以 JSON 编码 gRPC 消息，服务没有 protobuf 生成代码
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
