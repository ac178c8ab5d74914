package transport

import (
	"encoding/json"
	"fmt"

	"github.com/h2events/go-sdk/pkg/core/events"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Envelope is the wire form of a batch.
type Envelope struct {
	BatchID string               `json:"batch_id"`
	Policy  events.NestingPolicy `json:"policy"`
	Events  []json.RawMessage    `json:"events"`
}

// EncodeBatch encodes a batch as a JSON envelope.
func EncodeBatch(batch *events.Batch) ([]byte, error) {
	if batch == nil {
		return nil, fmt.Errorf("cannot encode nil batch")
	}
	raw, err := events.EventsToJSON(batch.Events())
	if err != nil {
		return nil, fmt.Errorf("encode batch %s: %w", batch.ID(), err)
	}
	return json.Marshal(Envelope{
		BatchID: batch.ID(),
		Policy:  batch.Policy(),
		Events:  raw,
	})
}

// DecodeBatch decodes a JSON envelope and validates the batch it carries.
func DecodeBatch(data []byte) (*events.Batch, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	decoded, err := events.EventsFromJSON(env.Events)
	if err != nil {
		return nil, fmt.Errorf("decode batch %s: %w", env.BatchID, err)
	}
	return events.NewBatch(env.BatchID, env.Policy, decoded)
}

// BatchToStruct converts a batch to a google.protobuf.Struct with the same
// fields as the JSON envelope.
func BatchToStruct(batch *events.Batch) (*structpb.Struct, error) {
	if batch == nil {
		return nil, fmt.Errorf("cannot encode nil batch")
	}
	list := &structpb.ListValue{Values: make([]*structpb.Value, 0, batch.Len())}
	for i, e := range batch.All() {
		pb, err := e.ToProtobuf()
		if err != nil {
			return nil, fmt.Errorf("encode batch %s event %d: %w", batch.ID(), i, err)
		}
		list.Values = append(list.Values, structpb.NewStructValue(pb))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"batch_id": structpb.NewStringValue(batch.ID()),
		"policy":   structpb.NewStringValue(batch.Policy().String()),
		"events":   structpb.NewListValue(list),
	}}, nil
}

// BatchFromStruct decodes an envelope produced by BatchToStruct and
// validates the batch it carries.
func BatchFromStruct(env *structpb.Struct) (*events.Batch, error) {
	if env == nil {
		return nil, fmt.Errorf("decode envelope: nil struct")
	}
	fields := env.GetFields()

	policy, err := events.ParseNestingPolicy(fields["policy"].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	batchID := fields["batch_id"].GetStringValue()

	values := fields["events"].GetListValue().GetValues()
	decoded := make([]events.Event, 0, len(values))
	for i, v := range values {
		e, err := events.EventFromProtobuf(v.GetStructValue())
		if err != nil {
			return nil, fmt.Errorf("decode batch %s event %d: %w", batchID, i, err)
		}
		decoded = append(decoded, e)
	}
	return events.NewBatch(batchID, policy, decoded)
}

// EncodeBatchProto encodes a batch as a binary google.protobuf.Struct.
func EncodeBatchProto(batch *events.Batch) ([]byte, error) {
	env, err := BatchToStruct(batch)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(env)
}

// DecodeBatchProto decodes an envelope produced by EncodeBatchProto.
func DecodeBatchProto(data []byte) (*events.Batch, error) {
	env := &structpb.Struct{}
	if err := proto.Unmarshal(data, env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return BatchFromStruct(env)
}
