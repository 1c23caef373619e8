package simulation

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Messages understood by the FlockActor. They are protobuf well-known types so they
// travel through goakt without generated code:
//
//	*durationpb.Duration  advance the flock by one tick of that length
//	*structpb.Struct      apply config updates, field name -> number
//	*emptypb.Empty        ask for a summary of the current state

// NewTick builds a tick message.
func NewTick(dt time.Duration) *durationpb.Duration {
	return durationpb.New(dt)
}

// NewConfigUpdate builds a config update message from setting names to values.
func NewConfigUpdate(values map[string]float64) *structpb.Struct {
	msg := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(values))}
	for name, v := range values {
		msg.Fields[name] = structpb.NewNumberValue(v)
	}
	return msg
}

// NewSnapshotRequest builds the message answered with Snapshot.Summary.
func NewSnapshotRequest() *emptypb.Empty {
	return &emptypb.Empty{}
}

// configValues extracts the numbers of a config update message.
func configValues(msg *structpb.Struct) (map[string]float64, error) {
	values := make(map[string]float64, len(msg.GetFields()))
	for name, v := range msg.GetFields() {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not a number", ErrUnsupportedSetting, name)
		}
		values[name] = n.NumberValue
	}
	return values, nil
}
