// Package msgs defines the protobuf messages published alongside the data
// stream.
package msgs

import (
	"github.com/golang/protobuf/proto"
)

// Status reports the streaming state of a device.
type Status struct {
	State          string `protobuf:"bytes,1,opt,name=state,proto3" json:"state,omitempty"`
	Streaming      bool   `protobuf:"varint,2,opt,name=streaming,proto3" json:"streaming,omitempty"`
	BatteryPercent uint32 `protobuf:"varint,3,opt,name=battery_percent,proto3" json:"battery_percent,omitempty"`
	PacketsSent    uint64 `protobuf:"varint,4,opt,name=packets_sent,proto3" json:"packets_sent,omitempty"`
	FramesDropped  uint64 `protobuf:"varint,5,opt,name=frames_dropped,proto3" json:"frames_dropped,omitempty"`
	Timestamp      int64  `protobuf:"varint,6,opt,name=timestamp,proto3" json:"timestamp,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *Status) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Status) Reset() { *m = Status{} }

// String implements proto.Message.
func (m *Status) String() string { return proto.CompactTextString(m) }

// Indicator reports a status pixel change.
type Indicator struct {
	Pixel      uint32 `protobuf:"varint,1,opt,name=pixel,proto3" json:"pixel,omitempty"`
	Hue        uint32 `protobuf:"varint,2,opt,name=hue,proto3" json:"hue,omitempty"`
	Brightness uint32 `protobuf:"varint,3,opt,name=brightness,proto3" json:"brightness,omitempty"`
	Rgb        []byte `protobuf:"bytes,4,opt,name=rgb,proto3" json:"rgb,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *Indicator) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Indicator) Reset() { *m = Indicator{} }

// String implements proto.Message.
func (m *Indicator) String() string { return proto.CompactTextString(m) }

// Encode serializes a message.
func Encode(msg proto.Message) ([]byte, error) {
	return proto.Marshal(msg)
}

// DecodeStatus parses a Status.
func DecodeStatus(b []byte) (*Status, error) {
	m := &Status{}
	if err := proto.Unmarshal(b, m); err != nil {
		return nil, err
	}
	return m, nil
}

// DecodeIndicator parses an Indicator.
func DecodeIndicator(b []byte) (*Indicator, error) {
	m := &Indicator{}
	if err := proto.Unmarshal(b, m); err != nil {
		return nil, err
	}
	return m, nil
}
