package events

import (
	"errors"
	"testing"

	"golang.org/x/net/http2"
)

func TestPendingDataReceived(t *testing.T) {
	pending := NewPendingDataReceived(5)
	if pending.StreamID() != 5 {
		t.Fatalf("StreamID() = %d, want 5", pending.StreamID())
	}

	// Neither field populated
	_, err := pending.Finish()
	if !errors.Is(err, ErrUnsetField) {
		t.Fatalf("Finish() error = %v, want ErrUnsetField", err)
	}
	var unset *UnsetFieldError
	if !errors.As(err, &unset) || unset.Field != "data" {
		t.Fatalf("Finish() error = %v, want unset data", err)
	}

	// Data only
	pending.SetData([]byte("payload"))
	_, err = pending.Finish()
	if !errors.As(err, &unset) || unset.Field != "flow_controlled_length" {
		t.Fatalf("Finish() error = %v, want unset flow_controlled_length", err)
	}

	pending.SetFlowControlledLength(12)
	event, err := pending.Finish()
	if err != nil {
		t.Fatalf("Finish() unexpected error: %v", err)
	}
	if string(event.Data) != "payload" || event.FlowControlledLength != 12 || event.StreamID != 5 {
		t.Errorf("Finish() = %v", event)
	}
	if event.Padding() != 5 {
		t.Errorf("Padding() = %d, want 5", event.Padding())
	}
	if err := event.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestPendingDataReceivedNilData(t *testing.T) {
	event, err := NewPendingDataReceived(1).SetData(nil).SetFlowControlledLength(0).Finish()
	if err != nil {
		t.Fatalf("Finish() unexpected error: %v", err)
	}
	if event.Data == nil {
		t.Error("Data should be an empty payload, not absent")
	}
	if err := event.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestPendingDataReceivedCopiesData(t *testing.T) {
	buf := []byte("abc")
	pending := NewPendingDataReceived(1).SetData(buf).SetFlowControlledLength(3)
	buf[0] = 'x'

	event, err := pending.Finish()
	if err != nil {
		t.Fatalf("Finish() unexpected error: %v", err)
	}
	if string(event.Data) != "abc" {
		t.Errorf("Data = %q, want %q", event.Data, "abc")
	}
}

func TestPendingStreamReset(t *testing.T) {
	pending := NewPendingStreamReset(7)

	_, err := pending.Finish()
	var unset *UnsetFieldError
	if !errors.As(err, &unset) || unset.Field != "error_code" || unset.EventType != EventTypeStreamReset {
		t.Fatalf("Finish() error = %v, want unset error_code", err)
	}
	if got := err.Error(); got != "StreamReset: error_code: event field not populated" {
		t.Errorf("Error() = %q", got)
	}

	event, err := pending.SetErrorCode(http2.ErrCodeRefusedStream).Finish()
	if err != nil {
		t.Fatalf("Finish() unexpected error: %v", err)
	}
	if !event.RemoteReset {
		t.Error("RemoteReset should default to true")
	}
	if event.ErrorCode != http2.ErrCodeRefusedStream || event.StreamID != 7 {
		t.Errorf("Finish() = %v", event)
	}

	local, err := NewPendingStreamReset(9).SetRemoteReset(false).SetErrorCode(http2.ErrCode(0x1234)).Finish()
	if err != nil {
		t.Fatalf("Finish() unexpected error: %v", err)
	}
	if local.RemoteReset {
		t.Error("RemoteReset should be false for a locally generated reset")
	}
	if local.ErrorCode != http2.ErrCode(0x1234) {
		t.Errorf("ErrorCode = %v, want raw 0x1234", local.ErrorCode)
	}
}
