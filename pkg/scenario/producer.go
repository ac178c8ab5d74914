package scenario

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/h2events/go-sdk/pkg/core/events"
	"github.com/h2events/go-sdk/pkg/settings"
	"github.com/h2events/go-sdk/pkg/transport"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
)

// Producer turns a scenario into batches the way a connection would emit
// them. Settings diffs are computed against the values each peer announced
// earlier in the scenario.
type Producer struct {
	scenario *Scenario
	policy   events.NestingPolicy
	interval time.Duration
	logger   logrus.FieldLogger
}

// Option configures a Producer
type Option func(*Producer)

// WithNestingPolicy sets the nesting policy of the produced batches
func WithNestingPolicy(policy events.NestingPolicy) Option {
	return func(p *Producer) {
		p.policy = policy
	}
}

// WithInterval sets the pause between delivered batches
func WithInterval(d time.Duration) Option {
	return func(p *Producer) {
		p.interval = d
	}
}

// WithLogger sets the logger
func WithLogger(logger logrus.FieldLogger) Option {
	return func(p *Producer) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProducer creates a producer for s
func NewProducer(s *Scenario, options ...Option) *Producer {
	p := &Producer{
		scenario: s,
		policy:   events.NestAndFlatten,
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Batches builds every batch of the scenario.
func (p *Producer) Batches() ([]*events.Batch, error) {
	remote := settings.DefaultSnapshot(!p.scenario.LocalClient)
	local := settings.DefaultSnapshot(p.scenario.LocalClient)

	out := make([]*events.Batch, 0, len(p.scenario.Batches))
	for i, scripted := range p.scenario.Batches {
		builder := events.NewBatchBuilder(
			events.WithNestingPolicy(p.policy),
			events.WithBatchID(scripted.ID),
		)
		for j, step := range scripted.Events {
			var err error
			remote, local, err = addStep(builder, step, remote, local)
			if err != nil {
				return nil, fmt.Errorf("batch %d event %d (%s): %w", i, j, step.Type, err)
			}
		}
		batch, err := builder.Build()
		if err != nil {
			return nil, fmt.Errorf("batch %d: %w", i, err)
		}
		out = append(out, batch)
	}
	return out, nil
}

// Run builds the scenario and hands each batch to consumer in order.
func (p *Producer) Run(ctx context.Context, consumer transport.Consumer) error {
	batches, err := p.Batches()
	if err != nil {
		return err
	}

	log := p.logger.WithField("scenario", p.scenario.Name)
	for i, batch := range batches {
		if i > 0 && p.interval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.interval):
			}
		}
		if err := consumer.HandleBatch(ctx, batch); err != nil {
			return fmt.Errorf("deliver batch %s: %w", batch.ID(), err)
		}
		log.WithFields(logrus.Fields{
			"batch_id": batch.ID(),
			"events":   batch.Len(),
		}).Debug("delivered batch")
	}
	return nil
}

func addStep(b *events.BatchBuilder, step Step, remote, local settings.Snapshot) (settings.Snapshot, settings.Snapshot, error) {
	switch t := step.eventType(); t {
	case events.EventTypeRequestReceived:
		b.AddHeaders(events.NewRequestReceived(step.Stream, step.headerList()), step.composition()...)
	case events.EventTypeResponseReceived:
		b.AddHeaders(events.NewResponseReceived(step.Stream, step.headerList()), step.composition()...)
	case events.EventTypeTrailersReceived:
		b.AddHeaders(events.NewTrailersReceived(step.Stream, step.headerList()), step.composition()...)
	case events.EventTypeInformationalResponseReceived:
		b.AddHeaders(events.NewInformationalResponseReceived(step.Stream, step.headerList()), step.composition()...)

	case events.EventTypePushedStreamReceived:
		b.Add(events.NewPushedStreamReceived(step.PushedStream, step.Stream, step.headerList()))

	case events.EventTypeDataReceived:
		data, err := step.payload()
		if err != nil {
			return remote, local, err
		}
		pending := events.NewPendingDataReceived(step.Stream).
			SetData(data).
			SetFlowControlledLength(len(data) + step.Padding)
		b.AddData(pending, step.EndStream)

	case events.EventTypeWindowUpdated:
		b.Add(events.NewWindowUpdated(step.Stream, step.Delta))

	case events.EventTypeRemoteSettingsChanged:
		values, err := step.settingValues()
		if err != nil {
			return remote, local, err
		}
		changes := remote.Diff(values)
		b.Add(events.NewRemoteSettingsChanged(changes))
		remote = remote.With(changes)

	case events.EventTypeSettingsAcknowledged:
		values, err := step.settingValues()
		if err != nil {
			return remote, local, err
		}
		changes := local.Diff(values)
		b.Add(events.NewSettingsAcknowledged(changes))
		local = local.With(changes)

	case events.EventTypePingReceived, events.EventTypePingAckReceived:
		data, err := step.pingData()
		if err != nil {
			return remote, local, err
		}
		if t == events.EventTypePingReceived {
			b.Add(events.NewPingReceived(data))
		} else {
			b.Add(events.NewPingAckReceived(data))
		}

	case events.EventTypeStreamEnded:
		b.Add(events.NewStreamEnded(step.Stream))

	case events.EventTypeStreamReset:
		code, err := ParseErrCode(step.ErrorCode)
		if err != nil {
			return remote, local, err
		}
		b.AddReset(events.NewPendingStreamReset(step.Stream).
			SetErrorCode(code).
			SetRemoteReset(!step.LocalReset))

	case events.EventTypePriorityUpdated:
		if step.Priority == nil {
			return remote, local, fmt.Errorf("priority is required")
		}
		b.Add(events.NewPriorityUpdated(step.Stream, step.Priority.Weight, step.Priority.DependsOn, step.Priority.Exclusive))

	case events.EventTypeConnectionTerminated:
		code, err := ParseErrCode(step.ErrorCode)
		if err != nil {
			return remote, local, err
		}
		var additional []byte
		if step.Data != "" || step.DataHex != "" {
			if additional, err = step.payload(); err != nil {
				return remote, local, err
			}
		}
		b.Add(events.NewConnectionTerminated(code, step.LastStream, additional))

	case events.EventTypeAlternativeServiceAvailable:
		b.Add(events.NewAlternativeServiceAvailable([]byte(step.Origin), []byte(step.FieldValue)))

	case events.EventTypeUnknownFrameReceived:
		payload, err := hex.DecodeString(step.PayloadHex)
		if err != nil {
			return remote, local, fmt.Errorf("payload_hex: %w", err)
		}
		frame, err := events.ReadRawFrame(http2.FrameType(step.FrameType), http2.Flags(step.FrameFlags), step.Stream, payload)
		if err != nil {
			return remote, local, err
		}
		b.Add(events.NewUnknownFrameReceived(frame))

	default:
		return remote, local, fmt.Errorf("unknown event type %q", step.Type)
	}

	return remote, local, b.Err()
}

func (s Step) composition() []events.CompositionOption {
	var opts []events.CompositionOption
	if s.EndStream {
		opts = append(opts, events.EndStream())
	}
	if s.Priority != nil {
		opts = append(opts, events.WithPriority(s.Priority.Weight, s.Priority.DependsOn, s.Priority.Exclusive))
	}
	return opts
}
