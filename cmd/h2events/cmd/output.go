package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/h2events/go-sdk/pkg/core/events"
	"github.com/h2events/go-sdk/pkg/transport"
)

// printer is a consumer that writes batches to w, one envelope per line in
// json format or one event per line in text format.
type printer struct {
	mu     sync.Mutex
	w      io.Writer
	asJSON bool
}

func newPrinter(w io.Writer, format string) *printer {
	return &printer{w: w, asJSON: strings.EqualFold(format, "json")}
}

func (p *printer) HandleBatch(_ context.Context, batch *events.Batch) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.asJSON {
		data, err := transport.EncodeBatch(batch)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(p.w, string(data))
		return err
	}

	if _, err := fmt.Fprintln(p.w, batch); err != nil {
		return err
	}
	for _, e := range batch.All() {
		if _, err := fmt.Fprintf(p.w, "  %s\n", e); err != nil {
			return err
		}
	}
	return nil
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeInfo prints a tracker summary.
func writeInfo(w io.Writer, info *events.TrackerInfo, asJSON bool) error {
	if asJSON {
		return writeJSON(w, info)
	}

	fmt.Fprintf(w, "batches: %d\n", info.TotalBatches)
	fmt.Fprintf(w, "events: %d (retained %d)\n", info.TotalEvents, info.RetainedEvents)
	for _, t := range events.AllEventTypes() {
		if n := info.Counts[t]; n > 0 {
			fmt.Fprintf(w, "  %s: %d\n", t, n)
		}
	}
	fmt.Fprintf(w, "closed streams: %d\n", info.ClosedStreams)
	if info.Terminated && info.ErrorCode != nil {
		fmt.Fprintf(w, "terminated: %s\n", info.ErrorCode)
	} else {
		fmt.Fprintln(w, "terminated: false")
	}
	_, err := fmt.Fprintf(w, "remote settings: %s\n", snapshotString(info.RemoteSettings))
	return err
}
