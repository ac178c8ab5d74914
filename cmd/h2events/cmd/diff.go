package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/h2events/go-sdk/pkg/settings"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
)

func (a *app) newDiffCmd() *cobra.Command {
	var peerClient bool

	cmd := &cobra.Command{
		Use:   "diff SETTING=VALUE...",
		Short: "Show the changed settings a SETTINGS frame produces",
		Long: `diff compares the values announced in one SETTINGS frame against the
protocol defaults of the announcing peer and prints the changed settings, the
equivalent JSON patch and the resulting settings.`,
		Example: `  h2events diff HEADER_TABLE_SIZE=8192 MAX_CONCURRENT_STREAMS=100
  h2events diff --client -o json ENABLE_PUSH=0`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			announced, err := parseAssignments(args)
			if err != nil {
				return err
			}

			current := settings.DefaultSnapshot(peerClient)
			changes := current.Diff(announced)
			patch, err := changes.JSONPatch()
			if err != nil {
				return err
			}
			next, err := current.ApplyJSONPatch(patch)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if strings.EqualFold(a.cfg.OutputFormat, "json") {
				return writeJSON(out, struct {
					ChangedSettings settings.Changes  `json:"changed_settings"`
					Patch           json.RawMessage   `json:"patch"`
					Settings        settings.Snapshot `json:"settings"`
				}{changes, patch, next})
			}

			for _, id := range changes.IDs() {
				fmt.Fprintln(out, changes[id])
			}
			fmt.Fprintf(out, "patch: %s\n", patch)
			fmt.Fprintf(out, "settings: %s\n", snapshotString(next))
			return nil
		},
	}

	cmd.Flags().BoolVar(&peerClient, "client", false, "the announcing peer is a client (ENABLE_PUSH defaults to 1)")
	return cmd
}

func parseAssignments(args []string) (map[http2.SettingID]uint32, error) {
	out := make(map[http2.SettingID]uint32, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("expected SETTING=VALUE, got %q", arg)
		}
		id, err := settings.ParseID(name)
		if err != nil {
			return nil, err
		}
		v, err := strconv.ParseUint(strings.TrimSpace(value), 0, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", name, err)
		}
		if _, dup := out[id]; dup {
			return nil, fmt.Errorf("setting %s given twice", name)
		}
		out[id] = uint32(v)
	}
	return out, nil
}

func snapshotString(s settings.Snapshot) string {
	values := s.Values()
	ids := make([]http2.SettingID, 0, len(values))
	for id := range values {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		name, _ := settings.Name(id)
		parts = append(parts, fmt.Sprintf("%s=%d", name, values[id]))
	}
	return strings.Join(parts, " ")
}
