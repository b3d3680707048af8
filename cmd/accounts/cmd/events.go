package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/nfrund/accounts/internal/pubsub"
	"github.com/spf13/cobra"
)

var eventsOutputFormat string

// eventsCmd represents the events command
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List the account lifecycle events",
	Long: `List every event the service publishes on its bus, with the payload
fields subscribers receive.

Examples:
  accounts events                 # table format
  accounts events --format json   # machine-readable`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printEvents(cmd.OutOrStdout(), eventsOutputFormat, pubsub.Events())
	},
}

type eventDisplay struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Payload     string   `json:"payload"`
	Fields      []string `json:"fields"`
}

func printEvents(w io.Writer, format string, events []pubsub.EventInfo) error {
	switch format {
	case "table":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tPAYLOAD\tFIELDS\tDESCRIPTION")
		fmt.Fprintln(tw, "----\t-------\t------\t-----------")
		for _, e := range events {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Name, e.TypeName, strings.Join(e.PayloadFields, ","), e.Description)
		}
		return tw.Flush()
	case "json":
		displays := make([]eventDisplay, len(events))
		for i, e := range events {
			displays[i] = eventDisplay{Name: e.Name, Description: e.Description, Payload: e.TypeName, Fields: e.PayloadFields}
		}
		output := struct {
			Events []eventDisplay `json:"events"`
			Count  int            `json:"count"`
		}{Events: displays, Count: len(displays)}

		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(output)
	default:
		return fmt.Errorf("unsupported output format %q, use 'table' or 'json'", format)
	}
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().StringVarP(&eventsOutputFormat, "format", "f", "table", "Output format (table, json)")
}
