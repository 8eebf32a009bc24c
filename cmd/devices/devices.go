package devices

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/tphakala/audiorouter/internal/conf"
	"github.com/tphakala/audiorouter/internal/device"
	"github.com/tphakala/audiorouter/internal/midi"
)

// Listing is everything the devices command reports.
type Listing struct {
	Backend     string          `json:"backend"`
	Playback    []device.Info   `json:"playback"`
	Capture     []device.Info   `json:"capture"`
	MIDIInputs  []midi.PortInfo `json:"midi_inputs"`
	MIDIOutputs []midi.PortInfo `json:"midi_outputs"`
	MIDIError   string          `json:"midi_error,omitempty"`
}

// Command creates the devices command.
func Command(settings *conf.Settings) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List audio devices and MIDI ports",
		RunE: func(cmd *cobra.Command, args []string) error {
			listing, err := collect(settings.Audio.Backend)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(listing)
			}
			return printListing(cmd.OutOrStdout(), listing)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	cmd.Flags().String("backend", "auto", "Audio backend to enumerate")
	if err := conf.MapFlags(cmd.Flags(), map[string]string{"backend": "audio.backend"}); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
	}

	return cmd
}

func collect(backend string) (*Listing, error) {
	lister := device.NewLister(backend, device.DefaultListTTL)
	listing := &Listing{Backend: backend}

	var err error
	if listing.Playback, err = lister.Devices(device.Playback); err != nil {
		return nil, err
	}
	if listing.Capture, err = lister.Devices(device.Capture); err != nil {
		return nil, err
	}

	// MIDI is optional; a missing driver is reported, not fatal.
	drv, err := rtmididrv.New()
	if err != nil {
		listing.MIDIError = err.Error()
		return listing, nil
	}
	defer drv.Close()
	if listing.MIDIInputs, listing.MIDIOutputs, err = midi.ListPorts(drv); err != nil {
		listing.MIDIError = err.Error()
	}
	return listing, nil
}

func printListing(w io.Writer, l *Listing) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Audio backend: %s\n\n", l.Backend)
	printDevices(tw, "Playback devices", l.Playback)
	printDevices(tw, "Capture devices", l.Capture)

	printPorts(tw, "MIDI inputs", l.MIDIInputs)
	printPorts(tw, "MIDI outputs", l.MIDIOutputs)
	if l.MIDIError != "" {
		fmt.Fprintf(tw, "MIDI unavailable: %s\n", l.MIDIError)
	}
	return tw.Flush()
}

func printDevices(w io.Writer, title string, infos []device.Info) {
	fmt.Fprintf(w, "%s:\n", title)
	if len(infos) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, info := range infos {
		def := ""
		if info.Default {
			def = "default"
		}
		fmt.Fprintf(w, "  %d\t%s\t%s\t%s\n", info.Index, info.Name, info.ID, def)
	}
	fmt.Fprintln(w)
}

func printPorts(w io.Writer, title string, ports []midi.PortInfo) {
	fmt.Fprintf(w, "%s:\n", title)
	if len(ports) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, p := range ports {
		fmt.Fprintf(w, "  %d\t%s\n", p.Number, p.Name)
	}
	fmt.Fprintln(w)
}
