// Command hikxtract extracts recorded video footage from a HIKVISION@HANGZHOU
// DVR disk image.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dvrforensics/hikxtract"
	"github.com/dvrforensics/hikxtract/advisory"
	"github.com/dvrforensics/hikxtract/export"
	"github.com/dvrforensics/hikxtract/master"
	"github.com/dvrforensics/hikxtract/remux"
)

var (
	inputPath     = flag.String("input", "", "path to a raw disk image, or an archive containing one (required)")
	outputDir     = flag.String("output", ".", "directory to write exported footage into")
	listOnly      = flag.Bool("list", false, "list the segment catalog only; do not carve")
	masterOnly    = flag.Bool("master-only", false, "print the master block summary only; do not walk the index")
	rawH264       = flag.Bool("raw-h264", false, "write raw elementary streams instead of remuxing with ffmpeg")
	channel       = flag.Int("channel", -1, "only export this channel (e.g. 6); -1 means all channels")
	physicalOrder = flag.Bool("physical-order", false, "order segments by on-disk physical offset instead of timestamp")
	advisoryPath  = flag.String("advisory-db", "", "path to a firmware advisory catalog (gob.gz)")
	ffmpegPath    = flag.String("ffmpeg", "", "ffmpeg binary to invoke when remuxing (default: resolved via PATH)")
	jsonOutput    = flag.Bool("json", false, "print the run report as JSON instead of plain text")
	printVersion  = flag.Bool("version", false, "print version and exit")
)

const appVersion = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -input <path> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Extracts recorded footage from a HIKVISION@HANGZHOU DVR disk image.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -input disk.dd -output ./footage\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -input disk.dd -list\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -input evidence.zip -channel 6 -physical-order -raw-h264\n", os.Args[0])
	}
	flag.Parse()

	if *printVersion {
		fmt.Printf("hikxtract version %s\n", appVersion)
		os.Exit(0)
	}

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "Error: input path required (-input)")
		flag.Usage()
		os.Exit(1)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	r, err := hikxtract.Open(*inputPath)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer func() { _ = r.Close() }()

	var cat *advisory.Catalog
	if *advisoryPath != "" {
		cat, err = advisory.Load(*advisoryPath)
		if err != nil {
			return fmt.Errorf("load advisory catalog: %w", err)
		}
	}

	if !*masterOnly && !*listOnly {
		if err := os.MkdirAll(*outputDir, 0o755); err != nil { //nolint:gosec // user-specified output directory
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	ordering := hikxtract.OrderingTime
	if *physicalOrder {
		ordering = hikxtract.OrderingPhysical
	}

	var channelFilter *uint8
	if *channel >= 0 {
		c := uint8(*channel) //nolint:gosec // CLI flag, not attacker-controlled width overflow path
		channelFilter = &c
	}

	ext, driver := selectDriver()

	report, err := hikxtract.Run(r, hikxtract.Options{
		ListOnly:      *listOnly,
		MasterOnly:    *masterOnly,
		ChannelFilter: channelFilter,
		Ordering:      ordering,
		Extension:     ext,
		Sink:          driverSink{dir: *outputDir, driver: driver},
		Advisory:      cat,
	})
	if err != nil {
		return err
	}

	if *jsonOutput {
		return printJSON(report)
	}
	printReport(report)
	return nil
}

func selectDriver() (string, remux.Driver) {
	if *rawH264 {
		return "h264", remux.RawFileDriver{}
	}
	return "mp4", remux.FFmpegDriver{Path: *ffmpegPath}
}

// driverSink adapts a remux.Driver and an output directory to export.Sink.
type driverSink struct {
	dir    string
	driver remux.Driver
}

func (s driverSink) Exists(name string) bool {
	_, err := os.Stat(filepath.Join(s.dir, name))
	return err == nil
}

func (s driverSink) Create(name string) (export.WriteCloser, error) {
	return s.driver.Open(filepath.Join(s.dir, name))
}

func printReport(report *hikxtract.Report) {
	fmt.Printf("Filesystem version: %s\n", report.Master.Version)
	if !report.Master.VersionSupported() {
		fmt.Printf("Warning: this tool was validated only against version %s\n", master.SupportedVersion)
	}
	if report.Note != nil {
		fmt.Printf("Advisory: %s\n", report.Note.Summary)
	}
	for _, w := range report.Warnings {
		fmt.Printf("Warning: %s\n", w.Message)
	}
	fmt.Printf("Data block size: %d bytes\n", report.Master.DataBlockSize)
	fmt.Println()

	for _, ch := range report.Summary.ChannelsSorted() {
		fmt.Printf("Channel %02d: %d video blocks\n", ch, report.Summary.ChannelBlockCounts[ch])
	}
	fmt.Println()

	for _, p := range report.Plans {
		if p.Entry.Recording {
			fmt.Printf("Channel %02d, block being recorded -> %s\n", p.Entry.Channel, p.Filename)
			continue
		}
		fmt.Printf("Channel %02d, %s to %s -> %s\n", p.Entry.Channel,
			p.Entry.Start.Format("2006-01-02 15:04"), p.Entry.End.Format("2006-01-02 15:04"), p.Filename)
	}
}

func printJSON(report *hikxtract.Report) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
