package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jrbritton/sexuality-stereotype-eyetracking/eventlog"
)

var (
	exportReq eventlog.ExportRequest
	exportDB  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export gaze samples from a session datastore",
	Long: `Writes the samples of one event type that fall between the start and end
messages of every trial to a CSV report. Use it to redo the report of a
session with other fields or other trial boundaries. Start and end both empty
export every sample of the run as one window.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	fl := exportCmd.Flags()
	fl.StringVar(&exportDB, "db", "", "Session datastore (.db)")
	fl.StringVar(&exportReq.Path, "out", "", "Report file to write")
	fl.StringVar(&exportReq.EventType, "event-type", "MonocularEyeSample", "Event type to export")
	fl.StringSliceVar(&exportReq.Fields, "fields", nil, "Report columns (trial,time,gaze_x,gaze_y,status)")
	fl.StringVar(&exportReq.Start, "start", "trial_start", "Message opening a trial window")
	fl.StringVar(&exportReq.End, "end", "trial_end", "Message closing a trial window")
	fl.Int64Var(&exportReq.Run, "run", 0, "Recording run to export; 0 is the latest")
	_ = exportCmd.MarkFlagRequired("db")
	_ = exportCmd.MarkFlagRequired("out")
}

func runExport(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(exportDB); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	store, err := eventlog.Open(exportDB, eventlog.WithLogger(logger))
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := store.Export(exportReq)
	if err != nil {
		return err
	}
	logger.Info("report exported",
		zap.String("db", exportDB),
		zap.Int64("run", res.Run),
		zap.String("path", res.Path),
		zap.Int("events", res.Events))
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %d events to %s\n", res.Events, res.Path)
	return nil
}
