package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrCodeEU/facegate/pkg/audit"
	"github.com/MrCodeEU/facegate/pkg/camera"
	"github.com/MrCodeEU/facegate/pkg/config"
	"github.com/MrCodeEU/facegate/pkg/gate"
	"github.com/MrCodeEU/facegate/pkg/liveness"
	"github.com/MrCodeEU/facegate/pkg/logging"
	"github.com/MrCodeEU/facegate/pkg/perception"
	"github.com/MrCodeEU/facegate/pkg/recording"
	"github.com/spf13/cobra"
)

var (
	checkChallenge string
	checkFrames    string
	checkInterval  time.Duration
)

var errNotLive = errors.New("liveness not confirmed")

var checkCmd = &cobra.Command{
	Use:   "check [recording-id]",
	Short: "Run a liveness session over a stored recording or a frame directory",
	Long: `Run a liveness session over a stored recording, or with --frames over a
directory of JPEG/PNG images. Each image may have a <name>.landmarks.json file
holding the face mesh exported for it; images without one count as frames
without a face.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch {
		case checkFrames != "" && len(args) == 0:
			return runCheckFrames(cmd.Context(), checkFrames)
		case checkFrames == "" && len(args) == 1:
			return runCheck(cmd.Context(), args[0])
		}
		return fmt.Errorf("specify either a recording id or --frames")
	},
}

func init() {
	checkCmd.Flags().StringVarP(&checkChallenge, "challenge", "c", "", "Challenge to evaluate (blink, head_turn); defaults to the recorded one")
	checkCmd.Flags().StringVarP(&checkFrames, "frames", "f", "", "Directory of images with landmark sidecar files")
	checkCmd.Flags().DurationVar(&checkInterval, "interval", 100*time.Millisecond, "Time between images with --frames")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(ctx context.Context, id string) error {
	rec, err := recordings.Load(id)
	if err != nil {
		return err
	}

	gateCfg := cfg.Gate
	// An empty challenge replays the one issued at recording time.
	gateCfg.Challenge = checkChallenge

	sources := func(ctx context.Context, attempt int) (liveness.FrameSource, error) {
		return recording.Replay(rec)
	}

	logging.Infof("Checking recording %s (%s)", rec.ID, rec.Label)
	return runGate(ctx, gateCfg, recording.ReplayChecker{Config: cfg.Liveness.ToEngine()}, rec.ID, sources)
}

func runCheckFrames(ctx context.Context, dir string) error {
	if checkInterval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", checkInterval)
	}
	paths, err := camera.ListImages(dir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no images found in %s", dir)
	}

	gateCfg := cfg.Gate
	if checkChallenge != "" {
		gateCfg.Challenge = checkChallenge
	}

	// The capturer is the session clock so the window follows image spacing.
	capturer := camera.NewFileCapturer(paths, checkInterval)
	checker := liveness.NewChecker(cfg.Liveness.ToEngine(), nil, capturer)

	sources := func(ctx context.Context, attempt int) (liveness.FrameSource, error) {
		return perception.NewSource(capturer, perception.SidecarProvider{}), nil
	}

	logging.Infof("Checking %d frames from %s", len(paths), dir)
	return runGate(ctx, gateCfg, checker, dir, sources)
}

func runGate(ctx context.Context, gateCfg config.GateConfig, checker gate.LivenessChecker, subject string, sources gate.SourceFactory) error {
	var recorder gate.Recorder
	if cfg.Audit.Enabled {
		store, err := audit.Open(cfg.Audit.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		recorder = store
	}

	g, err := gate.New(gateCfg, checker, recorder)
	if err != nil {
		return err
	}
	// Stored input can only be played once per check.
	g.SetMaxAttempts(1)

	result := g.Run(ctx, subject, sources, nil)

	for _, v := range result.Verdicts {
		printVerdict(v)
	}
	if result.Success {
		fmt.Println("\nResult: LIVE")
		return nil
	}

	fmt.Println("\nResult: NOT LIVE")
	if gerr, ok := result.Error.(*gate.GateError); ok {
		fmt.Printf("  %s\n", gerr.Message)
	}
	return fmt.Errorf("%w: %s", errNotLive, result.Reason)
}

func printVerdict(v liveness.Verdict) {
	fmt.Printf("Session:      %s\n", v.SessionID)
	fmt.Printf("Challenge:    %s (%s)\n", v.Challenge, v.Challenge.Description())
	fmt.Printf("Live:         %t\n", v.Live)
	fmt.Printf("Reason:       %s\n", v.Reason)
	fmt.Printf("Frames:       %d collected, %d without face, %d rejected\n",
		v.Metrics.FramesCollected, v.Metrics.FramesWithoutFace, v.Metrics.FramesRejected)
	fmt.Printf("Min EAR:      %.3f\n", v.Metrics.MinEAR)
	fmt.Printf("Yaw delta:    %.3f\n", v.Metrics.YawDelta)
	fmt.Printf("Motion delta: %.2f\n", v.Metrics.MotionDelta)
}
