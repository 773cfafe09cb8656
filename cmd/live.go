package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/andresmejia3/emojicam/internal/camera"
	"github.com/andresmejia3/emojicam/internal/config"
	"github.com/andresmejia3/emojicam/internal/overlay"
	"github.com/andresmejia3/emojicam/internal/sink"
	"github.com/andresmejia3/emojicam/internal/store"
	"github.com/andresmejia3/emojicam/internal/utils"
	"github.com/andresmejia3/emojicam/internal/worker"
	"github.com/spf13/cobra"
)

type liveOptions struct {
	Device     int
	NoWindow   bool
	VirtualCam string
	Options
}

var liveOpts liveOptions

var liveCmd = &cobra.Command{
	Use:         "live",
	Short:       "Run the emotion overlay on a webcam feed",
	Annotations: map[string]string{dbAnnotation: dbOptional},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runLive(cmd.Context(), liveOpts)
	},
}

func init() {
	liveCmd.Flags().IntVarP(&liveOpts.Device, "device", "d", 0, "Webcam device index")
	liveCmd.Flags().BoolVar(&liveOpts.NoWindow, "no-window", false, "Do not open a preview window")
	liveCmd.Flags().StringVar(&liveOpts.VirtualCam, "virtual-cam", "", "Also stream to a v4l2loopback device (e.g. /dev/video10)")
	liveCmd.Flags().StringVarP(&liveOpts.Backend, "backend", "b", "fer", "Detector backend: fer, deepface, yolo, random")
	liveCmd.Flags().StringVar(&liveOpts.WorkerScript, "worker-script", "python/worker.py", "Path to the Python detector worker")
	liveCmd.Flags().StringVar(&liveOpts.WorkerTimeout, "worker-timeout", "10s", "Timeout for a worker to process a single frame")
	liveCmd.Flags().IntVar(&liveOpts.JPEGQuality, "jpeg-quality", 80, "JPEG quality of frames sent to the worker")

	rootCmd.AddCommand(liveCmd)
}

func runLive(ctx context.Context, opts liveOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := validateBackend(opts.Backend); err != nil {
		return err
	}
	if opts.NoWindow && opts.VirtualCam == "" {
		err := errors.New("nothing to display")
		utils.ShowError("--no-window requires --virtual-cam", err, nil)
		return err
	}
	workerTimeout, err := time.ParseDuration(opts.WorkerTimeout)
	if err != nil {
		utils.ShowError("Invalid worker-timeout format (use '30s', '1m')", err, nil)
		return err
	}

	watcher, err := config.NewWatcher(configPath, logger)
	if err != nil {
		utils.ShowError("Failed to load settings", err, nil)
		return err
	}
	defer watcher.Close()
	go watcher.Run(ctx)
	cfg := watcher.Snapshot()

	cam, err := camera.OpenWebcam(opts.Device, cfg.FrameWidth, cfg.FrameHeight, float64(cfg.FPS), cfg.MirrorToggle)
	if err != nil {
		utils.ShowError("Failed to open webcam", err, nil)
		return err
	}
	defer cam.Close()
	width, height := cam.Size()

	fmt.Fprintf(os.Stderr, "⚙️  Starting %s engine...\n", opts.Backend)
	det, err := worker.New(ctx, 0, worker.Config{
		Backend:     opts.Backend,
		Script:      opts.WorkerScript,
		ReadTimeout: workerTimeout,
		JPEGQuality: opts.JPEGQuality,
	})
	if err != nil {
		utils.ShowError("Worker startup failed", err, nil)
		return err
	}
	defer det.Close()

	poller := worker.NewPoller(det, pollInterval(cfg.EmotionPollingRate), logger)
	go poller.Run(ctx)

	pipeline, err := overlay.NewPipeline(nil,
		overlay.WithScoreScale(worker.ScoreScaleFor(opts.Backend)),
		overlay.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	var out sink.Multi
	var window *camera.Window
	if !opts.NoWindow {
		window = camera.NewWindow("emojicam")
		out = append(out, window)
	}
	if opts.VirtualCam != "" {
		vcam, err := sink.OpenVirtualCam(ctx, opts.VirtualCam, width, height, float64(cfg.FPS))
		if err != nil {
			utils.ShowError("Failed to open virtual camera", err, nil)
			return err
		}
		out = append(out, vcam)
	}
	defer func() {
		if err := out.Close(); err != nil {
			logger.Warnw("failed to close outputs", "error", err)
		}
	}()

	sessionID := startLiveSession(ctx, opts, cfg.LoggingToggle)
	defer func() {
		if sessionID != 0 {
			if err := DB.EndSession(context.Background(), sessionID); err != nil {
				logger.Warnw("failed to close session", "session", sessionID, "error", err)
			}
		}
	}()

	fmt.Fprintln(os.Stderr, "🎥 Live. Press q or ESC in the window (or Ctrl+C) to stop.")
	var (
		meter   overlay.FPSMeter
		seenSeq uint64
		frames  int
	)
	for {
		select {
		case <-ctx.Done():
			return finishLive(pipeline, frames, sessionID)
		default:
		}

		cfg = watcher.Snapshot()
		cam.SetMirror(cfg.MirrorToggle)
		poller.SetInterval(pollInterval(cfg.EmotionPollingRate))

		frame, err := cam.Read()
		if err != nil {
			utils.ShowError("Webcam stopped delivering frames", err, nil)
			return err
		}
		now := time.Now()
		poller.Offer(now, frame)
		if err := poller.Err(); err != nil {
			utils.ShowError("Detector failed", err, commandOf(det))
			return err
		}

		latest := poller.Latest()
		_, slots := pipeline.Render(frame, latest.Detections, cfg)
		if latest.Seq != seenSeq {
			seenSeq = latest.Seq
			if sessionID != 0 && cfg.LoggingToggle && len(slots) > 0 {
				ev := store.Event{FrameIndex: frames, Emotion: slots[0].Dominant, Score: slots[0].Score}
				if err := DB.LogEmotion(ctx, sessionID, ev); err != nil {
					logger.Warnw("failed to log emotion", "session", sessionID, "error", err)
				}
			}
		}

		fps := meter.Tick(now)
		if cfg.FPSToggle {
			pipeline.DrawStatus(frame, fps)
		}

		if err := out.Write(frame); err != nil {
			logger.Warnw("output rejected frame", "frame", frames, "error", err)
		}
		frames++

		if window != nil && window.StopRequested() {
			return finishLive(pipeline, frames, sessionID)
		}
	}
}

func startLiveSession(ctx context.Context, opts liveOptions, enabled bool) int64 {
	if DB == nil || !enabled {
		return 0
	}
	id, err := DB.StartSession(ctx, fmt.Sprintf("webcam:%d", opts.Device), "", opts.Backend)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Session logging disabled: %v\n", err)
		return 0
	}
	fmt.Fprintf(os.Stderr, "📼 Logging to session %d\n", id)
	return id
}

func finishLive(p *overlay.Pipeline, frames int, sessionID int64) error {
	printTallySummary(os.Stderr, p.Tally(), frames, sessionID)
	return nil
}

// pollInterval converts the configured polling rate in seconds to a duration.
func pollInterval(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
