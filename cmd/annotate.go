package cmd

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/andresmejia3/emojicam/internal/config"
	"github.com/andresmejia3/emojicam/internal/overlay"
	"github.com/andresmejia3/emojicam/internal/sink"
	"github.com/andresmejia3/emojicam/internal/store"
	"github.com/andresmejia3/emojicam/internal/types"
	"github.com/andresmejia3/emojicam/internal/utils"
	"github.com/andresmejia3/emojicam/internal/worker"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

const megabyte = 1024 * 1024

// eventBatchSize bounds how many session events are buffered before a flush.
const eventBatchSize = 100

var (
	annotateOpts   Options
	annotateOutput string
)

var annotateCmd = &cobra.Command{
	Use:         "annotate",
	Short:       "Overlay emotion emojis and charts onto a video file",
	Annotations: map[string]string{dbAnnotation: dbOptional},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runAnnotate(cmd.Context(), annotateOpts)
	},
}

func init() {
	annotateCmd.Flags().StringVarP(&annotateOpts.InputPath, "input", "i", "", "Path to input video")
	annotateCmd.Flags().StringVarP(&annotateOutput, "output", "o", "annotated.mp4", "Path to output video")
	annotateCmd.Flags().IntVarP(&annotateOpts.NthFrame, "nth-frame", "n", 0, "Run inference every Nth frame (default: derived from emotion_polling_rate)")
	annotateCmd.Flags().IntVarP(&annotateOpts.NumEngines, "engines", "e", 1, "Number of parallel engine workers")
	annotateCmd.Flags().StringVarP(&annotateOpts.Backend, "backend", "b", "fer", "Detector backend: fer, deepface, yolo, random")
	annotateCmd.Flags().StringVar(&annotateOpts.WorkerScript, "worker-script", "python/worker.py", "Path to the Python detector worker")
	annotateCmd.Flags().StringVar(&annotateOpts.WorkerTimeout, "worker-timeout", "30s", "Timeout for a worker to process a single frame")
	annotateCmd.Flags().IntVar(&annotateOpts.JPEGQuality, "jpeg-quality", 90, "JPEG quality of frames sent to the worker")

	annotateCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(annotateCmd)
}

// Buffer pool to reduce GC pressure while decoding
var frameBufferPool = sync.Pool{
	New: func() interface{} { return make([]byte, 0, megabyte) },
}

type annotateResult struct {
	Index      int
	Data       []byte
	Inferred   bool
	Detections []types.Detection
}

func runAnnotate(ctx context.Context, opts Options) error {
	// Create a cancellable context to ensure all child processes (FFmpeg, Python)
	// are killed immediately if this function returns early (e.g. on error).
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := validateAnnotateFlags(&opts); err != nil {
		return err
	}

	// Safety Check: Prevent overwriting input file which causes corruption
	inAbs, _ := filepath.Abs(opts.InputPath)
	outAbs, _ := filepath.Abs(annotateOutput)
	if inAbs == outAbs {
		return fmt.Errorf("input and output paths must be different to prevent file corruption")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Ignoring settings file: %v\n", err)
	}

	fps, err := utils.GetVideoFPS(ctx, opts.InputPath)
	if err != nil {
		utils.ShowError("Failed to determine video FPS", err, nil)
		return err
	}
	width, height, err := utils.GetVideoDimensions(ctx, opts.InputPath)
	if err != nil {
		utils.ShowError("Failed to determine video dimensions", err, nil)
		return err
	}
	totalFrames := utils.GetTotalFrames(ctx, opts.InputPath)
	if opts.NthFrame == 0 {
		opts.NthFrame = nthFrameFor(cfg.EmotionPollingRate, fps)
	}

	pipeline, err := overlay.NewPipeline(nil,
		overlay.WithScoreScale(worker.ScoreScaleFor(opts.Backend)),
		overlay.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	sessionID, events := startFileSession(ctx, opts)

	workerTimeout, _ := time.ParseDuration(opts.WorkerTimeout)
	taskChan := make(chan types.FrameTask, opts.NumEngines)
	resultsChan := make(chan annotateResult, opts.NumEngines*2)
	errChan := make(chan error, opts.NumEngines+2)

	var wg sync.WaitGroup
	readyChan := make(chan bool, opts.NumEngines)

	fmt.Fprintf(os.Stderr, "⚙️  Spawning %d %s engine(s), inferring every %d frame(s)...\n", opts.NumEngines, opts.Backend, opts.NthFrame)
	for i := 0; i < opts.NumEngines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			det, err := worker.New(ctx, id, worker.Config{
				Backend:     opts.Backend,
				Script:      opts.WorkerScript,
				ReadTimeout: workerTimeout,
				JPEGQuality: opts.JPEGQuality,
			})
			if err != nil {
				utils.ShowError("Worker startup failed", err, nil)
				select {
				case errChan <- err:
				default:
				}
				return
			}
			defer det.Close()
			readyChan <- true

			for task := range taskChan {
				res := annotateResult{Index: task.Index, Data: task.Data, Inferred: task.Infer}
				if task.Infer {
					frame := &image.RGBA{Pix: task.Data, Stride: width * 4, Rect: image.Rect(0, 0, width, height)}
					dets, err := det.Detect(ctx, frame)
					if err != nil {
						utils.ShowError("Detector failed", err, commandOf(det))
						select {
						case errChan <- err:
						default:
						}
						return
					}
					res.Detections = dets
				}
				select {
				case resultsChan <- res:
				case <-ctx.Done():
					return
				}
			}
		}(i)
	}

	// Wait for workers to be ready
	fmt.Fprintln(os.Stderr, "🚀 Warming up engines...")
	for i := 0; i < opts.NumEngines; i++ {
		select {
		case <-readyChan:
		case err := <-errChan:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	decoder := utils.NewFFmpegRawDecoder(ctx, opts.InputPath)
	decoderOut, err := decoder.StdoutPipe()
	if err != nil {
		utils.ShowError("Failed to create decoder pipe", err, nil)
		return err
	}
	if err := decoder.Start(); err != nil {
		utils.ShowError("Failed to start decoder", err, decoder)
		return err
	}

	encoder, err := sink.OpenEncoder(ctx, annotateOutput, width, height, fps)
	if err != nil {
		utils.ShowError("Failed to start encoder", err, nil)
		return err
	}

	go func() {
		defer close(taskChan)
		frameSize := width * height * 4
		idx := 0
		for {
			buf := frameBufferPool.Get().([]byte)
			if cap(buf) < frameSize {
				buf = make([]byte, frameSize)
			}
			buf = buf[:frameSize]

			if _, err := io.ReadFull(decoderOut, buf); err != nil {
				// EOF or unexpected error, stop reading
				frameBufferPool.Put(buf)
				return
			}

			select {
			case taskChan <- types.FrameTask{Index: idx, Data: buf, Infer: idx%opts.NthFrame == 0}:
				idx++
			case <-ctx.Done():
				return
			}
		}
	}()

	var barTotal int64 = int64(totalFrames)
	if barTotal <= 0 {
		barTotal = -1 // Trigger spinner mode
	}
	bar := progressbar.NewOptions64(barTotal,
		progressbar.OptionSetDescription("😀 Annotating"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	// Buffer for re-ordering frames (Worker 2 might finish before Worker 1)
	buffer := make(map[int]annotateResult)
	nextFrame := 0
	var current []types.Detection

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errChan:
			return err
		case res, ok := <-resultsChan:
			if !ok {
				goto Flush
			}
			buffer[res.Index] = res

			for {
				frame, ok := buffer[nextFrame]
				if !ok {
					break
				}
				delete(buffer, nextFrame)

				if frame.Inferred {
					current = frame.Detections
				}
				img := &image.RGBA{Pix: frame.Data, Stride: width * 4, Rect: image.Rect(0, 0, width, height)}
				_, slots := pipeline.Render(img, current, cfg)
				if frame.Inferred && sessionID != 0 && len(slots) > 0 {
					events = append(events, store.Event{FrameIndex: frame.Index, Emotion: slots[0].Dominant, Score: slots[0].Score})
					if len(events) >= eventBatchSize {
						events = flushEvents(ctx, sessionID, events)
					}
				}

				if err := encoder.Write(img); err != nil {
					utils.ShowError("Encoder rejected frame", err, encoder.Cmd)
					return err
				}

				// Release buffer back to pool
				frameBufferPool.Put(frame.Data)

				bar.Add(1)
				nextFrame++
			}
		}
	}

Flush:
	bar.Finish()
	if err := encoder.Close(); err != nil {
		utils.ShowError("Encoder process failed", err, encoder.Cmd)
		return err
	}
	if err := decoder.Wait(); err != nil {
		utils.ShowError("Decoder process failed", err, decoder)
		return err
	}

	if sessionID != 0 {
		flushEvents(ctx, sessionID, events)
		if err := DB.EndSession(context.Background(), sessionID); err != nil {
			logger.Warnw("failed to close session", "session", sessionID, "error", err)
		}
	}

	printTallySummary(os.Stderr, pipeline.Tally(), nextFrame, sessionID)
	fmt.Fprintf(os.Stderr, "🏁 Wrote %s\n", annotateOutput)
	return nil
}

// startFileSession registers the run when a database is connected.
func startFileSession(ctx context.Context, opts Options) (int64, []store.Event) {
	if DB == nil {
		return 0, nil
	}
	videoID, err := utils.GenerateVideoID(opts.InputPath)
	if err != nil {
		logger.Warnw("failed to fingerprint input", "path", opts.InputPath, "error", err)
	}
	id, err := DB.StartSession(ctx, opts.InputPath, videoID, opts.Backend)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Session logging disabled: %v\n", err)
		return 0, nil
	}
	fmt.Fprintf(os.Stderr, "📼 Logging to session %d\n", id)
	return id, make([]store.Event, 0, eventBatchSize)
}

func flushEvents(ctx context.Context, sessionID int64, events []store.Event) []store.Event {
	if err := DB.LogEmotions(ctx, sessionID, events); err != nil {
		logger.Warnw("failed to log emotions", "session", sessionID, "count", len(events), "error", err)
	}
	return events[:0]
}

// commandOf exposes a Python worker's captured stderr for error reports.
func commandOf(det worker.Detector) *utils.SafeCommand {
	if py, ok := det.(*worker.PythonWorker); ok {
		return py.Cmd
	}
	return nil
}

// nthFrameFor converts a polling period in seconds to a frame interval.
func nthFrameFor(pollingRate, fps float64) int {
	n := int(math.Round(pollingRate * fps))
	if n < 1 {
		return 1
	}
	return n
}

func validateAnnotateFlags(opts *Options) error {
	info, err := os.Stat(opts.InputPath)
	if err != nil {
		if os.IsNotExist(err) {
			utils.ShowError("Input file does not exist", err, nil)
			return err
		}
		utils.ShowError("Unable to access input file", err, nil)
		return err
	}
	if info.IsDir() {
		err := fmt.Errorf("is a directory")
		utils.ShowError("Input path is a directory, expected a video file", err, nil)
		return err
	}

	if err := validateBackend(opts.Backend); err != nil {
		return err
	}

	if opts.NthFrame < 0 {
		err := fmt.Errorf("must be >= 1, got %d", opts.NthFrame)
		utils.ShowError("Invalid nth-frame interval", err, nil)
		return err
	}

	if opts.NumEngines < 1 {
		opts.NumEngines = 1
	}

	if opts.JPEGQuality < 1 || opts.JPEGQuality > 100 {
		err := fmt.Errorf("must be between 1 and 100, got %d", opts.JPEGQuality)
		utils.ShowError("Invalid JPEG quality", err, nil)
		return err
	}

	if _, err := time.ParseDuration(opts.WorkerTimeout); err != nil {
		utils.ShowError("Invalid worker-timeout format (use '30s', '1m')", err, nil)
		return err
	}

	return nil
}

var errInvalidBackend = errors.New("invalid backend")

func validateBackend(backend string) error {
	if !slices.Contains(worker.Backends, backend) {
		err := fmt.Errorf("%w '%s'. Must be one of: fer, deepface, yolo, random", errInvalidBackend, backend)
		utils.ShowError("Configuration Error", err, nil)
		return err
	}
	return nil
}
