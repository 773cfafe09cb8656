package sink

import (
	"context"
	"fmt"

	"github.com/andresmejia3/emojicam/internal/utils"
	"go.uber.org/multierr"
)

// Process is a Raw sink feeding an ffmpeg child. Its captured stderr is
// available through Cmd for error reports.
type Process struct {
	*Raw
	Cmd *utils.SafeCommand
}

// OpenVirtualCam starts ffmpeg writing to a v4l2loopback device such as /dev/video10.
func OpenVirtualCam(ctx context.Context, device string, width, height int, fps float64) (*Process, error) {
	return start(utils.NewFFmpegV4L2Sink(ctx, device, fps, width, height), width, height)
}

// OpenEncoder starts ffmpeg writing an H.264 file.
func OpenEncoder(ctx context.Context, path string, width, height int, fps float64) (*Process, error) {
	return start(utils.NewFFmpegEncoder(ctx, path, fps, width, height), width, height)
}

func start(cmd *utils.SafeCommand, width, height int) (*Process, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	return &Process{Raw: NewRaw(stdin, width, height), Cmd: cmd}, nil
}

// Close ends the stream and waits for ffmpeg to flush.
func (p *Process) Close() error {
	return multierr.Combine(p.Raw.Close(), p.Cmd.Wait())
}
