package capture

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/FearYourSelf/forge-and-quill/pkg/core/pcm"
)

// FrameSize is the fixed capture frame length in samples (64 ms at 16 kHz).
const FrameSize = 1024

// Device is a malgo-backed microphone source producing float32 mono frames
// at the capture rate.
type Device struct {
	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	frames   chan []float32
	running  bool
}

// NewDevice creates an unstarted microphone source.
func NewDevice() *Device {
	return &Device{frames: make(chan []float32, 16)}
}

// Frames returns the channel of captured frames.
func (d *Device) Frames() <-chan []float32 {
	return d.frames
}

// Start acquires the default capture device. Acquisition failure (no device,
// permission denied) is fatal to the session attempt and is returned to the
// caller.
func (d *Device) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return fmt.Errorf("capture device already running")
	}

	cfg := pcm.CaptureConfig()

	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.PeriodSizeInFrames = FrameSize

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, frameCount uint32) {
			samples := make([]float32, frameCount)
			for i := range samples {
				if (i+1)*4 > len(input) {
					break
				}
				bits := binary.LittleEndian.Uint32(input[i*4:])
				samples[i] = math.Float32frombits(bits)
			}
			// Never block the device thread; a full channel drops the frame.
			select {
			case d.frames <- samples:
			default:
			}
		},
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		malgoCtx.Uninit()
		malgoCtx.Free()
		return fmt.Errorf("acquire microphone: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		malgoCtx.Uninit()
		malgoCtx.Free()
		return fmt.Errorf("start microphone: %w", err)
	}

	d.malgoCtx = malgoCtx
	d.device = device
	d.running = true
	return nil
}

// Stop releases the microphone. Idempotent.
func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return nil
	}
	d.running = false

	if d.device != nil {
		_ = d.device.Stop()
		d.device.Uninit()
		d.device = nil
	}
	if d.malgoCtx != nil {
		d.malgoCtx.Uninit()
		d.malgoCtx.Free()
		d.malgoCtx = nil
	}
	close(d.frames)
	return nil
}
