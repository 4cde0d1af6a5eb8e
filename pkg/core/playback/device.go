package playback

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/FearYourSelf/forge-and-quill/pkg/core/pcm"
)

// Device is a malgo-backed playback sink. It renders scheduled buffers
// against a sample-counter clock: a buffer scheduled at time t starts at
// frame round(t * rate), so back-to-back schedules are sample-accurate.
type Device struct {
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	rate     int

	mu       sync.Mutex
	playhead uint64
	entries  []*deviceEntry
	closed   bool
}

type deviceEntry struct {
	dev        *Device
	startFrame uint64
	samples    []float32
	consumed   int
	done       func()
	stopped    bool
	finished   bool
}

// OpenDevice acquires the default output device at the playback format.
func OpenDevice() (*Device, error) {
	cfg := pcm.PlaybackConfig()

	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	d := &Device{malgoCtx: malgoCtx, rate: cfg.SampleRate}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: d.render,
	})
	if err != nil {
		malgoCtx.Uninit()
		malgoCtx.Free()
		return nil, fmt.Errorf("init playback device: %w", err)
	}
	d.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		malgoCtx.Uninit()
		malgoCtx.Free()
		return nil, fmt.Errorf("start playback device: %w", err)
	}
	return d, nil
}

// Now returns the device clock in seconds.
func (d *Device) Now() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return float64(d.playhead) / float64(d.rate)
}

// Start schedules buf at the given device time.
func (d *Device) Start(buf *pcm.Buffer, at float64, done func()) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, fmt.Errorf("playback device is closed")
	}

	startFrame := uint64(at * float64(d.rate))
	entry := &deviceEntry{
		dev:        d,
		startFrame: startFrame,
		samples:    buf.Samples,
		done:       done,
	}
	d.entries = append(d.entries, entry)
	return entry, nil
}

// render is the device data callback. It copies every live buffer that
// overlaps the requested frame range and fires completion callbacks for
// buffers drained on this pass.
func (d *Device) render(out, _ []byte, frameCount uint32) {
	for i := range out {
		out[i] = 0
	}

	var completed []func()

	d.mu.Lock()
	rangeStart := d.playhead
	rangeEnd := rangeStart + uint64(frameCount)

	live := d.entries[:0]
	for _, e := range d.entries {
		if e.stopped {
			continue
		}
		first := e.startFrame + uint64(e.consumed)
		if first >= rangeEnd {
			live = append(live, e)
			continue
		}
		for f := first; f < rangeEnd && e.consumed < len(e.samples); f++ {
			if f < rangeStart {
				// Scheduled in the past; skip what real time already missed.
				e.consumed++
				continue
			}
			v := e.samples[e.consumed]
			if v > 1.0 {
				v = 1.0
			}
			if v < -1.0 {
				v = -1.0
			}
			s := int16(v * 32767.0)
			idx := int(f-rangeStart) * 2
			out[idx] = byte(s)
			out[idx+1] = byte(s >> 8)
			e.consumed++
		}
		if e.consumed >= len(e.samples) {
			e.finished = true
			if e.done != nil {
				completed = append(completed, e.done)
			}
			continue
		}
		live = append(live, e)
	}
	d.entries = live
	d.playhead = rangeEnd
	d.mu.Unlock()

	for _, done := range completed {
		done()
	}
}

// Stop halts the buffer early. Stopping a buffer that already finished is a
// no-op.
func (e *deviceEntry) Stop() {
	e.dev.mu.Lock()
	defer e.dev.mu.Unlock()
	if e.finished || e.stopped {
		return
	}
	e.stopped = true
}

// Close stops and releases the output device. Idempotent.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.entries = nil
	d.mu.Unlock()

	if d.device != nil {
		d.device.Uninit()
	}
	if d.malgoCtx != nil {
		d.malgoCtx.Uninit()
		d.malgoCtx.Free()
	}
	return nil
}
