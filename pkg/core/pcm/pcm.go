// Package pcm converts between 16-bit little-endian PCM byte streams,
// normalized float samples, and the base64 wire form used by the live
// transport.
package pcm

import (
	"encoding/base64"
	"fmt"
)

// CaptureMIMEType tags outbound microphone frames for the provider.
const CaptureMIMEType = "audio/pcm;rate=16000"

// AudioConfig specifies audio format parameters.
type AudioConfig struct {
	// SampleRate in Hz. Capture runs at 16000, playback at 24000.
	SampleRate int

	// Channels: 1 for mono, 2 for stereo.
	Channels int

	// BitsPerSample: 16 for PCM s16le.
	BitsPerSample int
}

// CaptureConfig is the fixed microphone format.
func CaptureConfig() AudioConfig {
	return AudioConfig{SampleRate: 16000, Channels: 1, BitsPerSample: 16}
}

// PlaybackConfig is the fixed model-audio format.
func PlaybackConfig() AudioConfig {
	return AudioConfig{SampleRate: 24000, Channels: 1, BitsPerSample: 16}
}

// BytesPerSecond returns the audio byte rate.
func (c AudioConfig) BytesPerSecond() int {
	return c.SampleRate * c.Channels * (c.BitsPerSample / 8)
}

// DurationMs returns the duration in milliseconds for the given byte count.
func (c AudioConfig) DurationMs(bytes int) int {
	if c.BytesPerSecond() == 0 {
		return 0
	}
	return (bytes * 1000) / c.BytesPerSecond()
}

// BytesForDurationMs returns the byte count for the given duration in milliseconds.
func (c AudioConfig) BytesForDurationMs(ms int) int {
	return (c.BytesPerSecond() * ms) / 1000
}

// DecodeBase64 decodes base64-encoded audio payloads. Fails only on
// malformed base64.
func DecodeBase64(b64 string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode base64 audio: %w", err)
	}
	return data, nil
}

// EncodeBase64 encodes raw audio bytes for wire transport.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// Buffer is an immutable unit of decoded audio: normalized float samples,
// interleaved when multi-channel.
type Buffer struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Duration returns the playable length in seconds.
func (b *Buffer) Duration() float64 {
	if b == nil || b.SampleRate <= 0 || b.Channels <= 0 {
		return 0
	}
	return float64(len(b.Samples)/b.Channels) / float64(b.SampleRate)
}

// BytesToBuffer interprets data as signed 16-bit little-endian samples and
// converts each to a float in [-1, 1] by dividing by 32768. An odd byte
// length is padded with one trailing zero byte; a truncated tail never fails.
// Sample i of channel c sits at linear index i*channels + c.
func BytesToBuffer(data []byte, cfg AudioConfig) *Buffer {
	if len(data)%2 != 0 {
		padded := make([]byte, len(data)+1)
		copy(padded, data)
		data = padded
	}
	samples := make([]float32, len(data)/2)
	for i := 0; i < len(data); i += 2 {
		s := int16(data[i]) | int16(data[i+1])<<8
		samples[i/2] = float32(s) / 32768.0
	}
	channels := cfg.Channels
	if channels <= 0 {
		channels = 1
	}
	return &Buffer{
		Samples:    samples,
		SampleRate: cfg.SampleRate,
		Channels:   channels,
	}
}

// Frame is one PCM-encoded capture frame ready for the transport.
type Frame struct {
	Data     []byte
	MIMEType string
}

// EncodeFrame converts normalized float samples to a 16-bit PCM frame.
// Samples are clamped to [-1, 1] before scaling so clipping artifacts in the
// source signal cannot wrap around the integer range.
func EncodeFrame(samples []float32) Frame {
	data := make([]byte, len(samples)*2)
	for i, v := range samples {
		if v > 1.0 {
			v = 1.0
		}
		if v < -1.0 {
			v = -1.0
		}
		s := int16(v * 32767.0)
		data[i*2] = byte(s)
		data[i*2+1] = byte(s >> 8)
	}
	return Frame{Data: data, MIMEType: CaptureMIMEType}
}
