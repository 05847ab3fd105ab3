// ABOUTME: Microphone device acquisition via malgo/miniaudio
// ABOUTME: Delivers normalized capture samples and releases the device idempotently
package capture

import (
	"encoding/binary"
	"fmt"
	"log"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/parley-ai/parley-go/pkg/audio"
)

// PermissionError reports that the microphone could not be acquired:
// access denied, no capture device, or an unsupported environment.
// Fatal to the session attempt but always retryable.
type PermissionError struct {
	Err error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("microphone unavailable: %v", e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// Device is an open microphone capture stream
type Device struct {
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device

	mu     sync.Mutex
	closed bool
}

// OpenDevice acquires the default microphone at the given mono sample
// rate. Captured S16 samples are normalized and handed to onSamples
// from the device's realtime callback.
func OpenDevice(sampleRate int, onSamples func([]float32)) (*Device, error) {
	ctxConfig := malgo.ContextConfig{}
	ctxConfig.ThreadPriority = malgo.ThreadPriorityRealtime

	malgoCtx, err := malgo.InitContext(nil, ctxConfig, nil)
	if err != nil {
		return nil, &PermissionError{Err: fmt.Errorf("audio context init failed: %w", err)}
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			samples := make([]float32, len(input)/2)
			for i := range samples {
				samples[i] = audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(input[i*2:])))
			}
			onSamples(samples)
		},
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = malgoCtx.Uninit()
		return nil, &PermissionError{Err: fmt.Errorf("capture device init failed: %w", err)}
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = malgoCtx.Uninit()
		return nil, &PermissionError{Err: fmt.Errorf("capture start failed: %w", err)}
	}

	log.Printf("capture: microphone open at %dHz mono", sampleRate)

	return &Device{malgoCtx: malgoCtx, device: device}, nil
}

// Close stops and releases the microphone. Safe to call multiple times.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	if d.device != nil {
		_ = d.device.Stop()
		d.device.Uninit()
		d.device = nil
	}
	if d.malgoCtx != nil {
		if err := d.malgoCtx.Uninit(); err != nil {
			log.Printf("capture: context uninit: %v", err)
		}
		d.malgoCtx = nil
	}

	log.Printf("capture: microphone released")
	return nil
}
