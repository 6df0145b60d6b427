package wake

/*
#cgo LDFLAGS: -lpv_porcupine
#include <stdlib.h>
#include <pv_porcupine.h>
*/
import "C"

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unsafe"
)

// Porcupine is a cgo RAII wrapper around Picovoice's Porcupine C SDK, one
// keyword per instance. The access-key, model-path, device and keyword-path
// CStrings are kept alive for the handle's whole lifetime: the C SDK holds
// onto the pointers, not copies, for as long as the handle exists.
type Porcupine struct {
	handle *C.pv_porcupine_t

	accessKeyC *C.char
	modelPathC *C.char
	ppnPathC   *C.char

	ppnPath     string
	sensitivity float32
	lastFire    time.Time
	cooldown    time.Duration
}

// Config describes one keyword spotter instance (§4.B, §6 wake_word.*).
type Config struct {
	ModelPath   string
	PPNPath     string
	Sensitivity float32
	Cooldown    time.Duration
}

// New initializes a Porcupine instance bound to a single keyword file.
// Both ModelPath and PPNPath must be absolute and exist; this mirrors the
// original implementation's pre-flight checks, which fail fast rather than
// let the native SDK report an opaque init error.
func New(accessKey string, cfg Config) (*Porcupine, error) {
	if !filepath.IsAbs(cfg.ModelPath) {
		return nil, fmt.Errorf("wake: model_path must be absolute: %s", cfg.ModelPath)
	}
	if _, err := statExists(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("wake: model_path missing: %w", err)
	}
	if !filepath.IsAbs(cfg.PPNPath) {
		return nil, fmt.Errorf("wake: ppn_path must be absolute: %s", cfg.PPNPath)
	}
	if _, err := statExists(cfg.PPNPath); err != nil {
		return nil, fmt.Errorf("wake: ppn_path missing: %w", err)
	}
	if accessKey == "" {
		return nil, fmt.Errorf("wake: missing PICOVOICE_ACCESS_KEY")
	}

	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = 300 * time.Millisecond
	}

	p := &Porcupine{
		accessKeyC:  C.CString(accessKey),
		modelPathC:  C.CString(cfg.ModelPath),
		ppnPathC:    C.CString(cfg.PPNPath),
		ppnPath:     cfg.PPNPath,
		sensitivity: cfg.Sensitivity,
		cooldown:    cooldown,
	}

	keywordPaths := []*C.char{p.ppnPathC}
	sensitivities := []C.float{C.float(cfg.Sensitivity)}

	status := C.pv_porcupine_init(
		p.accessKeyC,
		p.modelPathC,
		nil, // device string unused by the current SDK binding
		1,
		&keywordPaths[0],
		&sensitivities[0],
		&p.handle,
	)

	if status != C.PV_STATUS_SUCCESS || p.handle == nil {
		msgs := collectErrorStack()
		p.freeStrings()
		return nil, fmt.Errorf("wake: pv_porcupine_init failed: status=%d %v", int(status), msgs)
	}

	return p, nil
}

func statExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return true, nil
}

// FrameLength reports the frame length, in samples, Porcupine expects.
func (p *Porcupine) FrameLength() int {
	return int(C.pv_porcupine_frame_length())
}

// SampleRate reports the sample rate, in Hz, Porcupine expects.
func (p *Porcupine) SampleRate() int {
	return int(C.pv_sample_rate())
}

// Process feeds one frame and reports whether the wake word fired,
// collapsing repeated detections within the configured cooldown window.
func (p *Porcupine) Process(pcm []int16) (bool, error) {
	if len(pcm) != p.FrameLength() {
		return false, fmt.Errorf("wake: invalid frame length: expected %d got %d", p.FrameLength(), len(pcm))
	}

	var keywordIndex C.int32_t = -1
	status := C.pv_porcupine_process(
		p.handle,
		(*C.int16_t)(unsafe.Pointer(&pcm[0])),
		&keywordIndex,
	)

	if status != C.PV_STATUS_SUCCESS {
		return false, fmt.Errorf("wake: pv_porcupine_process failed: status=%d", int(status))
	}

	if keywordIndex < 0 {
		return false, nil
	}

	now := time.Now()
	if !p.lastFire.IsZero() && now.Sub(p.lastFire) < p.cooldown {
		return false, nil
	}
	p.lastFire = now

	return true, nil
}

// Close releases the native handle and the CStrings kept alive for it.
func (p *Porcupine) Close() error {
	if p.handle != nil {
		C.pv_porcupine_delete(p.handle)
		p.handle = nil
	}
	p.freeStrings()
	return nil
}

func (p *Porcupine) freeStrings() {
	if p.accessKeyC != nil {
		C.free(unsafe.Pointer(p.accessKeyC))
		p.accessKeyC = nil
	}
	if p.modelPathC != nil {
		C.free(unsafe.Pointer(p.modelPathC))
		p.modelPathC = nil
	}
	if p.ppnPathC != nil {
		C.free(unsafe.Pointer(p.ppnPathC))
		p.ppnPathC = nil
	}
}

func collectErrorStack() []string {
	var stack **C.char
	var depth C.int32_t

	status := C.pv_get_error_stack(&stack, &depth)
	if status != C.PV_STATUS_SUCCESS || stack == nil || depth <= 0 {
		return nil
	}
	defer C.pv_free_error_stack(stack)

	msgs := make([]string, 0, int(depth))
	ptrs := unsafe.Slice(stack, int(depth))
	for _, p := range ptrs {
		if p != nil {
			msgs = append(msgs, C.GoString(p))
		}
	}
	return msgs
}
