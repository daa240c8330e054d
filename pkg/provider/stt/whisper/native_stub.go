//go:build !whisper_native

package whisper

import (
	"context"
	"errors"

	"github.com/baristabuddy/baristabuddy/pkg/provider/stt"
)

// errNativeDisabled is returned by every NativeProvider entry point when the
// binary was built without the whisper_native tag.
var errNativeDisabled = errors.New("whisper: native support not compiled in (rebuild with -tags whisper_native)")

// NativeProvider is a placeholder for builds without the whisper_native tag.
// All methods report that native support is unavailable.
type NativeProvider struct{}

// Compile-time assertion that the stub still satisfies stt.Provider.
var _ stt.Provider = (*NativeProvider)(nil)

// NewNative reports that native whisper support was not compiled in. Rebuild
// with -tags whisper_native and the whisper.cpp library available at link time
// to enable in-process transcription.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	return nil, errNativeDisabled
}

// Close is a no-op on the stub.
func (p *NativeProvider) Close() error { return nil }

// Transcribe always returns errNativeDisabled.
func (p *NativeProvider) Transcribe(context.Context, []byte, stt.AudioConfig) (stt.Transcript, error) {
	return stt.Transcript{}, errNativeDisabled
}
