package replay

import "context"

// MediaProbe reports the duration in seconds of the media on the page.
type MediaProbe interface {
	Duration(ctx context.Context) (float64, error)
}

// Overlay is the dismissable prompt shown over finished media.
type Overlay interface {
	// Dismiss reports whether an overlay was present.
	Dismiss(ctx context.Context) (bool, error)
}

// Reloader reloads the page after a successful replay.
type Reloader interface {
	Reload()
}

// MediaProbeFunc adapts a function to MediaProbe.
type MediaProbeFunc func(ctx context.Context) (float64, error)

func (f MediaProbeFunc) Duration(ctx context.Context) (float64, error) {
	return f(ctx)
}

// ReloaderFunc adapts a function to Reloader.
type ReloaderFunc func()

func (f ReloaderFunc) Reload() {
	f()
}

// NoOverlay never finds an overlay.
type NoOverlay struct{}

func (NoOverlay) Dismiss(context.Context) (bool, error) {
	return false, nil
}
