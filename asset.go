package bodymovin

import (
	"context"
	"fmt"
)

// LoadError reports an asset, font or media resource that could not be
// loaded. The layer that needed it stays usable without it.
type LoadError struct {
	Asset string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("bodymovin: load %q: %v", e.Asset, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// AssetInfo is an entry of the manifest's asset list.
type AssetInfo struct {
	ID     string
	Dir    string
	File   string
	Width  float64
	Height float64
	// Embedded is true when File holds a data URI.
	Embedded bool
}

// AssetRequest describes the layer an asset is loaded for.
type AssetRequest struct {
	LayerIndex int
	LayerName  string
	LayerType  LayerType
	Info       AssetInfo
}

// Asset is a loaded asset: its manifest entry and the host resource, for
// example an *ebiten.Image for image layers or a MediaHandle for audio layers.
type Asset struct {
	Info     AssetInfo
	Resource any
}

// AssetLoader loads the resource behind a layer's asset reference.
type AssetLoader interface {
	Load(ctx context.Context, req AssetRequest) (Asset, error)
}

// AssetLoaderFunc adapts a function to AssetLoader.
type AssetLoaderFunc func(ctx context.Context, req AssetRequest) (Asset, error)

// Load implements AssetLoader.
func (f AssetLoaderFunc) Load(ctx context.Context, req AssetRequest) (Asset, error) {
	return f(ctx, req)
}
