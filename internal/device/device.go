// Package device abstracts the image library, camera and alert capabilities
// a front end offers to the recipe workflow.
package device

import "context"

// Permission is the answer to a capability request.
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// Granted reports whether the capability may be used.
func (p Permission) Granted() bool {
	return p == PermissionGranted
}

// Aspect is a crop ratio.
type Aspect struct {
	Width  int
	Height int
}

// PickOptions constrain what the library or camera returns.
type PickOptions struct {
	AllowsEditing bool
	Aspect        Aspect
	Quality       float64 // 0..1 compression quality
}

// DefaultPickOptions is used for recipe photos.
var DefaultPickOptions = PickOptions{
	AllowsEditing: true,
	Aspect:        Aspect{Width: 4, Height: 3},
	Quality:       0.8,
}

// PickResult is the outcome of a library or camera launch.
type PickResult struct {
	Canceled bool
	URI      string
}

// Picker gives access to the image library and the camera.
type Picker interface {
	RequestLibraryPermission(ctx context.Context) (Permission, error)
	RequestCameraPermission(ctx context.Context) (Permission, error)
	LaunchLibrary(ctx context.Context, opts PickOptions) (PickResult, error)
	LaunchCamera(ctx context.Context, opts PickOptions) (PickResult, error)
}

// Alerter shows a message to the user.
type Alerter interface {
	Alert(ctx context.Context, message string)
}
