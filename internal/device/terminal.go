package device

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Sentinel errors for terminal pickers.
var (
	ErrNoCamera        = errors.New("no capture command configured (set RECETAS_CAMERA_CMD)")
	ErrNotImage        = errors.New("file is not a jpeg or png image")
	ErrCaptureFailed   = errors.New("capture command produced no image")
	errPromptCancelled = errors.New("prompt cancelled")
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Terminal implements Picker and Alerter on a line-oriented terminal.
// The library is a path prompt; the camera is an external capture command
// that receives the target file path as its last argument.
type Terminal struct {
	mu         sync.Mutex
	in         *bufio.Reader
	out        io.Writer
	cameraCmd  string
	captureDir string
	now        func() time.Time
}

// TerminalOption configures a Terminal.
type TerminalOption func(*Terminal)

// WithCameraCommand sets the capture command line.
func WithCameraCommand(cmd string) TerminalOption {
	return func(t *Terminal) { t.cameraCmd = strings.TrimSpace(cmd) }
}

// WithCaptureDir sets where captured photos are written.
func WithCaptureDir(dir string) TerminalOption {
	return func(t *Terminal) { t.captureDir = dir }
}

// NewTerminal creates a Terminal reading answers from in and writing prompts to out.
func NewTerminal(in io.Reader, out io.Writer, opts ...TerminalOption) *Terminal {
	t := &Terminal{
		in:         bufio.NewReader(in),
		out:        out,
		captureDir: os.TempDir(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RequestLibraryPermission asks whether local files may be read.
func (t *Terminal) RequestLibraryPermission(ctx context.Context) (Permission, error) {
	return t.confirm(ctx, "Allow access to your photos? [y/N] ")
}

// RequestCameraPermission asks whether the capture command may run.
func (t *Terminal) RequestCameraPermission(ctx context.Context) (Permission, error) {
	if t.cameraCmd == "" {
		return PermissionDenied, ErrNoCamera
	}
	return t.confirm(ctx, "Allow access to the camera? [y/N] ")
}

// LaunchLibrary prompts for an image path. An empty answer cancels.
func (t *Terminal) LaunchLibrary(ctx context.Context, opts PickOptions) (PickResult, error) {
	answer, err := t.prompt(ctx, "Image path (empty to cancel): ")
	if err != nil {
		if errors.Is(err, errPromptCancelled) {
			return PickResult{Canceled: true}, nil
		}
		return PickResult{}, err
	}
	if answer == "" {
		return PickResult{Canceled: true}, nil
	}

	path, err := checkImage(expandHome(answer))
	if err != nil {
		return PickResult{}, err
	}
	return PickResult{URI: fileURI(path)}, nil
}

// LaunchCamera runs the capture command. The command receives the target
// path and ASPECT, QUALITY and ALLOWS_EDITING in its environment. A command
// that exits without writing the file counts as a cancelled capture.
func (t *Terminal) LaunchCamera(ctx context.Context, opts PickOptions) (PickResult, error) {
	fields := strings.Fields(t.cameraCmd)
	if len(fields) == 0 {
		return PickResult{}, ErrNoCamera
	}

	target := filepath.Join(t.captureDir, fmt.Sprintf("capture-%d.jpg", t.now().UnixNano()))
	args := append(fields[1:], target)

	cmd := exec.CommandContext(ctx, fields[0], args...)
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("ASPECT=%d:%d", opts.Aspect.Width, opts.Aspect.Height),
		"QUALITY="+strconv.FormatFloat(opts.Quality, 'f', -1, 64),
		"ALLOWS_EDITING="+strconv.FormatBool(opts.AllowsEditing),
	)
	cmd.Stdout = t.out
	cmd.Stderr = t.out

	if err := cmd.Run(); err != nil {
		return PickResult{}, fmt.Errorf("run capture command: %w", err)
	}

	info, err := os.Stat(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return PickResult{Canceled: true}, nil
		}
		return PickResult{}, fmt.Errorf("stat capture: %w", err)
	}
	if info.Size() == 0 {
		return PickResult{}, ErrCaptureFailed
	}
	return PickResult{URI: fileURI(target)}, nil
}

// Alert prints message.
func (t *Terminal) Alert(ctx context.Context, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "! %s\n", message)
}

func (t *Terminal) confirm(ctx context.Context, question string) (Permission, error) {
	answer, err := t.prompt(ctx, question)
	if err != nil {
		if errors.Is(err, errPromptCancelled) {
			return PermissionDenied, nil
		}
		return PermissionDenied, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return PermissionGranted, nil
	default:
		return PermissionDenied, nil
	}
}

func (t *Terminal) prompt(ctx context.Context, question string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprint(t.out, question)
	line, err := t.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line == "" {
			return "", errPromptCancelled
		}
		if !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read answer: %w", err)
		}
	}
	return strings.TrimSpace(line), nil
}

func checkImage(path string) (string, error) {
	if !imageExtensions[strings.ToLower(filepath.Ext(path))] {
		return "", ErrNotImage
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve image path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	if info.IsDir() {
		return "", ErrNotImage
	}
	return abs, nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func fileURI(path string) string {
	return "file://" + filepath.ToSlash(path)
}
