package classifier

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"tradepilot/internal/logger"

	ort "github.com/yalue/onnxruntime_go"
)

type Options struct {
	Path        string
	BackupPath  string
	RuntimePath string // onnxruntime shared library
	InputName   string
	OutputName  string
	// FeatureCount is the width of the input vector.
	FeatureCount int
	OutputSize   int
}

// Model is an ONNX session with preallocated input and output tensors.
// Predict is serialised; the tensors are reused between calls.
type Model struct {
	mu       sync.Mutex
	session  *ort.AdvancedSession
	input    *ort.Tensor[float32]
	output   *ort.Tensor[float32]
	path     string
	checksum string
}

var (
	envOnce sync.Once
	envErr  error
)

func initEnvironment(runtimePath string) error {
	envOnce.Do(func() {
		if p := strings.TrimSpace(runtimePath); p != "" {
			ort.SetSharedLibraryPath(p)
		}
		envErr = ort.InitializeEnvironment()
	})
	return envErr
}

// Load opens the primary model, falling back to the backup path. It fails
// only when neither can be loaded.
func Load(opts Options) (*Model, error) {
	if opts.FeatureCount <= 0 {
		return nil, fmt.Errorf("model feature count must be > 0")
	}
	if opts.OutputSize <= 0 {
		opts.OutputSize = 2
	}
	candidates := selectPaths(opts.Path, opts.BackupPath)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: primary %q and backup %q not found", ErrNoModel, opts.Path, opts.BackupPath)
	}
	if err := initEnvironment(opts.RuntimePath); err != nil {
		return nil, fmt.Errorf("init onnxruntime: %w", err)
	}
	var lastErr error
	for _, path := range candidates {
		m, err := open(path, opts)
		if err != nil {
			logger.Errorf("加载模型失败 %s: %v", path, err)
			lastErr = err
			continue
		}
		logger.Infof("model loaded from %s (sha256=%s)", m.path, m.checksum)
		return m, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrNoModel, lastErr)
}

// selectPaths returns the existing model files in load order.
func selectPaths(primary, backup string) []string {
	var out []string
	if fileExists(primary) {
		logger.Infof("primary model found at %s", primary)
		out = append(out, primary)
	} else {
		logger.Warnf("primary model not found at %s", primary)
	}
	if backup != "" && backup != primary && fileExists(backup) {
		if len(out) == 0 {
			logger.Infof("falling back to backup model at %s", backup)
		}
		out = append(out, backup)
	}
	return out
}

func fileExists(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

// Checksum returns the hex sha256 of the file at path.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func open(path string, opts Options) (*Model, error) {
	sum, err := Checksum(path)
	if err != nil {
		return nil, err
	}
	input, err := ort.NewTensor(ort.NewShape(1, int64(opts.FeatureCount)), make([]float32, opts.FeatureCount))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(opts.OutputSize)))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	session, err := ort.NewAdvancedSession(path,
		[]string{opts.InputName}, []string{opts.OutputName},
		[]ort.Value{input}, []ort.Value{output}, nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &Model{session: session, input: input, output: output, path: path, checksum: sum}, nil
}

func (m *Model) Path() string     { return m.path }
func (m *Model) Checksum() string { return m.checksum }

func (m *Model) Predict(features []float32) (Prediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data := m.input.GetData()
	if len(features) != len(data) {
		return Prediction{}, fmt.Errorf("feature width %d, model expects %d", len(features), len(data))
	}
	copy(data, features)
	if err := m.session.Run(); err != nil {
		return Prediction{}, fmt.Errorf("inference failed: %w", err)
	}
	out := append([]float32(nil), m.output.GetData()...)
	return interpret(out), nil
}

func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var err error
	if m.session != nil {
		err = m.session.Destroy()
		m.session = nil
	}
	if m.input != nil {
		_ = m.input.Destroy()
		m.input = nil
	}
	if m.output != nil {
		_ = m.output.Destroy()
		m.output = nil
	}
	return err
}
