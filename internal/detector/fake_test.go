package detector

import (
	"errors"
	"sync"

	"github.com/MeKo-Tech/crowdgauge/internal/onnx"
)

// modelBox is a detection in letterboxed model space.
type modelBox struct {
	cx, cy, w, h float32
	class        int
	score        float32
}

// yoloHead encodes boxes as a [4+classes, anchors] channel-first head.
func yoloHead(numClasses, anchors int, boxes []modelBox) []float32 {
	data := make([]float32, (4+numClasses)*anchors)
	for a, b := range boxes {
		data[0*anchors+a] = b.cx
		data[1*anchors+a] = b.cy
		data[2*anchors+a] = b.w
		data[3*anchors+a] = b.h
		data[(4+b.class)*anchors+a] = b.score
	}
	return data
}

type fakeInferencer struct {
	numClasses int
	anchors    int
	boxes      []modelBox
	err        error

	mu      sync.Mutex
	calls   int
	inShape []int64
	closed  bool
}

func (f *fakeInferencer) Run(in onnx.Tensor) ([]float32, []int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, nil, errors.New("run after close")
	}
	f.calls++
	f.inShape = in.Shape
	if f.err != nil {
		return nil, nil, f.err
	}
	shape := []int64{1, int64(4 + f.numClasses), int64(f.anchors)}
	return yoloHead(f.numClasses, f.anchors, f.boxes), shape, nil
}

func (f *fakeInferencer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ModelPath = "unused.onnx"
	return cfg
}
