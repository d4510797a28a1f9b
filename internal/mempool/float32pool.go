// Package mempool recycles the float32 buffers that back detector input
// tensors. A 640x640 RGB frame is about 4.9 MB, allocated once per photo
// per worker without pooling.
package mempool

import (
	"sync"
)

// classStep is the granularity of size classes in elements.
const classStep = 1024

var float32Pools sync.Map // size class -> *sync.Pool

// sizeClass rounds n up to a multiple of classStep, with classStep as the
// smallest class.
func sizeClass(n int) int {
	if n <= classStep {
		return classStep
	}
	return (n + classStep - 1) / classStep * classStep
}

func poolFor(cls int) *sync.Pool {
	p, _ := float32Pools.LoadOrStore(cls, &sync.Pool{New: func() any {
		buf := make([]float32, cls)
		return &buf
	}})
	return p.(*sync.Pool)
}

// GetFloat32 returns a buffer of length n. Its contents are undefined; the
// caller overwrites every element. Return it with PutFloat32.
func GetFloat32(n int) []float32 {
	if n <= 0 {
		return []float32{}
	}
	cls := sizeClass(n)
	bp, _ := poolFor(cls).Get().(*[]float32)
	if bp == nil || cap(*bp) < cls {
		return make([]float32, cls)[:n]
	}
	return (*bp)[:n]
}

// PutFloat32 hands buf back for reuse. Buffers not obtained from GetFloat32
// are accepted as long as their capacity fills a size class; smaller ones and
// nil are dropped.
func PutFloat32(buf []float32) {
	c := cap(buf)
	if c < classStep {
		return
	}
	cls := c / classStep * classStep
	buf = buf[:cls]
	poolFor(cls).Put(&buf)
}
