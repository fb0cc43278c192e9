package cycle

import (
	"sort"
	"sync"
)

// rollingWindow 固定容量的样本环形缓冲区
type rollingWindow struct {
	size  int
	buf   []int64
	pos   int
	count int64
	full  bool

	mu sync.Mutex
}

func newRollingWindow(size int) *rollingWindow {
	return &rollingWindow{size: size, buf: make([]int64, 0, size)}
}

func (w *rollingWindow) add(v int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.count++
	if w.size <= 0 {
		return
	}

	if !w.full {
		w.buf = append(w.buf, v)
		if len(w.buf) == w.size {
			w.full = true
			w.pos = 0
		}
		return
	}

	w.buf[w.pos] = v
	w.pos++
	if w.pos >= w.size {
		w.pos = 0
	}
}

// quantiles 返回累计样本数与窗口内各分位数（最近秩，下取整）
func (w *rollingWindow) quantiles(qs ...float64) (count int64, values []int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	count = w.count
	values = make([]int64, len(qs))
	if len(w.buf) == 0 {
		return count, values
	}

	tmp := make([]int64, len(w.buf))
	copy(tmp, w.buf)
	sort.Slice(tmp, func(i, j int) bool { return tmp[i] < tmp[j] })

	n := len(tmp)
	for i, q := range qs {
		switch {
		case q <= 0:
			values[i] = tmp[0]
		case q >= 1:
			values[i] = tmp[n-1]
		default:
			values[i] = tmp[int(float64(n-1)*q)]
		}
	}
	return count, values
}
