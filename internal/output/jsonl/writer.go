// Package jsonl 实现周期结果的异步 JSONL 文件写入。
// 服务主循环只负责投递，JSON 编码与文件 I/O 在后台 goroutine 完成。
package jsonl

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// ErrClosed 写入器已关闭
var ErrClosed = errors.New("writer 已关闭")

const defaultQueueSize = 1000

// Options 写入器选项
type Options struct {
	// QueueSize 待写记录队列长度，<=0 时取 1000
	QueueSize int
	// FlushEach 每条记录编码后立即落盘，tail 文件的读者可即时看到
	FlushEach bool
}

// request 写入队列中的一项；rec 为空表示刷盘请求
type request struct {
	rec any
	ack chan error
}

// Writer 异步 JSONL 写入器
type Writer struct {
	path      string
	flushEach bool
	queue     chan request

	// mu 读锁保护投递，写锁保护关闭
	mu     sync.RWMutex
	closed bool

	written atomic.Int64
	failed  atomic.Int64

	// stopped 在后台 goroutine 退出时关闭，之后 closeErr 可读
	stopped  chan struct{}
	closeErr error
}

// NewWriter 创建 JSONL 写入器（追加模式）
// 参数 path: 输出文件路径，父目录不存在时创建
// 参数 opts: 写入器选项
func NewWriter(path string, opts Options) (*Writer, error) {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("打开输出文件失败: %w", err)
	}

	w := &Writer{
		path:      path,
		flushEach: opts.FlushEach,
		queue:     make(chan request, opts.QueueSize),
		stopped:   make(chan struct{}),
	}
	go w.drain(f)
	return w, nil
}

// Path 返回输出文件路径
func (w *Writer) Path() string {
	return w.path
}

// Write 投递一条记录；队列满时阻塞
func (w *Writer) Write(v any) error {
	if w == nil {
		return fmt.Errorf("writer 为空")
	}
	if v == nil {
		return fmt.Errorf("记录为空")
	}
	return w.enqueue(request{rec: v})
}

// Flush 等待此前投递的记录全部落盘
func (w *Writer) Flush() error {
	if w == nil {
		return nil
	}
	ack := make(chan error, 1)
	if err := w.enqueue(request{ack: ack}); err != nil {
		if errors.Is(err, ErrClosed) {
			return nil
		}
		return err
	}
	return <-ack
}

// Close 写完队列中剩余记录后关闭文件；可重复调用
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	<-w.stopped
	return w.closeErr
}

// Stats 返回成功与失败的记录数
func (w *Writer) Stats() (written, failed int64) {
	return w.written.Load(), w.failed.Load()
}

func (w *Writer) enqueue(r request) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrClosed
	}
	w.queue <- r
	return nil
}

// drain 独占文件，按投递顺序编码写入
func (w *Writer) drain(f *os.File) {
	defer close(w.stopped)

	buf := bufio.NewWriterSize(f, 1<<16)
	enc := json.NewEncoder(buf)
	for r := range w.queue {
		if r.rec == nil {
			r.ack <- buf.Flush()
			continue
		}
		// Encode 失败时不会写出半条记录
		err := enc.Encode(r.rec)
		if err == nil && w.flushEach {
			err = buf.Flush()
		}
		if err != nil {
			w.failed.Add(1)
			continue
		}
		w.written.Add(1)
	}
	w.closeErr = errors.Join(buf.Flush(), f.Close())
}
