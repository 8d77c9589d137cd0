package cadente

import (
	"net"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// workerPool serves incoming connections via a capped pool of workers.
//
// Such a scheme keeps CPU caches hot (in theory).
type workerPool struct {
	// ServeFunc runs the connection loop. It must leave c unclosed;
	// the worker closes c when ServeFunc returns.
	ServeFunc             func(c net.Conn) error
	MaxWorkersCount       int
	MaxIdleWorkerDuration time.Duration
	LogAllErrors          bool
	Logger                Logger

	workersCount     int64
	idleWorkersCount int64
	lastIdleCount    int64
	idleWorkers      sync.Pool
	stopped          int32
}

type workerChan struct {
	ch chan net.Conn
}

func (wp *workerPool) Start() {
	atomic.StoreInt32(&wp.stopped, 0)
	if wp.MaxIdleWorkerDuration <= 0 {
		wp.MaxIdleWorkerDuration = 10 * time.Second
	}
	go func() {
		for {
			time.Sleep(wp.MaxIdleWorkerDuration)
			if wp.isStopped() {
				return
			}
			wp.clean()
		}
	}()
}

// Stop signals idle workers to exit. Busy workers stop after serving
// their current connection and noticing the stopped flag.
func (wp *workerPool) Stop() {
	atomic.StoreInt32(&wp.stopped, 1)
	wc := atomic.LoadInt64(&wp.workersCount)
	for i := int64(0); i < wc; i++ {
		w := wp.idleWorkers.Get()
		if w == nil {
			break
		}
		w.(*workerChan).ch <- nil
	}
}

func (wp *workerPool) isStopped() bool {
	return atomic.LoadInt32(&wp.stopped) == 1
}

// Serve hands c to a worker. It reports false when the pool is saturated;
// the caller decides whether to retry or shed the connection.
func (wp *workerPool) Serve(c net.Conn) bool {
	w := wp.getWorker()
	if w == nil {
		return false
	}
	w.ch <- c
	return true
}

// clean retires idle workers when the idle count stays high across two
// consecutive cleaning periods.
func (wp *workerPool) clean() {
	iwc := atomic.SwapInt64(&wp.idleWorkersCount, 0)
	liwc := atomic.SwapInt64(&wp.lastIdleCount, iwc)
	if iwc < int64(wp.MaxWorkersCount)*10/100 || iwc < 0 || iwc < liwc {
		return
	}

	for i := int64(0); i < iwc-liwc; i++ {
		w := wp.idleWorkers.Get()
		if w == nil {
			return
		}
		w.(*workerChan).ch <- nil
	}
}

var workerChanCap = func() int {
	// A blocking worker chan hands the connection straight to the worker
	// when GOMAXPROCS=1; otherwise a one-slot chan keeps the acceptor from
	// lagging behind CPU-bound workers.
	if runtime.GOMAXPROCS(0) == 1 {
		return 0
	}
	return 1
}()

func (wp *workerPool) getWorker() *workerChan {
	if w := wp.idleWorkers.Get(); w != nil {
		atomic.AddInt64(&wp.idleWorkersCount, -1)
		return w.(*workerChan)
	}
	if atomic.LoadInt64(&wp.workersCount) >= int64(wp.MaxWorkersCount) {
		return nil
	}
	w := &workerChan{
		ch: make(chan net.Conn, workerChanCap),
	}
	atomic.AddInt64(&wp.workersCount, 1)
	go wp.workerFunc(w)
	return w
}

func (wp *workerPool) workerFunc(w *workerChan) {
	for c := range w.ch {
		if c == nil {
			break
		}

		err := wp.ServeFunc(c)
		if err != nil && (wp.LogAllErrors || !isBenignConnError(err)) {
			wp.Logger.Printf("error when serving connection %q<->%q: %s",
				c.LocalAddr(), c.RemoteAddr(), err)
		}
		_ = c.Close()

		if wp.isStopped() {
			break
		}
		wp.idleWorkers.Put(w)
		atomic.AddInt64(&wp.idleWorkersCount, 1)
	}
	atomic.AddInt64(&wp.workersCount, -1)
}

// isBenignConnError filters the connection failures any internet-facing
// listener sees constantly and that carry no diagnostic value.
func isBenignConnError(err error) bool {
	s := err.Error()
	return strings.Contains(s, "broken pipe") ||
		strings.Contains(s, "reset by peer") ||
		strings.Contains(s, "unexpected EOF") ||
		strings.Contains(s, "i/o timeout") ||
		err == errMalformedRequest
}
