package worker_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/raidep/internal/adapters/mq/queue"
	worker "github.com/okian/raidep/internal/adapters/mq/worker"
	logging "github.com/okian/raidep/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	jobs chan queue.Job
	once sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan queue.Job, 10)}
}

func (mq *mockQueue) Dequeue(ctx context.Context) <-chan queue.Job {
	return mq.jobs
}

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.jobs) })
	return nil
}

type recordingProcessor struct {
	mu     sync.Mutex
	seen   []string
	fail   map[string]error
	notify chan string
}

func newRecordingProcessor() *recordingProcessor {
	return &recordingProcessor{fail: make(map[string]error), notify: make(chan string, 100)}
}

func (p *recordingProcessor) Process(_ context.Context, job queue.Job) error {
	p.mu.Lock()
	p.seen = append(p.seen, job.ReportID)
	err := p.fail[job.ReportID]
	p.mu.Unlock()
	p.notify <- job.ReportID
	return err
}

func (p *recordingProcessor) processed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.seen))
	copy(out, p.seen)
	return out
}

func waitFor(ch <-chan string, n int) []string {
	var got []string
	timeout := time.After(2 * time.Second)
	for len(got) < n {
		select {
		case id := <-ch:
			got = append(got, id)
		case <-timeout:
			return got
		}
	}
	return got
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker reading from a queue", t, func() {
		_ = logging.Init(logging.WithWriter(io.Discard))

		q := newMockQueue()
		proc := newRecordingProcessor()
		w := worker.NewInMemoryWorker(q, proc, worker.WithName("test-worker"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When jobs are queued", func() {
			q.jobs <- queue.Job{ReportID: "r1", EnqueuedAt: time.Now()}
			q.jobs <- queue.Job{ReportID: "r2", EnqueuedAt: time.Now()}

			convey.Convey("Then they are processed in order", func() {
				convey.So(waitFor(proc.notify, 2), convey.ShouldResemble, []string{"r1", "r2"})
			})
		})

		convey.Convey("When a job fails", func() {
			proc.mu.Lock()
			proc.fail["bad"] = errors.New("boom")
			proc.mu.Unlock()
			q.jobs <- queue.Job{ReportID: "bad"}
			q.jobs <- queue.Job{ReportID: "good"}

			convey.Convey("Then the worker keeps going", func() {
				convey.So(waitFor(proc.notify, 2), convey.ShouldResemble, []string{"bad", "good"})
			})
		})

		convey.Convey("When the worker is shut down", func() {
			err := w.Shutdown(context.Background())

			convey.Convey("Then it stops and a second shutdown is harmless", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of workers on a real queue", t, func() {
		_ = logging.Init(logging.WithWriter(io.Discard))

		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		proc := newRecordingProcessor()
		pool := worker.NewPool(4, q, proc)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.So(pool.Size(), convey.ShouldEqual, 4)

		convey.Convey("When many jobs are queued and the pool shuts down", func() {
			for i := 0; i < 20; i++ {
				convey.So(q.Enqueue(ctx, queue.Job{ReportID: fmt.Sprintf("r%d", i)}), convey.ShouldBeTrue)
			}
			got := waitFor(proc.notify, 20)
			err := pool.Shutdown(context.Background())

			convey.Convey("Then every job is processed exactly once", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(got, convey.ShouldHaveLength, 20)
				seen := make(map[string]int)
				for _, id := range proc.processed() {
					seen[id]++
				}
				convey.So(seen, convey.ShouldHaveLength, 20)
				for _, n := range seen {
					convey.So(n, convey.ShouldEqual, 1)
				}
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the pool is stopped", func() {
			pool.Stop(context.Background())

			convey.Convey("Then the queue stays open", func() {
				convey.So(q.IsClosed(), convey.ShouldBeFalse)
			})
		})
	})
}

func TestProcessorFunc(t *testing.T) {
	convey.Convey("Given a processor function", t, func() {
		var got string
		p := worker.ProcessorFunc(func(_ context.Context, job queue.Job) error {
			got = job.ReportID
			return nil
		})

		convey.Convey("When it processes a job", func() {
			err := p.Process(context.Background(), queue.Job{ReportID: "r9"})

			convey.Convey("Then the function is called", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(got, convey.ShouldEqual, "r9")
			})
		})
	})
}
