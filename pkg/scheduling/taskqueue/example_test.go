package taskqueue_test

import (
	"context"
	"fmt"
	"time"

	"github.com/vnykmshr/stepflow/pkg/logging"
	"github.com/vnykmshr/stepflow/pkg/scheduling/taskqueue"
)

func ExampleQueue_RunSequential() {
	q, _ := taskqueue.NewWithConfig(taskqueue.Config{Logger: logging.Nop()})
	defer q.Close()

	q.Add("fetch", func(h *taskqueue.Handle) {
		fmt.Println("fetching")
	})
	q.AddAsync("upload", func(h *taskqueue.Handle) {
		time.AfterFunc(10*time.Millisecond, func() {
			fmt.Println("uploaded")
			h.Done()
		})
	})
	q.Add("", func(h *taskqueue.Handle) {
		fmt.Println("cleanup by", h.Name())
	})

	q.On(taskqueue.EventComplete, func(taskqueue.Event) {
		fmt.Println("complete")
	})

	if err := q.RunAndWait(context.Background(), true); err != nil {
		fmt.Println("error:", err)
	}

	// Output:
	// fetching
	// uploaded
	// cleanup by Step 3
	// complete
}

func ExampleQueue_List() {
	q, _ := taskqueue.NewWithConfig(taskqueue.Config{Logger: logging.Nop()})
	defer q.Close()

	q.Add("", func(*taskqueue.Handle) {})
	q.Add("t2", func(*taskqueue.Handle) {})
	q.Add("t3", func(*taskqueue.Handle) {})

	removed, _ := q.RemoveAt(1)
	fmt.Println("removed", removed.Number())

	for _, info := range q.List() {
		fmt.Println(info.Number, info.Name, info.Status)
	}

	// Output:
	// removed 2
	// 1 Step 1 pending
	// 3 t3 pending
}

func ExampleQueue_Abort() {
	q, _ := taskqueue.NewWithConfig(taskqueue.Config{Logger: logging.Nop()})
	defer q.Close()

	q.Add("migrate", func(*taskqueue.Handle) { fmt.Println("never runs") })
	q.OnAny(func(ev taskqueue.Event) {
		if ev.Step.Name != "" {
			fmt.Println(ev.Kind, ev.Step.Name)
			return
		}
		fmt.Println(ev.Kind)
	})

	q.Abort()

	// Output:
	// aborting
	// stepskipped migrate
	// stepcomplete migrate
	// complete
	// aborted
}

func ExampleHandle_SetTimeout() {
	q, _ := taskqueue.NewWithConfig(taskqueue.Config{Logger: logging.Nop()})
	defer q.Close()

	q.AddAsync("slow", func(h *taskqueue.Handle) {
		h.SetTimeout(5 * time.Millisecond)
		time.AfterFunc(30*time.Millisecond, h.Done)
	})
	q.On(taskqueue.EventStepTimeout, func(ev taskqueue.Event) {
		fmt.Println("timed out:", ev.Step.Name, ev.Step.Status)
	})
	q.On(taskqueue.EventStepComplete, func(ev taskqueue.Event) {
		fmt.Println("completed:", ev.Step.Name, ev.Step.Status)
	})

	q.RunAndWait(context.Background(), false)

	// Output:
	// timed out: slow timedout
	// completed: slow complete
}
