package socket

import (
	"github.com/ValentinKolb/netstack/lib/util"
)

// lane runs tasks one at a time in submission order
type lane struct {
	tasks *util.MPSC[func()]
	done  chan struct{}
}

func newLane() *lane {
	l := &lane{
		tasks: util.NewMPSC[func()](),
		done:  make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *lane) run() {
	defer close(l.done)
	for task := range l.tasks.Recv() {
		task()
	}
}

// submit queues a task, false once the lane is closed
func (l *lane) submit(task func()) bool {
	return l.tasks.Push(task)
}

// close stops accepting tasks. Queued tasks still run, done is closed after the last one.
func (l *lane) close() {
	l.tasks.Close()
}
