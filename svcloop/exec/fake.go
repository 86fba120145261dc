package exec

import "time"

type fakeProcess struct {
	pid    int
	code   int
	output string
	delay  time.Duration
}

// NewFakeProcess creates a process that exits with the given code and output
// after delay. It is used for testing.
func NewFakeProcess(pid, code int, output string, delay time.Duration) Process {
	return &fakeProcess{
		pid:    pid,
		code:   code,
		output: output,
		delay:  delay,
	}
}

func (mock *fakeProcess) PID() int { return mock.pid }

func (mock *fakeProcess) Wait() ExitStatus {
	if mock.delay > 0 {
		time.Sleep(mock.delay)
	}

	return ExitStatus{
		PID:    mock.pid,
		Code:   mock.code,
		Output: []byte(mock.output),
	}
}
