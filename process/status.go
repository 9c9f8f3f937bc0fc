package process

import "fmt"

// ExitStatus holds the decoded termination state of a child process.
//
// A normal exit carries the child's code in [0,255] and Signaled == false.
// Termination by signal or fault carries Code == -signal and
// Signaled == true, so no abnormal termination can be confused with a
// normal exit of the same numeric value.
type ExitStatus struct {
	PID      int
	Code     int
	Signaled bool
}

// Err returns nil for a clean exit (code 0), otherwise an error describing
// the termination, suitable for direct propagation by callers that only
// care about success.
func (st ExitStatus) Err() error {
	if st.Code == 0 && !st.Signaled {
		return nil
	}
	if st.Signaled {
		return fmt.Errorf("pid %d terminated by signal %d", st.PID, -st.Code)
	}
	return fmt.Errorf("pid %d exited with code %d", st.PID, st.Code)
}

func (st ExitStatus) String() string {
	if st.Signaled {
		return fmt.Sprintf("pid %d: signal %d", st.PID, -st.Code)
	}
	return fmt.Sprintf("pid %d: exit code %d", st.PID, st.Code)
}
