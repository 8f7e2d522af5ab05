package perflib

import (
	"fmt"

	"github.com/golang/glog"
	"golang.org/x/sys/unix"
)

// AdjustFileLimit pre-raises the open-file ceiling to fit every peer socket
// plus each worker's poller and stdio. When the limit cannot be raised the
// per-worker peer count is reduced to what fits instead; the caller aborts
// the run if that reaches zero.
func AdjustFileLimit(peers, workers int) int {
	req := uint64(peers+4) * uint64(workers)

	var lim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
		glog.Warningf("cannot read the open files limit: %v", err)
		return peers
	}
	if lim.Cur > req {
		return peers
	}

	fmt.Printf("set open files limit to %d\n", req)

	want := lim
	want.Cur = req
	if want.Max < req {
		want.Max = req
	}
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &want); err != nil {
		reduced := int(lim.Cur)/workers - 4
		if reduced < 0 {
			reduced = 0
		}
		glog.Warningf("required %d descriptors ((peers + 4) * workers) but the limit cannot be raised (%v); continuing with %d peers",
			req, err, reduced)
		return reduced
	}
	return peers
}
