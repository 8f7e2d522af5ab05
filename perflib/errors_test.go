package perflib

import (
	"errors"
	"fmt"
	"testing"
)

func TestFatalErrorTagging(t *testing.T) {
	err := fatalf("cannot establish even one TCP connection: %v", errors.New("refused"))

	if !IsFatal(err) {
		t.Error("fatalf result not recognized as fatal")
	}
	if IsFatal(errors.New("transient")) {
		t.Error("plain error recognized as fatal")
	}
	// The tag survives wrapping on the way up the worker stack.
	if !IsFatal(fmt.Errorf("worker 3: %w", err)) {
		t.Error("wrapped fatal error lost its tag")
	}
	if got := err.Error(); got != "cannot establish even one TCP connection: refused" {
		t.Error("message: ", got)
	}
}
