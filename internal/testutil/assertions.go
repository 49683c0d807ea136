package testutil

import (
	"sync"
	"testing"
	"time"

	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// WaitFor polls check every 10ms until it returns true or timeout is reached.
func WaitFor(t *testing.T, timeout time.Duration, check func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for condition: %s", msg)
}

// StepClock returns a clock that starts at start and advances by step on every call.
func StepClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := next
		next = next.Add(step)
		return now
	}
}

// StringAttr returns the string attribute name of item, failing the test when absent.
func StringAttr(t *testing.T, item map[string]ddbtypes.AttributeValue, name string) string {
	t.Helper()
	s, ok := item[name].(*ddbtypes.AttributeValueMemberS)
	if !ok {
		t.Fatalf("attribute %q is not a string: %#v", name, item[name])
	}
	return s.Value
}

// NumberAttr returns the number attribute name of item as its decimal text,
// failing the test when absent.
func NumberAttr(t *testing.T, item map[string]ddbtypes.AttributeValue, name string) string {
	t.Helper()
	n, ok := item[name].(*ddbtypes.AttributeValueMemberN)
	if !ok {
		t.Fatalf("attribute %q is not a number: %#v", name, item[name])
	}
	return n.Value
}
