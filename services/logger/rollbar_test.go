package logsvc

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"

	"github.com/trezcool/quickgrade/core"
)

func TestRollbarLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewRollbarLogger(log.New(&buf, "", 0), core.NewTestConfig())

	scope := core.LogScope{SessionID: "s1", AssignmentName: "Lab 1"}
	logger.Error("saving session", errors.New("disk full"), scope, map[string]interface{}{"students": 3})

	got := buf.String()
	for _, want := range []string{"saving session\n", "disk full\n", "map[students:3]\n", "{SessionID:s1 AssignmentName:Lab 1}\n"} {
		if !strings.Contains(got, want) {
			t.Errorf("failed! output = %q; want it to contain %q", got, want)
		}
	}

	args := logger.prepare("msg", []interface{}{scope, scope, 42})
	if len(args) != 2 || args[0] != "msg" || args[1] != 42 {
		t.Errorf("prepare() = %v; want [msg 42]", args)
	}
}
