package estimator

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetLogWriters_EnableDisable(t *testing.T) {
	var buf bytes.Buffer
	SetLogWriters(&buf, nil, nil)
	defer SetLogWriters(nil, nil, nil)

	opsf("ops message %d", 1)
	diagf("diag message")
	tracef("trace message")

	out := buf.String()
	if !strings.Contains(out, "ops message 1") {
		t.Errorf("ops stream missing message: %q", out)
	}
	if strings.Contains(out, "diag message") || strings.Contains(out, "trace message") {
		t.Errorf("disabled streams leaked into ops writer: %q", out)
	}

	SetLogWriters(nil, nil, nil)
	if opsLogger != nil || diagLogger != nil || traceLogger != nil {
		t.Fatal("all loggers should be nil after SetLogWriters(nil, nil, nil)")
	}
	opsf("dropped")
}

func TestSetLogWriters_Prefix(t *testing.T) {
	var buf bytes.Buffer
	SetLogWriters(nil, &buf, nil)
	defer SetLogWriters(nil, nil, nil)

	diagf("hello")
	if !strings.Contains(buf.String(), "[estimator] ") {
		t.Errorf("missing package prefix: %q", buf.String())
	}
}
