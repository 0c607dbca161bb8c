package debug

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracerDisabled(t *testing.T) {
	var buf bytes.Buffer
	tr := New(false, &buf)
	start := tr.Start("crtsh")
	tr.End("crtsh", start, nil, 3)
	tr.Summary()

	assert.Empty(t, buf.String())
	assert.Empty(t, tr.Logs())

	var nilTracer *Tracer
	nilTracer.End("x", nilTracer.Start("x"), nil, 0)
	assert.Nil(t, nilTracer.Logs())
}

func TestTracerRecords(t *testing.T) {
	var buf bytes.Buffer
	tr := New(true, &buf)

	tr.End("crtsh", tr.Start("crtsh", "example.com"), nil, 12)
	tr.End("fofa", tr.Start("fofa"), errors.New("status 429"), 0)
	tr.PhaseEnd("collect", tr.PhaseStart("collect"))
	tr.Summary()

	out := buf.String()
	assert.Contains(t, out, "START: crtsh example.com")
	assert.Contains(t, out, "ERROR: status 429")
	assert.Contains(t, out, "PHASE END:   collect")
	assert.Contains(t, out, "DEBUG SUMMARY")

	logs := tr.Logs()
	if assert.Len(t, logs, 2) {
		assert.Equal(t, "crtsh", logs[0].Name)
		assert.Equal(t, 12, logs[0].Count)
		assert.Equal(t, "OK", logs[0].Status)
	}
}
