package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/corepipe/internal/config"
	"github.com/sawpanic/corepipe/internal/risk"
)

func TestParseAsOf(t *testing.T) {
	at, err := parseAsOf("2026-10-16")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-16", at.Format("2006-01-02"))

	now, err := parseAsOf("")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), now, time.Minute)

	_, err = parseAsOf("16.10.2026")
	assert.Error(t, err)
}

func TestConfirmSet(t *testing.T) {
	assert.Nil(t, confirmSet(nil))

	c := confirmSet([]string{"eqnr.ol", " NHY.OL"})
	ok, err := c.Confirmed(context.Background(), "EQNR.OL")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = c.Confirmed(context.Background(), "nhy.ol")
	assert.True(t, ok)
	ok, _ = c.Confirmed(context.Background(), "ORK.OL")
	assert.False(t, ok)
}

func TestWriteRisk(t *testing.T) {
	r := risk.Empty(risk.DefaultOptions())
	r.Holdings = 1
	r.TotalValue = 1040
	r.Sectors = []risk.SectorWeight{{Sector: "Energy", Weight: 1, Value: 1040, Risk: risk.BandHigh}}
	r.Warnings = []string{"High concentration in Energy"}

	var buf bytes.Buffer
	require.NoError(t, writeRisk(&buf, r))
	out := buf.String()
	assert.Contains(t, out, "1040.00")
	assert.Contains(t, out, "Energy")
	assert.Contains(t, out, "100.0%")
	assert.Contains(t, out, "n/a")
	assert.Contains(t, out, "High concentration in Energy")
}

func TestHTTPConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Addr = "127.0.0.1:9090"
	cfg.Server.WriteTimeoutMS = 5000
	h := httpConfig(&cli{cfg: &cfg})
	assert.Equal(t, "127.0.0.1:9090", h.Addr)
	assert.Equal(t, 5*time.Second, h.WriteTimeout)
	assert.Equal(t, 5*time.Second, h.RequestTimeout)
}

func TestRootCommand_RejectsInvalidMode(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"size", "EQNR.OL", "--price", "100", "--stop", "95", "--capital", "100000", "--mode", "DRY", "--config", ""})
	root.SetOut(&bytes.Buffer{})
	err := root.Execute()
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}
