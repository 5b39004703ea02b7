package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatSyncTime(t *testing.T) {
	assert.Equal(t, "never", formatSyncTime(time.Time{}))

	recent := time.Now().Add(-30 * time.Minute)
	got := formatSyncTime(recent)
	assert.Contains(t, got, recent.Format("2006-01-02"))
	assert.Contains(t, got, "ago")
}
