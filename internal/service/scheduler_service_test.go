package service

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDailySpec(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "00:05", want: "0 5 0 * * *"},
		{raw: " 23:59 ", want: "0 59 23 * * *"},
		{raw: "7:30", want: "0 30 7 * * *"},
		{raw: "24:00", wantErr: true},
		{raw: "12:60", wantErr: true},
		{raw: "noon", wantErr: true},
		{raw: "12:00:00", wantErr: true},
	}

	for _, tt := range tests {
		got, err := buildDailySpec(tt.raw)
		if tt.wantErr {
			assert.Error(t, err, "raw %q", tt.raw)
			continue
		}
		require.NoError(t, err, "raw %q", tt.raw)
		assert.Equal(t, tt.want, got)
	}
}

func TestSchedulerServiceScheduleDaily(t *testing.T) {
	t.Parallel()
	s := NewSchedulerService(time.UTC, zerolog.Nop())

	id, err := s.ScheduleDaily("00:05", func() {})
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	next := s.Next(id)
	require.False(t, next.IsZero())
	assert.Equal(t, 0, next.Hour())
	assert.Equal(t, 5, next.Minute())

	_, err = s.ScheduleDaily("bad", func() {})
	assert.Error(t, err)
}

func TestSchedulerServiceScheduleInterval(t *testing.T) {
	t.Parallel()
	s := NewSchedulerService(time.UTC, zerolog.Nop())

	_, err := s.ScheduleInterval(0, func() {})
	assert.Error(t, err)

	var mu sync.Mutex
	runs := 0
	done := make(chan struct{})
	_, err = s.ScheduleInterval(time.Second, func() {
		mu.Lock()
		defer mu.Unlock()
		runs++
		if runs == 1 {
			close(done)
		}
	})
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("interval job did not run")
	}
}

func TestCronLoggerWritesFields(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l := cronLogger{log: zerolog.New(&buf)}

	l.Error(errors.New("boom"), "job failed", "entry", 3)

	out := buf.String()
	assert.Contains(t, out, `"error":"boom"`)
	assert.Contains(t, out, `"entry":3`)
	assert.Contains(t, out, "job failed")
}
