package schedulersvc

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/minerva/core"
	"github.com/trezcool/minerva/core/course"
)

type repairerMock struct {
	report course.RepairReport
	err    error
	calls  int
}

func (r *repairerMock) Repair(_ context.Context, courseIDs ...string) (course.RepairReport, error) {
	r.calls++
	return r.report, r.err
}

// loggerMock records the level of each logged message.
type loggerMock struct {
	mu     sync.Mutex
	levels []string
}

func (l *loggerMock) log(level string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.levels = append(l.levels, level)
}

func (l *loggerMock) Debug(string, ...interface{}) { l.log("debug") }
func (l *loggerMock) Info(string, ...interface{})  { l.log("info") }
func (l *loggerMock) Warn(string, ...interface{})  { l.log("warn") }
func (l *loggerMock) Error(string, ...interface{}) { l.log("error") }
func (l *loggerMock) Fatal(string, ...interface{}) { l.log("fatal") }

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		schedule string
		wantJobs int
		wantErr  bool
	}{
		{name: "disabled", schedule: "", wantJobs: 0},
		{name: "nightly", schedule: "0 3 * * *", wantJobs: 1},
		{name: "invalid", schedule: "every night", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := core.NewTestConfig()
			conf.Courses.RepairSchedule = tt.schedule

			s, err := New(conf, &loggerMock{}, &repairerMock{})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantJobs, s.Jobs())
		})
	}
}

func TestScheduler_RunRepair(t *testing.T) {
	tests := []struct {
		name      string
		repairer  *repairerMock
		wantLevel string
	}{
		{name: "no drift", repairer: &repairerMock{report: course.RepairReport{Courses: 3}}, wantLevel: "info"},
		{name: "drift", repairer: &repairerMock{report: course.RepairReport{Courses: 3, Moved: 2}}, wantLevel: "warn"},
		{name: "failure", repairer: &repairerMock{err: errors.New("database is down")}, wantLevel: "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &loggerMock{}
			s, err := New(core.NewTestConfig(), logger, tt.repairer)
			require.NoError(t, err)

			s.RunRepair()
			assert.Equal(t, 1, tt.repairer.calls)
			assert.Equal(t, []string{tt.wantLevel}, logger.levels)
		})
	}
}

func TestScheduler_StartStop(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Courses.RepairSchedule = "@every 1h"
	s, err := New(conf, &loggerMock{}, &repairerMock{})
	require.NoError(t, err)

	s.Start()
	s.Stop()
}
