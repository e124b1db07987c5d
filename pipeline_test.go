package facenorm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeline_StageError(t *testing.T) {
	err := error(&StageError{Stage: StageAlign, Err: fmt.Errorf("%w: crop", ErrOutOfBounds)})

	assert.Equal(t, "align: bounding box out of bound: crop", err.Error())
	assert.ErrorIs(t, err, ErrOutOfBounds)

	var serr *StageError
	require.ErrorAs(t, fmt.Errorf("wrapped: %w", err), &serr)
	assert.Equal(t, StageAlign, serr.Stage)
}

func TestPipeline_StageString(t *testing.T) {
	assert.Equal(t, "load", StageLoad.String())
	assert.Equal(t, "output", StageOutput.String())
	assert.Equal(t, "stage(42)", Stage(42).String())
}

func TestPipeline_RunStopsAtFirstFailure(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	p := NewProcessor(nil, logger)

	var ran []Stage
	record := func(s Stage, err error) step {
		return step{stage: s, run: func(*job) error {
			ran = append(ran, s)
			return err
		}}
	}

	boom := errors.New("boom")
	err := p.run(&job{source: "face.png"},
		record(StageLoad, nil),
		record(StageDetect, boom),
		record(StageAlign, nil),
	)

	var serr *StageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StageDetect, serr.Stage)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []Stage{StageLoad, StageDetect}, ran)

	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, logrus.WarnLevel, last.Level)
	assert.Equal(t, "detect", last.Data["stage"])
	assert.Equal(t, "face.png", last.Data["source"])
}
