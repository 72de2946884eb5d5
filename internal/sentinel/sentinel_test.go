// internal/sentinel/sentinel_test.go
package sentinel

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/pagesync/internal/driver"
	"github.com/xkilldash9x/pagesync/internal/driver/memdom"
	"github.com/xkilldash9x/pagesync/internal/faults"
	"github.com/xkilldash9x/pagesync/internal/mocks"
	"github.com/xkilldash9x/pagesync/internal/wait"
)

const page = `<html><body>
<div id="panel"><button id="save">Save</button></div>
<section id="results"><div class="no-id"><p>row</p></div></section>
</body></html>`

var policy = wait.Policy{Timeout: 300 * time.Millisecond, PollInterval: 20 * time.Millisecond, MaxAttempts: 3}

func setup(t *testing.T) (*memdom.Page, *Protocol, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	pg, err := memdom.Parse(page, logger)
	require.NoError(t, err)
	t.Cleanup(pg.Close)
	pg.HandleScript(InsertScript, memdom.AppendChild)
	pg.HandleScript(RemoveScript, memdom.RemoveByID)
	pg.HandleElementScript(InsertHereScript, memdom.AppendChildHere)

	return pg, New(pg, wait.NewPoller(nil, logger), logger), logs
}

func TestNewMarkerID(t *testing.T) {
	p := New(nil, nil, nil, WithTag("ajaxmark"))
	a, b := p.NewMarkerID(), p.NewMarkerID()
	assert.True(t, strings.HasPrefix(a, "ajaxmark-"))
	assert.NotEqual(t, a, b)
}

func TestInsertAndWait(t *testing.T) {
	ctx := context.Background()

	t.Run("update removes the marker", func(t *testing.T) {
		pg, p, _ := setup(t)
		id := p.NewMarkerID()

		ok, err := p.Insert(ctx, driver.ID("panel"), id, "Save")
		require.NoError(t, err)
		require.True(t, ok)
		_, err = pg.Resolve(ctx, driver.ID(id))
		require.NoError(t, err, "marker must be in the document")

		pg.After(60*time.Millisecond, func(d *memdom.Document) { d.Refresh("panel") })

		ok, err = p.WaitForRemoval(ctx, id, "Save", policy, wait.Raise)
		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("timeout raises with label and cleans up", func(t *testing.T) {
		pg, p, _ := setup(t)
		id := p.NewMarkerID()
		_, err := p.Insert(ctx, driver.ID("panel"), id, "Save order")
		require.NoError(t, err)

		ok, err := p.WaitForRemoval(ctx, id, "Save order", policy, wait.Raise)
		assert.False(t, ok)
		var notComplete *faults.ActionNotCompleteError
		require.ErrorAs(t, err, &notComplete)
		assert.Contains(t, err.Error(), "Save order")

		_, err = pg.Resolve(ctx, driver.ID(id))
		assert.ErrorIs(t, err, faults.ErrNotFound, "marker removed manually")
	})

	t.Run("timeout warns", func(t *testing.T) {
		_, p, logs := setup(t)
		id := p.NewMarkerID()
		_, err := p.Insert(ctx, driver.ID("panel"), id, "Save")
		require.NoError(t, err)

		ok, err := p.WaitForRemoval(ctx, id, "Save", policy, wait.Warn)
		assert.False(t, ok)
		assert.NoError(t, err)
		assert.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).Len())
	})
}

func TestInsertUnderAnchorWithoutID(t *testing.T) {
	ctx := context.Background()

	for _, anchor := range []driver.Locator{driver.CSS("div.no-id"), driver.XPath("//section/div")} {
		t.Run(anchor.String(), func(t *testing.T) {
			pg, p, _ := setup(t)
			id := p.NewMarkerID()

			ok, err := p.Insert(ctx, anchor, id, "Results")
			require.NoError(t, err)
			require.True(t, ok)
			_, err = pg.Resolve(ctx, driver.XPath("//div[@class='no-id']/"+DefaultTag+"[@id='"+id+"']"))
			require.NoError(t, err, "marker must sit under the anchor")

			pg.After(40*time.Millisecond, func(d *memdom.Document) { d.Refresh("results") })
			ok, err = p.WaitForRemoval(ctx, id, "Results", policy, wait.Raise)
			assert.NoError(t, err)
			assert.True(t, ok)
		})
	}

	t.Run("refusing script", func(t *testing.T) {
		drv := new(mocks.MockDriver)
		ref := mocks.Ref("div")
		drv.On("Resolve", mock.Anything, driver.CSS("div")).Return(ref, nil)
		drv.On("Attribute", mock.Anything, ref, "id").Return("", false, nil)
		drv.On("ExecuteScriptOn", mock.Anything, ref, InsertHereScript, []any{DefaultTag, "m"}).Return(false, nil)

		_, err := New(drv, wait.NewPoller(nil, nil), nil).Insert(ctx, driver.CSS("div"), "m", "Results")
		var scriptErr *faults.ScriptExecutionError
		require.ErrorAs(t, err, &scriptErr)
		drv.AssertExpectations(t)
	})

	t.Run("anchor replaced before insertion", func(t *testing.T) {
		drv := new(mocks.MockDriver)
		ref := mocks.Ref("div")
		drv.On("Resolve", mock.Anything, driver.CSS("div")).Return(ref, nil)
		drv.On("Attribute", mock.Anything, ref, "id").Return("", false, nil)
		drv.On("ExecuteScriptOn", mock.Anything, ref, InsertHereScript, []any{DefaultTag, "m"}).Return(false, faults.ErrStale)

		_, err := New(drv, wait.NewPoller(nil, nil), nil).Insert(ctx, driver.CSS("div"), "m", "Results")
		assert.True(t, faults.IsStale(err))
		var scriptErr *faults.ScriptExecutionError
		assert.False(t, errors.As(err, &scriptErr), "stale faults stay retryable")
	})
}

func TestInsertFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("anchor missing", func(t *testing.T) {
		_, p, _ := setup(t)
		_, err := p.Insert(ctx, driver.ID("nope"), "m", "Save")
		assert.Equal(t, faults.KindNotFound, faults.Classify(err))
	})

	t.Run("script faults", func(t *testing.T) {
		drv := new(mocks.MockDriver)
		ref := mocks.Ref("panel")
		drv.On("Resolve", mock.Anything, driver.ID("panel")).Return(ref, nil)
		drv.On("Attribute", mock.Anything, ref, "id").Return("panel", true, nil)
		drv.On("ExecuteScript", mock.Anything, InsertScript, []any{"panel", DefaultTag, "m"}).Return(false, errors.New("Refused to evaluate"))

		p := New(drv, wait.NewPoller(nil, nil), nil)
		ok, err := p.Insert(ctx, driver.ID("panel"), "m", "Save")
		assert.False(t, ok)
		var scriptErr *faults.ScriptExecutionError
		require.ErrorAs(t, err, &scriptErr)
		assert.Equal(t, "insert-marker", scriptErr.Script)
		drv.AssertExpectations(t)
	})

	t.Run("stale anchor passes through", func(t *testing.T) {
		drv := new(mocks.MockDriver)
		ref := mocks.Ref("panel")
		drv.On("Resolve", mock.Anything, driver.ID("panel")).Return(ref, nil)
		drv.On("Attribute", mock.Anything, ref, "id").Return("", false, faults.ErrStale)

		_, err := New(drv, wait.NewPoller(nil, nil), nil).Insert(ctx, driver.ID("panel"), "m", "Save")
		assert.True(t, faults.IsStale(err))
	})
}

func TestRemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	_, p, logs := setup(t)

	assert.NotPanics(t, func() {
		p.Remove(ctx, "never-inserted")
		p.Remove(ctx, "never-inserted")
	})
	assert.Zero(t, logs.FilterLevelExact(zapcore.WarnLevel).Len())

	t.Run("failing removal only warns", func(t *testing.T) {
		drv := new(mocks.MockDriver)
		drv.On("ExecuteScript", mock.Anything, RemoveScript, []any{"m"}).Return(false, errors.New("target closed"))
		core, obs := observer.New(zapcore.WarnLevel)

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		New(drv, nil, zap.New(core)).Remove(cctx, "m")
		assert.Equal(t, 1, obs.Len())
		drv.AssertExpectations(t)
	})
}
