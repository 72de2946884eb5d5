// internal/sentinel/sentinel.go
package sentinel

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagesync/internal/driver"
	"github.com/xkilldash9x/pagesync/internal/faults"
	"github.com/xkilldash9x/pagesync/internal/wait"
)

// DefaultTag is the element name used for markers.
const DefaultTag = "dndelete"

// InsertScript appends <tag id=markerID> to the element with id anchorID and reports
// whether the anchor existed.
const InsertScript = `function(anchorID, tag, markerID) {
	const anchor = document.getElementById(anchorID);
	if (!anchor) {
		return false;
	}
	const marker = document.createElement(tag);
	marker.id = markerID;
	marker.style.display = 'none';
	anchor.appendChild(marker);
	return true;
}`

// InsertHereScript appends <tag id=markerID> to the element it is bound to. It is used
// for anchors without an id.
const InsertHereScript = `function(tag, markerID) {
	const marker = document.createElement(tag);
	marker.id = markerID;
	marker.style.display = 'none';
	this.appendChild(marker);
	return true;
}`

// RemoveScript removes the element with id markerID if it is still present. It always
// reports true so that removing an absent marker is not a failure.
const RemoveScript = `function(markerID) {
	const marker = document.getElementById(markerID);
	if (marker && marker.parentNode) {
		marker.parentNode.removeChild(marker);
	}
	return true;
}`

const removalTimeout = 2 * time.Second

// Protocol detects the end of an async update by planting a marker node under the
// region the update re-renders and waiting for the marker to disappear.
type Protocol struct {
	drv    driver.Driver
	poller *wait.Poller
	logger *zap.Logger
	tag    string
}

// Option configures a Protocol.
type Option func(*Protocol)

// WithTag overrides the marker element name.
func WithTag(tag string) Option {
	return func(p *Protocol) {
		if tag != "" {
			p.tag = tag
		}
	}
}

// New creates a protocol bound to a driver.
func New(drv driver.Driver, poller *wait.Poller, logger *zap.Logger, opts ...Option) *Protocol {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Protocol{drv: drv, poller: poller, logger: logger.Named("sentinel"), tag: DefaultTag}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewMarkerID returns an identifier never used before. Markers are not reused across
// operations.
func (p *Protocol) NewMarkerID() string {
	return p.tag + "-" + uuid.NewString()
}

// Insert plants a marker with the given id under the element at anchor. Anchors with
// an id are addressed through it; any other anchor gets the marker through its element
// reference. Stale and not-found faults from resolving the anchor are returned as is
// so a retry wrapper can route them; a failing or refusing script is a
// ScriptExecutionError.
func (p *Protocol) Insert(ctx context.Context, anchor driver.Locator, markerID, label string) (bool, error) {
	ref, err := p.drv.Resolve(ctx, anchor)
	if err != nil {
		return false, err
	}
	anchorID, ok, err := p.drv.Attribute(ctx, ref, "id")
	if err != nil {
		return false, err
	}

	var inserted bool
	if ok && anchorID != "" {
		inserted, err = p.drv.ExecuteScript(ctx, InsertScript, anchorID, p.tag, markerID)
	} else {
		inserted, err = p.drv.ExecuteScriptOn(ctx, ref, InsertHereScript, p.tag, markerID)
		// The reference may have been replaced between Resolve and the call.
		if errors.Is(err, faults.ErrStale) {
			return false, err
		}
	}
	if err != nil {
		return false, &faults.ScriptExecutionError{Label: label, Script: "insert-marker", Err: err}
	}
	if !inserted {
		return false, &faults.ScriptExecutionError{Label: label, Script: "insert-marker"}
	}

	p.logger.Debug("Marker armed.", zap.String("marker", markerID), zap.Stringer("anchor", ref), zap.String("label", label))
	return true, nil
}

// WaitForRemoval polls until markerID no longer resolves. On timeout the marker is
// removed by hand, best effort, and onTimeout decides between a warning (false, nil)
// and an ActionNotCompleteError naming label.
func (p *Protocol) WaitForRemoval(ctx context.Context, markerID, label string, policy wait.Policy, onTimeout wait.OnTimeout) (bool, error) {
	removed := p.poller.Until(ctx, wait.Absent(p.drv, driver.ID(markerID)), policy.Timeout, policy.PollInterval)
	if removed {
		p.logger.Debug("Marker removed by update.", zap.String("marker", markerID), zap.String("label", label))
		return true, nil
	}

	p.Remove(ctx, markerID)
	return wait.Conclude(p.logger, false, onTimeout, label, policy)
}

// Remove deletes the marker if it is still present. It never fails; problems are
// logged. Calling it for an absent marker is a no-op.
func (p *Protocol) Remove(ctx context.Context, markerID string) {
	// Cleanup must run even if the caller's context is already done.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), removalTimeout)
	defer cancel()

	if _, err := p.drv.ExecuteScript(rctx, RemoveScript, markerID); err != nil {
		p.logger.Warn("Failed to remove marker manually.", zap.String("marker", markerID), zap.Error(err))
		return
	}
	p.logger.Debug("Marker removed manually.", zap.String("marker", markerID))
}
