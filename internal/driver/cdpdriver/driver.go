// internal/driver/cdpdriver/driver.go
package cdpdriver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagesync/internal/driver"
	"github.com/xkilldash9x/pagesync/internal/faults"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Driver implements driver.Driver over the Chrome DevTools Protocol for one tab.
// Element references hold backend node ids, which stay valid exactly as long as the
// node stays in the document.
type Driver struct {
	tabCtx     context.Context
	logger     *zap.Logger
	opTimeout  time.Duration
	navTimeout time.Duration
}

var _ driver.Driver = (*Driver)(nil)

// Option configures a Driver.
type Option func(*Driver)

// WithOperationTimeout bounds every single protocol round trip.
func WithOperationTimeout(d time.Duration) Option {
	return func(drv *Driver) {
		drv.opTimeout = d
	}
}

// WithNavigationTimeout bounds Navigate. Zero leaves it to the caller's context.
func WithNavigationTimeout(d time.Duration) Option {
	return func(drv *Driver) {
		drv.navTimeout = d
	}
}

// New wraps a chromedp tab context.
func New(tabCtx context.Context, logger *zap.Logger, opts ...Option) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Driver{
		tabCtx:    tabCtx,
		logger:    logger.Named("cdpdriver"),
		opTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type nodeRef struct {
	backend cdp.BackendNodeID
	desc    string
}

func (r *nodeRef) String() string { return r.desc }

// run executes actions on the tab, cancelled by either the tab or ctx. Each call
// is also capped at opTimeout, independent of the caller's deadline.
func (d *Driver) run(ctx context.Context, actions ...chromedp.Action) error {
	combined, cancel := combineContext(d.tabCtx, ctx)
	defer cancel()
	if d.opTimeout > 0 {
		var cancelOp context.CancelFunc
		combined, cancelOp = context.WithTimeout(combined, d.opTimeout)
		defer cancelOp()
	}
	if err := chromedp.Run(combined, actions...); err != nil {
		// A cancelled caller surfaces as an opaque CDP error; report the
		// cancellation itself so callers can tell it from a page failure.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return classify(err)
	}
	return nil
}

// -- Resolution --

func query(loc driver.Locator) (string, []chromedp.QueryOption) {
	switch loc.By {
	case driver.ByID:
		return fmt.Sprintf(`[id="%s"]`, cssEscape(loc.Value)), []chromedp.QueryOption{chromedp.ByQueryAll}
	case driver.ByName:
		return fmt.Sprintf(`[name="%s"]`, cssEscape(loc.Value)), []chromedp.QueryOption{chromedp.ByQueryAll}
	case driver.ByXPath:
		return loc.Value, []chromedp.QueryOption{chromedp.BySearch}
	default:
		return loc.Value, []chromedp.QueryOption{chromedp.ByQueryAll}
	}
}

func cssEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

func (d *Driver) Resolve(ctx context.Context, loc driver.Locator) (driver.ElementRef, error) {
	refs, err := d.ResolveAll(ctx, loc)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("%w: %s", faults.ErrNotFound, loc)
	}
	return refs[0], nil
}

func (d *Driver) ResolveAll(ctx context.Context, loc driver.Locator) ([]driver.ElementRef, error) {
	sel, opts := query(loc)
	opts = append(opts, chromedp.AtLeast(0))

	var nodes []*cdp.Node
	if err := d.run(ctx, chromedp.Nodes(sel, &nodes, opts...)); err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", loc, err)
	}
	refs := make([]driver.ElementRef, 0, len(nodes))
	for _, n := range nodes {
		refs = append(refs, &nodeRef{backend: n.BackendNodeID, desc: n.FullXPath()})
	}
	return refs, nil
}

// -- Element calls --

// callOn invokes fn with `this` bound to the node behind ref and decodes the
// by-value result into out.
func (d *Driver) callOn(ctx context.Context, ref driver.ElementRef, fn string, out any, args ...any) error {
	r, ok := ref.(*nodeRef)
	if !ok {
		return fmt.Errorf("cdpdriver: foreign element reference %T", ref)
	}

	callArgs := make([]*runtime.CallArgument, 0, len(args))
	for _, a := range args {
		raw, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("failed to encode call argument: %w", err)
		}
		callArgs = append(callArgs, &runtime.CallArgument{Value: raw})
	}

	err := d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithBackendNodeID(r.backend).Do(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if obj.ObjectID != "" {
				_ = runtime.ReleaseObject(obj.ObjectID).Do(ctx)
			}
		}()

		res, exc, err := runtime.CallFunctionOn(fn).
			WithObjectID(obj.ObjectID).
			WithArguments(callArgs).
			WithReturnByValue(true).
			WithAwaitPromise(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exceptionError(exc)
		}
		if out != nil && res != nil && len(res.Value) > 0 {
			if err := json.Unmarshal(res.Value, out); err != nil {
				return fmt.Errorf("failed to decode call result: %w", err)
			}
		}
		return nil
	}))
	if err != nil {
		return fmt.Errorf("%s: %w", r.desc, err)
	}
	return nil
}

func (d *Driver) callBool(ctx context.Context, ref driver.ElementRef, fn string, args ...any) (bool, error) {
	var v bool
	err := d.callOn(ctx, ref, fn, &v, args...)
	return v, err
}

func (d *Driver) Attribute(ctx context.Context, ref driver.ElementRef, name string) (string, bool, error) {
	var res struct {
		V  string `json:"v"`
		OK bool   `json:"ok"`
	}
	if err := d.callOn(ctx, ref, fnAttribute, &res, name); err != nil {
		return "", false, err
	}
	return res.V, res.OK, nil
}

func (d *Driver) Text(ctx context.Context, ref driver.ElementRef) (string, error) {
	var s string
	err := d.callOn(ctx, ref, fnText, &s)
	return s, err
}

// IsStale reports true when the node was detached or garbage collected.
func (d *Driver) IsStale(ctx context.Context, ref driver.ElementRef) (bool, error) {
	connected, err := d.callBool(ctx, ref, fnConnected)
	if err != nil {
		if errors.Is(err, faults.ErrStale) {
			return true, nil
		}
		return false, err
	}
	return !connected, nil
}

func (d *Driver) IsDisplayed(ctx context.Context, ref driver.ElementRef) (bool, error) {
	return d.callBool(ctx, ref, fnDisplayed)
}

func (d *Driver) IsEnabled(ctx context.Context, ref driver.ElementRef) (bool, error) {
	return d.callBool(ctx, ref, fnEnabled)
}

func (d *Driver) IsChecked(ctx context.Context, ref driver.ElementRef) (bool, error) {
	return d.callBool(ctx, ref, fnChecked)
}

func (d *Driver) Click(ctx context.Context, ref driver.ElementRef) error {
	return d.callOn(ctx, ref, fnClick, nil)
}

func (d *Driver) WriteValue(ctx context.Context, ref driver.ElementRef, text string, clearFirst bool) error {
	return d.callOn(ctx, ref, fnWrite, nil, text, clearFirst)
}

func (d *Driver) Toggle(ctx context.Context, ref driver.ElementRef) error {
	return d.callOn(ctx, ref, fnToggle, nil)
}

func (d *Driver) Blur(ctx context.Context, ref driver.ElementRef) error {
	return d.callOn(ctx, ref, fnBlur, nil)
}

func selectKey(by driver.SelectBy) string {
	switch by {
	case driver.SelectByIndex:
		return "index"
	case driver.SelectByVisibleText:
		return "text"
	case driver.SelectByValue:
		return "value"
	default:
		return "pattern"
	}
}

func (d *Driver) SelectOption(ctx context.Context, ref driver.ElementRef, by driver.SelectBy, value string) error {
	ok, err := d.callBool(ctx, ref, fnSelect, selectKey(by), value)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s %q", faults.ErrNoSuchOption, by, value)
	}
	return nil
}

func (d *Driver) Selection(ctx context.Context, ref driver.ElementRef) (driver.Selected, error) {
	var res struct {
		Text    string `json:"text"`
		Value   string `json:"value"`
		Index   int    `json:"index"`
		Enabled bool   `json:"enabled"`
		Count   int    `json:"count"`
	}
	if err := d.callOn(ctx, ref, fnSelection, &res); err != nil {
		return driver.Selected{}, err
	}
	return driver.Selected{
		VisibleText: res.Text,
		HTMLValue:   res.Value,
		Index:       res.Index,
		Enabled:     res.Enabled,
		OptionCount: res.Count,
	}, nil
}

// -- Page calls --

func (d *Driver) ExecuteScript(ctx context.Context, script string, args ...any) (bool, error) {
	encoded := make([]string, 0, len(args))
	for _, a := range args {
		raw, err := json.Marshal(a)
		if err != nil {
			return false, fmt.Errorf("failed to encode script argument: %w", err)
		}
		encoded = append(encoded, string(raw))
	}
	expr := "(" + script + ")(" + strings.Join(encoded, ", ") + ")"

	var ok bool
	err := d.run(ctx, chromedp.Evaluate(expr, &ok, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithReturnByValue(true).WithAwaitPromise(true)
	}))
	if err != nil {
		return false, fmt.Errorf("script execution failed: %w", err)
	}
	return ok, nil
}

// ExecuteScriptOn calls script with `this` bound to the element behind ref. An
// undefined result reads as false.
func (d *Driver) ExecuteScriptOn(ctx context.Context, ref driver.ElementRef, script string, args ...any) (bool, error) {
	ok, err := d.callBool(ctx, ref, script, args...)
	if err != nil {
		return false, fmt.Errorf("script execution failed: %w", err)
	}
	return ok, nil
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	var u string
	if err := d.run(ctx, chromedp.Location(&u)); err != nil {
		return "", err
	}
	return u, nil
}

// Navigate loads url and waits for the body to be ready. The navigation timeout
// applies instead of the per-operation one.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	d.logger.Debug("Navigating.", zap.String("url", url))
	combined, cancel := combineContext(d.tabCtx, ctx)
	defer cancel()
	if d.navTimeout > 0 {
		var cancelNav context.CancelFunc
		combined, cancelNav = context.WithTimeout(combined, d.navTimeout)
		defer cancelNav()
	}
	if err := chromedp.Run(combined, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}
