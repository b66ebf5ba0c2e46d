// File: internal/browser/session.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/google/uuid"
	"github.com/xkilldash9x/stepwise/internal/config"
	"go.uber.org/zap"
)

// Element is a located DOM node together with the locator that found it.
type Element struct {
	Locator Locator
	node    *cdp.Node
}

func (e *Element) ids() ([]cdp.NodeID, error) {
	if e == nil || e.node == nil {
		return nil, fmt.Errorf("%w: element has no backing node", ErrElementNotFound)
	}
	return []cdp.NodeID{e.node.NodeID}, nil
}

// Session is one browser tab driven through the DevTools protocol. It is
// owned by a single subtask run at a time and is not safe for concurrent use.
type Session struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	ctx     context.Context
	cancels []context.CancelFunc
	handle  string
	// frame scopes CSS lookups once a frame has been entered.
	frame *cdp.Node
	// foreign holds the page targets that were already open when the
	// session attached, such as the first tab of a remote browser.
	foreign map[target.ID]bool

	closeOnce sync.Once
}

// NewSession starts (or attaches to) a browser and opens a tab.
func NewSession(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	id := uuid.New().String()
	s := &Session{
		cfg:    cfg,
		logger: logger.Named("browser").With(zap.String("session_id", id)),
	}

	allocCtx, allocCancel := NewAllocator(context.WithoutCancel(ctx), cfg)
	s.cancels = append(s.cancels, allocCancel)

	var ctxOpts []chromedp.ContextOption
	if cfg.Debug {
		ctxOpts = append(ctxOpts, chromedp.WithDebugf(s.logger.Sugar().Debugf))
	}
	ctxOpts = append(ctxOpts, chromedp.WithErrorf(s.logger.Sugar().Errorf))
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, ctxOpts...)
	s.cancels = append(s.cancels, tabCancel)
	s.ctx = tabCtx

	startCtx := ctx
	if cfg.StartupTimeout > 0 {
		var cancel context.CancelFunc
		startCtx, cancel = context.WithTimeout(ctx, cfg.StartupTimeout)
		defer cancel()
	}
	if err := s.run(startCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start browser session: %w", err)
	}
	if c := chromedp.FromContext(tabCtx); c != nil && c.Target != nil {
		s.handle = string(c.Target.TargetID)
	}
	s.foreign = s.snapshotPages(startCtx)
	s.logger.Info("Browser session started.", zap.String("handle", s.handle), zap.Bool("remote", cfg.RemoteURL != ""))
	return s, nil
}

// Close tears the tab and its allocator down. It is safe to call repeatedly.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		for i := len(s.cancels) - 1; i >= 0; i-- {
			s.cancels[i]()
		}
		s.logger.Info("Browser session closed.")
	})
	return nil
}

// run executes chromedp actions bounded by both the session lifetime and ctx.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// selector resolves a locator into chromedp query arguments, scoped to the
// current frame when one has been entered.
func (s *Session) selector(loc Locator) (string, []chromedp.QueryOption, error) {
	sel, by, err := loc.query()
	if err != nil {
		return "", nil, err
	}
	opts := []chromedp.QueryOption{by}
	if s.frame != nil && loc.Strategy != ByXPath {
		opts = append(opts, chromedp.FromNode(s.frame))
	}
	return sel, opts, nil
}

// Navigate loads url in the current tab and leaves any entered frame.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if s.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.NavigationTimeout)
		defer cancel()
	}
	s.frame = nil
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to '%s': %w", url, err)
	}
	return nil
}

// WaitForElement blocks until an element matching loc exists or the
// timeout elapses.
func (s *Session) WaitForElement(ctx context.Context, loc Locator, timeout time.Duration) (*Element, error) {
	return s.waitFor(ctx, loc, timeout)
}

// WaitClickable additionally waits for the element to be visible and enabled.
func (s *Session) WaitClickable(ctx context.Context, loc Locator, timeout time.Duration) (*Element, error) {
	return s.waitFor(ctx, loc, timeout, chromedp.WaitVisible, chromedp.WaitEnabled)
}

func (s *Session) waitFor(ctx context.Context, loc Locator, timeout time.Duration, conds ...func(interface{}, ...chromedp.QueryOption) chromedp.QueryAction) (*Element, error) {
	sel, opts, err := s.selector(loc)
	if err != nil {
		return nil, err
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var nodes []*cdp.Node
	actions := make([]chromedp.Action, 0, len(conds)+1)
	for _, cond := range conds {
		actions = append(actions, cond(sel, opts...))
	}
	actions = append(actions, chromedp.Nodes(sel, &nodes, opts...))

	if err := s.run(waitCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s within %s: %v", ErrElementNotFound, loc, timeout, err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, loc)
	}
	return &Element{Locator: loc, node: nodes[0]}, nil
}

// CountElements returns how many elements currently match loc without waiting.
func (s *Session) CountElements(ctx context.Context, loc Locator) (int, error) {
	sel, opts, err := s.selector(loc)
	if err != nil {
		return 0, err
	}
	var nodes []*cdp.Node
	if err := s.run(ctx, chromedp.Nodes(sel, &nodes, append(opts, chromedp.AtLeast(0))...)); err != nil {
		return 0, fmt.Errorf("failed to count elements for %s: %w", loc, err)
	}
	return len(nodes), nil
}

// Click performs a native mouse click on the element.
func (s *Session) Click(ctx context.Context, el *Element) error {
	ids, err := el.ids()
	if err != nil {
		return err
	}
	return s.run(ctx, chromedp.Click(ids, chromedp.ByNodeID))
}

// ScriptClick clicks the element from page script, bypassing overlays that
// would intercept a native click.
func (s *Session) ScriptClick(ctx context.Context, el *Element) error {
	return s.callOn(ctx, el, `function() { this.click(); }`, nil)
}

// SendKeys types text into the element.
func (s *Session) SendKeys(ctx context.Context, el *Element, text string) error {
	ids, err := el.ids()
	if err != nil {
		return err
	}
	return s.run(ctx, chromedp.SendKeys(ids, text, chromedp.ByNodeID))
}

// Clear empties an input or textarea.
func (s *Session) Clear(ctx context.Context, el *Element) error {
	ids, err := el.ids()
	if err != nil {
		return err
	}
	return s.run(ctx, chromedp.Clear(ids, chromedp.ByNodeID))
}

// PressEnter sends an Enter keystroke to the element.
func (s *Session) PressEnter(ctx context.Context, el *Element) error {
	ids, err := el.ids()
	if err != nil {
		return err
	}
	return s.run(ctx, chromedp.SendKeys(ids, kb.Enter, chromedp.ByNodeID))
}

// Value reads the element's current value property.
func (s *Session) Value(ctx context.Context, el *Element) (string, error) {
	ids, err := el.ids()
	if err != nil {
		return "", err
	}
	var v string
	if err := s.run(ctx, chromedp.Value(ids, &v, chromedp.ByNodeID)); err != nil {
		return "", err
	}
	return v, nil
}

// SelectedText returns the visible text of the first selected option.
func (s *Session) SelectedText(ctx context.Context, el *Element) (string, error) {
	var text string
	err := s.callOn(ctx, el, `function() {
		const o = this.options && this.options[this.selectedIndex];
		return o ? o.text.trim() : "";
	}`, &text)
	return text, err
}

// SelectByText selects the option whose visible text equals text and fires
// the input and change events a user selection would.
func (s *Session) SelectByText(ctx context.Context, el *Element, text string) error {
	var found bool
	err := s.callOn(ctx, el, `function(t) {
		for (const o of this.options || []) {
			if (o.text.trim() === t) {
				o.selected = true;
				this.dispatchEvent(new Event("input", {bubbles: true}));
				this.dispatchEvent(new Event("change", {bubbles: true}));
				return true;
			}
		}
		return false;
	}`, &found, text)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no option with visible text %q", text)
	}
	return nil
}

// IsChecked reports the checked property of a checkbox.
func (s *Session) IsChecked(ctx context.Context, el *Element) (bool, error) {
	var checked bool
	err := s.callOn(ctx, el, `function() { return !!this.checked; }`, &checked)
	return checked, err
}

// ScrollIntoView scrolls the element into the viewport.
func (s *Session) ScrollIntoView(ctx context.Context, el *Element) error {
	return s.callOn(ctx, el, `function() { this.scrollIntoView(true); }`, nil)
}

// ClickLabelFor clicks the label associated with the element through its
// for attribute.
func (s *Session) ClickLabelFor(ctx context.Context, el *Element) error {
	var id string
	if err := s.callOn(ctx, el, `function() { return this.id || ""; }`, &id); err != nil {
		return err
	}
	if id == "" {
		return errors.New("element has no id, cannot resolve its label")
	}
	label, err := s.WaitClickable(ctx, CSS("label[for="+strconv.Quote(id)+"]"), s.labelTimeout())
	if err != nil {
		return err
	}
	return s.Click(ctx, label)
}

func (s *Session) labelTimeout() time.Duration {
	if s.cfg.NewTabTimeout > 0 {
		return s.cfg.NewTabTimeout
	}
	return 10 * time.Second
}

// SwitchToFrame scopes subsequent lookups to the frame element's document.
func (s *Session) SwitchToFrame(ctx context.Context, el *Element) error {
	if _, err := el.ids(); err != nil {
		return err
	}
	s.frame = el.node
	s.logger.Debug("Entered frame.", zap.String("frame", el.Locator.String()))
	return nil
}

// CurrentHandle returns the target id of the tab the session is driving.
func (s *Session) CurrentHandle() string { return s.handle }

// Handles lists the page tabs belonging to this session: its own tab and
// any tab opened after the session attached.
func (s *Session) Handles(ctx context.Context) ([]string, error) {
	infos, err := s.targets(ctx)
	if err != nil {
		return nil, err
	}
	return sessionPages(infos, s.foreign), nil
}

func (s *Session) targets(ctx context.Context) ([]*target.Info, error) {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	infos, err := chromedp.Targets(runCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	return infos, nil
}

// snapshotPages records the page targets other than the session's own tab.
func (s *Session) snapshotPages(ctx context.Context) map[target.ID]bool {
	foreign := map[target.ID]bool{}
	infos, err := s.targets(ctx)
	if err != nil {
		s.logger.Warn("Could not list the tabs open at startup.", zap.Error(err))
		return foreign
	}
	for _, info := range infos {
		if info.Type == "page" && string(info.TargetID) != s.handle {
			foreign[info.TargetID] = true
		}
	}
	if len(foreign) > 0 {
		s.logger.Debug("Ignoring tabs opened before the session.", zap.Int("tabs", len(foreign)))
	}
	return foreign
}

// sessionPages filters targets down to pages not in foreign, keeping the
// order the browser reported.
func sessionPages(infos []*target.Info, foreign map[target.ID]bool) []string {
	var handles []string
	for _, info := range infos {
		if info.Type == "page" && !foreign[info.TargetID] {
			handles = append(handles, string(info.TargetID))
		}
	}
	return handles
}

// SwitchToHandle attaches the session to another open tab.
func (s *Session) SwitchToHandle(ctx context.Context, handle string) error {
	tabCtx, cancel := chromedp.NewContext(s.ctx, chromedp.WithTargetID(target.ID(handle)))
	runCtx, stop := CombineContext(tabCtx, ctx)
	defer stop()
	if err := chromedp.Run(runCtx); err != nil {
		cancel()
		return fmt.Errorf("failed to attach to tab '%s': %w", handle, err)
	}
	s.cancels = append(s.cancels, cancel)
	s.ctx = tabCtx
	s.handle = handle
	s.frame = nil
	return nil
}

// callOn invokes a JavaScript function with the element bound to this.
func (s *Session) callOn(ctx context.Context, el *Element, fn string, res interface{}, args ...interface{}) error {
	if _, err := el.ids(); err != nil {
		return err
	}
	return s.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		obj, err := dom.ResolveNode().WithBackendNodeID(el.node.BackendNodeID).Do(c)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", el.Locator, err)
		}
		// Fails once the page navigates away, which is harmless.
		defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(c) }()
		return chromedp.CallFunctionOn(fn, res, onObject(obj.ObjectID), args...).Do(c)
	}))
}

// onObject binds a function call to a remote object.
func onObject(id runtime.RemoteObjectID) chromedp.CallOption {
	return func(p *runtime.CallFunctionOnParams) *runtime.CallFunctionOnParams {
		return p.WithObjectID(id)
	}
}
