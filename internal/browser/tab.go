package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// ErrClosed is returned by every Tab method after Close.
var ErrClosed = errors.New("browser session closed")

// Frame describes an embedded frame element of the main document.
type Frame struct {
	Index int    `json:"index"`
	Title string `json:"title,omitempty"`
	Name  string `json:"name,omitempty"`
	Src   string `json:"src,omitempty"`
}

// Label joins the identifying attributes of the frame for keyword matching.
func (f Frame) Label() string {
	return strings.TrimSpace(strings.Join([]string{f.Title, f.Name, f.Src}, " "))
}

// Tab is one live browser tab owned exclusively by its creator.
type Tab struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	timeout     time.Duration

	closeOnce sync.Once
}

func newTab(ctx context.Context, cancel, allocCancel context.CancelFunc, timeout time.Duration) *Tab {
	return &Tab{ctx: ctx, cancel: cancel, allocCancel: allocCancel, timeout: timeout}
}

// run executes actions on the tab, bounded by the action timeout and by the
// caller's ctx. Cancelling a context derived from the tab does not close it.
func (t *Tab) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := t.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(t.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Err reports a non-nil error once the underlying browser is gone.
func (t *Tab) Err() error {
	if t.ctx.Err() != nil {
		return ErrClosed
	}
	return nil
}

// Navigate loads rawURL and waits for the document to be ready.
func (t *Tab) Navigate(ctx context.Context, rawURL string) error {
	slog.Debug("browser navigate", "url", rawURL)
	return t.run(ctx, 3*t.timeout, chromedp.Navigate(rawURL))
}

// URL returns the current location.
func (t *Tab) URL(ctx context.Context) (string, error) {
	var u string
	if err := t.run(ctx, t.timeout, chromedp.Location(&u)); err != nil {
		return "", err
	}
	return u, nil
}

// BodyText returns the visible text of the document body.
func (t *Tab) BodyText(ctx context.Context) (string, error) {
	var text string
	err := t.run(ctx, t.timeout, chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text))
	if err != nil {
		return "", err
	}
	return text, nil
}

// HTML returns the full rendered markup.
func (t *Tab) HTML(ctx context.Context) (string, error) {
	var html string
	if err := t.run(ctx, t.timeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// WaitInteractable waits up to timeout for selector to be visible and enabled.
func (t *Tab) WaitInteractable(ctx context.Context, selector string, timeout time.Duration) error {
	return t.run(ctx, timeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.WaitEnabled(selector, chromedp.ByQuery),
	)
}

// SetField replaces the text of an input field by typing into it.
func (t *Tab) SetField(ctx context.Context, selector, value string) error {
	return t.run(ctx, t.timeout,
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

// PressEnter dispatches an Enter key press to selector.
func (t *Tab) PressEnter(ctx context.Context, selector string) error {
	return t.run(ctx, t.timeout, chromedp.SendKeys(selector, kb.Enter, chromedp.ByQuery))
}

// Click activates selector. A forced click runs in page script, clearing the
// disabled state first, so overlays cannot intercept it.
func (t *Tab) Click(ctx context.Context, selector string, force bool) error {
	if !force {
		return t.run(ctx, t.timeout, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
	}
	js := fmt.Sprintf(`(function(){
var el = document.querySelector(%s);
if (!el) { return false; }
el.removeAttribute("disabled");
el.removeAttribute("aria-disabled");
el.click();
return true;
})()`, jsString(selector))
	var clicked bool
	if err := t.run(ctx, t.timeout, chromedp.Evaluate(js, &clicked)); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("no element matches %q", selector)
	}
	return nil
}

// Frames lists the iframe elements of the main document.
func (t *Tab) Frames(ctx context.Context) ([]Frame, error) {
	nodes, err := t.frameNodes(ctx)
	if err != nil {
		return nil, err
	}
	frames := make([]Frame, 0, len(nodes))
	for i, n := range nodes {
		frames = append(frames, Frame{
			Index: i,
			Title: n.AttributeValue("title"),
			Name:  n.AttributeValue("name"),
			Src:   n.AttributeValue("src"),
		})
	}
	return frames, nil
}

// ClickInFrame clicks the first element matching selector inside frame index.
// The query is scoped to the frame document; the main document stays current.
func (t *Tab) ClickInFrame(ctx context.Context, index int, selector string) error {
	node, err := t.frameNode(ctx, index)
	if err != nil {
		return err
	}
	return t.run(ctx, t.timeout, chromedp.Click(selector, chromedp.ByQuery, chromedp.FromNode(node)))
}

// ClickFrame clicks the centre of the frame element itself.
func (t *Tab) ClickFrame(ctx context.Context, index int) error {
	node, err := t.frameNode(ctx, index)
	if err != nil {
		return err
	}
	return t.run(ctx, t.timeout, chromedp.MouseClickNode(node))
}

// Screenshot captures the viewport as PNG.
func (t *Tab) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := t.run(ctx, t.timeout, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

// Close terminates the browser. Safe to call more than once.
func (t *Tab) Close() error {
	t.closeOnce.Do(func() {
		t.cancel()
		t.allocCancel()
		slog.Info("browser session closed")
	})
	return nil
}

func (t *Tab) frameNodes(ctx context.Context) ([]*cdp.Node, error) {
	var nodes []*cdp.Node
	if err := t.run(ctx, t.timeout, chromedp.Nodes("iframe", &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, err
	}
	return nodes, nil
}

func (t *Tab) frameNode(ctx context.Context, index int) (*cdp.Node, error) {
	nodes, err := t.frameNodes(ctx)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(nodes) {
		return nil, fmt.Errorf("frame %d out of range (frames=%d)", index, len(nodes))
	}
	return nodes[index], nil
}

func jsString(v string) string {
	b, _ := json.Marshal(v)
	return string(b)
}
