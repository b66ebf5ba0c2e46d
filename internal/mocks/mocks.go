// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/xkilldash9x/stepwise/internal/browser"
)

// -- Browser Mock --

// MockBrowser mocks the engine's browser port.
type MockBrowser struct {
	mock.Mock
}

func (m *MockBrowser) Navigate(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

func (m *MockBrowser) WaitForElement(ctx context.Context, loc browser.Locator, timeout time.Duration) (*browser.Element, error) {
	args := m.Called(ctx, loc, timeout)
	var el *browser.Element
	if v := args.Get(0); v != nil {
		el = v.(*browser.Element)
	}
	return el, args.Error(1)
}

func (m *MockBrowser) WaitClickable(ctx context.Context, loc browser.Locator, timeout time.Duration) (*browser.Element, error) {
	args := m.Called(ctx, loc, timeout)
	var el *browser.Element
	if v := args.Get(0); v != nil {
		el = v.(*browser.Element)
	}
	return el, args.Error(1)
}

func (m *MockBrowser) CountElements(ctx context.Context, loc browser.Locator) (int, error) {
	args := m.Called(ctx, loc)
	return args.Int(0), args.Error(1)
}

func (m *MockBrowser) Click(ctx context.Context, el *browser.Element) error {
	return m.Called(ctx, el).Error(0)
}

func (m *MockBrowser) ScriptClick(ctx context.Context, el *browser.Element) error {
	return m.Called(ctx, el).Error(0)
}

// SendKeys records the text typed so tests can assert on it.
func (m *MockBrowser) SendKeys(ctx context.Context, el *browser.Element, text string) error {
	return m.Called(ctx, el, text).Error(0)
}

func (m *MockBrowser) Clear(ctx context.Context, el *browser.Element) error {
	return m.Called(ctx, el).Error(0)
}

func (m *MockBrowser) PressEnter(ctx context.Context, el *browser.Element) error {
	return m.Called(ctx, el).Error(0)
}

func (m *MockBrowser) Value(ctx context.Context, el *browser.Element) (string, error) {
	args := m.Called(ctx, el)
	return args.String(0), args.Error(1)
}

func (m *MockBrowser) SelectedText(ctx context.Context, el *browser.Element) (string, error) {
	args := m.Called(ctx, el)
	return args.String(0), args.Error(1)
}

func (m *MockBrowser) SelectByText(ctx context.Context, el *browser.Element, text string) error {
	return m.Called(ctx, el, text).Error(0)
}

func (m *MockBrowser) IsChecked(ctx context.Context, el *browser.Element) (bool, error) {
	args := m.Called(ctx, el)
	return args.Bool(0), args.Error(1)
}

func (m *MockBrowser) ScrollIntoView(ctx context.Context, el *browser.Element) error {
	return m.Called(ctx, el).Error(0)
}

func (m *MockBrowser) ClickLabelFor(ctx context.Context, el *browser.Element) error {
	return m.Called(ctx, el).Error(0)
}

func (m *MockBrowser) SwitchToFrame(ctx context.Context, el *browser.Element) error {
	return m.Called(ctx, el).Error(0)
}

func (m *MockBrowser) CurrentHandle() string {
	return m.Called().String(0)
}

func (m *MockBrowser) Handles(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	var hs []string
	if v := args.Get(0); v != nil {
		hs = v.([]string)
	}
	return hs, args.Error(1)
}

func (m *MockBrowser) SwitchToHandle(ctx context.Context, handle string) error {
	return m.Called(ctx, handle).Error(0)
}

func (m *MockBrowser) Close() error {
	return m.Called().Error(0)
}

// NewElement returns a detached element for the given locator, suitable as
// a WaitForElement return value.
func NewElement(loc browser.Locator) *browser.Element {
	return &browser.Element{Locator: loc}
}
