// File: internal/browser/locator.go
package browser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/chromedp/chromedp"
)

var (
	// ErrUnknownLocatorStrategy is returned for an empty or unsupported
	// strategy name.
	ErrUnknownLocatorStrategy = errors.New("unknown locator strategy")
	// ErrElementNotFound is returned when no element matched within the
	// bounded wait.
	ErrElementNotFound = errors.New("element not found")
)

// Strategy is a concrete element lookup strategy.
type Strategy int

const (
	ByID Strategy = iota + 1
	ByXPath
	ByName
	ByClass
	ByCSS
)

func (s Strategy) String() string {
	switch s {
	case ByID:
		return "id"
	case ByXPath:
		return "xpath"
	case ByName:
		return "name"
	case ByClass:
		return "class"
	case ByCSS:
		return "css"
	default:
		return "unknown"
	}
}

// ParseStrategy maps a strategy name from the action configuration to a
// Strategy. Matching is case-insensitive.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "id":
		return ByID, nil
	case "xpath":
		return ByXPath, nil
	case "name":
		return ByName, nil
	case "class", "class_name":
		return ByClass, nil
	case "css", "css_selector", "css-selector":
		return ByCSS, nil
	case "":
		return 0, fmt.Errorf("%w: strategy name is empty", ErrUnknownLocatorStrategy)
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownLocatorStrategy, name)
	}
}

// Locator is a resolved strategy and value pair.
type Locator struct {
	Strategy Strategy
	Value    string
}

// CSS builds a CSS selector locator.
func CSS(selector string) Locator { return Locator{Strategy: ByCSS, Value: selector} }

func (l Locator) String() string {
	return l.Strategy.String() + "=" + l.Value
}

// query returns the chromedp selector and the query option selecting it.
func (l Locator) query() (string, chromedp.QueryOption, error) {
	switch l.Strategy {
	case ByID:
		// An attribute match accepts ids that are not valid CSS identifiers,
		// such as ADF's "pt1:_UIScmil1u".
		return "[id=" + strconv.Quote(l.Value) + "]", chromedp.ByQuery, nil
	case ByXPath:
		return l.Value, chromedp.BySearch, nil
	case ByName:
		return "[name=" + strconv.Quote(l.Value) + "]", chromedp.ByQuery, nil
	case ByClass:
		return "[class~=" + strconv.Quote(l.Value) + "]", chromedp.ByQuery, nil
	case ByCSS:
		return l.Value, chromedp.ByQuery, nil
	default:
		return "", nil, fmt.Errorf("%w: %v", ErrUnknownLocatorStrategy, l.Strategy)
	}
}
