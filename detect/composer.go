package detect

import (
	"github.com/hazyhaar/promptdock/dom"
	"github.com/hazyhaar/promptdock/site"
)

// Composer is a detected composer element. It is owned by the Detector and
// never mutated once published.
type Composer struct {
	el       dom.Element
	strategy site.Strategy
	siteID   string
}

// Element returns the host element. It may have left the document since
// detection; check Connected before acting on it.
func (c *Composer) Element() dom.Element { return c.el }

// ID is the element's node id.
func (c *Composer) ID() dom.NodeID { return c.el.ID() }

// Strategy is the resolved strategy tag, never StrategyAuto.
func (c *Composer) Strategy() site.Strategy { return c.strategy }

// SiteID is the id of the profile that matched the element.
func (c *Composer) SiteID() string { return c.siteID }

// NewComposer wraps el for callers that target an element directly, such as
// the CLI insert command. An auto strategy is resolved from the element.
func NewComposer(el dom.Element, strategy site.Strategy, siteID string) *Composer {
	if strategy == site.StrategyAuto {
		strategy = strategyFor(strategy, el.Kind())
	}
	return &Composer{el: el, strategy: strategy, siteID: siteID}
}

// strategyFor applies the profile's tag when set, else derives the tag from
// the element kind.
func strategyFor(profile site.Strategy, kind dom.Kind) site.Strategy {
	if profile != site.StrategyAuto {
		return profile
	}
	if kind == dom.KindContentEditable {
		return site.StrategyContentEditable
	}
	return site.StrategyFormValue
}
