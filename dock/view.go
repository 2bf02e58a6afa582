package dock

import (
	"context"
	"fmt"

	"github.com/hazyhaar/promptdock/detect"
	"github.com/hazyhaar/promptdock/dom"
	"github.com/hazyhaar/promptdock/kit"
)

// ComposerView is the JSON shape of a composer on the MCP and HTTP surfaces.
type ComposerView struct {
	ID        int64  `json:"id"`
	Site      string `json:"site"`
	Strategy  string `json:"strategy"`
	Tag       string `json:"tag"`
	Kind      string `json:"kind"`
	Connected bool   `json:"connected"`
	Active    bool   `json:"active"`
}

// View describes the known composers.
func (d *Dock) View() []ComposerView {
	active := d.ActiveComposer()
	known := d.Composers()
	out := make([]ComposerView, 0, len(known))
	for _, c := range known {
		out = append(out, viewOf(c, c == active))
	}
	return out
}

func viewOf(c *detect.Composer, active bool) ComposerView {
	el := c.Element()
	return ComposerView{
		ID:        int64(c.ID()),
		Site:      c.SiteID(),
		Strategy:  string(c.Strategy()),
		Tag:       el.Tag(),
		Kind:      el.Kind().String(),
		Connected: el.Connected(),
		Active:    active,
	}
}

// target returns the composer named by id, the active one when id is 0,
// and notes the choice on the call's log line.
func (d *Dock) target(ctx context.Context, id int64) (*detect.Composer, error) {
	var c *detect.Composer
	if id == 0 {
		if c = d.ActiveComposer(); c == nil {
			return nil, ErrNoComposer
		}
	} else if c = d.Composer(dom.NodeID(id)); c == nil {
		return nil, &UnknownComposerError{ID: id}
	}
	kit.Annotate(ctx, "composer", int64(c.ID()), "site", c.SiteID())
	return c, nil
}

// UnknownComposerError names a composer id the page does not hold.
type UnknownComposerError struct {
	ID int64
}

func (e *UnknownComposerError) Error() string {
	return fmt.Sprintf("dock: unknown composer %d", e.ID)
}
