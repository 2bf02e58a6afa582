package browser

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// blockNames maps the config names to CDP resource types. Any other name is
// taken as a CDP type, case-insensitively ("xhr", "ping").
var blockNames = map[string]proto.NetworkResourceType{
	"images":      proto.NetworkResourceTypeImage,
	"fonts":       proto.NetworkResourceTypeFont,
	"media":       proto.NetworkResourceTypeMedia,
	"stylesheets": proto.NetworkResourceTypeStylesheet,
}

type blockSet map[string]struct{}

func newBlockSet(names []string) blockSet {
	s := make(blockSet, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if t, ok := blockNames[n]; ok {
			n = strings.ToLower(string(t))
		}
		s[n] = struct{}{}
	}
	return s
}

func (s blockSet) blocks(t proto.NetworkResourceType) bool {
	_, ok := s[strings.ToLower(string(t))]
	return ok
}

// blockResources fails requests of the configured types. Chat pages work
// without images and media, and load faster.
func blockResources(page *rod.Page, names []string) *rod.HijackRouter {
	set := newBlockSet(names)
	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if set.blocks(h.Request.Type()) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	return router
}
