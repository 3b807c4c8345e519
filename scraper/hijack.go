package scraper

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// resourceTypes maps config names (case-insensitive) to protocol resource
// types. Scripts and XHR are never blockable; product lists render from them.
var resourceTypes = map[string]proto.NetworkResourceType{
	"image":      proto.NetworkResourceTypeImage,
	"stylesheet": proto.NetworkResourceTypeStylesheet,
	"font":       proto.NetworkResourceTypeFont,
	"media":      proto.NetworkResourceTypeMedia,
	"ping":       proto.NetworkResourceTypePing,
	"manifest":   proto.NetworkResourceTypeManifest,
}

// adDomains lists ad and tracking hosts blocked when BlockAds is set.
// Subdomains match too.
var adDomains = map[string]struct{}{
	"doubleclick.net":       {},
	"googlesyndication.com": {},
	"googleadservices.com":  {},
	"google-analytics.com":  {},
	"googletagmanager.com":  {},
	"googletagservices.com": {},
	"facebook.net":          {},
	"adnxs.com":             {},
	"adsrvr.org":            {},
	"amazon-adsystem.com":   {},
	"criteo.com":            {},
	"criteo.net":            {},
	"outbrain.com":          {},
	"taboola.com":           {},
	"moatads.com":           {},
	"pubmatic.com":          {},
	"rubiconproject.com":    {},
	"scorecardresearch.com": {},
	"quantserve.com":        {},
	"hotjar.com":            {},
	"mixpanel.com":          {},
	"segment.io":            {},
	"ads-twitter.com":       {},
	"chartbeat.com":         {},
	"openx.net":             {},
	"casalemedia.com":       {},
	"demdex.net":            {},
	"bluekai.com":           {},
	"serving-sys.com":       {},
	"consensu.org":          {},
}

// isAdDomain checks host and each of its parent domains against adDomains.
func isAdDomain(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	for host != "" {
		if _, ok := adDomains[host]; ok {
			return true
		}
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			break
		}
		host = host[idx+1:]
	}
	return false
}

// blockList decides which sub-resource requests a session refuses.
type blockList struct {
	types map[proto.NetworkResourceType]struct{}
	ads   bool
}

func newBlockList(typeNames []string, blockAds bool) blockList {
	bl := blockList{types: make(map[proto.NetworkResourceType]struct{}, len(typeNames)), ads: blockAds}
	for _, name := range typeNames {
		rt, ok := resourceTypes[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			slog.Warn("ignoring unknown blocked resource type", "type", name)
			continue
		}
		bl.types[rt] = struct{}{}
	}
	return bl
}

func (bl blockList) empty() bool {
	return len(bl.types) == 0 && !bl.ads
}

// blocks reports whether a request of type rt to rawURL should fail.
// Document requests are never blocked.
func (bl blockList) blocks(rt proto.NetworkResourceType, rawURL string) bool {
	if rt == proto.NetworkResourceTypeDocument {
		return false
	}
	if _, ok := bl.types[rt]; ok {
		return true
	}
	if bl.ads {
		if u, err := url.Parse(rawURL); err == nil && isAdDomain(u.Hostname()) {
			return true
		}
	}
	return false
}

// setupHijack installs a request interceptor that fails blocked requests.
// It returns the running router, or nil when nothing is blocked.
func setupHijack(page *rod.Page, blockedTypes []string, blockAds bool) *rod.HijackRouter {
	bl := newBlockList(blockedTypes, blockAds)
	if bl.empty() {
		return nil
	}

	router := page.HijackRequests()
	_ = router.Add("*", "", func(h *rod.Hijack) {
		if bl.blocks(h.Request.Type(), h.Request.URL().String()) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// Run blocks until Stop.
	go router.Run()

	return router
}
