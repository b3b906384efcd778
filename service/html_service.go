package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/robotics-oss/ros-repo-metrics/config"
	"github.com/robotics-oss/ros-repo-metrics/httputil"
	"github.com/robotics-oss/ros-repo-metrics/model"
	"github.com/robotics-oss/ros-repo-metrics/storage"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

const (
	checkoutLabel   = "checkout uri"
	vcsVersionLabel = "vcs version"
	pageCacheSize   = 512
)

var (
	vcsVersionRe    = regexp.MustCompile(`[A-Za-z0-9_\-]+`)
	plainCheckoutRe = regexp.MustCompile(`(?i)Checkout URI\s+(https?://\S+).*?VCS Version\s+([A-Za-z0-9_\-]+)`)
)

type GapFillService interface {
	FillMissing(ctx context.Context) error
}

type gapFillService struct {
	client    *httputil.Client
	limiter   *rate.Limiter
	artifacts Artifacts
	config    config.Config
}

// NewGapFillService paces package page requests with the configured delay
func NewGapFillService(config config.Config, client *httputil.Client) GapFillService {
	limit := rate.Inf
	if config.Index.RequestDelay > 0 {
		limit = rate.Every(config.Index.RequestDelay)
	}

	return gapFillService{
		client:    client,
		limiter:   rate.NewLimiter(limit, 1),
		artifacts: NewArtifacts(config),
		config:    config,
	}
}

// FillMissing looks up the package page of every row without a repository URL
// and takes the checkout URI listed for the row's distribution
func (s gapFillService) FillMissing(ctx context.Context) error {
	rows, err := storage.ReadCSV(s.artifacts.Mapping())
	if err != nil {
		return err
	}

	cache, err := storage.OpenPageCache(s.artifacts.PageCache(), pageCacheSize)
	if err != nil {
		return err
	}
	defer cache.Close()

	records := make([]model.PackageRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, model.PackageRecordFromCSV(row))
	}

	tried, filled, unreachable := 0, 0, 0
	for i := range records {
		r := &records[i]
		if r.RepoURL != "" {
			continue
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		tried++
		page, err := s.packagePage(ctx, cache, r.Package)
		if errors.Is(err, model.ErrTransientNetwork) {
			unreachable++
		}
		if err != nil {
			log.WithFields(log.Fields{
				"distro":  r.Distro,
				"package": r.Package,
				"error":   err,
			}).Warn("package page unavailable")
			continue
		}

		checkout := ExtractCheckoutURI(page, r.Distro)
		if checkout == "" {
			log.WithFields(log.Fields{
				"distro":  r.Distro,
				"package": r.Package,
			}).Debug("no checkout uri on package page")
			continue
		}

		r.RepoURL = checkout
		r.RepoURLType = model.URLTypeIndexCheckout
		r.ResolvedVia = model.ViaIndexHTML
		r.Refresh()
		filled++

		if filled%50 == 0 {
			log.WithFields(log.Fields{
				"filled":  filled,
				"distro":  r.Distro,
				"package": r.Package,
				"url":     checkout,
			}).Info("gap filling progress")
		}
	}

	// a fully unreachable site fails the stage instead of reporting nothing filled
	if tried > 0 && unreachable == tried {
		return fmt.Errorf("%w: none of the %d package pages could be fetched", model.ErrUpstreamUnavailable, tried)
	}

	if err := storage.WriteCSV(s.artifacts.MappingFilled(), model.PackageRecordHeader(), records); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"rows":         len(records),
		"unreachable":  unreachable,
		"triedMissing": tried,
		"filled":       filled,
		"cachedPages":  cache.Len(),
		"path":         s.artifacts.MappingFilled(),
	}).Info("mapping completed from package pages")

	return nil
}

func (s gapFillService) packagePage(ctx context.Context, cache *storage.PageCache, pkg string) (string, error) {
	if page, found := cache.Get(pkg); found {
		return page, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrRateLimiter, err)
	}

	target := fmt.Sprintf(s.config.Index.PackagePageURLTemplate, url.PathEscape(pkg))
	body, err := s.client.Get(ctx, target)
	if errors.Is(err, httputil.ErrNotFound) {
		return "", fmt.Errorf("%w: %s", model.ErrNotFound, target)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", model.ErrTransientNetwork, target, err)
	}

	page := string(body)
	if err := cache.Put(pkg, page); err != nil {
		log.WithFields(log.Fields{
			"package": pkg,
			"error":   err,
		}).Warn("unable to cache package page")
	}

	return page, nil
}

type pageItem struct {
	text string
	href string
}

// pageItems flattens a page into its visible text chunks and link targets, in document order
func pageItems(page string) []pageItem {
	items := make([]pageItem, 0)
	z := html.NewTokenizer(strings.NewReader(page))

	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() != io.EOF {
				log.WithField("error", z.Err()).Debug("package page truncated")
			}
			return items

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.Data != "a" {
				continue
			}
			for _, attr := range tok.Attr {
				if attr.Key == "href" && strings.HasPrefix(strings.ToLower(attr.Val), "http") {
					items = append(items, pageItem{href: strings.TrimSpace(attr.Val)})
				}
			}

		case html.TextToken:
			if text := strings.Join(strings.Fields(string(z.Text())), " "); text != "" {
				items = append(items, pageItem{text: text})
			}
		}
	}
}

type checkoutCandidate struct {
	url     string
	version string
}

// structuredCheckouts pairs each "Checkout URI" label with the next link,
// and that link with the first token following the next "VCS Version" label
func structuredCheckouts(items []pageItem) []checkoutCandidate {
	out := make([]checkoutCandidate, 0)

	for i := 0; i < len(items); i++ {
		if !strings.Contains(strings.ToLower(items[i].text), checkoutLabel) {
			continue
		}

		candidate := checkoutCandidate{}
		j := i + 1
		for ; j < len(items) && candidate.url == ""; j++ {
			candidate.url = items[j].href
		}
		if candidate.url == "" {
			break
		}

		for ; j < len(items); j++ {
			lower := strings.ToLower(items[j].text)
			if strings.Contains(lower, checkoutLabel) {
				break
			}
			if idx := strings.Index(lower, vcsVersionLabel); idx >= 0 {
				rest := strings.TrimSpace(items[j].text[idx+len(vcsVersionLabel):])
				for k := j + 1; rest == "" && k < len(items); k++ {
					rest = items[k].text
				}
				candidate.version = vcsVersionRe.FindString(rest)
				break
			}
		}

		out = append(out, candidate)
		i = j - 1
	}

	return out
}

func plainTextCheckouts(items []pageItem) []checkoutCandidate {
	texts := make([]string, 0, len(items))
	for _, it := range items {
		if it.text != "" {
			texts = append(texts, it.text)
		}
	}

	out := make([]checkoutCandidate, 0)
	for _, m := range plainCheckoutRe.FindAllStringSubmatch(strings.Join(texts, " "), -1) {
		out = append(out, checkoutCandidate{url: m[1], version: m[2]})
	}

	return out
}

// ExtractCheckoutURI returns the checkout URI a package page lists for distro, or "" when none matches.
// When the page lists a single checkout URI it is returned whatever its VCS version.
func ExtractCheckoutURI(page, distro string) string {
	items := pageItems(page)
	structured := structuredCheckouts(items)
	plain := plainTextCheckouts(items)

	for _, candidates := range [][]checkoutCandidate{structured, plain} {
		for _, c := range candidates {
			if strings.EqualFold(c.version, distro) {
				return c.url
			}
		}
	}

	unique := make([]string, 0)
	seen := make(map[string]bool)
	for _, c := range append(structured, plain...) {
		if !seen[c.url] {
			seen[c.url] = true
			unique = append(unique, c.url)
		}
	}

	if len(unique) == 1 {
		return unique[0]
	}

	return ""
}
