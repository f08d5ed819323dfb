package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"priceatlas/cpiworker/internal/catalog"
	"priceatlas/cpiworker/logger"
	"priceatlas/cpiworker/pkg/errors"
	"priceatlas/cpiworker/services/proxy"
)

const (
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// organicSearchTimeout bounds the Google detour; a slow or captcha'd
	// results page falls back to the catalog search URL instead of eating
	// the whole attempt budget.
	organicSearchTimeout = 25 * time.Second
)

// BrowserConfig configures a BrowserStrategy.
type BrowserConfig struct {
	Retailer string

	// GoogleURL is the search engine used for trust propagation.
	GoogleURL string
	// SearchSuffix is appended to the product name when typing the query,
	// e.g. " walmart" to bias results toward the target storefront.
	SearchSuffix string
	// LinkPattern identifies the retailer's organic result, matched as a
	// substring of the result href.
	LinkPattern string

	// CatalogSearchURL is the retailer's own search page, a format template
	// with one %s for the query term. Used when trust propagation fails.
	CatalogSearchURL string
	// ProductLinkSelector locates the first product link on a catalog
	// search results page.
	ProductLinkSelector string
}

// BrowserStrategy drives a headless browser through a search engine to
// reach the product page with organic-looking navigation, then reads the
// price out of the page's embedded state blob. When the search detour
// fails it falls back to the retailer's own catalog search.
type BrowserStrategy struct {
	cfg BrowserConfig
	log *logger.Logger
}

// NewBrowserStrategy creates a browser-driven strategy.
func NewBrowserStrategy(cfg BrowserConfig) *BrowserStrategy {
	return &BrowserStrategy{
		cfg: cfg,
		log: logger.ForRetailer(cfg.Retailer),
	}
}

// Name returns the retailer this strategy is bound to.
func (s *BrowserStrategy) Name() string {
	return s.cfg.Retailer
}

// Extract performs one browser extraction attempt. The browser session is
// created and torn down inside the attempt; nothing survives it.
func (s *BrowserStrategy) Extract(ctx context.Context, product catalog.Product, pxy *proxy.Proxy) (Result, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(browserUserAgent),
		chromedp.WindowSize(1920, 1080),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("lang", "es-MX"),
	)
	if pxy != nil {
		opts = append(opts, chromedp.ProxyServer(pxy.URL()))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	s.blockHeavyResources(browserCtx)
	if err := chromedp.Run(browserCtx, fetch.Enable()); err != nil {
		return Result{}, errors.NewConnectivity(s.cfg.Retailer, "failed to start browser session", err)
	}

	productURL := s.organicProductURL(browserCtx, product)
	if productURL != "" {
		if err := s.navigateWithReferrer(browserCtx, productURL); err != nil {
			s.log.Debug().Err(err).Msg("Referred navigation failed, falling back to catalog search")
			productURL = ""
		}
	}

	if productURL == "" {
		if err := s.navigateCatalogSearch(browserCtx, product); err != nil {
			return Result{}, err
		}
	}

	var rawNextData string
	err := chromedp.Run(browserCtx,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(`JSON.stringify(window.__NEXT_DATA__ || null)`, &rawNextData),
	)
	if err != nil {
		return Result{}, errors.NewConnectivity(s.cfg.Retailer, "failed to read page state", err)
	}

	return parseNextData(rawNextData), nil
}

// blockHeavyResources aborts image, media, font and stylesheet requests.
// Only markup and scripts matter for the state blob; everything else is
// bandwidth the proxies cannot spare.
func (s *BrowserStrategy) blockHeavyResources(browserCtx context.Context) {
	chromedp.ListenTarget(browserCtx, func(ev interface{}) {
		paused, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		go func() {
			c := chromedp.FromContext(browserCtx)
			execCtx := cdp.WithExecutor(browserCtx, c.Target)
			switch paused.ResourceType {
			case network.ResourceTypeImage, network.ResourceTypeMedia,
				network.ResourceTypeFont, network.ResourceTypeStylesheet:
				_ = fetch.FailRequest(paused.RequestID, network.ErrorReasonBlockedByClient).Do(execCtx)
			default:
				_ = fetch.ContinueRequest(paused.RequestID).Do(execCtx)
			}
		}()
	})
}

// organicProductURL types the product query into the search engine like a
// person would and returns the retailer's organic result href. Returns ""
// on any failure; the detour is best-effort.
func (s *BrowserStrategy) organicProductURL(browserCtx context.Context, product catalog.Product) string {
	searchCtx, cancel := context.WithTimeout(browserCtx, organicSearchTimeout)
	defer cancel()

	query := strings.TrimSpace(product.Name + s.cfg.SearchSuffix)
	linkSelector := fmt.Sprintf(`a[href*='%s']`, s.cfg.LinkPattern)

	var href string
	var found bool
	err := chromedp.Run(searchCtx,
		chromedp.Navigate(s.cfg.GoogleURL),
		chromedp.WaitVisible(`textarea[name='q']`, chromedp.ByQuery),
		typeSlowly(`textarea[name='q']`, query),
		chromedp.KeyEvent(kb.Enter),
		chromedp.WaitVisible(linkSelector, chromedp.ByQuery),
		chromedp.AttributeValue(linkSelector, "href", &href, &found, chromedp.ByQuery),
	)
	if err != nil || !found || href == "" {
		s.log.Debug().Err(err).Str("query", query).Msg("Organic search yielded no usable result")
		return ""
	}
	if !strings.Contains(href, s.cfg.LinkPattern) {
		return ""
	}
	return href
}

// navigateWithReferrer opens the product URL carrying the search engine as
// referrer, the same arrival signature as a click on a result.
func (s *BrowserStrategy) navigateWithReferrer(browserCtx context.Context, productURL string) error {
	return chromedp.Run(browserCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, _, errText, err := page.Navigate(productURL).
				WithReferrer(s.cfg.GoogleURL).
				Do(ctx)
			if err != nil {
				return err
			}
			if errText != "" {
				return fmt.Errorf("navigation failed: %s", errText)
			}
			return nil
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// navigateCatalogSearch searches the retailer's own catalog for the product
// code and clicks through to the first product page.
func (s *BrowserStrategy) navigateCatalogSearch(browserCtx context.Context, product catalog.Product) error {
	searchURL := fmt.Sprintf(s.cfg.CatalogSearchURL, url.QueryEscape(product.EAN))
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(searchURL),
		chromedp.WaitVisible(s.cfg.ProductLinkSelector, chromedp.ByQuery),
		chromedp.Click(s.cfg.ProductLinkSelector, chromedp.ByQuery),
	)
	if err != nil {
		return errors.NewConnectivity(s.cfg.Retailer, "catalog search navigation failed", err)
	}
	return nil
}

// typeSlowly sends the query one rune at a time with human-paced jitter.
func typeSlowly(selector, text string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for _, r := range text {
			if err := chromedp.SendKeys(selector, string(r), chromedp.ByQuery).Do(ctx); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(50+rand.Intn(100)) * time.Millisecond):
			}
		}
		return nil
	})
}

// parseNextData descends the page's embedded state to the product price,
// preferring the listed price and falling back to the lead price. Schema
// drift anywhere on the path reads as a clean miss.
func parseNextData(raw string) Result {
	if raw == "" || raw == "null" {
		return Result{}
	}
	var data struct {
		Props struct {
			PageProps struct {
				InitialData struct {
					Data struct {
						Product struct {
							Price struct {
								Price     float64 `json:"price"`
								LeadPrice float64 `json:"leadPrice"`
							} `json:"price"`
						} `json:"product"`
					} `json:"data"`
				} `json:"initialData"`
			} `json:"pageProps"`
		} `json:"props"`
	}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return Result{}
	}
	price := data.Props.PageProps.InitialData.Data.Product.Price.Price
	if price <= 0 {
		price = data.Props.PageProps.InitialData.Data.Product.Price.LeadPrice
	}
	if price <= 0 {
		return Result{}
	}
	return Result{Price: price, Found: true}
}
