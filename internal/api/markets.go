package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// GetExchangeStatus fetches the exchange trading status.
func (c *Client) GetExchangeStatus(ctx context.Context) (*ExchangeStatusResponse, error) {
	var resp ExchangeStatusResponse
	if err := c.get(ctx, "/exchange/status", nil, &resp); err != nil {
		return nil, fmt.Errorf("get exchange status: %w", err)
	}
	return &resp, nil
}

// GetMarkets fetches a page of markets.
func (c *Client) GetMarkets(ctx context.Context, opts GetMarketsOptions) (*MarketsResponse, error) {
	query := url.Values{}

	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		query.Set("cursor", opts.Cursor)
	}
	if opts.EventTicker != "" {
		query.Set("event_ticker", opts.EventTicker)
	}
	if opts.Status != "" {
		query.Set("status", opts.Status)
	}

	var resp MarketsResponse
	if err := c.get(ctx, "/markets", query, &resp); err != nil {
		return nil, fmt.Errorf("get markets: %w", err)
	}

	return &resp, nil
}

// GetAllMarkets fetches all markets matching opts by paginating through
// results.
func (c *Client) GetAllMarkets(ctx context.Context, opts GetMarketsOptions) ([]APIMarket, error) {
	var allMarkets []APIMarket
	opts.Limit = 1000 // Max page size

	for {
		resp, err := c.GetMarkets(ctx, opts)
		if err != nil {
			return nil, err
		}

		allMarkets = append(allMarkets, resp.Markets...)

		if resp.Cursor == "" {
			break
		}
		opts.Cursor = resp.Cursor
	}

	return allMarkets, nil
}

// MarketTickersForEvents resolves event tickers into the tickers of every
// market under those events. Tickers are uppercased and deduplicated; the
// result order follows the API pages.
func (c *Client) MarketTickersForEvents(ctx context.Context, events []string) ([]string, error) {
	seen := make(map[string]bool)
	var tickers []string

	for _, event := range events {
		markets, err := c.GetAllMarkets(ctx, GetMarketsOptions{
			EventTicker: strings.ToUpper(event),
		})
		if err != nil {
			return nil, fmt.Errorf("resolve event %s: %w", event, err)
		}

		for _, m := range markets {
			t := strings.ToUpper(m.Ticker)
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			tickers = append(tickers, t)
		}

		c.logger.Info("resolved event markets",
			"event", strings.ToUpper(event),
			"markets", len(markets),
		)
	}

	return tickers, nil
}
