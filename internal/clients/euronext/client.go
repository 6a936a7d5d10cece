// Package euronext provides live instrument data fetching from the Euronext gateway.
package euronext

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// micToExchCode maps market identifier codes to Euronext exchange codes.
var micToExchCode = map[string]string{
	"XPAR": "XPAR",
	"XAMS": "XAMS",
	"XBRU": "XBRU",
	"XLIS": "XLIS",
	"ALXP": "ALXP",
	"ALXB": "ALXB",
	"ALXL": "ALXL",
}

// InstrumentDetails holds the live session data for a single instrument.
type InstrumentDetails struct {
	ISIN               string
	Name               string
	LastPrice          float64
	OpenPrice          float64
	PreviousClose      float64
	PerfSinceLastClose float64 // daily performance as a fraction (e.g. 0.012 for +1.2%)
}

// Client for the Euronext instrument detail gateway
type Client struct {
	baseURL string
	authKey string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new Euronext gateway client.
// baseURL defaults to the production gateway when empty.
func NewClient(baseURL, authKey string, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://gateway.euronext.com"
	}
	return &Client{
		baseURL: baseURL,
		authKey: authKey,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log.With().Str("client", "euronext").Logger(),
	}
}

// instrumentResponse mirrors the gateway's JSON payload. Prices arrive as
// strings, hence the custom parsing below.
type instrumentResponse struct {
	Instr struct {
		LongName string `json:"longNm"`
		CurrSess struct {
			LastPx string `json:"lastPx"`
			OpenPx string `json:"openPx"`
		} `json:"currInstrSess"`
		PrevSess struct {
			LastPx string `json:"lastPx"`
		} `json:"prevInstrSess"`
		Perf []struct {
			PerType string `json:"perType"`
			Var     string `json:"var"`
		} `json:"perf"`
	} `json:"instr"`
}

// GetInstrumentDetails fetches the live session details for an instrument.
func (c *Client) GetInstrumentDetails(ctx context.Context, isin, mic string) (*InstrumentDetails, error) {
	exchCode, ok := micToExchCode[mic]
	if !ok {
		return nil, fmt.Errorf("unknown mic %q for isin %s", mic, isin)
	}

	reqURL := fmt.Sprintf(
		"%s/api/instrumentDetail?code=%s&codification=ISIN&exchCode=%s&sessionQuality=RT&view=FULL&authKey=%s",
		c.baseURL, url.QueryEscape(isin), exchCode, url.QueryEscape(c.authKey),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d for %s", resp.StatusCode, isin)
	}

	var payload instrumentResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to parse response for %s: %w", isin, err)
	}

	details, err := payload.toDetails(isin)
	if err != nil {
		return nil, err
	}

	c.log.Debug().
		Str("isin", isin).
		Str("mic", mic).
		Float64("last_price", details.LastPrice).
		Msg("Fetched instrument details")

	return details, nil
}

// GetLastPrice fetches just the last traded price for an instrument.
func (c *Client) GetLastPrice(ctx context.Context, isin, mic string) (float64, error) {
	details, err := c.GetInstrumentDetails(ctx, isin, mic)
	if err != nil {
		return 0, err
	}
	return details.LastPrice, nil
}

func (r *instrumentResponse) toDetails(isin string) (*InstrumentDetails, error) {
	lastPx, err := strconv.ParseFloat(r.Instr.CurrSess.LastPx, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid last price for %s: %w", isin, err)
	}
	openPx, err := strconv.ParseFloat(r.Instr.CurrSess.OpenPx, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid open price for %s: %w", isin, err)
	}
	prevClose, err := strconv.ParseFloat(r.Instr.PrevSess.LastPx, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid previous close for %s: %w", isin, err)
	}

	details := &InstrumentDetails{
		ISIN:          isin,
		Name:          r.Instr.LongName,
		LastPrice:     lastPx,
		OpenPrice:     openPx,
		PreviousClose: prevClose,
	}

	// The gateway reports daily performance in percent under perType "D".
	for _, perf := range r.Instr.Perf {
		if perf.PerType == "D" {
			v, err := strconv.ParseFloat(perf.Var, 64)
			if err != nil {
				continue
			}
			details.PerfSinceLastClose = v / 100
		}
	}

	return details, nil
}
