package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Mohsinsiddi/alchscan/internal/logging"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-resty/resty/v2"
)

// MaxPageSize is the largest maxCount alchemy_getAssetTransfers accepts.
const MaxPageSize = 1000

// alchemyNetwork maps network names to Alchemy subdomains.
var alchemyNetwork = map[string]string{
	"ethereum": "eth-mainnet",
	"sepolia":  "eth-sepolia",
	"polygon":  "polygon-mainnet",
	"arbitrum": "arb-mainnet",
	"optimism": "opt-mainnet",
	"base":     "base-mainnet",
}

// Networks returns the supported network names, sorted.
func Networks() []string {
	names := make([]string, 0, len(alchemyNetwork))
	for n := range alchemyNetwork {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SupportsNetwork reports whether name has a known Alchemy endpoint.
func SupportsNetwork(name string) bool {
	_, ok := alchemyNetwork[name]
	return ok
}

// AlchemyOptions tunes an Alchemy client. Zero values select defaults.
type AlchemyOptions struct {
	BaseURL      string // overrides https://<network>.g.alchemy.com/v2
	PageSize     int
	WithMetadata bool
	Timeout      time.Duration
	Logger       *slog.Logger
}

// Alchemy fetches pages from the alchemy_getAssetTransfers method.
type Alchemy struct {
	network      string
	apiKey       string
	baseURL      string
	maxCount     string
	withMetadata bool
	client       *resty.Client
	logger       *slog.Logger
}

// NewAlchemy creates a client for network authenticated with apiKey.
func NewAlchemy(network, apiKey string, opts AlchemyOptions) (*Alchemy, error) {
	if apiKey == "" {
		return nil, errors.New("alchemy: api key is required")
	}
	sub, ok := alchemyNetwork[network]
	if !ok && opts.BaseURL == "" {
		return nil, fmt.Errorf("alchemy: unsupported network %q", network)
	}

	pageSize := opts.PageSize
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.g.alchemy.com/v2", sub)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.With(slog.String("provider", "alchemy"), slog.String("network", network))

	client := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetLogger(logging.RestyAdapter(logger))

	return &Alchemy{
		network:      network,
		apiKey:       apiKey,
		baseURL:      baseURL,
		maxCount:     hexutil.EncodeUint64(uint64(pageSize)),
		withMetadata: opts.WithMetadata,
		client:       client,
		logger:       logger,
	}, nil
}

func (a *Alchemy) Name() string { return "alchemy" }

// alchemyReq is the JSON-RPC envelope for alchemy_getAssetTransfers.
type alchemyReq struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      int            `json:"id"`
	Method  string         `json:"method"`
	Params  []alchemyParam `json:"params"`
}

type alchemyParam struct {
	FromBlock    string   `json:"fromBlock"`
	ToBlock      string   `json:"toBlock"`
	FromAddress  string   `json:"fromAddress,omitempty"`
	ToAddress    string   `json:"toAddress,omitempty"`
	Category     []string `json:"category"`
	MaxCount     string   `json:"maxCount"`
	Order        string   `json:"order"`
	WithMetadata bool     `json:"withMetadata,omitempty"`
	PageKey      string   `json:"pageKey,omitempty"`
}

type alchemyResp struct {
	Result json.RawMessage `json:"result"`
	Error  *alchemyErr     `json:"error"`
}

type alchemyErr struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type alchemyResult struct {
	// Pointer so a missing field can be told apart from an empty list.
	Transfers *[]json.RawMessage `json:"transfers"`
	PageKey   string             `json:"pageKey"`
}

func (a *Alchemy) buildParam(q Query, cursor string) alchemyParam {
	categories := q.Categories
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	p := alchemyParam{
		FromBlock:    "0x0",
		ToBlock:      "latest",
		Category:     categories,
		MaxCount:     a.maxCount,
		Order:        "desc",
		WithMetadata: a.withMetadata,
		PageKey:      cursor,
	}
	if q.Direction == DirectionTo {
		p.ToAddress = q.Address
	} else {
		p.FromAddress = q.Address
	}
	return p
}

// FetchPage requests one page. A malformed response yields an empty page with
// no cursor together with ErrMalformed, so callers can decide whether to stop.
func (a *Alchemy) FetchPage(ctx context.Context, q Query, cursor string) (*Page, error) {
	body := alchemyReq{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "alchemy_getAssetTransfers",
		Params:  []alchemyParam{a.buildParam(q, cursor)},
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(a.baseURL + "/" + a.apiKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: HTTP %d", ErrTransport, resp.StatusCode())
	}

	var envelope alchemyResp
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return &Page{}, fmt.Errorf("%w: decode: %v", ErrMalformed, err)
	}
	if envelope.Error != nil {
		return nil, fmt.Errorf("%w %d: %s", ErrRPC, envelope.Error.Code, envelope.Error.Message)
	}
	if len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return &Page{}, fmt.Errorf("%w: missing result", ErrMalformed)
	}

	var result alchemyResult
	if err := json.Unmarshal(envelope.Result, &result); err != nil {
		return &Page{}, fmt.Errorf("%w: decode result: %v", ErrMalformed, err)
	}
	if result.Transfers == nil {
		return &Page{}, fmt.Errorf("%w: missing result.transfers", ErrMalformed)
	}

	return &Page{Transfers: *result.Transfers, Cursor: result.PageKey}, nil
}
