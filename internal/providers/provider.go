package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Error kinds returned by FetchPage. Callers use errors.Is to tell them apart.
var (
	// ErrTransport covers connection failures and non-2xx HTTP statuses.
	ErrTransport = errors.New("transport failure")
	// ErrRPC is returned when the node answers with a JSON-RPC error object.
	ErrRPC = errors.New("rpc error")
	// ErrMalformed means the response did not have the expected shape.
	ErrMalformed = errors.New("malformed response")
)

// Direction selects which side of a transfer the address is matched on.
type Direction string

const (
	DirectionFrom Direction = "from"
	DirectionTo   Direction = "to"
)

// DefaultCategories is the category set requested unless configured otherwise.
var DefaultCategories = []string{"external", "internal", "erc20", "erc721", "erc1155"}

var knownCategories = []string{"external", "internal", "erc20", "erc721", "erc1155", "specialnft"}

// ValidCategory reports whether c is a transfer category Alchemy understands.
func ValidCategory(c string) bool {
	return slices.Contains(knownCategories, c)
}

// Query identifies one independent cursor chain.
type Query struct {
	Address    string
	Direction  Direction
	Categories []string
}

// Key returns a stable identifier for the chain, e.g. "from|0xabc…|erc20,erc721".
func (q Query) Key() string {
	return fmt.Sprintf("%s|%s|%s", q.Direction, strings.ToLower(q.Address), strings.Join(q.Categories, ","))
}

// Page is one response page. Transfers are kept as opaque JSON documents.
// An empty Cursor means the chain is exhausted.
type Page struct {
	Transfers []json.RawMessage `json:"transfers"`
	Cursor    string            `json:"cursor,omitempty"`
}

// PageFetcher fetches a single page of transfers for a query.
type PageFetcher interface {
	Name() string
	FetchPage(ctx context.Context, q Query, cursor string) (*Page, error)
}
