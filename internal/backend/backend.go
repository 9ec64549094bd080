// Package backend wraps the native backend's JSON-RPC methods used by the
// miner front end.
package backend

import (
	"context"
	"fmt"

	"github.com/Klingon-tech/klingnet-miner/internal/history"
	"github.com/Klingon-tech/klingnet-miner/internal/rpcclient"
)

// TransactionsFlag is the feature flag gating transaction history polling.
const TransactionsFlag = "wallet_transactions_polling"

// FlagParam selects a feature flag.
type FlagParam struct {
	Name string `json:"name"`
}

// FlagResult is the app_getFeatureFlag result.
type FlagResult struct {
	Enabled bool `json:"enabled"`
}

// PageParam selects a page of transaction history.
type PageParam struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// IDsParam selects transactions by id.
type IDsParam struct {
	IDs []string `json:"ids"`
}

// TransactionsResult is the result of the transaction history methods.
type TransactionsResult struct {
	Transactions []history.Transaction `json:"transactions"`
	Total        int                   `json:"total,omitempty"`
}

// Client issues typed backend calls.
type Client struct {
	rpc *rpcclient.Client
}

// New creates a client on top of rpc.
func New(rpc *rpcclient.Client) *Client {
	return &Client{rpc: rpc}
}

// FeatureFlag reports whether the named feature is enabled.
func (c *Client) FeatureFlag(ctx context.Context, name string) (bool, error) {
	var result FlagResult
	if err := c.rpc.CallContext(ctx, "app_getFeatureFlag", FlagParam{Name: name}, &result); err != nil {
		return false, fmt.Errorf("feature flag %s: %w", name, err)
	}
	return result.Enabled, nil
}

// Transactions returns one page of transaction history, newest first.
func (c *Client) Transactions(ctx context.Context, offset, limit int) ([]history.Transaction, error) {
	var result TransactionsResult
	if err := c.rpc.CallContext(ctx, "wallet_getTransactions", PageParam{Offset: offset, Limit: limit}, &result); err != nil {
		return nil, fmt.Errorf("get transactions: %w", err)
	}
	return result.Transactions, nil
}

// TransactionDetails returns the full records of the given transactions.
func (c *Client) TransactionDetails(ctx context.Context, ids []string) ([]history.Transaction, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var result TransactionsResult
	if err := c.rpc.CallContext(ctx, "wallet_getTransactionDetails", IDsParam{IDs: ids}, &result); err != nil {
		return nil, fmt.Errorf("get transaction details: %w", err)
	}
	return result.Transactions, nil
}
