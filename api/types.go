package api

import "time"

// QueryResponse represents the standard query response format
type QueryResponse struct {
	Data        interface{} `json:"data"`
	LastFetched time.Time   `json:"last_fetched"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// PriceResponse is the body served for price queries.
type PriceResponse struct {
	Asset     string    `json:"asset"`
	Price     string    `json:"price"`
	InUSD     bool      `json:"in_usd"`
	Timestamp time.Time `json:"timestamp"`
}

// SharePriceResponse is the body served for share-price queries.
type SharePriceResponse struct {
	OriginChainID uint64    `json:"origin_chain_id"`
	Vault         string    `json:"vault"`
	DstAsset      string    `json:"dst_asset"`
	Price         string    `json:"price"`
	Timestamp     time.Time `json:"timestamp"`
}

// ReportResponse mirrors one stored vault report.
type ReportResponse struct {
	OriginChainID   uint64    `json:"origin_chain_id"`
	Vault           string    `json:"vault"`
	Asset           string    `json:"asset"`
	AssetDecimals   uint8     `json:"asset_decimals"`
	SharePrice      string    `json:"share_price"`
	LastUpdate      time.Time `json:"last_update"`
	RewardsDelegate string    `json:"rewards_delegate"`
}

// PeerResponse mirrors one configured peer.
type PeerResponse struct {
	ChainID     uint64   `json:"chain_id"`
	TransportID string   `json:"transport_id"`
	Addrs       []string `json:"addrs"`
}

// SetPeerRequest installs the peer for a chain.
type SetPeerRequest struct {
	ChainID uint64   `json:"chain_id"`
	PeerID  string   `json:"peer_id"`
	Addrs   []string `json:"addrs"`
}

// UpdatePriceRequest triggers a price refresh for one asset.
type UpdatePriceRequest struct {
	Asset string `json:"asset"`
	InUSD bool   `json:"in_usd"`
}

// SetAssetCategoryRequest reassigns an asset's category.
type SetAssetCategoryRequest struct {
	Asset    string `json:"asset"`
	Category string `json:"category"`
}

// SendReportsRequest pushes local vault reports to a peer chain. An empty
// vault list pushes every local vault; an empty fee budget pays whatever the
// transport quotes. Options are hex-encoded and version-prefixed.
type SendReportsRequest struct {
	DstChainID      uint64   `json:"dst_chain_id"`
	Vaults          []string `json:"vaults,omitempty"`
	Options         string   `json:"options,omitempty"`
	RewardsDelegate string   `json:"rewards_delegate,omitempty"`
	FeeBudget       string   `json:"fee_budget,omitempty"`
}

// RequestReportsRequest asks a peer chain to push its reports back.
type RequestReportsRequest struct {
	DstChainID      uint64   `json:"dst_chain_id"`
	Vaults          []string `json:"vaults,omitempty"`
	Options         string   `json:"options,omitempty"`
	ReturnOptions   string   `json:"return_options,omitempty"`
	RewardsDelegate string   `json:"rewards_delegate,omitempty"`
	FeeBudget       string   `json:"fee_budget,omitempty"`
}

// SetAssetMapRequest maps a remote asset to its local equivalent.
type SetAssetMapRequest struct {
	SourceChainID uint64 `json:"source_chain_id"`
	SourceAsset   string `json:"source_asset"`
	LocalAsset    string `json:"local_asset"`
}
