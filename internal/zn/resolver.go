// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2024-2026 zerohunt contributors
// https://github.com/fr4nsys/zerohunt

package zn

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/fr4nsys/zerohunt/internal/pkg/errors"
	"github.com/fr4nsys/zerohunt/internal/pkg/logger"
)

// UnknownAssetName is reported when an asset ID does not resolve.
const UnknownAssetName = "N/A"

// defaultResolverCacheSize bounds the asset cache; hunts touch far fewer
// distinct source assets than activity records.
const defaultResolverCacheSize = 1024

// AssetResolver resolves asset IDs to display names with an LRU cache in
// front of the assets endpoint. Missing assets resolve to UnknownAssetName
// and are cached too, so a deleted asset costs one lookup per hunt.
type AssetResolver struct {
	client *Client
	cache  *lru.Cache[string, string]
	log    *logger.Logger
}

// NewAssetResolver builds a resolver. size <= 0 uses the default.
func NewAssetResolver(client *Client, size int, log *logger.Logger) (*AssetResolver, error) {
	if size <= 0 {
		size = defaultResolverCacheSize
	}
	if log == nil {
		log = logger.Nop()
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "create asset cache")
	}
	return &AssetResolver{client: client, cache: cache, log: log}, nil
}

// Resolve returns the asset's display name. Empty IDs and 404s resolve to
// UnknownAssetName; other upstream failures propagate.
func (r *AssetResolver) Resolve(ctx context.Context, assetID string) (string, error) {
	if assetID == "" {
		return UnknownAssetName, nil
	}
	if name, ok := r.cache.Get(assetID); ok {
		return name, nil
	}

	asset, err := r.client.GetAsset(ctx, assetID)
	if err != nil {
		if errors.IsNotFound(err) {
			r.log.Debug("asset not found, reporting unknown", "asset_id", assetID)
			r.cache.Add(assetID, UnknownAssetName)
			return UnknownAssetName, nil
		}
		return "", err
	}

	name := asset.Entity.Name
	if name == "" {
		name = UnknownAssetName
	}
	r.cache.Add(assetID, name)
	return name, nil
}

// CacheLen reports the number of cached resolutions.
func (r *AssetResolver) CacheLen() int {
	return r.cache.Len()
}
