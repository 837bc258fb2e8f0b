package config

// Provider selection keys.
const (
	KeyOrderSub = "providers.order.sub"
	KeyOrderDub = "providers.order.dub"
)

// Upstream endpoint keys. Base URLs are overridable because the mirror
// domains rotate frequently.
const (
	KeyHiAnimeBase     = "hianime.base_url"
	KeyAnimePaheBase   = "animepahe.base_url"
	KeyAniCrushBase    = "anicrush.base_url"
	KeyAniCrushKeys    = "anicrush.api_keys"
	KeyAniWaveBase     = "aniwave.base_url"
	KeyVidCDNEndpoints = "vidcdn.endpoints"
	KeyResolverBase    = "resolver.base_url"
	KeySkipTimesBase   = "skiptimes.base_url"
	KeyMetadataBase    = "metadata.base_url"
)

// Cache tuning keys.
const (
	KeyCacheEpisodeTTL = "cache.episode_ttl"
	KeyCacheDetailTTL  = "cache.detail_ttl"
	KeyCacheTokenBuf   = "cache.token_buffer"
)

// Behavior keys.
const (
	KeySyntheticTimings = "skiptimes.synthetic_fallback"
	KeyUserAgent        = "http.user_agent"
)
