package dispatcher

// Error codes the Dispatcher's enrichment fetches can fail with, per
// spec.md §7's "Fetch" and "Cache" taxonomies.
const (
	ErrCodeAPIThreadLog     = "api-threadlog"
	ErrCodeAPITitleAPI      = "api-titleapi"
	ErrCodeAPINoTitle       = "api-notitle"
	ErrCodeAPIThreadInfo    = "api-threadinfo"
	ErrCodeThreadLogNoFind  = "threadlognofind"
	ErrCodeThreadTitleParse = "threadtitleparse"
	ErrCodeCacheThreadTitle = "cache-threadtitle"
	ErrCodeCacheSetThread   = "cache-setthreadcache"
)
