package mwapi

// LanguagesResponse is the response shape of
// meta=siteinfo&siprop=languages.
type LanguagesResponse struct {
	Query struct {
		Languages []struct {
			Code string `json:"code"`
		} `json:"languages"`
	} `json:"query"`
}

// Codes extracts the bare language codes from a LanguagesResponse.
func (r *LanguagesResponse) Codes() []string {
	codes := make([]string, len(r.Query.Languages))
	for i, lang := range r.Query.Languages {
		codes[i] = lang.Code
	}
	return codes
}

// AllMessage is one entry of meta=allmessages&amprop=default.
type AllMessage struct {
	Name       string `json:"name"`
	Default    string `json:"default"`
	Content    string `json:"*"`
	Customized string `json:"customized"`
	Missing    bool   `json:"missing"`
}

// Value returns the message's effective value: the default text if
// present, otherwise the localized value, per spec.md §4.3 step 3.
func (m AllMessage) Value() string {
	if m.Default != "" {
		return m.Default
	}
	return m.Content
}

// AllMessagesResponse is the response shape of meta=allmessages.
type AllMessagesResponse struct {
	Query *struct {
		AllMessages []AllMessage `json:"allmessages"`
	} `json:"query"`
}

// PageInfoResponse is the response shape of prop=info&revids=<id>,
// used by the Dispatcher's pagetitle enrichment property.
type PageInfoResponse struct {
	Query *struct {
		Pages map[string]struct {
			Title string `json:"title"`
		} `json:"pages"`
	} `json:"query"`
}

// Title returns the first (and only, for a single-revid query) page
// title in the response, or "" if none was returned.
func (r *PageInfoResponse) Title() string {
	if r.Query == nil {
		return ""
	}
	for _, page := range r.Query.Pages {
		return page.Title
	}
	return ""
}

// RecentChangesLogEntry is one entry of
// list=recentchanges&rctype=log&rcprop=comment|ids|loginfo|title|user.
type RecentChangesLogEntry struct {
	Type      string `json:"type"`
	LogType   string `json:"logtype"`
	LogAction string `json:"logaction"`
	Title     string `json:"title"`
	User      string `json:"user"`
	Comment   string `json:"comment"`
	RCID      int    `json:"rcid"`
	LogID     int    `json:"logid"`
	NS        int    `json:"ns"`
}

// RecentChangesResponse is the response shape of
// list=recentchanges.
type RecentChangesResponse struct {
	Query *struct {
		RecentChanges []RecentChangesLogEntry `json:"recentchanges"`
	} `json:"query"`
}

// FirstLogType returns the first recent-changes entry whose logtype
// matches logType, per spec.md §4.7's threadlog property ("find the
// first entry with logtype=...").
func (r *RecentChangesResponse) FirstLogType(logType string) (RecentChangesLogEntry, bool) {
	if r.Query == nil {
		return RecentChangesLogEntry{}, false
	}
	for _, entry := range r.Query.RecentChanges {
		if entry.LogType == logType {
			return entry, true
		}
	}
	return RecentChangesLogEntry{}, false
}

// RevisionContentResponse is the response shape of
// prop=revisions&rvprop=content&titles=<page>.
type RevisionContentResponse struct {
	Query *struct {
		Pages map[string]struct {
			Title     string `json:"title"`
			Revisions []struct {
				Content string `json:"*"`
			} `json:"revisions"`
		} `json:"pages"`
	} `json:"query"`
}

// Content returns the wikitext content of the first (and only, for a
// single-title query) page's latest revision, or "" if none.
func (r *RevisionContentResponse) Content() string {
	if r.Query == nil {
		return ""
	}
	for _, page := range r.Query.Pages {
		if len(page.Revisions) > 0 {
			return page.Revisions[0].Content
		}
	}
	return ""
}
