package sisapi

// FetchOptions tunes a single resource accessor call. The zero value
// (or a nil pointer) is the documented default for every field.
type FetchOptions struct {
	// DisableCache forces a fresh network fetch and repopulates the
	// resource cache. Default false: cached data is used when it can
	// satisfy the call.
	DisableCache bool

	// Fields are extra field names to request via the API's "fields"
	// param. Asking for a field outside the cache's coverage forces a
	// fetch even when the ids are already cached.
	Fields []string

	// Filter narrows cached reads to records matching the exact-match
	// conjunction. It also participates in the cache-bypass decision:
	// no cached match means a fetch.
	Filter Filter

	// Critical escalates the failure log for this call from error to
	// critical severity. The returned error is unchanged.
	Critical bool

	// Silent suppresses the request/response log entries entirely.
	Silent bool
}

// Normalize returns a non-nil value copy so accessors can read options
// without nil checks.
func (o *FetchOptions) Normalize() FetchOptions {
	if o == nil {
		return FetchOptions{}
	}

	return *o
}

// WithFilter returns a copy with filter merged in. Entries already set
// on the options win over accessor-supplied ones.
func (o FetchOptions) WithFilter(filter Filter) FetchOptions {
	if len(filter) == 0 {
		return o
	}

	merged := make(Filter, len(filter)+len(o.Filter))
	for k, v := range filter {
		merged[k] = v
	}

	for k, v := range o.Filter {
		merged[k] = v
	}

	o.Filter = merged

	return o
}
