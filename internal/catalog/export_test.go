package catalog

// SetMaxBytes lowers the download limit in tests.
func (f *Fetcher) SetMaxBytes(n int64) { f.maxBytes = n }
