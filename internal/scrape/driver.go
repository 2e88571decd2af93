package scrape

// NewDriver builds the PageDriver a portal config asks for. Browser is
// the default; portals that render server side opt into the cheaper
// static driver.
func NewDriver(kind string, opts Options) (PageDriver, error) {
	if kind == "static" {
		return NewStaticDriver(), nil
	}
	return NewBrowserDriver(opts.Headless, opts.Debug)
}
