// Package activity reads the device logs one page at a time and the
// hourly light usage series.
//
// Page indexes are 0-based here and translated to the backend's 1-based
// pages on the wire. Each category keeps its own current page and filter.
//
//	b := activity.NewBrowser(client)
//	page, err := b.FetchPage(ctx, device.CategoryLight, 0)
//	if page.HasNext() {
//	    page, err = b.Next(ctx, device.CategoryLight)
//	}
package activity
