package service

import (
	"net/url"
	"strings"

	"mangadownloader/shared/application/ports"
)

// SourceTableFor maps a page uri to the bookkeeping table of the site it was
// scraped from. A uri that does not parse as an absolute URL is matched as
// a whole.
func SourceTableFor(uri string) ports.SourceTable {
	host := uri
	if u, err := url.Parse(uri); err == nil && u.IsAbs() && u.Host != "" {
		host = u.Host
	}
	host = strings.ToLower(host)

	switch {
	case strings.Contains(host, "asura"):
		return ports.TableAsuraScans
	case strings.Contains(host, "flamecomics"):
		return ports.TableFlameScans
	default:
		return ports.TableWeebCentral
	}
}
