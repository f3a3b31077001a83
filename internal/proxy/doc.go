// Package proxy routes requests for instance subdomains to the instance
// containers.
//
// The proxy is installed as the outermost middleware of the server. The
// first label of the Host header names a candidate instance; when no
// running instance has that name the request falls through to the local
// routes. Otherwise:
//
//  1. Paths under a denied prefix (/DbAdmin, /rulesets, /TeamBuilder by
//     default) are answered with 403.
//  2. The request is rewritten to http://<upstream_host>:<port> with its
//     path and query unchanged.
//  3. WebSocket handshakes are handed to the tunnel package; everything
//     else goes through a pooled reverse proxy.
//
// Forwarding failures are answered with 500 and a short diagnostic.
//
//	p, err := proxy.New(&proxy.Config{Lookup: registry})
//	if err != nil {
//	    return err
//	}
//	handler := p.Middleware(localRoutes)
package proxy
