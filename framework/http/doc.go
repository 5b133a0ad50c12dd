// Package http provides small JSON response helpers for the admin surface.
//
//	res := gohttp.NewResponse(w)
//	res.Success(orchestrator.States())     // 200 {"data": [...]}
//	res.NotFound("unknown component")      // 404 {"message": "..."}
//	res.ServiceUnavailable()               // 503 {"message": "Service unavailable."}
package http
