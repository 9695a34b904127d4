// Package http exposes a hubstore.HubServer over HTTP.
//
// # Routes
//
//	POST /store/{address}/{path...}   store the request body, 202 {"publicURL": ...}
//	POST /list-files/{address}        list stored paths, 202 {"entries": [...], "page": ...}
//	GET  /hub_info/                   discovery document
//	GET  /read/{address}/{path...}    read an object back when the driver supports it
//
// Addresses must match [a-zA-Z0-9]+; other addresses fall through to 404.
// Errors are JSON objects with a single "message" key. HandleError maps hub
// sentinel errors to status codes:
//
//	hubstore.ErrValidation       401
//	hubstore.ErrNotEnoughProof   402
//	hubstore.ErrBadPath          403
//	hubstore.ErrInvalidInput     400
//	hubstore.ErrPayloadTooLarge  413
//	hubstore.ErrNotFound         404
//	anything else                500 "Server Error"
//
// # Usage
//
//	handler := http.NewHandler(&http.HandlerConfig{
//	    MaxUploadSize: 20 << 20,
//	    CORS:          http.CORSConfig{Enabled: true, AllowedOrigins: []string{"*"}},
//	    Logger:        slog.Default(),
//	}, hub)
//	srv := http.NewServer(":3000", handler.Router(), 30*time.Second, 30*time.Second)
//	srv.ListenAndServe()
package http
