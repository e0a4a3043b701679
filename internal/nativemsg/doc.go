// Package nativemsg implements the Chrome native messaging framing
// (4-byte host-order length prefix + UTF-8 JSON) and the request/response
// DTOs exchanged with the browser extension.
package nativemsg
