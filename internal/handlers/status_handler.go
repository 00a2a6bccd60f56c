package handlers

import (
	"fmt"
	"net/http"
)

// Status serves the human-readable root page. Not part of the programmatic
// contract; handy for checking a deployment from a browser.
func Status(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `
    <h1>Telemetría de dispositivos</h1>
    <p>API activa correctamente</p>
    <p>POST → /api/telemetry</p>
    <p>GET → /api/telemetry</p>
    <p>GET → /api/telemetry/count</p>
    <p>GET → /api/update-interval</p>
  `)
}
